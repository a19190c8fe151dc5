// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"os/user"

	"fusor/internal/engine"
	"fusor/language/fusor"
	"fusor/repl"
)

func main() {
	currentUser, err := user.Current()
	if err != nil {
		fmt.Printf("Error getting current user: %v\n", err)
		return
	}

	p, err := engine.NewParser(fusor.Language())
	if err != nil {
		fmt.Printf("Error creating parser: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Welcome to the fusor REPL, %s!\n", currentUser.Username)
	fmt.Println("Each line is appended to the document; :text prints it, :reset clears it.")
	repl.Start(os.Stdin, os.Stdout, p)
}
