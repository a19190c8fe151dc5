package grammar

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlGrammar mirrors the DSL declarations. Rule and token bodies are DSL
// expressions; mappings keep their document order.
type yamlGrammar struct {
	Name       string     `yaml:"name"`
	Start      string     `yaml:"start,omitempty"`
	Word       string     `yaml:"word,omitempty"`
	Extras     []string   `yaml:"extras,omitempty"`
	Externals  []string   `yaml:"externals,omitempty"`
	Conflicts  [][]string `yaml:"conflicts,omitempty"`
	Supertypes []string   `yaml:"supertypes,omitempty"`
	Precedence []string   `yaml:"precedence,omitempty"`
	Rules      yaml.Node  `yaml:"rules"`
	Tokens     yaml.Node  `yaml:"tokens,omitempty"`
}

// LoadYAMLFile reads a YAML or JSON grammar description.
func LoadYAMLFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return LoadYAML(path, data)
}

// LoadYAML converts a YAML (or JSON) grammar description to DSL text and
// parses it. Positions in errors refer to the generated DSL.
func LoadYAML(filename string, data []byte) (*File, error) {
	src, err := YAMLToDSL(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return ParseSource(filename, src)
}

// YAMLToDSL renders a YAML grammar description as DSL source.
func YAMLToDSL(data []byte) (string, error) {
	var doc yamlGrammar
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decode grammar: %w", err)
	}
	if doc.Name == "" {
		return "", fmt.Errorf("grammar has no name")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "grammar %s;\n", doc.Name)
	if doc.Start != "" {
		fmt.Fprintf(&b, "start %s;\n", doc.Start)
	}
	if doc.Word != "" {
		fmt.Fprintf(&b, "word %s;\n", doc.Word)
	}
	if len(doc.Extras) > 0 {
		fmt.Fprintf(&b, "extras { %s }\n", strings.Join(doc.Extras, " "))
	}
	if len(doc.Externals) > 0 {
		fmt.Fprintf(&b, "externals { %s }\n", strings.Join(doc.Externals, " "))
	}
	if len(doc.Supertypes) > 0 {
		fmt.Fprintf(&b, "supertypes { %s }\n", strings.Join(doc.Supertypes, " "))
	}
	if len(doc.Conflicts) > 0 {
		b.WriteString("conflicts {\n")
		for _, g := range doc.Conflicts {
			fmt.Fprintf(&b, "    [%s];\n", strings.Join(g, ", "))
		}
		b.WriteString("}\n")
	}
	if len(doc.Precedence) > 0 {
		b.WriteString("precedence {\n")
		for _, level := range doc.Precedence {
			fmt.Fprintf(&b, "    %s;\n", strings.TrimSuffix(strings.TrimSpace(level), ";"))
		}
		b.WriteString("}\n")
	}
	if err := writeBodies(&b, "rule", &doc.Rules); err != nil {
		return "", err
	}
	if err := writeBodies(&b, "token", &doc.Tokens); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeBodies(b *strings.Builder, keyword string, node *yaml.Node) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: %ss must be a mapping", node.Line, keyword)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: %s %q must be a string", value.Line, keyword, key.Value)
		}
		fmt.Fprintf(b, "%s %s = %s;\n", keyword, key.Value, strings.TrimSuffix(strings.TrimSpace(value.Value), ";"))
	}
	return nil
}
