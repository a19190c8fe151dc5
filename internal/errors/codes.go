package errors

// Error codes for the fusor toolchain.
// These codes are used in error messages and documentation
// to provide consistent error identification across the toolchain.
//
// Error code ranges:
// E0100-E0199: Grammar errors (fatal, block table generation)
// E0200-E0299: Conflict errors (fatal unless the grammar is disambiguated)
// E0300-E0399: Scan errors (recovered at parse time)
// E0400-E0499: Syntax errors (recovered at parse time)
// E0900-E0999: Table blob and tooling errors
// W0800-W0899: Warnings

const (
	// E0101: A rule references a name that is neither a rule, a token nor an external
	ErrorUnresolvedSymbol = "E0101"

	// E0102: Two rules, tokens or externals share a name
	ErrorDuplicateRule = "E0102"

	// E0103: A precedence annotation or declaration references an unknown level or token
	ErrorInvalidPrecedence = "E0103"

	// E0104: An annotation is not understood in this position
	ErrorInvalidAnnotation = "E0104"

	// E0105: A rule derives itself without consuming input
	ErrorCyclicRule = "E0105"

	// E0106: An extras, word or externals entry is not a token
	ErrorInvalidTokenReference = "E0106"

	// E0107: An alternative is empty without the `empty` keyword
	ErrorEmptyAlternative = "E0107"

	// E0108: A supertype is not a hidden rule
	ErrorInvalidSupertype = "E0108"

	// E0109: A rule can never match any input
	ErrorUnproductiveRule = "E0109"

	// E0110: A rule expands to too many alternatives
	ErrorTooManyAlternatives = "E0110"

	// E0111: A token pattern is not a valid regular expression
	ErrorInvalidPattern = "E0111"

	// E0112: A token matches the empty string
	ErrorEmptyToken = "E0112"

	// E0113: The start rule is missing or hidden
	ErrorInvalidStart = "E0113"

	// E0114: The grammar source could not be parsed
	ErrorGrammarSyntax = "E0114"

	// E0115: An alias or field is attached to something that cannot carry it
	ErrorInvalidLabel = "E0115"

	// E0201: Two actions compete and the reduced rule has no associativity
	ErrorNonAssociative = "E0201"

	// E0202: A declared conflict cell has more actions than the fan-out ceiling
	ErrorFanoutExceeded = "E0202"

	// E0203: An ambiguity was resolved by declaration order in strict mode
	ErrorUnresolvedConflict = "E0203"

	// E0301: No token matched the input
	ErrorUnexpectedCharacter = "E0301"

	// E0302: The external scanner kept returning empty tokens
	ErrorScannerStalled = "E0302"

	// E0401: No action for the lookahead token
	ErrorUnexpectedToken = "E0401"

	// E0402: Input ended while a construct was still open
	ErrorUnexpectedEOF = "E0402"

	// E0901: The table blob was produced by an incompatible version
	ErrorIncompatibleBlob = "E0901"

	// W0801: An ambiguity was resolved because one rule was declared first
	WarningDeclarationOrder = "W0801"

	// W0802: A rule is never reachable from the start rule
	WarningUnusedRule = "W0802"
)

// GetErrorDescription returns a human-readable description of the error code
func GetErrorDescription(code string) string {
	switch code {
	case ErrorUnresolvedSymbol:
		return "Rule references an undefined symbol"
	case ErrorDuplicateRule:
		return "Name is defined more than once"
	case ErrorInvalidPrecedence:
		return "Precedence reference does not name a declared level"
	case ErrorInvalidAnnotation:
		return "Annotation is not valid here"
	case ErrorCyclicRule:
		return "Rule derives itself without consuming input"
	case ErrorInvalidTokenReference:
		return "Entry must name a token"
	case ErrorEmptyAlternative:
		return "Empty alternative must be written as `empty`"
	case ErrorInvalidSupertype:
		return "Supertype must be a hidden rule"
	case ErrorUnproductiveRule:
		return "Rule can never match"
	case ErrorTooManyAlternatives:
		return "Rule expands to too many alternatives"
	case ErrorInvalidPattern:
		return "Token pattern is not a valid regular expression"
	case ErrorEmptyToken:
		return "Token matches the empty string"
	case ErrorInvalidStart:
		return "Start rule is missing or hidden"
	case ErrorGrammarSyntax:
		return "Grammar source is malformed"
	case ErrorInvalidLabel:
		return "Alias or field cannot be attached here"
	case ErrorNonAssociative:
		return "Ambiguity on a non-associative rule"
	case ErrorFanoutExceeded:
		return "Conflict has more candidate actions than the fan-out ceiling"
	case ErrorUnresolvedConflict:
		return "Ambiguity resolved only by declaration order"
	case ErrorUnexpectedCharacter:
		return "No token matches the input"
	case ErrorScannerStalled:
		return "External scanner made no progress"
	case ErrorUnexpectedToken:
		return "Token is not valid here"
	case ErrorUnexpectedEOF:
		return "Input ended unexpectedly"
	case ErrorIncompatibleBlob:
		return "Table blob version is not supported"
	case WarningDeclarationOrder:
		return "Ambiguity resolved by declaration order"
	case WarningUnusedRule:
		return "Rule is unreachable"
	default:
		return "Unknown error code"
	}
}

// IsWarning returns true if the error code represents a warning rather than an error
func IsWarning(code string) bool {
	return code != "" && code[0] == 'W'
}

// GetErrorCategory returns the category of the error based on its code
func GetErrorCategory(code string) string {
	switch {
	case code == "":
		return "Unknown"
	case code[0] == 'W':
		return "Warning"
	case code >= "E0100" && code < "E0200":
		return "Grammar"
	case code >= "E0200" && code < "E0300":
		return "Conflict"
	case code >= "E0300" && code < "E0400":
		return "Scan"
	case code >= "E0400" && code < "E0500":
		return "Syntax"
	case code >= "E0900" && code < "E1000":
		return "Tooling"
	default:
		return "Unknown"
	}
}

// IsFatal reports whether an error with this code aborts compilation.
func IsFatal(code string) bool {
	switch GetErrorCategory(code) {
	case "Grammar", "Conflict", "Tooling":
		return true
	}
	return false
}
