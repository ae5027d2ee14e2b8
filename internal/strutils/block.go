package strutils

import (
	"fmt"
	"strings"
	"unicode"
)

const MAX_BLOCK_LENGTH = 16

// Trims surrounding whitespace and converts all letters to uppercase
//
// Block identifiers consist of ASCII letters, digits and inner dashes, e.g. 44-07
func NormalizeBlock(block string) (string, error) {
	trimmed := strings.TrimSpace(block)
	if trimmed == "" {
		return "", fmt.Errorf("block is empty")
	}
	if len(trimmed) > MAX_BLOCK_LENGTH {
		return "", fmt.Errorf("block is too long. input: '%.32s'", block)
	}
	if strings.HasPrefix(trimmed, "-") || strings.HasSuffix(trimmed, "-") {
		return "", fmt.Errorf("block cannot start or end with a dash. input: '%s'", block)
	}

	var normalized strings.Builder
	normalized.Grow(len(trimmed))
	for _, char := range trimmed {
		switch {
		case char == '-', '0' <= char && char <= '9':
			normalized.WriteRune(char)
		case 'a' <= char && char <= 'z', 'A' <= char && char <= 'Z':
			normalized.WriteRune(unicode.ToUpper(char))
		default:
			return "", fmt.Errorf("invalid character in block. input: '%s'", block)
		}
	}

	return normalized.String(), nil
}

func BlockIsNormalized(block string) bool {
	normalized, err := NormalizeBlock(block)
	if err != nil {
		return false
	}
	return normalized == block
}
