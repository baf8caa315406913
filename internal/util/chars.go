package util

import "strings"

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isASCIILetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func DigitsOnly(input string) string {
	out := strings.Builder{}
	for _, r := range input {
		if isASCIIDigit(r) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func AlnumOnly(input string) string {
	out := strings.Builder{}
	for _, r := range input {
		if isASCIIDigit(r) || isASCIILetter(r) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func JoinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
