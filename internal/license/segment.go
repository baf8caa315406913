package license

import (
	"regexp"
	"strings"

	"licensescan/internal/util"
)

// FieldMap keeps only the first occurrence of each element code.
type FieldMap map[string]string

var (
	reElementCode  = regexp.MustCompile(`[DZ][A-Z0-9]{2}`)
	lineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u2028", "\n", "\u2029", "\n", "@", "")
)

const codeLen = 3

func Segment(raw string) FieldMap {
	fields := FieldMap{}
	if raw == "" {
		return fields
	}

	text := strings.TrimSpace(lineNormalizer.Replace(raw))
	matches := reElementCode.FindAllStringIndex(text, -1)

	for i, m := range matches {
		code := text[m[0]:m[1]]
		start := m[0] + codeLen
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		if _, seen := fields[code]; seen {
			continue
		}
		fields[code] = strings.TrimSpace(util.CollapseNewlines(text[start:end]))
	}

	return fields
}

func (f FieldMap) Get(code string) string {
	return f[code]
}
