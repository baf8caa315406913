package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"licensescan/internal"
)

func ExtractPayloadsFromInput(inputType string, input string) ([]Payload, error) {
	if inputType == "text" {
		return []Payload{{Source: internal.SourceText, Text: input}}, nil
	}

	blob, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(input)

	switch inputType {
	case "file":
		payloads := textPayloads(internal.SourceTXT, name, string(blob))
		if len(payloads) == 0 {
			payloads = []Payload{{Source: internal.SourceTXT, Ref: name, Text: string(blob)}}
		}
		return payloads, nil
	case "pdf":
		return parsePDF(blob, name)
	case "xlsx":
		return parseXLSX(blob, name)
	case "email":
		res, err := ExtractPayloadsFromEmailRaw(blob)
		if err != nil {
			return nil, err
		}
		return res.Payloads, nil
	default:
		return nil, fmt.Errorf("unsupported input type: %s", inputType)
	}
}
