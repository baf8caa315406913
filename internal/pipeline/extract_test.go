package pipeline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"licensescan/internal"
)

const (
	payloadSyed    = "DCSSYED\nDACALLAHBAKSH SAMEER\nDAQS96390260903311\nDBB19901112"
	payloadJohnson = "DCSJOHNSON\nDACSARAH\nDAQJ12345678\nDBB19950304"
)

func TestTextPayloadsSplitsBlocks(t *testing.T) {
	text := "Hi,\r\n\r\nPlease register these students.\n\n" + payloadSyed + "\n\n" + payloadJohnson + "\n\nThanks\n"
	payloads := textPayloads(internal.SourceEmailText, "body", text)
	if len(payloads) != 2 {
		t.Fatalf("len=%d", len(payloads))
	}
	if payloads[0].Text != payloadSyed || payloads[1].Text != payloadJohnson {
		t.Fatalf("payloads=%+v", payloads)
	}
	if payloads[0].Ref != "body#3" || payloads[0].Source != internal.SourceEmailText {
		t.Fatalf("ref=%s source=%s", payloads[0].Ref, payloads[0].Source)
	}
}

func TestTextPayloadsSplitsOnHeaders(t *testing.T) {
	text := "@\nANSI 636012080002DL00410278ZO03190008DL\n" + payloadSyed + "\n@\nANSI 636012080002DL00410278ZO03190008DL\n" + payloadJohnson
	payloads := textPayloads(internal.SourceTXT, "scans.txt", text)
	if len(payloads) != 2 {
		t.Fatalf("len=%d", len(payloads))
	}
	if !strings.Contains(payloads[1].Text, "DCSJOHNSON") || strings.Contains(payloads[1].Text, "DCSSYED") {
		t.Fatalf("second=%q", payloads[1].Text)
	}
}

func TestTextPayloadsIgnoresProse(t *testing.T) {
	if got := textPayloads(internal.SourceEmailText, "body", "Hello,\n\nsee you at the lesson on Monday."); len(got) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestHTMLPayloads(t *testing.T) {
	html := `<html><body><p>Scan below</p><p>DCSSYED<br>DACALLAHBAKSH SAMEER<br>DAQS96390260903311</p></body></html>`
	payloads := htmlPayloads(html)
	if len(payloads) != 1 {
		t.Fatalf("len=%d", len(payloads))
	}
	if payloads[0].Source != internal.SourceEmailHTML {
		t.Fatalf("source=%s", payloads[0].Source)
	}
	if payloads[0].Text != "DCSSYED\nDACALLAHBAKSH SAMEER\nDAQS96390260903311" {
		t.Fatalf("text=%q", payloads[0].Text)
	}
}

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Student", "Barcode"},
		{"Sameer", payloadSyed},
		{"Sarah", payloadJohnson},
		{"Note", "no scan yet"},
	})
	payloads, err := parseXLSX(blob, "intake.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if len(payloads) != 2 {
		t.Fatalf("len=%d", len(payloads))
	}
	if payloads[0].Source != internal.SourceXLSX || !strings.HasPrefix(payloads[0].Ref, "intake.xlsx!Sheet1!B2") {
		t.Fatalf("payload=%+v", payloads[0])
	}
}

func TestDedupePayloads(t *testing.T) {
	out := dedupePayloads([]Payload{
		{Source: internal.SourceEmailText, Text: payloadSyed},
		{Source: internal.SourceEmailHTML, Text: strings.ReplaceAll(payloadSyed, "\n", "\n ")},
	})
	if len(out) != 1 || out[0].Source != internal.SourceEmailText {
		t.Fatalf("out=%+v", out)
	}
}
