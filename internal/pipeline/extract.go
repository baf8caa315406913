package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"licensescan/internal"
	"licensescan/internal/util"
)

type Payload struct {
	Source internal.ScanSource
	Ref    string
	Text   string
}

type EmailPayloads struct {
	Subject         string
	Payloads        []Payload
	AttachmentNames []string
}

var (
	reBlankLine = regexp.MustCompile(`\n[ \t]*\n`)
	reHeader    = regexp.MustCompile(`@?\s*(ANSI |AAMVA)`)
)

func ExtractPayloadsFromEmailRaw(raw []byte) (EmailPayloads, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return EmailPayloads{}, err
	}

	out := EmailPayloads{Subject: env.GetHeader("Subject")}
	if env.Text != "" {
		out.Payloads = append(out.Payloads, textPayloads(internal.SourceEmailText, "body", env.Text)...)
	}
	if env.HTML != "" {
		out.Payloads = append(out.Payloads, htmlPayloads(env.HTML)...)
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		out.AttachmentNames = append(out.AttachmentNames, filename)
		lower := strings.ToLower(filename)

		switch {
		case strings.HasSuffix(lower, ".txt"):
			out.Payloads = append(out.Payloads, textPayloads(internal.SourceTXT, filename, string(att.Content))...)
		case strings.HasSuffix(lower, ".pdf"):
			extra, err := parsePDF(att.Content, filename)
			if err == nil {
				out.Payloads = append(out.Payloads, extra...)
			}
		case strings.HasSuffix(lower, ".xlsx"):
			extra, err := parseXLSX(att.Content, filename)
			if err == nil {
				out.Payloads = append(out.Payloads, extra...)
			}
		}
	}

	out.Payloads = dedupePayloads(out.Payloads)
	return out, nil
}

func textPayloads(source internal.ScanSource, ref, text string) []Payload {
	text = strings.TrimSpace(strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text))
	if text == "" {
		return nil
	}

	out := []Payload{}
	for i, part := range splitCandidates(text) {
		if DetectLicensePayload(part).IsLicense {
			out = append(out, Payload{Source: source, Ref: fmt.Sprintf("%s#%d", ref, i+1), Text: part})
		}
	}
	if len(out) == 0 && DetectLicensePayload(text).IsLicense {
		out = append(out, Payload{Source: source, Ref: ref, Text: text})
	}
	return out
}

func splitCandidates(text string) []string {
	if locs := reHeader.FindAllStringIndex(text, -1); len(locs) > 1 {
		parts := make([]string, 0, len(locs))
		for i, loc := range locs {
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			if part := strings.TrimSpace(text[loc[0]:end]); part != "" {
				parts = append(parts, part)
			}
		}
		return parts
	}

	parts := []string{}
	for _, block := range reBlankLine.Split(text, -1) {
		if block = strings.TrimSpace(block); block != "" {
			parts = append(parts, block)
		}
	}
	return parts
}

func htmlPayloads(html string) []Payload {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p,div,tr,pre,li").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})

	text := strings.ReplaceAll(doc.Text(), "\u00a0", " ")
	return textPayloads(internal.SourceEmailHTML, "html", text)
}

func parseXLSX(content []byte, ref string) ([]Payload, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []Payload{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for r, row := range rows {
			for c, value := range row {
				if strings.TrimSpace(value) == "" {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				out = append(out, textPayloads(internal.SourceXLSX, ref+"!"+sheet+"!"+cell, value)...)
			}
		}
	}
	return out, nil
}

func parsePDF(content []byte, ref string) ([]Payload, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []Payload{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		out = append(out, textPayloads(internal.SourcePDF, fmt.Sprintf("%s#p%d", ref, i), text)...)
	}
	return out, nil
}

func dedupePayloads(payloads []Payload) []Payload {
	seen := map[string]struct{}{}
	out := make([]Payload, 0, len(payloads))
	for _, p := range payloads {
		key := util.CollapseSpaces(p.Text)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}
