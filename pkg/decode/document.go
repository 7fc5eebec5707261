package decode

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// literalString matches parenthesized string operands in a PDF content
// stream, tolerating escaped parens and backslashes.
var literalString = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)

// ExtractDocumentText converts a PDF byte stream to plain text. Failure at
// any stage returns the text recovered so far (possibly empty) rather than an
// error: downstream extractors tolerate empty input, and a half-readable
// document is still worth scanning for numbers.
func ExtractDocumentText(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	ctx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return ""
	}
	if err := api.ValidateContext(ctx); err != nil {
		return ""
	}

	var sb strings.Builder
	for page := 1; page <= ctx.PageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(ctx, page)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		text := contentStreamText(content)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// contentStreamText recovers the literal string operands of a page content
// stream. This is a best-effort pass over raw text-showing operators, not a
// full PDF text layout engine; it is enough for the numeric scans downstream.
func contentStreamText(content []byte) string {
	matches := literalString.FindAllSubmatch(content, -1)
	if len(matches) == 0 {
		return ""
	}

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		s := string(m[1])
		s = strings.ReplaceAll(s, `\(`, "(")
		s = strings.ReplaceAll(s, `\)`, ")")
		s = strings.ReplaceAll(s, `\\`, `\`)
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
