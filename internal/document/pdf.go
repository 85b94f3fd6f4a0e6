package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// extractPDF returns one element per page with text, parsed from the page content streams.
func extractPDF(r io.ReadSeeker) ([]element, error) {
	ctx, err := api.ReadValidateAndOptimize(r, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	var out []element
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		out = append(out, element{Text: pageText(ctx, pageNr), Page: pageNr})
	}
	return out, nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return textFromContentStream(data)
}

var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textFromContentStream collects the string operands of the text showing operators.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
			continue
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			sb.WriteByte('\n')
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			sb.WriteByte(' ')
		case bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			sb.WriteByte('\n')
		}
	}
	return normalizeLines(sb.String())
}

func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				continue
			}
			val := int(c - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// extractPDFLayout runs pdftotext in layout mode; pages are separated by form feeds.
func extractPDFLayout(ctx context.Context, r Runner, bin, path string) ([]element, error) {
	out, errb, err := r.Run(ctx, bin, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	pages := strings.Split(string(out), "\f")
	elems := make([]element, 0, len(pages))
	for i, p := range pages {
		elems = append(elems, element{Text: normalizeLines(p), Page: i + 1})
	}
	return elems, nil
}
