package document

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextFromContentStream(t *testing.T) {
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(Invoice \\(copy\\)) Tj\n0 -14 Td\n[(Total) -250 (42.00)] TJ\nT*\n(Due\\0402024-05-01) '\nET"
	got := textFromContentStream([]byte(stream))
	assert.Equal(t, "Invoice (copy) Total42.00\nDue 2024-05-01", got)
}

func TestExtractPDFPages(t *testing.T) {
	elems, err := extractPDF(bytes.NewReader(minimalPDF("Hello from page one")))
	require.NoError(t, err)
	require.Len(t, elems, 1)
	assert.Equal(t, 1, elems[0].Page)
}

func TestDropPageFurniture(t *testing.T) {
	elems := []element{
		{Text: "ACME Corp report\nfirst body\nPage 1", Page: 1},
		{Text: "ACME Corp report\nsecond body\nPage 2", Page: 2},
		{Text: "ACME Corp report\nthird body\nPage 3", Page: 3},
	}
	out := dropPageFurniture(elems)
	assert.Equal(t, "first body", out[0].Text)
	assert.Equal(t, "third body", out[2].Text)
}

func minimalPDF(text string) []byte {
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + text + ") Tj\nET"
	var b strings.Builder
	offsets := make([]int, 6)
	b.WriteString("%PDF-1.4\n")
	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")
	offsets[4] = b.Len()
	fmt.Fprintf(&b, "4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream)
	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	xref := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return []byte(b.String())
}
