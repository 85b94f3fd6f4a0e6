package constants

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DocumentType identifies a supported input document by its extension.
type DocumentType string

const (
	PDF      DocumentType = "pdf"
	TXT      DocumentType = "txt"
	MARKDOWN DocumentType = "md"
	HTML     DocumentType = "html"
	CSV      DocumentType = "csv"
	TSV      DocumentType = "tsv"
	JSON     DocumentType = "json"
	XML      DocumentType = "xml"
	RST      DocumentType = "rst"
	ORG      DocumentType = "org"
	PNG      DocumentType = "png"
	JPEG     DocumentType = "jpeg"
	TIFF     DocumentType = "tiff"
	BMP      DocumentType = "bmp"
	HEIC     DocumentType = "heic"
)

// extAliases folds alternate spellings onto their canonical type.
var extAliases = map[string]DocumentType{
	"jpg":      JPEG,
	"htm":      HTML,
	"markdown": MARKDOWN,
	"text":     TXT,
	"tif":      TIFF,
	"heif":     HEIC,
}

var mimeTypes = map[DocumentType]string{
	PDF:      "application/pdf",
	TXT:      "text/plain",
	MARKDOWN: "text/markdown",
	HTML:     "text/html",
	CSV:      "text/csv",
	TSV:      "text/tab-separated-values",
	JSON:     "application/json",
	XML:      "application/xml",
	RST:      "text/x-rst",
	ORG:      "text/org",
	PNG:      "image/png",
	JPEG:     "image/jpeg",
	TIFF:     "image/tiff",
	BMP:      "image/bmp",
	HEIC:     "image/heic",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsURL reports whether source looks like a web address rather than a path.
func IsURL(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "www.")
}

// DocumentTypeFromSource maps a path or URL to its document type. URLs are always HTML.
func DocumentTypeFromSource(source string) (DocumentType, error) {
	if IsURL(source) {
		return HTML, nil
	}
	ext := NormalizeExt(filepath.Ext(source))
	if alias, ok := extAliases[ext]; ok {
		return alias, nil
	}
	dt := DocumentType(ext)
	if _, ok := mimeTypes[dt]; !ok {
		return "", fmt.Errorf("unsupported file type: %q", ext)
	}
	return dt, nil
}

// MIMEType returns the MIME type for the document type.
func (d DocumentType) MIMEType() string {
	if mt, ok := mimeTypes[d]; ok {
		return mt
	}
	return "application/octet-stream"
}

// IsImage reports whether the type needs OCR to yield text.
func (d DocumentType) IsImage() bool {
	switch d {
	case PNG, JPEG, TIFF, BMP, HEIC:
		return true
	}
	return false
}
