package document

const (
	DefaultChunkSize  = 500
	DefaultMaxWorkers = 4
)

// Splitter replaces the word chunker. It receives the combined document text.
type Splitter func(text string) []string

// ProcessingConfig controls how documents become chunks. The extraction core forwards it
// without interpreting it.
type ProcessingConfig struct {
	ChunkSize           int  // words per chunk
	HiResPDF            bool // prefer pdftotext layout mode over content stream parsing
	InferTables         bool // keep table cell separators in extracted text
	MaxWorkers          int  // documents loaded concurrently
	RemoveHeaders       bool // drop page furniture: html header/nav/footer, repeated pdf headers
	RemoveReferences    bool // drop everything after a "References" heading
	FilterEmptyElements bool
	OCRForImages        bool
	OCRLanguage         string
	HEICConverter       string // heif-convert, magick or sips
	Splitter            Splitter
}

// DefaultProcessingConfig mirrors the documented defaults.
func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		ChunkSize:           DefaultChunkSize,
		MaxWorkers:          DefaultMaxWorkers,
		FilterEmptyElements: true,
		OCRLanguage:         "eng",
		HEICConverter:       "magick",
	}
}

func (c ProcessingConfig) withDefaults() ProcessingConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = "eng"
	}
	return c
}
