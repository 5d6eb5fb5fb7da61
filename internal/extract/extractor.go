// Package extract provides plain text extraction from uploaded document formats.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/docchat/internal/domain"
)

// Extractor extracts plain text from raw document bytes.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExt reports whether the file extension is an accepted format.
func SupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// Extract returns the text content of the document named fileName.
// PDF content is extracted page by page; Markdown is stripped of syntax
// markers; plain text passes through UTF-8 validated. Parse failures wrap
// domain.ErrExtractionFailed.
func (e *Extractor) Extract(content []byte, fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return "", fmt.Errorf("%s: %v: %w", fileName, err, domain.ErrExtractionFailed)
		}
		return text, nil
	case ".md", ".markdown":
		return extractMarkdown(content)
	case ".txt", "":
		return extractPlain(content)
	default:
		// Unknown extension: treat as plain text
		return extractPlain(content)
	}
}
