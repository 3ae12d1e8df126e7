package extraction

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// PDFTextExtractor pulls embedded text out of a PDF. Implementations are
// external collaborators (a PDF toolchain or service), not this package.
type PDFTextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// OCRClient performs optical character recognition on file bytes.
type OCRClient interface {
	Recognize(ctx context.Context, data []byte) (string, error)
}

var (
	// ErrUnreadable means the file is corrupt or unsupported; downstream
	// stages must not run against the document.
	ErrUnreadable = errors.New("document unreadable")

	// ErrEmptyContent means the file parsed but yielded no usable text;
	// callers may proceed with a warning.
	ErrEmptyContent = errors.New("document contains no usable text")
)

// ocrFallbackThreshold is the minimum number of characters a direct PDF
// text pass must yield before OCR is skipped. Scanned PDFs typically
// produce little or no embedded text.
const ocrFallbackThreshold = 100

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".bmp":  true,
}

// Adapter normalizes uploaded files into plain text. Direct text
// extraction is attempted first; image-bearing formats fall back to OCR.
type Adapter struct {
	pdf    PDFTextExtractor
	ocr    OCRClient
	logger *zap.Logger
}

// NewAdapter creates a text extraction adapter over the given collaborators.
func NewAdapter(pdf PDFTextExtractor, ocr OCRClient, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{pdf: pdf, ocr: ocr, logger: logger}
}

// Extract converts file bytes into plain text. Failures are classified as
// ErrUnreadable (corrupt/unsupported) or ErrEmptyContent (parsed, nothing
// usable); callers react differently to the two.
func (a *Adapter) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrEmptyContent)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return a.extractPDF(ctx, data, filename)
	case imageExtensions[ext]:
		return a.extractImage(ctx, data, filename)
	default:
		return a.extractPlainText(data, filename)
	}
}

func (a *Adapter) extractPDF(ctx context.Context, data []byte, filename string) (string, error) {
	text, err := a.pdf.ExtractText(ctx, data)
	if err != nil {
		a.logger.Warn("pdf text extraction failed, falling back to ocr",
			zap.String("filename", filename), zap.Error(err))
		return a.ocrFallback(ctx, data, filename)
	}

	if len(strings.TrimSpace(text)) < ocrFallbackThreshold {
		ocrText, ocrErr := a.ocrFallback(ctx, data, filename)
		if ocrErr == nil {
			return ocrText, nil
		}
		// Keep whatever the direct pass produced; a short denial letter
		// in a text-native PDF is still usable.
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return trimmed, nil
		}
		return "", ocrErr
	}

	return strings.TrimSpace(text), nil
}

func (a *Adapter) extractImage(ctx context.Context, data []byte, filename string) (string, error) {
	return a.ocrFallback(ctx, data, filename)
}

func (a *Adapter) ocrFallback(ctx context.Context, data []byte, filename string) (string, error) {
	text, err := a.ocr.Recognize(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%w: ocr failed for %s: %v", ErrUnreadable, filename, err)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("%w: ocr yielded no text for %s", ErrEmptyContent, filename)
	}
	return trimmed, nil
}

func (a *Adapter) extractPlainText(data []byte, filename string) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid text", ErrUnreadable, filename)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyContent, filename)
	}
	return trimmed, nil
}
