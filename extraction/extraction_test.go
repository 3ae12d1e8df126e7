package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakePDF struct {
	text string
	err  error
}

func (f *fakePDF) ExtractText(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type fakeOCR struct {
	text   string
	err    error
	called bool
}

func (f *fakeOCR) Recognize(context.Context, []byte) (string, error) {
	f.called = true
	return f.text, f.err
}

func TestExtractPlainText(t *testing.T) {
	t.Parallel()

	a := NewAdapter(&fakePDF{}, &fakeOCR{}, nil)
	text, err := a.Extract(context.Background(), []byte("  denial letter body  \n"), "denial.txt")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "denial letter body" {
		t.Errorf("expected trimmed text, got %q", text)
	}
}

func TestExtractPlainTextRejectsBinary(t *testing.T) {
	t.Parallel()

	a := NewAdapter(&fakePDF{}, &fakeOCR{}, nil)
	_, err := a.Extract(context.Background(), []byte{0xff, 0xfe, 0x00, 0x01}, "notes.txt")
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestExtractEmptyFile(t *testing.T) {
	t.Parallel()

	a := NewAdapter(&fakePDF{}, &fakeOCR{}, nil)
	_, err := a.Extract(context.Background(), nil, "denial.txt")
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestExtractPDFDirectText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("clinical documentation ", 10)
	ocr := &fakeOCR{text: "ocr text"}
	a := NewAdapter(&fakePDF{text: long}, ocr, nil)

	text, err := a.Extract(context.Background(), []byte("%PDF-"), "denial.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != strings.TrimSpace(long) {
		t.Errorf("expected direct PDF text, got %q", text)
	}
	if ocr.called {
		t.Error("OCR should not run when direct extraction yields enough text")
	}
}

func TestExtractPDFShortTextFallsBackToOCR(t *testing.T) {
	t.Parallel()

	ocr := &fakeOCR{text: "recognized scan text"}
	a := NewAdapter(&fakePDF{text: "short"}, ocr, nil)

	text, err := a.Extract(context.Background(), []byte("%PDF-"), "scan.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "recognized scan text" {
		t.Errorf("expected OCR text, got %q", text)
	}
	if !ocr.called {
		t.Error("OCR fallback should have run for near-empty PDF text")
	}
}

func TestExtractPDFKeepsShortDirectTextWhenOCRFails(t *testing.T) {
	t.Parallel()

	ocr := &fakeOCR{err: errors.New("ocr down")}
	a := NewAdapter(&fakePDF{text: "short but real"}, ocr, nil)

	text, err := a.Extract(context.Background(), []byte("%PDF-"), "short.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "short but real" {
		t.Errorf("expected direct text kept, got %q", text)
	}
}

func TestExtractPDFErrorFallsBackToOCR(t *testing.T) {
	t.Parallel()

	ocr := &fakeOCR{text: "recovered via ocr"}
	a := NewAdapter(&fakePDF{err: errors.New("parse failed")}, ocr, nil)

	text, err := a.Extract(context.Background(), []byte("%PDF-"), "broken.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "recovered via ocr" {
		t.Errorf("expected OCR text, got %q", text)
	}
}

func TestExtractImageUsesOCR(t *testing.T) {
	t.Parallel()

	ocr := &fakeOCR{text: "image letter text"}
	a := NewAdapter(&fakePDF{}, ocr, nil)

	text, err := a.Extract(context.Background(), []byte{0x89, 0x50}, "denial.png")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "image letter text" {
		t.Errorf("expected OCR text, got %q", text)
	}
}

func TestExtractImageOCRFailureUnreadable(t *testing.T) {
	t.Parallel()

	a := NewAdapter(&fakePDF{}, &fakeOCR{err: errors.New("ocr down")}, nil)
	_, err := a.Extract(context.Background(), []byte{0x89, 0x50}, "denial.png")
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestExtractImageOCREmpty(t *testing.T) {
	t.Parallel()

	a := NewAdapter(&fakePDF{}, &fakeOCR{text: "  "}, nil)
	_, err := a.Extract(context.Background(), []byte{0x89, 0x50}, "blank.jpg")
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}
