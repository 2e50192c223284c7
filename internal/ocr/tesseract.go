// Package ocr extracts text from images using the tesseract CLI.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Extractor runs OCR on image bytes.
type Extractor struct {
	// Binary is the tesseract executable. Defaults to "tesseract" on PATH.
	Binary string
	// Language is the recognition language. Defaults to "eng".
	Language string
}

// NewExtractor creates an extractor with defaults applied.
func NewExtractor() *Extractor {
	return &Extractor{Binary: "tesseract", Language: "eng"}
}

// ExtractText runs tesseract over the image and returns the trimmed text.
// An empty result with a nil error means the image contained no readable
// text.
func (e *Extractor) ExtractText(ctx context.Context, image []byte) (string, error) {
	binary := e.Binary
	if binary == "" {
		binary = "tesseract"
	}
	lang := e.Language
	if lang == "" {
		lang = "eng"
	}

	// stdin -> stdout mode: no temp files.
	cmd := exec.CommandContext(ctx, binary, "stdin", "stdout", "-l", lang)
	cmd.Stdin = bytes.NewReader(image)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ocr: tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
