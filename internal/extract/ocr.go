package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// MinOCRRunes is the shortest OCR output treated as readable text.
const MinOCRRunes = 15

// ErrOCRUnavailable is returned when the tesseract binary cannot be found.
var ErrOCRUnavailable = errors.New("tesseract not found")

// OCR extracts text from images with the tesseract command line tool.
type OCR struct {
	Command string
}

func (o *OCR) Extract(ctx context.Context, path string) (string, error) {
	name := o.Command
	if name == "" {
		name = "tesseract"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, path, "stdout", "--oem", "3", "--psm", "6")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	text := strings.TrimSpace(stdout.String())
	if utf8.RuneCountInString(text) < MinOCRRunes {
		return "", nil
	}
	return text, nil
}
