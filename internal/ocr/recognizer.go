package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Options tunes a single recognition call.
type Options struct {
	// PSM is the tesseract page segmentation mode (7 single line, 6 block).
	PSM int
	// Whitelist restricts the recognized characters when non-empty.
	Whitelist string
}

// Recognizer turns a preprocessed image into text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, opts Options) (string, error)
}

// TesseractRecognizer runs the tesseract CLI, streaming the image as PNG on
// stdin and reading text from stdout.
type TesseractRecognizer struct {
	Cmd     string
	Timeout time.Duration
}

// NewTesseractRecognizer creates a recognizer for the tesseract binary at cmd.
func NewTesseractRecognizer(cmd string, timeout time.Duration) *TesseractRecognizer {
	if cmd == "" {
		cmd = "tesseract"
	}
	return &TesseractRecognizer{Cmd: cmd, Timeout: timeout}
}

// Recognize implements Recognizer.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image, opts Options) (string, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.Cmd, tesseractArgs(opts)...)
	cmd.Stdin = &in
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func tesseractArgs(opts Options) []string {
	psm := opts.PSM
	if psm == 0 {
		psm = 7
	}
	args := []string{"stdin", "stdout", "--psm", strconv.Itoa(psm)}
	if opts.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+opts.Whitelist)
	}
	return args
}
