package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.logger.Error("document.exec.error",
			"cmd", name,
			"args", strings.Join(args, " "),
			"elapsed_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		r.logger.Debug("document.exec.ok",
			"cmd", name,
			"elapsed_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

// tesseract OCRs one image to plain text.
func tesseract(ctx context.Context, r Runner, bin, lang, path string) (string, error) {
	out, errb, err := r.Run(ctx, bin, path, "stdout", "-l", lang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

// convertHEIC converts a HEIC/HEIF image to a PNG in a temp directory that cleanup removes.
func convertHEIC(ctx context.Context, r Runner, converter, in string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "docminer-heic-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")

	var args []string
	switch converter {
	case "heif-convert", "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		cleanup()
		return "", nil, fmt.Errorf("%w: HEIC needs a converter, one of heif-convert, magick or sips", ErrUnsupportedType)
	}
	if _, errb, err := r.Run(ctx, converter, args...); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%s failed: %w: %s", converter, err, truncate(string(errb), 512))
	}
	return out, cleanup, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
