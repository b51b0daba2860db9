package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Document is a rendered PDF. Pages[0] is the page with zero-based index
// First.
type Document struct {
	Pages []image.Image
	First int
}

// Page returns the rendered image for the zero-based absolute page index i.
func (d *Document) Page(i int) (image.Image, bool) {
	if d == nil {
		return nil, false
	}
	j := i - d.First
	if j < 0 || j >= len(d.Pages) {
		return nil, false
	}
	return d.Pages[j], true
}

// Len is the number of rendered pages.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Pages)
}

// PageRange selects pages to render, 1-based and inclusive. Zero values mean
// the first and last page of the document.
type PageRange struct {
	First, Last int
}

// Renderer turns a PDF into page images.
type Renderer interface {
	Render(ctx context.Context, path string, pages PageRange) (*Document, error)
}

// PopplerRenderer renders with poppler's pdftoppm.
type PopplerRenderer struct {
	Cmd      string
	DPI      int
	Password string
	Timeout  time.Duration
}

// NewPopplerRenderer creates a renderer using the pdftoppm binary at cmd.
func NewPopplerRenderer(cmd string, dpi int, password string, timeout time.Duration) *PopplerRenderer {
	if cmd == "" {
		cmd = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 600
	}
	return &PopplerRenderer{Cmd: cmd, DPI: dpi, Password: password, Timeout: timeout}
}

// Render implements Renderer. A missing input file is reported as an
// fs.ErrNotExist error before pdftoppm runs.
func (p *PopplerRenderer) Render(ctx context.Context, path string, pages PageRange) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "neareports-render-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, p.Cmd, p.args(path, filepath.Join(dir, "page"), pages)...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm %s: %w: %s", filepath.Base(path), err, strings.TrimSpace(string(out)))
	}

	names, err := renderedPages(dir)
	if err != nil {
		return nil, err
	}

	first := 0
	if pages.First > 0 {
		first = pages.First - 1
	}
	doc := &Document{First: first}
	for _, name := range names {
		img, err := decodePNG(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, img)
	}
	return doc, nil
}

func (p *PopplerRenderer) args(in, prefix string, pages PageRange) []string {
	args := []string{"-r", strconv.Itoa(p.DPI), "-png"}
	if pages.First > 0 {
		args = append(args, "-f", strconv.Itoa(pages.First))
	}
	if pages.Last > 0 {
		args = append(args, "-l", strconv.Itoa(pages.Last))
	}
	if p.Password != "" {
		args = append(args, "-upw", p.Password)
	}
	return append(args, in, prefix)
}

// renderedPages lists page-N.png outputs ordered by N. pdftoppm zero-pads N
// to the width of the page count, so lexical order is not enough.
func renderedPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type page struct {
		name string
		n    int
	}
	var found []page
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".png") {
			continue
		}
		stem := strings.TrimSuffix(name, ".png")
		i := strings.LastIndex(stem, "-")
		n, err := strconv.Atoi(stem[i+1:])
		if i < 0 || err != nil {
			continue
		}
		found = append(found, page{name, n})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	names := make([]string, len(found))
	for i, p := range found {
		names[i] = p.name
	}
	return names, nil
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
