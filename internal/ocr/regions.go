package ocr

import (
	_ "embed"
	"fmt"
	"image"
	"os"

	"gopkg.in/yaml.v2"
)

//go:embed regions.yaml
var defaultRegions []byte

// Mode selects how a region is recognized.
type Mode string

const (
	// ModeText recognizes a single line of text.
	ModeText Mode = "text"
	// ModeSum recognizes a block of numbers and adds them up.
	ModeSum Mode = "sum"
)

// Box is a pixel rectangle; Right and Bottom are exclusive.
type Box struct {
	Left, Top, Right, Bottom int
}

// UnmarshalYAML reads a box written as [left, top, right, bottom].
func (b *Box) UnmarshalYAML(unmarshal func(any) error) error {
	var v []int
	if err := unmarshal(&v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("box needs 4 coordinates, got %d", len(v))
	}
	*b = Box{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}
	return nil
}

// Rect converts b to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Region is one field to read off a rendered page and the workbook cell it
// is written to.
type Region struct {
	Field string `yaml:"field"`
	Page  int    `yaml:"page"`
	Box   Box    `yaml:"box"`
	Mode  Mode   `yaml:"mode"`
	Cell  string `yaml:"cell"`
}

// Regions groups regions by report name ("supply", "ngcp").
type Regions map[string][]Region

// DefaultRegions returns the embedded region table.
func DefaultRegions() (Regions, error) {
	return parseRegions(defaultRegions)
}

// LoadRegions reads a region table from path, or the embedded table when
// path is empty.
func LoadRegions(path string) (Regions, error) {
	if path == "" {
		return DefaultRegions()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions: %w", err)
	}
	return parseRegions(data)
}

func parseRegions(data []byte) (Regions, error) {
	var rs Regions
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	for report, list := range rs {
		seen := make(map[string]bool, len(list))
		for _, r := range list {
			if err := r.validate(); err != nil {
				return nil, fmt.Errorf("regions %s/%s: %w", report, r.Field, err)
			}
			if seen[r.Field] {
				return nil, fmt.Errorf("regions %s: duplicate field %q", report, r.Field)
			}
			seen[r.Field] = true
		}
	}
	return rs, nil
}

func (r Region) validate() error {
	switch {
	case r.Field == "":
		return fmt.Errorf("missing field name")
	case r.Mode != ModeText && r.Mode != ModeSum:
		return fmt.Errorf("unknown mode %q", r.Mode)
	case r.Page < 0:
		return fmt.Errorf("negative page %d", r.Page)
	case r.Box.Right <= r.Box.Left || r.Box.Bottom <= r.Box.Top:
		return fmt.Errorf("empty box %v", r.Box)
	}
	return nil
}

// For returns the regions of report in table order.
func (rs Regions) For(report string) []Region {
	return rs[report]
}

// Lookup finds one region by report and field name.
func (rs Regions) Lookup(report, field string) (Region, bool) {
	for _, r := range rs[report] {
		if r.Field == field {
			return r, true
		}
	}
	return Region{}, false
}
