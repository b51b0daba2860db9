package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"

	"neareports/internal/files"
	"neareports/internal/period"
	"neareports/internal/workbook"
)

const (
	distributionSheet = "DistLines,Subs,and PowerQuality"
	completeDataSheet = "DATA"

	primaryKV      = 33500.0
	secondaryKV    = 13200.0
	stepUpKV       = 67000.0
	kiloMultiplier = 1000.0
)

var sqrt3 = math.Sqrt(3)

// Branch selects which side of the substation transformer the source data
// measures.
type Branch int

const (
	// MeasuredPrimary converts a primary-side reading down to the secondary.
	MeasuredPrimary Branch = iota
	// MeasuredSecondary converts a secondary-side reading up to the primary.
	MeasuredSecondary
)

// Area is one substation row of the distribution report.
type Area struct {
	Name       string
	PeakCol    string
	OffPeakCol string
	Row        int
	Branch     Branch
}

// Areas lists the substations in report order.
var Areas = []Area{
	{Name: "Toledo", PeakCol: "BI", OffPeakCol: "BJ", Row: 70, Branch: MeasuredPrimary},
	{Name: "Balamban", PeakCol: "DA", OffPeakCol: "DB", Row: 71, Branch: MeasuredSecondary},
	{Name: "Lutupan", PeakCol: "BI", OffPeakCol: "BJ", Row: 72, Branch: MeasuredPrimary},
	{Name: "Asturias", PeakCol: "DQ", OffPeakCol: "DR", Row: 73, Branch: MeasuredSecondary},
	{Name: "Pinamungajan", PeakCol: "FD", OffPeakCol: "FE", Row: 74, Branch: MeasuredPrimary},
}

// Loading holds the four derived quantities written to columns D..G.
type Loading struct {
	PrimaryPeak      float64
	PrimaryOffPeak   float64
	SecondaryPeak    float64
	SecondaryOffPeak float64
}

// Convert derives primary and secondary loading from the peak and off-peak
// readings of one area.
func Convert(peak, offPeak float64, b Branch) Loading {
	if b == MeasuredPrimary {
		pc := peak * sqrt3 / kiloMultiplier
		oc := offPeak * sqrt3 / kiloMultiplier
		return Loading{
			PrimaryPeak:      pc,
			PrimaryOffPeak:   oc,
			SecondaryPeak:    pc / (primaryKV / secondaryKV),
			SecondaryOffPeak: oc / (primaryKV / secondaryKV),
		}
	}
	sp := peak * sqrt3 / kiloMultiplier
	so := offPeak * sqrt3 / kiloMultiplier
	return Loading{
		PrimaryPeak:      sp * (stepUpKV / secondaryKV),
		PrimaryOffPeak:   so * (stepUpKV / secondaryKV),
		SecondaryPeak:    sp,
		SecondaryOffPeak: so,
	}
}

// NewDistributionStep builds the Distribution Lines Substation & Power
// Quality workbook from the yearly COMPLETE DATA workbook.
func NewDistributionStep(e *Env) *Step {
	return &Step{
		id:   "distribution",
		name: "Distribution",
		exec: func(ctx context.Context, offset int) ([]string, error) {
			m := e.month(offset)
			return e.run(ctx, m, job{kind: workbook.DistributionLines, gather: e.gatherDistribution})
		},
	}
}

func (e *Env) gatherDistribution(ctx context.Context, m period.Month) (fillFunc, error) {
	src := filepath.Join(e.Locator.SupportingDir(m), fmt.Sprintf("COMPLETE DATA %d.xlsx", m.Year))
	if !files.Exists(src) {
		e.logger().InfoContext(ctx, "distribution_source_missing", slog.String("path", src))
		return nil, nil
	}

	loadings, err := e.readLoadings(ctx, src, m)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, sess *workbook.Session) error {
		for i, a := range Areas {
			l := loadings[i]
			row := strconv.Itoa(a.Row)
			for col, v := range map[string]float64{
				"D": l.PrimaryPeak,
				"E": l.PrimaryOffPeak,
				"F": l.SecondaryPeak,
				"G": l.SecondaryOffPeak,
			} {
				if err := sess.SetCell(distributionSheet, col+row, v); err != nil {
					return err
				}
			}
		}
		return nil
	}, nil
}

func (e *Env) readLoadings(ctx context.Context, path string, m period.Month) ([]Loading, error) {
	sess, err := e.Guard.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	row := strconv.Itoa(3 + int(m.Month))
	out := make([]Loading, len(Areas))
	for i, a := range Areas {
		peak, err := sess.GetFloat(completeDataSheet, a.PeakCol+row)
		if err != nil {
			return nil, malformed(err)
		}
		offPeak, err := sess.GetFloat(completeDataSheet, a.OffPeakCol+row)
		if err != nil {
			return nil, malformed(err)
		}
		out[i] = Convert(peak, offPeak, a.Branch)
	}
	return out, nil
}

// malformed tags err as ErrMalformedData unless it already names a missing
// sheet.
func malformed(err error) error {
	if errors.Is(err, workbook.ErrSheetMissing) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformedData, err)
}
