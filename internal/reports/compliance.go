package reports

import (
	"context"

	"neareports/internal/workbook"
)

var complianceKinds = []workbook.Kind{
	workbook.ComplianceToPDC,
	workbook.ComplianceToPGC,
	workbook.PowerSupplierReport,
}

// NewComplianceStep builds the PDC, PGC and Power Supplier Report
// workbooks. Each is derived and stamped with the period only.
func NewComplianceStep(e *Env) *Step {
	return &Step{
		id:   "compliance",
		name: "PDC/PGC/PSR",
		exec: func(ctx context.Context, offset int) ([]string, error) {
			m := e.month(offset)
			out := make([]string, 0, 3)
			for _, kind := range complianceKinds {
				paths, err := e.run(ctx, m, job{kind: kind})
				if err != nil {
					return nil, err
				}
				out = append(out, paths...)
			}
			return out, nil
		},
	}
}
