package workbook

// Kind describes one family of monthly workbooks: the file name prefix that
// precedes the version stamp and the sheets a fresh workbook is created with.
type Kind struct {
	Name   string
	Prefix string
	Sheets []string
}

// Sheet returns the kind's primary sheet.
func (k Kind) Sheet() string {
	return k.Sheets[0]
}

var (
	ComplianceToPDC = Kind{
		Name:   "pdc",
		Prefix: "Compliance to PDC-",
		Sheets: []string{"PDC"},
	}
	ComplianceToPGC = Kind{
		Name:   "pgc",
		Prefix: "Compliance to PGC-",
		Sheets: []string{"PGC"},
	}
	PowerSupplierReport = Kind{
		Name:   "psr",
		Prefix: "Power Supplier Report-",
		Sheets: []string{"Power Supplier Report"},
	}
	// EnergyInterruption keeps interruption rows on the first sheet and the
	// period stamp on the second.
	EnergyInterruption = Kind{
		Name:   "interruption",
		Prefix: "Energy and Interruption Data-",
		Sheets: []string{"interruption", "Energy Input and Output"},
	}
	PowerSupply = Kind{
		Name:   "supply",
		Prefix: "Power Supply-",
		Sheets: []string{"Power Supply"},
	}
	NGCPBill = Kind{
		Name:   "ngcp",
		Prefix: "NGCP Bill-",
		Sheets: []string{"NGCP Bill"},
	}
	DistributionLines = Kind{
		Name:   "distribution",
		Prefix: "Distribution Lines Substation & Power Quality-",
		Sheets: []string{"DistLines,Subs,and PowerQuality"},
	}
)

// Kinds lists every workbook family.
func Kinds() []Kind {
	return []Kind{
		ComplianceToPDC,
		ComplianceToPGC,
		PowerSupplierReport,
		EnergyInterruption,
		PowerSupply,
		NGCPBill,
		DistributionLines,
	}
}
