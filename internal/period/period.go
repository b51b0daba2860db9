package period

import (
	"fmt"
	"strings"
	"time"
)

// Month identifies a reporting period by calendar year and month.
type Month struct {
	Year  int
	Month time.Month
}

// Resolve returns the reporting month that lies offset months before the
// month containing now. The walk is iterative: start at the first day of the
// current month, step back one day, and repeat "go to the first of the month,
// step back one day" offset-1 more times. Offsets below 1 resolve like 1.
func Resolve(now time.Time, offset int) Month {
	d := firstOfMonth(now).AddDate(0, 0, -1)
	for i := 0; i < offset-1; i++ {
		d = firstOfMonth(d).AddDate(0, 0, -1)
	}
	return Of(d)
}

// Of returns the Month containing t.
func Of(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Previous returns the month immediately before m.
func (m Month) Previous() Month {
	return Of(m.First().AddDate(0, 0, -1))
}

// First returns midnight UTC on the first day of m.
func (m Month) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// LastDay returns midnight UTC on the last day of m.
func (m Month) LastDay() time.Time {
	return m.First().AddDate(0, 1, -1)
}

// Name is the full English month name, e.g. "June".
func (m Month) Name() string {
	return m.Month.String()
}

// UpperName is the full month name in upper case, e.g. "JUNE".
func (m Month) UpperName() string {
	return strings.ToUpper(m.Month.String())
}

// Abbrev is the upper-case three-letter abbreviation, e.g. "JUN".
func (m Month) Abbrev() string {
	return strings.ToUpper(m.Month.String()[:3])
}

// FolderName formats the per-month folder, e.g. "06. JUN 2024".
func (m Month) FolderName() string {
	return fmt.Sprintf("%02d. %s %d", int(m.Month), m.Abbrev(), m.Year)
}

// Stamp is the version stamp embedded in report file names, e.g. "20240601-V1".
func (m Month) Stamp() string {
	return fmt.Sprintf("%d%02d01-V1", m.Year, int(m.Month))
}

// String renders "June 2024".
func (m Month) String() string {
	return fmt.Sprintf("%s %d", m.Name(), m.Year)
}

// Before reports whether m is strictly earlier than other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
