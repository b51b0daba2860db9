// Package files holds the small filesystem helpers the report pipeline
// shares: byte-exact copies for deriving a month's workbook from the
// previous one, and pattern discovery for monthly source spreadsheets.
package files
