// Package reports implements the five monthly report steps. Every step
// follows the same template: resolve the target month, derive the month's
// workbook from the previous one, gather source values, then stamp and fill
// the workbook under the spreadsheet guard. Steps return the paths they
// wrote; an empty result means a core source document was missing.
package reports
