// Package workbook locates the monthly report workbooks under the report
// root, derives each month's file from the previous month's, and serializes
// access to the spreadsheet engine through a process-wide Guard.
//
// A typical step looks like:
//
//	paths, _, err := locator.Derive(ctx, workbook.PowerSupply, month)
//	sess, err := guard.Open(ctx, paths.Current)
//	defer sess.Close()
//	sess.StampPeriod("Power Supply", month)
//	sess.SetCell("Power Supply", "D12", value)
//	sess.Save()
package workbook
