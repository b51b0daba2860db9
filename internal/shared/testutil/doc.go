// Package testutil holds helpers shared by package tests: a capturing slog
// handler and excelize-backed fixture workbooks.
package testutil
