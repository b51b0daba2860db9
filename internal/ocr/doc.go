// Package ocr reads values out of scanned PDF bills. Pages are rendered to
// images by an external renderer, fixed pixel regions are cropped and
// binarized, and the result is passed to a text recognizer.
//
// The region table lives in regions.yaml, which is embedded in the binary
// and can be replaced at runtime with LoadRegions.
package ocr
