package utils

import (
	"strconv"
	"strings"
)

const sizeStep = 1024

var sizeUnits = [...]string{"b", "kb", "mb", "gb", "tb", "pb"}

// FormatFileSize renders a byte count for summaries: whole bytes below one
// kilobyte, one decimal below ten of a unit and whole units above.
// Negative counts render as zero.
func FormatFileSize(byteCount int64) string {
	if byteCount < sizeStep {
		return strconv.FormatInt(max(byteCount, 0), 10) + sizeUnits[0]
	}
	scaled := float64(byteCount)
	unitIndex := 0
	for scaled >= sizeStep && unitIndex < len(sizeUnits)-1 {
		scaled /= sizeStep
		unitIndex++
	}
	precision := 0
	if scaled < 10 {
		precision = 1
	}
	return strings.TrimSuffix(strconv.FormatFloat(scaled, 'f', precision, 64), ".0") + sizeUnits[unitIndex]
}
