package eligibility

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/eligibility-report-api/internal/models"
)

// Issue describes why a cell did not parse cleanly.
type Issue string

const (
	IssueMissing          Issue = "missing value, defaulted to 0"
	IssueUnparsableActual Issue = "unparsable value, defaulted to 0"
	IssueUnparsableMax    Issue = "unparsable maximum, defaulted to configured maximum"
	IssueExtraSegments    Issue = "segments after the second '/' ignored"
	IssueTrailingText     Issue = "text after the number ignored"
)

// decimalPrefix matches a plain decimal number at the start of a cell segment. Hex floats and
// digit separators are deliberately outside it.
var decimalPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Extract parses a "value" or "value/max" cell. It never fails: missing or unparsable parts
// fall back to 0 achieved and the configured maximum.
func Extract(cell string, configuredMax float64) models.MarkPair {
	pair, _ := ParseMark(cell, configuredMax)
	return pair
}

// ParseMark behaves like Extract and additionally reports every fallback it applied.
func ParseMark(cell string, configuredMax float64) (models.MarkPair, []Issue) {
	pair := models.MarkPair{Actual: 0, Max: configuredMax}

	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return pair, []Issue{IssueMissing}
	}

	var issues []Issue
	segments := strings.Split(trimmed, "/")

	if actual, trailing, ok := parseNumber(segments[0]); ok {
		pair.Actual = actual
		if trailing {
			issues = append(issues, IssueTrailingText)
		}
	} else {
		issues = append(issues, IssueUnparsableActual)
	}

	if len(segments) > 1 {
		if limit, trailing, ok := parseNumber(segments[1]); ok {
			pair.Max = limit
			if trailing {
				issues = append(issues, IssueTrailingText)
			}
		} else {
			issues = append(issues, IssueUnparsableMax)
		}
	}
	if len(segments) > 2 {
		issues = append(issues, IssueExtraSegments)
	}

	return pair, issues
}

// parseNumber reads the leading decimal number of raw and reports whether text followed it.
func parseNumber(raw string) (value float64, trailing bool, ok bool) {
	trimmed := strings.TrimSpace(raw)
	prefix := decimalPrefix.FindString(trimmed)
	if prefix == "" {
		return 0, false, false
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, false
	}
	return v, len(prefix) < len(trimmed), true
}
