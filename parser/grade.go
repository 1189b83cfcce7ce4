package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	labeledGrade = regexp.MustCompile(`(?i)\b(?:psa|bgs|cgc|sgc|beckett)\s*(\d+)\b`)
	bareGrade    = regexp.MustCompile(`^\d+$`)
	certNumber   = regexp.MustCompile(`\b\d{8,9}\b`)
	spacedDash   = regexp.MustCompile(`\s*-\s*`)
)

// ParsePanelGrade reads a grade from the insights panel value, e.g. "PSA 9" or "9".
// Zero means absent.
func ParsePanelGrade(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	var digits string
	if m := labeledGrade.FindStringSubmatch(text); m != nil {
		digits = m[1]
	} else if bareGrade.MatchString(text) {
		digits = text
	} else {
		return 0
	}

	g, err := strconv.Atoi(digits)
	if err != nil || !ValidGrade(g) {
		return 0
	}
	return g
}

// KeywordRule maps a recognised label keyword to a grade.
type KeywordRule struct {
	Label   string
	Pattern *regexp.Regexp
	Grade   int
}

// OCRKeywords is checked from the highest grade down; the first match wins.
// Compound labels precede their shorter forms so "NM-MT" is not read as "NM".
var OCRKeywords = []KeywordRule{
	{Label: "GEM MT", Pattern: regexp.MustCompile(`(?i)GEM`), Grade: 10},
	{Label: "MINT", Pattern: regexp.MustCompile(`(?i)MINT`), Grade: 9},
	{Label: "NM-MT", Pattern: regexp.MustCompile(`(?i)NM[-\s]*MT`), Grade: 8},
	{Label: "NM", Pattern: regexp.MustCompile(`(?i)\bNM\b`), Grade: 7},
	{Label: "EX-MT", Pattern: regexp.MustCompile(`(?i)\bEX-MT\b`), Grade: 6},
	// "EX" must not be the tail of "VG-EX".
	{Label: "EX", Pattern: regexp.MustCompile(`(?i)(?:^|[^\w-])EX\b`), Grade: 5},
	{Label: "VG-EX", Pattern: regexp.MustCompile(`(?i)\bVG-EX\b`), Grade: 4},
	{Label: "VG", Pattern: regexp.MustCompile(`(?i)\bVG\b`), Grade: 3},
	{Label: "GOOD", Pattern: regexp.MustCompile(`(?i)\bGOOD\b`), Grade: 2},
	{Label: "PR", Pattern: regexp.MustCompile(`(?i)\bPR\b`), Grade: 1},
}

// GradeFromOCR maps recognised slab text to a grade. Zero means absent.
func GradeFromOCR(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	text = spacedDash.ReplaceAllString(text, "-")
	for _, rule := range OCRKeywords {
		if rule.Pattern.MatchString(text) {
			return rule.Grade
		}
	}
	return 0
}

// CertFromOCR returns the first 8 or 9 digit certificate number in text.
func CertFromOCR(text string) string {
	return certNumber.FindString(text)
}
