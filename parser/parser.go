package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aluiziolira/cardgrade/models"
)

// Grade bounds.
const (
	MinGrade = 1
	MaxGrade = 10
)

// ValidGrade reports whether g is a usable grade.
func ValidGrade(g int) bool {
	return g >= MinGrade && g <= MaxGrade
}

// ValidateRecord ensures a record may be persisted to the dataset.
func ValidateRecord(r *models.CardRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.Identifier) == "" {
		return fmt.Errorf("record missing identifier")
	}
	if !ValidGrade(r.Grade) {
		return fmt.Errorf("record %s has grade %d outside [%d,%d]", r.Identifier, r.Grade, MinGrade, MaxGrade)
	}
	if strings.TrimSpace(r.FrontImageURL) == "" {
		return fmt.Errorf("record missing front image for %s", r.Identifier)
	}
	if strings.TrimSpace(r.BackImageURL) == "" {
		return fmt.Errorf("record missing back image for %s", r.Identifier)
	}
	return nil
}

var (
	currencyCodePrefix = regexp.MustCompile(`^[A-Z]{2,3}\s*([$£€¥])`)
	usPrefix           = regexp.MustCompile(`(?i)^US\s*`)
	spaceRun           = regexp.MustCompile(`\s+`)
)

// NormalizePrice collapses whitespace and strips a leading currency code, so "US $45.00" becomes "$45.00".
func NormalizePrice(price string) string {
	price = strings.TrimSpace(spaceRun.ReplaceAllString(price, " "))
	if price == "" {
		return ""
	}
	if m := currencyCodePrefix.FindStringSubmatchIndex(price); m != nil {
		return strings.TrimSpace(price[m[2]:])
	}
	return strings.TrimSpace(usPrefix.ReplaceAllString(price, ""))
}
