package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// MaxAmount is the largest accepted document amount
var MaxAmount = decimal.RequireFromString("999999.99")

// AllowedAttachmentExtensions lists the accepted attachment types
var AllowedAttachmentExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".jpg", ".jpeg", ".png"}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateAmount checks that amount is non-negative, within MaxAmount and has at most two decimals
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount cannot be negative: %s", amount.StringFixed(2))
	}

	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("amount exceeds maximum limit: %s", MaxAmount.StringFixed(2))
	}

	if !amount.Equal(amount.Truncate(2)) {
		return fmt.Errorf("amount has more than two decimal places: %s", amount.String())
	}

	return nil
}

// ValidateAttachmentName checks the file extension against AllowedAttachmentExtensions
func ValidateAttachmentName(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedAttachmentExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("unsupported attachment type %q", ext)
}

// SanitizeString removes control characters, keeping tabs and newlines
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}
