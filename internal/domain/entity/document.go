package entity

import (
	"path"
	"strings"
	"time"

	"github.com/garyjia/doc-approval/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// Document is a purchase request moving through the approval workflow
type Document struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Amount    decimal.Decimal `json:"amount"`
	Status    workflow.State  `json:"status"`
	FilePath  string          `json:"file_path,omitempty"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Populated from the owner's user row on read.
	OwnerName      string `json:"owner_name,omitempty"`
	OwnerManagerID *int64 `json:"-"`
}

// IsOwnedBy reports whether userID owns the document
func (d *Document) IsOwnedBy(userID int64) bool {
	return d.UserID == userID
}

// RequiresFinanceApproval reports whether the current amount needs a finance pass
func (d *Document) RequiresFinanceApproval() bool {
	return workflow.RequiresFinanceApproval(d.Amount)
}

// HasAttachment reports whether an attachment reference is set
func (d *Document) HasAttachment() bool {
	return d.FilePath != ""
}

// AttachmentName returns the base name of the attachment reference
func (d *Document) AttachmentName() string {
	if d.FilePath == "" {
		return ""
	}
	return path.Base(d.FilePath)
}

// FormattedAmount renders the amount as "1 234,56 PLN"
func (d *Document) FormattedAmount() string {
	return FormatAmount(d.Amount)
}

// FormatAmount groups thousands with spaces and uses a decimal comma
func FormatAmount(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "," + frac + " PLN"
}

// FormatFileSize renders a byte count as B, KB, MB or GB
func FormatFileSize(size int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	value := decimal.NewFromInt(size)
	unit := 0
	for value.GreaterThanOrEqual(decimal.NewFromInt(1024)) && unit < len(units)-1 {
		value = value.Div(decimal.NewFromInt(1024))
		unit++
	}
	return value.Round(2).String() + " " + units[unit]
}
