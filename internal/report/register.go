// Package report renders document listings as spreadsheets.
package report

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/doc-approval/internal/domain/entity"
	"github.com/garyjia/doc-approval/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	registerSheet = "Register"
	summarySheet  = "Summary"

	// pageSize is the listing page size used while walking all visible documents
	pageSize = entity.MaxPerPage
)

var registerHeader = []string{"ID", "Title", "Owner", "Amount", "Status", "Created", "Updated"}

// DocumentLister pages through the documents an actor may see
type DocumentLister interface {
	ListVisible(ctx context.Context, actor *entity.User, page entity.Pagination) (entity.Page[*entity.Document], error)
}

// RegisterExporter writes the document register workbook
type RegisterExporter struct {
	docs   DocumentLister
	logger *zap.Logger
}

// NewRegisterExporter creates a new RegisterExporter
func NewRegisterExporter(docs DocumentLister, logger *zap.Logger) *RegisterExporter {
	return &RegisterExporter{docs: docs, logger: logger}
}

// Export writes every document visible to actor as an xlsx workbook to w.
// The first sheet lists documents newest first; the second totals them per status.
func (e *RegisterExporter) Export(ctx context.Context, actor *entity.User, w io.Writer) error {
	docs, err := e.collect(ctx, actor)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := e.fillRegister(f, docs); err != nil {
		return err
	}
	if err := e.fillSummary(f, docs); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Register exported",
		zap.Int64("actor_id", actor.ID),
		zap.Int("documents", len(docs)))
	return nil
}

func (e *RegisterExporter) collect(ctx context.Context, actor *entity.User) ([]*entity.Document, error) {
	var all []*entity.Document
	for page := 1; ; page++ {
		p, err := e.docs.ListVisible(ctx, actor, entity.Pagination{Page: page, PerPage: pageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if page >= p.LastPage || len(p.Items) == 0 {
			return all, nil
		}
	}
}

func (e *RegisterExporter) fillRegister(f *excelize.File, docs []*entity.Document) error {
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	for i, title := range registerHeader {
		e.setCell(f, registerSheet, i+1, 1, title)
	}
	if err := f.SetCellStyle(registerSheet, "A1", "G1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, doc := range docs {
		row := i + 2
		e.setCell(f, registerSheet, 1, row, doc.ID)
		e.setCell(f, registerSheet, 2, row, doc.Title)
		e.setCell(f, registerSheet, 3, row, doc.OwnerName)
		e.setCell(f, registerSheet, 4, row, doc.Amount.InexactFloat64())
		e.setCell(f, registerSheet, 5, row, doc.Status.Label())
		e.setCell(f, registerSheet, 6, row, doc.CreatedAt.Format("2006-01-02 15:04"))
		e.setCell(f, registerSheet, 7, row, doc.UpdatedAt.Format("2006-01-02 15:04"))
	}
	if len(docs) > 0 {
		last := fmt.Sprintf("D%d", len(docs)+1)
		if err := f.SetCellStyle(registerSheet, "D2", last, amountStyle); err != nil {
			return fmt.Errorf("failed to style amounts: %w", err)
		}
	}

	if err := f.SetColWidth(registerSheet, "B", "B", 40); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return f.SetColWidth(registerSheet, "C", "G", 18)
}

func (e *RegisterExporter) fillSummary(f *excelize.File, docs []*entity.Document) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	counts := make(map[workflow.State]int)
	totals := make(map[workflow.State]decimal.Decimal)
	for _, doc := range docs {
		counts[doc.Status]++
		totals[doc.Status] = totals[doc.Status].Add(doc.Amount)
	}

	for i, title := range []string{"Status", "Documents", "Total"} {
		e.setCell(f, summarySheet, i+1, 1, title)
	}
	for i, state := range workflow.AllStates() {
		row := i + 2
		e.setCell(f, summarySheet, 1, row, state.Label())
		e.setCell(f, summarySheet, 2, row, counts[state])
		e.setCell(f, summarySheet, 3, row, entity.FormatAmount(totals[state]))
	}
	return nil
}

func (e *RegisterExporter) setCell(f *excelize.File, sheet string, col, row int, value interface{}) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err == nil {
		err = f.SetCellValue(sheet, cell, value)
	}
	if err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.Int("col", col),
			zap.Int("row", row),
			zap.Error(err))
	}
}
