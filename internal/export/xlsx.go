// Package export renders form submissions as spreadsheets
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

const SheetName = "Submissions"

// ContentTypeXLSX is the MIME type of the workbook
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SubmissionRow is one form in the export. Values is keyed by question id.
type SubmissionRow struct {
	FormID      uint
	SubmittedBy string
	SubmittedAt time.Time
	Values      map[uint]string
}

// WriteSubmissionsXLSX writes a workbook with one header row followed by one
// row per submission. Question columns follow the order of questions.
func WriteSubmissionsXLSX(w io.Writer, questions []models.Question, rows []SubmissionRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := []interface{}{"Form ID", "Submitted By", "Submitted At"}
	for _, q := range questions {
		header = append(header, q.Title)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, style); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, row := range rows {
		values := []interface{}{row.FormID, row.SubmittedBy, row.SubmittedAt.UTC().Format(time.RFC3339)}
		for _, q := range questions {
			values = append(values, row.Values[q.ID])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
