package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/franciscosanchezn/gin-forms-api/internal/models"
)

func TestWriteSubmissionsXLSX(t *testing.T) {
	questions := []models.Question{
		{ID: 10, Title: "Name", Position: 1},
		{ID: 11, Title: "Age", Position: 2},
	}
	submitted := time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)
	rows := []SubmissionRow{
		{FormID: 1, SubmittedBy: "Ada", SubmittedAt: submitted, Values: map[uint]string{10: "Ada", 11: "36"}},
		{FormID: 2, SubmittedBy: "Bob", SubmittedAt: submitted, Values: map[uint]string{10: "Bob"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSubmissionsXLSX(&buf, questions, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"Form ID", "Submitted By", "Submitted At", "Name", "Age"}, got[0])
	assert.Equal(t, []string{"1", "Ada", "2025-03-04T10:30:00Z", "Ada", "36"}, got[1])
	// GetRows trims trailing empty cells
	assert.Equal(t, []string{"2", "Bob", "2025-03-04T10:30:00Z", "Bob"}, got[2])
}

func TestWriteSubmissionsXLSXWithoutRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSubmissionsXLSX(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Form ID", "Submitted By", "Submitted At"}, got[0])
}
