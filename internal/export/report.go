package export

import (
	"bytes"
	"fmt"
	"time"

	"flexi-posture/internal/posture"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	readingsSheet = "Readings"
)

// ReadingsHeader column headers of the Readings sheet
var ReadingsHeader = []string{
	"Timestamp",
	"Reading ID",
	"Pitch",
	"Roll",
	"Yaw",
	"Score",
	"Status",
}

// WriteWorkbook renders a posture report for snap as an .xlsx document
func WriteWorkbook(deviceID string, snap posture.Snapshot, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(summarySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(readingsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummary(f, deviceID, snap.Summarize(), generatedAt, headerStyle); err != nil {
		return nil, err
	}
	if err := writeReadings(f, snap.RecentReadings, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, deviceID string, summary posture.Summary, generatedAt time.Time, headerStyle int) error {
	rows := [][]interface{}{
		{"Field", "Value"},
		{"Device", deviceID},
		{"Generated At", generatedAt.UTC().Format(time.RFC3339)},
		{"Total Readings", summary.TotalReadings},
		{"Current Posture Score", round2(summary.CurrentPostureScore)},
		{"Overall Status", summary.OverallStatus},
		{"Poor Posture Duration", summary.PoorPostureDuration},
		{"Average Pitch", round2(summary.AveragePitch)},
		{"Average Roll", round2(summary.AverageRoll)},
		{"Score Mean", round2(summary.Scores.Mean)},
		{"Score Std Dev", round2(summary.Scores.StdDev)},
		{"Score Min", round2(summary.Scores.Min)},
		{"Score Max", round2(summary.Scores.Max)},
	}
	for _, insight := range summary.Insights {
		rows = append(rows, []interface{}{"Insight", insight})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}

	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 24); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	return f.SetColWidth(summarySheet, "B", "B", 60)
}

func writeReadings(f *excelize.File, readings []posture.Reading, headerStyle int) error {
	if err := f.SetSheetRow(readingsSheet, "A1", &ReadingsHeader); err != nil {
		return fmt.Errorf("failed to write readings header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(ReadingsHeader), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(readingsSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, r := range readings {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		row := []interface{}{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.ID.String(),
			r.Pitch,
			r.Roll,
			r.Yaw,
			round2(r.Score),
			r.Status().Label(),
		}
		if err := f.SetSheetRow(readingsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write reading row %d: %w", i+2, err)
		}
	}

	return f.SetColWidth(readingsSheet, "A", "B", 38)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
