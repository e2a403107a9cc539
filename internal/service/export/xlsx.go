package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"consult-scribe-service/internal/record"
)

const (
	recordSheet   = "Record"
	symptomsSheet = "Symptoms"
)

var fieldLabels = map[record.Field]string{
	record.FieldPatientName:    "Patient Name",
	record.FieldPatientAge:     "Age",
	record.FieldPatientSex:     "Sex",
	record.FieldReasonForVisit: "Reason for Visit",
	record.FieldHistory:        "Medical History",
	record.FieldPhysicalExam:   "Physical Examination",
	record.FieldDiagnosis:      "Diagnosis",
	record.FieldTreatment:      "Treatment Plan",
	record.FieldNotes:          "Additional Notes",
}

// WriteXLSX writes rec as a two-sheet workbook: one row per field, then the
// symptom list.
func WriteXLSX(w io.Writer, rec record.Record, at time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", recordSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(symptomsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	sw := &sheetWriter{f: f}
	write := sw.set

	write(recordSheet, 1, 1, "Field")
	write(recordSheet, 2, 1, "Value")
	row := 2
	for _, field := range record.Fields() {
		v, _ := rec.Get(field)
		write(recordSheet, 1, row, fieldLabels[field])
		write(recordSheet, 2, row, v)
		row++
	}
	if !at.IsZero() {
		write(recordSheet, 1, row, "Generated")
		write(recordSheet, 2, row, at.UTC().Format(time.RFC3339))
	}

	write(symptomsSheet, 1, 1, "#")
	write(symptomsSheet, 2, 1, "Symptom")
	for i, s := range rec.Symptoms {
		write(symptomsSheet, 1, i+2, i+1)
		write(symptomsSheet, 2, i+2, s)
	}

	sw.width(recordSheet, "A", 22)
	sw.width(recordSheet, "B", 80)
	sw.width(symptomsSheet, "A", 6)
	sw.width(symptomsSheet, "B", 60)
	if sw.err != nil {
		return sw.err
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// sheetWriter keeps the first cell or column error and skips later writes.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) set(sheet string, col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err == nil {
		err = w.f.SetCellValue(sheet, cell, v)
	}
	if err != nil {
		w.err = fmt.Errorf("xlsx cell %s!%s: %w", sheet, cell, err)
	}
}

func (w *sheetWriter) width(sheet, col string, width float64) {
	if w.err != nil {
		return
	}
	if err := w.f.SetColWidth(sheet, col, col, width); err != nil {
		w.err = fmt.Errorf("xlsx column %s!%s: %w", sheet, col, err)
	}
}
