// Package export writes rendered reports to files and streams.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"consult-scribe-service/internal/observability/metrics"
	"consult-scribe-service/internal/record"
	"consult-scribe-service/internal/service/document"
)

// Supported output formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	separators = strings.NewReplacer("/", "_", `\`, "_")
)

// FileName returns the report file name for a patient at a generation time:
// medical-report-<name>-<unix millis>.<ext>. Whitespace runs in the name
// collapse to a single underscore.
func FileName(patient string, at time.Time, ext string) string {
	name := whitespace.ReplaceAllString(strings.TrimSpace(patient), "_")
	name = separators.Replace(name)
	if name == "" {
		name = "patient"
	}
	return fmt.Sprintf("medical-report-%s-%d.%s", name, at.UnixMilli(), ext)
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/pdf"
	}
}

// PDFFileName returns the name PDF writes doc under. A zero generation time
// is stamped with now.
func PDFFileName(doc *document.Document) string {
	at := doc.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	return FileName(doc.PatientName, at, FormatPDF)
}

// PDF writes doc into dir under its deterministic file name.
func PDF(doc *document.Document, dir string) error {
	err := writeFile(dir, PDFFileName(doc), func(f *os.File) error {
		return WritePDF(f, doc)
	})
	metrics.DefaultMetrics.RecordExport(FormatPDF, err)
	return err
}

// XLSX writes a spreadsheet summary of rec into dir.
func XLSX(rec record.Record, at time.Time, dir string) error {
	err := writeFile(dir, FileName(rec.Patient.Name, at, FormatXLSX), func(f *os.File) error {
		return WriteXLSX(f, rec, at)
	})
	metrics.DefaultMetrics.RecordExport(FormatXLSX, err)
	return err
}

// writeFile removes a partially written file on failure.
func writeFile(dir, name string, write func(*os.File) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}
