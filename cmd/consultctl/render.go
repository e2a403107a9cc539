package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"consult-scribe-service/internal/config"
	"consult-scribe-service/internal/schema"
	"consult-scribe-service/internal/service/document"
	"consult-scribe-service/internal/service/export"
	"consult-scribe-service/internal/service/extract"
)

// NewRenderCommand renders a record JSON file into a report.
func NewRenderCommand() *cobra.Command {
	var (
		file   string
		outDir string
		format string
		at     string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a record JSON file into a PDF or XLSX report",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readText(cmd, file, nil)
			if err != nil {
				return err
			}
			rec, xerr := extract.DecodeEdited(schema.MustNew(), raw)
			if xerr != nil {
				return fmt.Errorf("invalid record: %w", xerr)
			}

			generated := time.Now()
			if at != "" {
				if generated, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}

			cfg := config.Load()
			if outDir == "" {
				outDir = cfg.Document.OutputDir
			}

			switch format {
			case export.FormatPDF:
				opts := document.DefaultOptions()
				opts.GeneratedAt = generated
				opts.AppName = cfg.Document.AppName
				opts.Measurer = export.NewMeasurer()
				doc := document.Render(rec, opts)
				if err := export.PDF(doc, outDir); err != nil {
					return err
				}
				path := filepath.Join(outDir, export.PDFFileName(doc))
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d pages)\n", path, doc.PageCount())
			case export.FormatXLSX:
				if err := export.XLSX(rec, generated, outDir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(outDir, export.FileName(rec.Patient.Name, generated, export.FormatXLSX)))
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "record JSON file (\"-\" for stdin)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default DOCUMENT_OUTPUT_DIR)")
	cmd.Flags().StringVar(&format, "format", export.FormatPDF, "output format: pdf or xlsx")
	cmd.Flags().StringVar(&at, "at", "", "generation time, RFC3339 (default now)")
	return cmd
}
