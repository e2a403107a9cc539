package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"consult-scribe-service/internal/service/document"
	"consult-scribe-service/internal/service/export"
	"consult-scribe-service/internal/service/extract"
)

// renderDocument renders a posted record and returns it as a download.
// The format query parameter selects pdf (default) or xlsx.
func (h *handlers) renderDocument(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatPDF
	}
	if format != export.FormatPDF && format != export.FormatXLSX {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported format %q", format))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	rec, xerr := extract.DecodeEdited(h.validator, string(body))
	if xerr != nil {
		msg := msgInvalidBody
		if xerr.Kind == extract.KindIncomplete {
			msg = "Record is missing required fields"
		}
		log.Debug().Err(xerr).Msg("Rejected document request")
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	now := time.Now()
	var buf bytes.Buffer
	switch format {
	case export.FormatXLSX:
		err = export.WriteXLSX(&buf, rec, now)
	default:
		doc := document.Render(rec, h.app.DocumentOptions(now))
		h.app.Metrics.RecordDocument(doc.PageCount())
		err = export.WritePDF(&buf, doc)
	}
	h.app.Metrics.RecordExport(format, err)
	if err != nil {
		log.Error().Err(err).Str("format", format).Msg("Failed to write document")
		writeError(w, http.StatusInternalServerError, "Error generating the document")
		return
	}

	name := export.FileName(rec.Patient.Name, now, format)
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Msg("Failed to stream document")
	}
}
