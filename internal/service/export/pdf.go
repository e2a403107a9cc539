package export

import (
	"fmt"
	"io"
	"sync"

	"github.com/go-pdf/fpdf"

	"consult-scribe-service/internal/service/document"
)

func fontStyle(f document.Font) string {
	switch {
	case f.Bold && f.Italic:
		return "BI"
	case f.Bold:
		return "B"
	case f.Italic:
		return "I"
	}
	return ""
}

func family(f document.Font) string {
	if f.Family == "" {
		return "Helvetica"
	}
	return f.Family
}

// Measurer reports text widths from the PDF core font metrics so that the
// layout wraps exactly where the renderer would overflow.
type Measurer struct {
	mu  sync.Mutex
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// NewMeasurer returns a Measurer for A4 millimetre units.
func NewMeasurer() *Measurer {
	pdf := fpdf.New("P", "mm", "A4", "")
	return &Measurer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (m *Measurer) Width(text string, f document.Font) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdf.SetFont(family(f), fontStyle(f), f.Size)
	return m.pdf.GetStringWidth(m.tr(text))
}

// WritePDF draws every placed block of doc. Nothing is laid out here: the
// page breaks and positions come from the document.
func WritePDF(w io.Writer, doc *document.Document) error {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: doc.PageWidth, Ht: doc.PageHeight},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(true)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("MediConsult AI", true)
	if !doc.GeneratedAt.IsZero() {
		pdf.SetCreationDate(doc.GeneratedAt)
		pdf.SetModificationDate(doc.GeneratedAt)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	draw := func(b document.Block) {
		st, ok := doc.Styles[b.Style]
		if !ok {
			panic(fmt.Sprintf("export: no style for block %q", b.Text))
		}
		pdf.SetFont(family(st.Font), fontStyle(st.Font), st.Font.Size)
		pdf.SetTextColor(st.Color.R, st.Color.G, st.Color.B)
		text := tr(b.Text)
		x := b.X
		if b.Align == document.AlignCenter {
			x -= pdf.GetStringWidth(text) / 2
		}
		pdf.Text(x, b.Y, text)
	}

	for _, p := range doc.Pages {
		pdf.AddPage()
		for _, r := range p.Shades {
			pdf.SetFillColor(r.Color.R, r.Color.G, r.Color.B)
			pdf.Rect(r.X, r.Y, r.W, r.H, "F")
		}
		for _, b := range p.Blocks {
			draw(b)
		}
		draw(p.Footer)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
