// Package document lays a clinical record out onto fixed-size pages.
// Layout is pure: the same record and options always produce the same pages,
// and exporters only draw what the layout placed.
package document

import "time"

// Style names a text role on the page.
type Style int

const (
	StyleTitle Style = iota
	StyleSubtitle
	StyleHeading
	StyleBody
	StyleDisclaimerHeading
	StyleDisclaimerBody
	StyleFooter
)

// Font describes a typeface. Size is in points.
type Font struct {
	Family string
	Bold   bool
	Italic bool
	Size   float64
}

// Color is an RGB triple.
type Color struct {
	R, G, B int
}

// TextStyle is the rendering of one Style. LineHeight is in page units (mm).
type TextStyle struct {
	Font       Font
	Color      Color
	LineHeight float64
}

// DefaultStyles returns the report typography.
func DefaultStyles() map[Style]TextStyle {
	return map[Style]TextStyle{
		StyleTitle:             {Font: Font{Family: "Helvetica", Bold: true, Size: 24}, Color: Color{37, 99, 235}, LineHeight: 10},
		StyleSubtitle:          {Font: Font{Family: "Helvetica", Size: 12}, Color: Color{100, 116, 139}, LineHeight: 8},
		StyleHeading:           {Font: Font{Family: "Helvetica", Bold: true, Size: 14}, Color: Color{37, 99, 235}, LineHeight: 8},
		StyleBody:              {Font: Font{Family: "Helvetica", Size: 11}, Color: Color{15, 23, 42}, LineHeight: 6},
		StyleDisclaimerHeading: {Font: Font{Family: "Helvetica", Bold: true, Size: 11}, Color: Color{146, 64, 14}, LineHeight: 7},
		StyleDisclaimerBody:    {Font: Font{Family: "Helvetica", Italic: true, Size: 9}, Color: Color{120, 53, 15}, LineHeight: 5},
		StyleFooter:            {Font: Font{Family: "Helvetica", Size: 8}, Color: Color{148, 163, 184}, LineHeight: 4},
	}
}

// Align is horizontal text alignment relative to Block.X.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// Block is one line of text placed at a baseline.
type Block struct {
	X, Y  float64
	Text  string
	Style Style
	Align Align
}

// Rect is a filled background area.
type Rect struct {
	X, Y, W, H float64
	Color      Color
}

// Page is one laid-out page. Footer is filled in by the second pass.
type Page struct {
	Number int
	Shades []Rect
	Blocks []Block
	Footer Block
}

// Document is the paginated report.
type Document struct {
	Title       string
	PatientName string
	GeneratedAt time.Time
	PageWidth   float64
	PageHeight  float64
	Styles      map[Style]TextStyle
	Pages       []Page
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Lines returns every block text in page order, footers excluded.
func (d *Document) Lines() []string {
	var out []string
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			out = append(out, b.Text)
		}
	}
	return out
}
