package document

import (
	"fmt"
	"strings"
	"time"

	"consult-scribe-service/internal/record"
)

// Disclaimer is printed at the end of every report.
const Disclaimer = "This document is generated by an AI assistant and should be reviewed by a licensed " +
	"healthcare professional. It is not a substitute for professional medical advice, diagnosis, or treatment."

// Options controls page geometry and the break rules. Units are mm.
type Options struct {
	PageWidth  float64
	PageHeight float64
	Margin     float64

	// Minimum space left below the cursor before a section heading, a list
	// item or the disclaimer box is placed; otherwise the block starts a new page.
	SectionReserve    float64
	ItemReserve       float64
	DisclaimerReserve float64

	SectionGap  float64
	ItemGap     float64
	ItemIndent  float64
	FooterInset float64

	Title       string
	Subtitle    string
	AppName     string
	GeneratedAt time.Time

	Measurer Measurer
	Styles   map[Style]TextStyle
}

// DefaultOptions returns A4 portrait with 20mm margins.
func DefaultOptions() Options {
	return Options{
		PageWidth:         210,
		PageHeight:        297,
		Margin:            20,
		SectionReserve:    37,
		ItemReserve:       17,
		DisclaimerReserve: 57,
		SectionGap:        8,
		ItemGap:           2,
		ItemIndent:        5,
		FooterInset:       10,
		Title:             "Medical Consultation Report",
		Subtitle:          "MediConsult AI - Intelligent Medical Consultation",
		AppName:           "MediConsult AI",
		Measurer:          ApproxMeasurer{},
		Styles:            DefaultStyles(),
	}
}

func (o Options) bottom() float64 {
	return o.PageHeight - o.Margin
}

func (o Options) contentWidth() float64 {
	return o.PageWidth - 2*o.Margin
}

// Render lays rec out in two passes: content placement, then footers once
// the total page count is known.
func Render(rec record.Record, opts Options) *Document {
	if opts.Measurer == nil {
		opts.Measurer = ApproxMeasurer{}
	}
	if opts.Styles == nil {
		opts.Styles = DefaultStyles()
	}

	l := &layout{opts: opts}
	l.newPage()

	l.header()
	l.patient(rec)
	l.section("Reason for Visit", rec.ReasonForVisit)
	l.section("Medical History", rec.History)
	l.symptoms(rec.Symptoms)
	l.section("Physical Examination", rec.PhysicalExam)
	l.section("Diagnosis", rec.Diagnosis)
	l.section("Treatment Plan", rec.Treatment)
	if strings.TrimSpace(rec.Notes) != "" {
		l.section("Additional Notes", rec.Notes)
	}
	l.disclaimer()

	total := len(l.pages)
	for i := range l.pages {
		l.pages[i].Footer = Block{
			X:     opts.PageWidth / 2,
			Y:     opts.PageHeight - opts.FooterInset,
			Text:  fmt.Sprintf("Page %d of %d - Generated by %s", i+1, total, opts.AppName),
			Style: StyleFooter,
			Align: AlignCenter,
		}
	}

	return &Document{
		Title:       opts.Title,
		PatientName: rec.Patient.Name,
		GeneratedAt: opts.GeneratedAt,
		PageWidth:   opts.PageWidth,
		PageHeight:  opts.PageHeight,
		Styles:      opts.Styles,
		Pages:       l.pages,
	}
}

// layout is the first-pass cursor.
type layout struct {
	opts  Options
	pages []Page
	y     float64
}

func (l *layout) page() *Page {
	return &l.pages[len(l.pages)-1]
}

func (l *layout) newPage() {
	l.pages = append(l.pages, Page{Number: len(l.pages) + 1})
	l.y = l.opts.Margin
}

// reserve starts a new page unless at least h remains below the cursor.
// A fresh page always accepts the block.
func (l *layout) reserve(h float64) {
	if l.y > l.opts.Margin && l.y+h > l.opts.bottom() {
		l.newPage()
	}
}

// line places one line of text, breaking the page if the baseline would
// fall below the bottom margin.
func (l *layout) line(text string, s Style, x float64) {
	if l.y > l.opts.bottom() {
		l.newPage()
	}
	p := l.page()
	p.Blocks = append(p.Blocks, Block{X: x, Y: l.y, Text: text, Style: s})
	l.y += l.opts.Styles[s].LineHeight
}

func (l *layout) paragraph(text string, s Style, x, width float64) {
	for _, ln := range Wrap(text, width, l.opts.Styles[s].Font, l.opts.Measurer) {
		l.line(ln, s, x)
	}
}

func (l *layout) header() {
	m := l.opts.Margin
	l.line(l.opts.Title, StyleTitle, m)
	if l.opts.Subtitle != "" {
		l.line(l.opts.Subtitle, StyleSubtitle, m)
	}
	l.y += l.opts.SectionGap
}

func (l *layout) heading(title string) {
	l.reserve(l.opts.SectionReserve)
	l.line(title, StyleHeading, l.opts.Margin)
}

func (l *layout) patient(rec record.Record) {
	m, w := l.opts.Margin, l.opts.contentWidth()
	l.heading("Patient Information")
	l.paragraph("Name: "+rec.Patient.Name, StyleBody, m, w)
	l.paragraph("Age: "+rec.Patient.Age, StyleBody, m, w)
	l.paragraph("Sex: "+rec.Patient.Sex, StyleBody, m, w)
	if !l.opts.GeneratedAt.IsZero() {
		l.paragraph("Date: "+l.opts.GeneratedAt.Format("January 2, 2006 15:04"), StyleBody, m, w)
	}
	l.y += l.opts.SectionGap
}

func (l *layout) section(title, body string) {
	l.heading(title)
	l.paragraph(body, StyleBody, l.opts.Margin, l.opts.contentWidth())
	l.y += l.opts.SectionGap
}

func (l *layout) symptoms(items []string) {
	m, w := l.opts.Margin, l.opts.contentWidth()
	l.heading("Symptoms")
	if len(items) == 0 {
		l.paragraph("No symptoms recorded", StyleBody, m, w)
		l.y += l.opts.SectionGap
		return
	}
	x := m + l.opts.ItemIndent
	for i, s := range items {
		l.reserve(l.opts.ItemReserve)
		text := fmt.Sprintf("%d. %s", i+1, s)
		l.paragraph(text, StyleBody, x, w-l.opts.ItemIndent)
		l.y += l.opts.ItemGap
	}
	l.y += l.opts.SectionGap
}

func (l *layout) disclaimer() {
	l.reserve(l.opts.DisclaimerReserve)

	m, w := l.opts.Margin, l.opts.contentWidth()
	pad := l.opts.ItemIndent
	hs := l.opts.Styles[StyleDisclaimerHeading]
	bs := l.opts.Styles[StyleDisclaimerBody]
	lines := Wrap(Disclaimer, w-2*pad, bs.Font, l.opts.Measurer)

	top := l.y - hs.LineHeight
	height := hs.LineHeight*2 + float64(len(lines))*bs.LineHeight
	p := l.page()
	p.Shades = append(p.Shades, Rect{X: m, Y: top, W: w, H: height, Color: Color{254, 243, 199}})

	l.y += hs.LineHeight / 2
	l.line("Medical Disclaimer", StyleDisclaimerHeading, m+pad)
	for _, ln := range lines {
		l.line(ln, StyleDisclaimerBody, m+pad)
	}
}
