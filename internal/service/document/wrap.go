package document

import "strings"

// ptToMM converts points to millimetres.
const ptToMM = 25.4 / 72

// Measurer reports the rendered width of text in page units (mm).
type Measurer interface {
	Width(text string, f Font) float64
}

// ApproxMeasurer estimates width from rune count. It is used when no font
// metrics are available; exporters pass their own.
type ApproxMeasurer struct{}

func (ApproxMeasurer) Width(text string, f Font) float64 {
	factor := 0.5
	if f.Bold {
		factor = 0.55
	}
	return float64(len([]rune(text))) * f.Size * factor * ptToMM
}

// Wrap breaks text into lines no wider than width. Paragraphs split on
// newlines; blank paragraphs are dropped. Words wider than a line are broken
// at rune boundaries.
func Wrap(text string, width float64, f Font, m Measurer) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}

		line := ""
		for _, w := range words {
			if m.Width(w, f) > width {
				if line != "" {
					lines = append(lines, line)
				}
				chunks := hardBreak(w, width, f, m)
				lines = append(lines, chunks[:len(chunks)-1]...)
				line = chunks[len(chunks)-1]
				continue
			}
			if line == "" {
				line = w
				continue
			}
			candidate := line + " " + w
			if m.Width(candidate, f) <= width {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = w
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// hardBreak splits a single word into chunks that each fit width.
// Every chunk holds at least one rune.
func hardBreak(word string, width float64, f Font, m Measurer) []string {
	var chunks []string
	var cur []rune
	for _, r := range word {
		next := append(cur, r)
		if len(cur) > 0 && m.Width(string(next), f) > width {
			chunks = append(chunks, string(cur))
			cur = []rune{r}
			continue
		}
		cur = next
	}
	if len(cur) > 0 {
		chunks = append(chunks, string(cur))
	}
	return chunks
}
