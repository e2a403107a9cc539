package capture

import "strings"

// Transcript accumulates final segments. Each final is appended verbatim
// followed by a single space; interim text never enters it.
type Transcript struct {
	b     strings.Builder
	count int
}

// AppendFinal appends one final segment.
func (t *Transcript) AppendFinal(text string) {
	t.b.WriteString(text)
	t.b.WriteByte(' ')
	t.count++
}

// Raw returns the buffer including the trailing separator.
func (t *Transcript) Raw() string {
	return t.b.String()
}

// Text returns the trimmed transcript.
func (t *Transcript) Text() string {
	return strings.TrimSpace(t.b.String())
}

// Segments returns the number of finals appended.
func (t *Transcript) Segments() int {
	return t.count
}

// Reset clears the transcript.
func (t *Transcript) Reset() {
	t.b.Reset()
	t.count = 0
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
