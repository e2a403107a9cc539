package record

import (
	"errors"
	"sync"
)

// ErrNoRecord is returned by editor mutations before any record is loaded.
var ErrNoRecord = errors.New("no record loaded")

// Editor owns the current record of a consultation.
// Every mutation swaps in a new Record value so readers never observe a
// half-applied update. Safe for concurrent use.
type Editor struct {
	mu     sync.RWMutex
	rec    Record
	loaded bool
}

// NewEditor returns an empty editor.
func NewEditor() *Editor {
	return &Editor{}
}

// Load replaces the current record.
func (e *Editor) Load(r Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec = r.Clone()
	e.loaded = true
}

// Clear discards the current record.
func (e *Editor) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rec = Record{}
	e.loaded = false
}

// Snapshot returns a copy of the current record and whether one is loaded.
func (e *Editor) Snapshot() (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.loaded {
		return Record{}, false
	}
	return e.rec.Clone(), true
}

// SetField sets a string leaf addressed by path.
func (e *Editor) SetField(f Field, value string) error {
	return e.apply(func(r Record) (Record, error) {
		return r.WithField(f, value)
	})
}

// SetSymptom replaces symptom i; out-of-range indexes are a no-op.
func (e *Editor) SetSymptom(i int, value string) error {
	return e.apply(func(r Record) (Record, error) {
		return r.WithSymptom(i, value), nil
	})
}

// AddSymptom appends an empty symptom.
func (e *Editor) AddSymptom() error {
	return e.apply(func(r Record) (Record, error) {
		return r.AddSymptom(), nil
	})
}

// RemoveSymptom removes symptom i; out-of-range indexes are a no-op.
func (e *Editor) RemoveSymptom(i int) error {
	return e.apply(func(r Record) (Record, error) {
		return r.RemoveSymptom(i), nil
	})
}

func (e *Editor) apply(fn func(Record) (Record, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return ErrNoRecord
	}
	next, err := fn(e.rec)
	if err != nil {
		return err
	}
	e.rec = next
	return nil
}
