// Package testutil provides fixtures and fakes for dirpack tests.
package testutil

import (
	"github.com/meigma/dirpack/archive"
)

// MemEntry is one entry captured by MemWriter.
type MemEntry struct {
	Header archive.Header
	Data   []byte
}

// MemWriter is an in-memory archive.Writer that records every call.
// Failures can be injected per entry name or for body writes.
type MemWriter struct {
	Entries []MemEntry

	// FailHeader makes WriteHeader fail for the named entries.
	FailHeader map[string]error

	// FailWrite makes every Write fail once set.
	FailWrite error

	// ShortWrite makes Write accept only half of each buffer.
	ShortWrite bool

	// CloseErr is returned by Close.
	CloseErr error

	CloseCalls int
}

// WriteHeader implements archive.Writer.
func (m *MemWriter) WriteHeader(hdr *archive.Header) error {
	if err := m.FailHeader[hdr.Name]; err != nil {
		return err
	}
	m.Entries = append(m.Entries, MemEntry{Header: *hdr})
	return nil
}

// Write implements archive.Writer.
func (m *MemWriter) Write(p []byte) (int, error) {
	if len(m.Entries) == 0 {
		return 0, archive.ErrNoEntry
	}
	if m.FailWrite != nil {
		return 0, m.FailWrite
	}
	n := len(p)
	if m.ShortWrite {
		n /= 2
	}
	last := &m.Entries[len(m.Entries)-1]
	last.Data = append(last.Data, p[:n]...)
	return n, nil
}

// Close implements archive.Writer.
func (m *MemWriter) Close() error {
	m.CloseCalls++
	return m.CloseErr
}

// Names returns the entry names in write order.
func (m *MemWriter) Names() []string {
	names := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		names[i] = e.Header.Name
	}
	return names
}

// Entry returns the entry with the given name.
func (m *MemWriter) Entry(name string) (MemEntry, bool) {
	for _, e := range m.Entries {
		if e.Header.Name == name {
			return e, true
		}
	}
	return MemEntry{}, false
}
