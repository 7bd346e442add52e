// Package archive abstracts a random-access-by-name container of compressed
// entries, such as a zip file holding a packaged world.
package archive

import (
	"errors"
	"io"
)

// ErrEntryNotFound is returned by Open for names with no matching entry.
// Callers rely on it to tell "absent" apart from I/O failures.
var ErrEntryNotFound = errors.New("archive: entry not found")

// Archive is a read-only container of named compressed entries. Entries are
// read by streaming; implementations are not required to support random
// access within an entry.
type Archive interface {
	// EntryNames returns the names of every entry in the archive, in
	// container order.
	EntryNames() []string

	// Open returns a reader over the named entry's decompressed bytes and
	// the entry's declared uncompressed size. The size is a hint for
	// allocation; the actual decompressed length may differ. An entry
	// that does not exist yields ErrEntryNotFound.
	Open(name string) (io.ReadCloser, int64, error)
}
