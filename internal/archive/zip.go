package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

// Zip is an Archive backed by a zip file.
type Zip struct {
	names  []string
	byName map[string]*zip.File
	closer io.Closer // nil when constructed over a caller-owned reader
}

// OpenZipFile opens the zip archive at path. The returned Zip owns the file
// handle; Close releases it.
func OpenZipFile(path string) (*Zip, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", path, err)
	}
	z := newZip(&rc.Reader)
	z.closer = rc
	return z, nil
}

// NewZip reads a zip archive from an already-open seekable source of the
// given total size. The source must stay valid for the lifetime of the Zip.
func NewZip(r io.ReaderAt, size int64) (*Zip, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("read zip: %w", err)
	}
	return newZip(zr), nil
}

func newZip(zr *zip.Reader) *Zip {
	z := &Zip{
		names:  make([]string, 0, len(zr.File)),
		byName: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		z.names = append(z.names, f.Name)
		z.byName[f.Name] = f
	}
	return z
}

func (z *Zip) EntryNames() []string {
	return z.names
}

func (z *Zip) Open(name string) (io.ReadCloser, int64, error) {
	f, ok := z.byName[name]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, 0, fmt.Errorf("open entry %s: %w", name, err)
	}
	return rc, int64(f.UncompressedSize64), nil
}

func (z *Zip) Close() error {
	if z.closer == nil {
		return nil
	}
	return z.closer.Close()
}
