package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRegionFolder means prefix discovery found no folder named
	// "region" anywhere in the archive.
	ErrNoRegionFolder = errors.New("provider: no region folder found in archive")
	// ErrAmbiguousRegionFolder means discovery found more than one folder
	// named "region"; the caller must pick one with WithPrefix.
	ErrAmbiguousRegionFolder = errors.New("provider: multiple region folders found in archive")
	// ErrReadOnly is returned by every SaveChunk call: there is no way to
	// write modified bytes back into a compressed archive entry.
	ErrReadOnly = errors.New("provider: archive-backed worlds are read-only")
)

// RegionNotFoundError reports that the archive holds no entry for the
// requested region. Ungenerated terrain is the usual cause, so callers
// should treat this as "no chunk data" rather than a failure.
type RegionNotFoundError struct {
	RegionX, RegionZ int
}

func (e *RegionNotFoundError) Error() string {
	return fmt.Sprintf("provider: region (%d, %d) not found in archive", e.RegionX, e.RegionZ)
}
