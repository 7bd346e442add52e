package provider

import (
	"path"
	"strings"

	"zipworld/internal/coords"
)

// DefaultPrefix is the conventional location of region containers in an
// unpacked world.
const DefaultPrefix = "region/"

// Locator resolves region coordinates to archive entry names. The prefix is
// fixed at construction and never changes.
type Locator struct {
	prefix string
}

// NewLocator builds a locator over a caller-supplied prefix, skipping
// discovery. A missing trailing separator is added.
func NewLocator(prefix string) *Locator {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Locator{prefix: prefix}
}

// DiscoverLocator scans an archive's entry listing for a folder whose final
// path component is literally "region" and uses its full path as the prefix.
// Exactly one such folder must exist: none yields ErrNoRegionFolder, more
// than one yields ErrAmbiguousRegionFolder.
func DiscoverLocator(entryNames []string) (*Locator, error) {
	found := 0
	prefix := ""
	for _, name := range entryNames {
		trimmed := strings.TrimSuffix(name, "/")
		if path.Base(trimmed) != "region" {
			continue
		}
		found++
		prefix = trimmed + "/"
	}
	switch {
	case found == 0:
		return nil, ErrNoRegionFolder
	case found > 1:
		return nil, ErrAmbiguousRegionFolder
	}
	return &Locator{prefix: prefix}, nil
}

// Prefix returns the archive path under which region entries live,
// including the trailing separator.
func (l *Locator) Prefix() string {
	return l.prefix
}

// EntryName formats the archive entry name of the given region.
func (l *Locator) EntryName(rx, rz int) string {
	return l.prefix + coords.RegionFileName(rx, rz)
}
