// Package provider loads chunk data out of worlds packaged as zip archives.
//
// Region containers are decompressed into memory once per provider lifetime
// and cached by region coordinate; repeated chunk reads against the same
// region reuse the cached buffer. Archive-backed worlds are strictly
// read-only.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"zipworld/internal/anvil"
	"zipworld/internal/archive"
	"zipworld/internal/coords"
)

// ChunkProvider is the caller-facing contract for chunk access.
type ChunkProvider interface {
	LoadChunk(cx, cz int) (map[string]any, error)
	SaveChunk(cx, cz int, chunk map[string]any) error
}

// RegionPos identifies a region container by its coordinates.
type RegionPos struct {
	X, Z int
}

// ZipChunkProvider reads chunks from a world packaged in a zip archive.
// Not safe for concurrent use; callers needing that must add their own
// synchronization around it.
type ZipChunkProvider struct {
	ar  archive.Archive
	loc *Locator
	log *slog.Logger

	// cache holds fully decompressed region containers. nil when caching
	// is disabled.
	cache map[RegionPos][]byte
}

var _ ChunkProvider = (*ZipChunkProvider)(nil)

// NewZipChunkProvider builds a provider over an opened archive. Unless
// WithPrefix is given, the region folder is discovered by scanning the
// archive's entry listing; discovery failures abort construction.
func NewZipChunkProvider(ar archive.Archive, opts ...Option) (*ZipChunkProvider, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if cfg.log.Enabled(context.Background(), slog.LevelDebug) {
		for _, name := range ar.EntryNames() {
			cfg.log.Debug("archive entry", "name", name)
		}
	}

	var loc *Locator
	if cfg.prefix != "" {
		loc = NewLocator(cfg.prefix)
	} else {
		var err error
		loc, err = DiscoverLocator(ar.EntryNames())
		if err != nil {
			return nil, err
		}
	}
	cfg.log.Debug("region folder resolved", "prefix", loc.Prefix())

	p := &ZipChunkProvider{ar: ar, loc: loc, log: cfg.log}
	if !cfg.noCache {
		p.cache = make(map[RegionPos][]byte)
	}
	return p, nil
}

// Prefix returns the archive path under which region entries live.
func (p *ZipChunkProvider) Prefix() string {
	return p.loc.Prefix()
}

// LoadChunk decodes the chunk at the given chunk coordinates. A region with
// no archive entry yields a *RegionNotFoundError; an empty chunk slot inside
// an existing region yields anvil.ErrChunkNotPresent.
func (p *ZipChunkProvider) LoadChunk(cx, cz int) (map[string]any, error) {
	rx, rz := coords.ChunkToRegionXZ(cx, cz)
	lx, lz := coords.InRegionChunkIndex(cx, cz)

	buf, err := p.regionData(rx, rz)
	if err != nil {
		return nil, err
	}

	// The anvil reader needs a seekable source; a bytes.Reader over the
	// cached buffer provides one without giving up the cache's ownership.
	reg := anvil.NewRegionBuffer(buf)
	return reg.ReadChunkNBT(lx, lz)
}

// SaveChunk always fails with ErrReadOnly. The archive cannot take writes,
// and mutating a cached buffer would only fake a save that nobody reopening
// the archive could see.
func (p *ZipChunkProvider) SaveChunk(cx, cz int, chunk map[string]any) error {
	return ErrReadOnly
}

// Regions lists the coordinates of every region entry under the resolved
// prefix, sorted by X then Z.
func (p *ZipChunkProvider) Regions() []RegionPos {
	var out []RegionPos
	for _, name := range p.ar.EntryNames() {
		rest, ok := strings.CutPrefix(name, p.loc.Prefix())
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		rx, rz, ok := coords.ParseRegionFileName(rest)
		if !ok {
			continue
		}
		out = append(out, RegionPos{X: rx, Z: rz})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out
}

func (p *ZipChunkProvider) regionData(rx, rz int) ([]byte, error) {
	pos := RegionPos{X: rx, Z: rz}
	if buf, ok := p.cache[pos]; ok {
		p.log.Debug("region cache hit", "rx", rx, "rz", rz)
		return buf, nil
	}

	buf, err := p.readRegion(rx, rz)
	if err != nil {
		// Nothing was inserted, so a later retry starts clean.
		return nil, err
	}
	if p.cache != nil {
		p.cache[pos] = buf
	}
	p.log.Debug("region decompressed", "rx", rx, "rz", rz, "bytes", len(buf))
	return buf, nil
}

func (p *ZipChunkProvider) readRegion(rx, rz int) ([]byte, error) {
	name := p.loc.EntryName(rx, rz)
	rc, sizeHint, err := p.ar.Open(name)
	if errors.Is(err, archive.ErrEntryNotFound) {
		return nil, &RegionNotFoundError{RegionX: rx, RegionZ: rz}
	}
	if err != nil {
		return nil, fmt.Errorf("open region entry %s: %w", name, err)
	}
	defer rc.Close()

	// The declared size is only a hint, so the buffer may still grow.
	buf := bytes.NewBuffer(make([]byte, 0, sizeHint))
	if _, err := io.Copy(buf, rc); err != nil {
		return nil, fmt.Errorf("decompress region entry %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
