package provider

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipworld/internal/anvil"
	"zipworld/internal/archive"
)

const sectorSize = 4096

// regionWithChunk builds a minimal region container holding one chunk at the
// given in-region slot.
func regionWithChunk(t *testing.T, lx, lz int, chunk map[string]any) []byte {
	t.Helper()

	var nbtBuf bytes.Buffer
	require.NoError(t, nbt.NewEncoder(&nbtBuf).Encode(chunk, ""))
	var compBuf bytes.Buffer
	zw := zlib.NewWriter(&compBuf)
	_, err := zw.Write(nbtBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	record := make([]byte, 5+compBuf.Len())
	binary.BigEndian.PutUint32(record[:4], uint32(compBuf.Len()+1))
	record[4] = 2
	copy(record[5:], compBuf.Bytes())
	require.LessOrEqual(t, len(record), sectorSize, "test record exceeds sector size")

	out := make([]byte, sectorSize*3)
	idx := (lz*32 + lx) * 4
	out[idx+2] = 2 // offset sector 2
	out[idx+3] = 1 // one sector
	copy(out[sectorSize*2:], record)
	return out
}

// fakeArchive is an in-memory Archive that counts entry opens and can be
// made to fail mid-read.
type fakeArchive struct {
	names    []string
	entries  map[string][]byte
	hints    map[string]int64 // overrides len(entries[name]) when set
	opens    map[string]int
	failRead bool
}

func newFakeArchive(entries map[string][]byte) *fakeArchive {
	a := &fakeArchive{
		entries: entries,
		hints:   map[string]int64{},
		opens:   map[string]int{},
	}
	for name := range entries {
		a.names = append(a.names, name)
	}
	return a
}

func (a *fakeArchive) EntryNames() []string {
	return a.names
}

func (a *fakeArchive) Open(name string) (io.ReadCloser, int64, error) {
	data, ok := a.entries[name]
	if !ok {
		return nil, 0, archive.ErrEntryNotFound
	}
	a.opens[name]++
	hint := int64(len(data))
	if h, ok := a.hints[name]; ok {
		hint = h
	}
	if a.failRead {
		return io.NopCloser(&failingReader{}), hint, nil
	}
	return io.NopCloser(bytes.NewReader(data)), hint, nil
}

type failingReader struct{}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("stream corrupted")
}

func statusChunk(status string) map[string]any {
	return map[string]any{"Level": map[string]any{"Status": status}}
}

func chunkStatus(t *testing.T, chunk map[string]any) string {
	t.Helper()
	level, ok := chunk["Level"].(map[string]any)
	require.True(t, ok, "chunk has no Level tag: %#v", chunk)
	status, ok := level["Status"].(string)
	require.True(t, ok)
	return status
}

func TestLoadChunk(t *testing.T) {
	ar := newFakeArchive(map[string][]byte{
		"region/":          nil,
		"region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("full")),
	})
	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	chunk, err := p.LoadChunk(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "full", chunkStatus(t, chunk))
}

func TestLoadChunkNegativeCoordinates(t *testing.T) {
	// Chunk (-1, -1) lives in region (-1, -1) at slot (31, 31).
	ar := newFakeArchive(map[string][]byte{
		"region/":            nil,
		"region/r.-1.-1.mca": regionWithChunk(t, 31, 31, statusChunk("full")),
	})
	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	chunk, err := p.LoadChunk(-1, -1)
	require.NoError(t, err)
	assert.Equal(t, "full", chunkStatus(t, chunk))
}

func TestLoadChunkDecompressesOnce(t *testing.T) {
	ar := newFakeArchive(map[string][]byte{
		"region/":          nil,
		"region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("full")),
	})
	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	_, err = p.LoadChunk(0, 0)
	require.NoError(t, err)
	_, err = p.LoadChunk(0, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, ar.opens["region/r.0.0.mca"])
}

func TestLoadChunkCacheSurvivesCorruption(t *testing.T) {
	region := make([]byte, sectorSize*3)
	copy(region, regionWithChunk(t, 0, 0, statusChunk("full")))
	withSecond := regionWithChunk(t, 1, 0, statusChunk("full"))
	// merge the second chunk's location entry and sector into one region
	idx := (0*32 + 1) * 4
	copy(region[idx:idx+4], withSecond[idx:idx+4])
	region[idx+2] = 2 // same payload sector works for both slots

	ar := newFakeArchive(map[string][]byte{
		"region/":          nil,
		"region/r.0.0.mca": region,
	})
	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	_, err = p.LoadChunk(0, 0)
	require.NoError(t, err)

	// Trash the archive entry: the cached buffer must be unaffected.
	ar.entries["region/r.0.0.mca"] = bytes.Repeat([]byte{0xFF}, 64)

	chunk, err := p.LoadChunk(1, 0)
	require.NoError(t, err)
	assert.Equal(t, "full", chunkStatus(t, chunk))
	assert.Equal(t, 1, ar.opens["region/r.0.0.mca"])
}

func TestLoadChunkRegionNotFound(t *testing.T) {
	ar := newFakeArchive(map[string][]byte{
		"region/":          nil,
		"region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("full")),
	})
	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	_, err = p.LoadChunk(32, -1)
	var notFound *RegionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 1, notFound.RegionX)
	assert.Equal(t, -1, notFound.RegionZ)
}

func TestLoadChunkMissingSlot(t *testing.T) {
	ar := newFakeArchive(map[string][]byte{
		"region/":          nil,
		"region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("full")),
	})
	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	_, err = p.LoadChunk(5, 9)
	assert.ErrorIs(t, err, anvil.ErrChunkNotPresent)
}

func TestLoadChunkFailureLeavesNoCacheEntry(t *testing.T) {
	ar := newFakeArchive(map[string][]byte{
		"region/":          nil,
		"region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("full")),
	})
	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	ar.failRead = true
	_, err = p.LoadChunk(0, 0)
	require.Error(t, err)

	// A retry after the stream recovers must succeed from a fresh read.
	ar.failRead = false
	chunk, err := p.LoadChunk(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "full", chunkStatus(t, chunk))
	assert.Equal(t, 2, ar.opens["region/r.0.0.mca"])
}

func TestLoadChunkSizeHintIsNotAuthoritative(t *testing.T) {
	ar := newFakeArchive(map[string][]byte{
		"region/":          nil,
		"region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("full")),
	})
	ar.hints["region/r.0.0.mca"] = 16 // far below the real size

	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	chunk, err := p.LoadChunk(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "full", chunkStatus(t, chunk))
}

func TestWithoutCache(t *testing.T) {
	ar := newFakeArchive(map[string][]byte{
		"region/":          nil,
		"region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("full")),
	})
	p, err := NewZipChunkProvider(ar, WithoutCache())
	require.NoError(t, err)

	_, err = p.LoadChunk(0, 0)
	require.NoError(t, err)
	_, err = p.LoadChunk(0, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, ar.opens["region/r.0.0.mca"])
}

func TestWithPrefixSkipsDiscovery(t *testing.T) {
	// Two region folders would make discovery fail; a fixed prefix must not
	// even look.
	ar := newFakeArchive(map[string][]byte{
		"a/region/":          nil,
		"a/region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("full")),
		"b/region/":          nil,
		"b/region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("empty")),
	})
	p, err := NewZipChunkProvider(ar, WithPrefix("b/region/"))
	require.NoError(t, err)

	chunk, err := p.LoadChunk(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "empty", chunkStatus(t, chunk))
}

func TestConstructionFailures(t *testing.T) {
	_, err := NewZipChunkProvider(newFakeArchive(map[string][]byte{"level.dat": nil}))
	assert.ErrorIs(t, err, ErrNoRegionFolder)

	_, err = NewZipChunkProvider(newFakeArchive(map[string][]byte{
		"a/region/": nil,
		"b/region/": nil,
	}))
	assert.ErrorIs(t, err, ErrAmbiguousRegionFolder)
}

func TestSaveChunkAlwaysFails(t *testing.T) {
	ar := newFakeArchive(map[string][]byte{
		"region/":          nil,
		"region/r.0.0.mca": regionWithChunk(t, 0, 0, statusChunk("full")),
	})
	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	err = p.SaveChunk(0, 0, statusChunk("post"))
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Empty(t, ar.opens, "save must not touch the archive")

	// The buffer served afterwards is untouched.
	chunk, err := p.LoadChunk(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "full", chunkStatus(t, chunk))
}

func TestRegions(t *testing.T) {
	ar := newFakeArchive(map[string][]byte{
		"region/":              nil,
		"region/r.0.0.mca":     nil,
		"region/r.-1.2.mca":    nil,
		"region/r.0.-3.mca":    nil,
		"region/extra.dat":     nil,
		"other/r.9.9.mca":      nil,
		"region/sub/r.1.1.mca": nil,
	})
	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)

	assert.Equal(t, []RegionPos{{-1, 2}, {0, -3}, {0, 0}}, p.Regions())
}

func TestEndToEndZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, dir := range []string{"world/", "world/region/"} {
		_, err := zw.Create(dir)
		require.NoError(t, err)
	}
	w, err := zw.Create("world/region/r.0.0.mca")
	require.NoError(t, err)
	_, err = w.Write(regionWithChunk(t, 0, 0, statusChunk("full")))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	ar, err := archive.NewZip(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	p, err := NewZipChunkProvider(ar)
	require.NoError(t, err)
	assert.Equal(t, "world/region/", p.Prefix())

	chunk, err := p.LoadChunk(0, 0)
	require.NoError(t, err)
	assert.Equal(t, "full", chunkStatus(t, chunk))

	_, err = p.LoadChunk(32, 0)
	var notFound *RegionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, 1, notFound.RegionX)
	assert.Equal(t, 0, notFound.RegionZ)

	assert.Equal(t, []RegionPos{{0, 0}}, p.Regions())
}
