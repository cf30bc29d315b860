// Package catalog is the durable inverted index behind import and search.
// A catalog is one directory: an atomically rewritten manifest plus a set
// of key-value tables managed by an embedded store that keeps its own
// append log. It represents exactly one source at a time and has a single
// writer; any number of readers may open it concurrently.
package catalog

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"github.com/oarkflow/flydb"
	"github.com/oarkflow/msgpack"
	"github.com/pkg/errors"
	"go4.org/syncutil"
)

var (
	// ErrCorrupt means the catalog violates its own invariants and must
	// be reset before use.
	ErrCorrupt = errors.New("catalog is corrupt")
)

const tablesDirname = "tables"

// recordRow is the stored byte range of one record, in decoded
// coordinates.
type recordRow struct {
	Start int64 `msgpack:"s"`
	End   int64 `msgpack:"e"`
}

// tokenRow is one dictionary entry. Count is the number of postings that
// reference the token.
type tokenRow struct {
	ID    uint64 `msgpack:"i"`
	Count uint64 `msgpack:"c"`
}

// Stats summarizes the catalog for operator output.
type Stats struct {
	Records        uint64
	TokensImported uint64
	Tokens         uint64
	Occurrences    uint64
}

// Catalog is a handle to one catalog directory.
type Catalog struct {
	dir      string
	tables   *flydb.DB[[]byte, []byte]
	manifest Manifest
	close    syncutil.Once
}

// Open opens (or with create, initializes) the catalog at dir.
func Open(dir string, create bool) (*Catalog, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if create {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, errors.Wrap(err, "unable to create the catalog directory")
		}
	}
	c := &Catalog{dir: dir}
	if err := c.manifest.Load(dir, create); err != nil {
		return nil, errors.Wrap(err, "failed to open the manifest")
	}
	if c.manifest.Encoding == "" && c.manifest.NumRecords > 0 {
		return nil, errors.Wrap(ErrCorrupt, "record table is non-empty but no encoding is recorded")
	}
	tables, err := flydb.Open[[]byte, []byte](filepath.Join(dir, tablesDirname), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open the tables")
	}
	c.tables = tables
	return c, nil
}

// Close releases the table handles. Safe to call more than once.
func (c *Catalog) Close() error {
	return c.close.Do(func() error {
		return c.tables.Close()
	})
}

// Path returns the catalog directory.
func (c *Catalog) Path() string { return c.dir }

// Manifest returns a copy of the committed manifest.
func (c *Catalog) Manifest() Manifest { return c.manifest }

// Stats reports the row counts held by this handle's manifest, including
// rows written since the last Commit.
func (c *Catalog) Stats() Stats {
	return Stats{
		Records:        c.manifest.NumRecords,
		TokensImported: c.manifest.TokensImported,
		Tokens:         c.manifest.NumTokens,
		Occurrences:    c.manifest.NumOccurrences,
	}
}

// Reset truncates all five tables; the next import starts from nothing.
func (c *Catalog) Reset() error {
	if err := c.tables.Close(); err != nil {
		return errors.Wrap(err, "failed to close the tables")
	}
	if err := os.RemoveAll(filepath.Join(c.dir, tablesDirname)); err != nil {
		return errors.Wrap(err, "failed to remove the tables")
	}
	tables, err := flydb.Open[[]byte, []byte](filepath.Join(c.dir, tablesDirname), nil)
	if err != nil {
		return errors.Wrap(err, "failed to recreate the tables")
	}
	c.tables = tables
	c.manifest.Reset()
	return c.manifest.Save(c.dir)
}

// PutEncoding records the encoding tag. Called once at import start.
func (c *Catalog) PutEncoding(tag string) error {
	c.manifest.Encoding = tag
	return c.manifest.Save(c.dir)
}

// PutSource records the source path. Called once at import start.
func (c *Catalog) PutSource(path string) error {
	if path != "-" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	c.manifest.Source = path
	return c.manifest.Save(c.dir)
}

func recordKey(id uint64) []byte {
	key := make([]byte, 2+8)
	key[0], key[1] = 'r', ':'
	binary.BigEndian.PutUint64(key[2:], id)
	return key
}

func tokenKey(value string) []byte {
	return append([]byte("t:"), value...)
}

func postingKey(tokenID uint64) []byte {
	key := make([]byte, 2+8)
	key[0], key[1] = 'p', ':'
	binary.BigEndian.PutUint64(key[2:], tokenID)
	return key
}

func (c *Catalog) getRecord(id uint64) (recordRow, bool) {
	data, err := c.tables.Get(recordKey(id))
	if err != nil {
		return recordRow{}, false
	}
	var row recordRow
	if err := msgpack.Unmarshal(data, &row); err != nil {
		return recordRow{}, false
	}
	return row, true
}

func (c *Catalog) getToken(value string) (tokenRow, bool) {
	data, err := c.tables.Get(tokenKey(value))
	if err != nil {
		return tokenRow{}, false
	}
	var row tokenRow
	if err := msgpack.Unmarshal(data, &row); err != nil {
		return tokenRow{}, false
	}
	return row, true
}

func (c *Catalog) getPostings(tokenID uint64) []uint64 {
	data, err := c.tables.Get(postingKey(tokenID))
	if err != nil {
		return nil
	}
	var ids []uint64
	if err := msgpack.Unmarshal(data, &ids); err != nil {
		return nil
	}
	return ids
}

func (c *Catalog) putRecord(id uint64, row recordRow) error {
	data, err := msgpack.Marshal(row)
	if err != nil {
		return err
	}
	return c.tables.Put(recordKey(id), data)
}

func (c *Catalog) putToken(value string, row tokenRow) error {
	data, err := msgpack.Marshal(row)
	if err != nil {
		return err
	}
	return c.tables.Put(tokenKey(value), data)
}

func (c *Catalog) putPostings(tokenID uint64, ids []uint64) error {
	data, err := msgpack.Marshal(ids)
	if err != nil {
		return err
	}
	return c.tables.Put(postingKey(tokenID), data)
}

// AppendRecord allocates the next dense record id for the range
// [start, end) and stages nothing; it writes the row immediately and
// Stats on this handle counts it at once, but the manifest on disk only
// includes it once Commit runs. Use a Batch for bulk imports.
func (c *Catalog) AppendRecord(start, end int64) (uint64, error) {
	id := c.manifest.NumRecords + 1
	if err := c.putRecord(id, recordRow{Start: start, End: end}); err != nil {
		return 0, errors.Wrap(err, "record append failed")
	}
	c.manifest.NumRecords = id
	return id, nil
}

// UpsertToken inserts value into the dictionary or bumps its occurrence
// count, returning the token id.
func (c *Catalog) UpsertToken(value string) (uint64, error) {
	row, ok := c.getToken(value)
	if !ok {
		row = tokenRow{ID: c.manifest.NextTokenID}
		c.manifest.NextTokenID++
		c.manifest.NumTokens++
		c.manifest.TokensImported++
	}
	row.Count++
	if err := c.putToken(value, row); err != nil {
		return 0, errors.Wrap(err, "token upsert failed")
	}
	return row.ID, nil
}

// AddPosting asserts that record recordID contains token tokenID. The
// pair is stored at most once.
func (c *Catalog) AddPosting(tokenID, recordID uint64) error {
	ids := c.getPostings(tokenID)
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= recordID })
	if i < len(ids) && ids[i] == recordID {
		return nil
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = recordID
	c.manifest.NumOccurrences++
	return errors.Wrap(c.putPostings(tokenID, ids), "posting insert failed")
}

// Commit persists the manifest, making everything written so far visible
// as the new committed prefix.
func (c *Catalog) Commit() error {
	c.manifest.CommitID++
	return c.manifest.Save(c.dir)
}

// PostingsFor returns the ids of the records containing value, in
// ascending record id order. A miss returns an empty slice.
func (c *Catalog) PostingsFor(value string) []uint64 {
	row, ok := c.getToken(value)
	if !ok {
		return nil
	}
	return c.getPostings(row.ID)
}

// TokenCount returns value's occurrence count, or 0 if absent.
func (c *Catalog) TokenCount(value string) uint64 {
	row, ok := c.getToken(value)
	if !ok {
		return 0
	}
	return row.Count
}

// RecordRange returns the decoded byte range of a record.
func (c *Catalog) RecordRange(id uint64) (start, end int64, err error) {
	row, ok := c.getRecord(id)
	if !ok {
		return 0, 0, errors.Wrapf(ErrCorrupt, "record %d not found", id)
	}
	return row.Start, row.End, nil
}
