package catalog

import (
	"os"
	"path/filepath"
	"time"

	"github.com/oarkflow/flydb"
	"github.com/oarkflow/msgpack"
	"github.com/pkg/errors"
)

// AcuityResult reports what a compaction pass removed.
type AcuityResult struct {
	TokensDeleted   uint64
	PostingsDeleted uint64
	Elapsed         time.Duration
}

// ApplyAcuity deletes every token whose occurrence count is strictly
// below threshold, cascades to its postings, and then rewrites the tables
// into a fresh store to reclaim the space. Record and source state is
// untouched. Readers opened before the pass keep their view; the
// replacement tables are swapped in on completion.
func (c *Catalog) ApplyAcuity(threshold int64) (AcuityResult, error) {
	start := time.Now()
	var res AcuityResult
	if threshold <= 0 {
		return res, nil
	}

	doomed, err := c.tokensBelow(uint64(threshold))
	if err != nil {
		return res, err
	}
	for _, tok := range doomed {
		if err := c.tables.Delete(tokenKey(tok.value)); err != nil {
			return res, errors.Wrap(err, "token delete failed")
		}
		if err := c.tables.Delete(postingKey(tok.row.ID)); err != nil {
			return res, errors.Wrap(err, "posting delete failed")
		}
		res.TokensDeleted++
		res.PostingsDeleted += tok.row.Count
	}
	c.manifest.NumTokens -= res.TokensDeleted
	c.manifest.NumOccurrences -= res.PostingsDeleted
	c.manifest.Acuity = threshold

	if err := c.compact(); err != nil {
		return res, err
	}
	if err := c.Commit(); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

type doomedToken struct {
	value string
	row   tokenRow
}

func (c *Catalog) tokensBelow(threshold uint64) ([]doomedToken, error) {
	var doomed []doomedToken
	it := c.tables.Items()
	for {
		key, val, err := it.Next()
		if err == flydb.ErrIterationDone {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "token scan failed")
		}
		if len(key) < 2 || key[0] != 't' || key[1] != ':' {
			continue
		}
		var row tokenRow
		if err := msgpack.Unmarshal(val, &row); err != nil {
			return nil, errors.Wrap(ErrCorrupt, "undecodable token row")
		}
		if row.Count < threshold {
			doomed = append(doomed, doomedToken{value: string(key[2:]), row: row})
		}
	}
	return doomed, nil
}

// compact rewrites the surviving rows into a fresh store and swaps it in,
// the equivalent of a vacuum-and-reindex pass.
func (c *Catalog) compact() error {
	livePath := filepath.Join(c.dir, tablesDirname)
	freshPath := livePath + ".compact"
	if err := os.RemoveAll(freshPath); err != nil {
		return errors.Wrap(err, "failed to clear the compaction directory")
	}
	fresh, err := flydb.Open[[]byte, []byte](freshPath, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create the compaction tables")
	}

	it := c.tables.Items()
	for {
		key, val, err := it.Next()
		if err == flydb.ErrIterationDone {
			break
		}
		if err != nil {
			fresh.Close()
			return errors.Wrap(err, "table scan failed")
		}
		if err := fresh.Put(key, val); err != nil {
			fresh.Close()
			return errors.Wrap(err, "table rewrite failed")
		}
	}
	if err := fresh.Close(); err != nil {
		return errors.Wrap(err, "failed to close the compaction tables")
	}
	if err := c.tables.Close(); err != nil {
		return errors.Wrap(err, "failed to close the tables")
	}

	trash := livePath + ".old"
	if err := os.RemoveAll(trash); err != nil {
		return errors.Wrap(err, "failed to clear the trash directory")
	}
	if err := os.Rename(livePath, trash); err != nil {
		return errors.Wrap(err, "failed to move the old tables aside")
	}
	if err := os.Rename(freshPath, livePath); err != nil {
		return errors.Wrap(err, "failed to install the compacted tables")
	}
	os.RemoveAll(trash)

	tables, err := flydb.Open[[]byte, []byte](livePath, nil)
	if err != nil {
		return errors.Wrap(err, "failed to reopen the tables")
	}
	c.tables = tables
	return nil
}
