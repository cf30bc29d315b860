// Package index drives one import: source bytes through the codec, the
// record splitter and the tokenizer into the catalog, in bounded memory.
package index

import (
	"context"
	"io"
	"time"

	"github.com/oarkflow/log"
	"github.com/pkg/errors"

	"github.com/mcollard0/nixIndex/catalog"
	"github.com/mcollard0/nixIndex/codec"
	"github.com/mcollard0/nixIndex/split"
	"github.com/mcollard0/nixIndex/token"
)

// ErrCancelled is the cause of an import aborted by its context. The
// catalog keeps the committed prefix but must be re-imported before use.
var ErrCancelled = errors.New("import cancelled")

// DefaultBatchSize is the number of records written per catalog commit.
const DefaultBatchSize = 1000

// Options configures one import run.
type Options struct {
	Encoding  string
	Separator string
	ChunkSize int
	Acuity    int64
	BatchSize int
}

// Summary is the outcome reported to the operator.
type Summary struct {
	Records        uint64
	TokensImported uint64
	Tokens         uint64
	Occurrences    uint64
	TokensDeleted  uint64
	Elapsed        time.Duration
}

// Importer binds a catalog to a resolved codec and separator. Resolution
// happens up front so an unknown encoding or a bad separator aborts
// before the catalog is touched.
type Importer struct {
	cat   *catalog.Catalog
	codec *codec.Codec
	sep   *split.Separator
	opts  Options
}

func NewImporter(cat *catalog.Catalog, opts Options) (*Importer, error) {
	c, err := codec.Resolve(opts.Encoding)
	if err != nil {
		return nil, err
	}
	sep, err := split.ParseSeparator(opts.Separator)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Importer{cat: cat, codec: c, sep: sep, opts: opts}, nil
}

type block struct {
	rec split.Record
	err error
}

// readRecords decodes and splits src on its own goroutine, feeding a
// bounded channel. The consumer stays the only catalog writer; the
// channel just overlaps codec I/O with tokenization.
func (imp *Importer) readRecords(ctx context.Context, src io.Reader) <-chan block {
	ch := make(chan block, 64)
	go func() {
		defer close(ch)
		dec, err := imp.codec.NewDecoder(src)
		if err != nil {
			ch <- block{err: err}
			return
		}
		splitter := split.New(dec, imp.sep, imp.opts.ChunkSize)
		for {
			rec, err := splitter.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				ch <- block{err: err}
				return
			}
			select {
			case ch <- block{rec: rec}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Run resets the catalog and imports src. sourcePath is recorded for the
// search path to reopen; pass "-" for a standard-input stream.
func (imp *Importer) Run(ctx context.Context, src io.Reader, sourcePath string) (Summary, error) {
	start := time.Now()
	var sum Summary

	// the producer goroutine must not outlive this call
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := imp.cat.Reset(); err != nil {
		return sum, errors.Wrap(err, "catalog reset failed")
	}
	if err := imp.cat.PutEncoding(imp.codec.Name); err != nil {
		return sum, errors.Wrap(err, "catalog write failed")
	}
	if err := imp.cat.PutSource(sourcePath); err != nil {
		return sum, errors.Wrap(err, "catalog write failed")
	}

	log.Info().
		Str("source", sourcePath).
		Str("encoding", imp.codec.Name).
		Str("separator", imp.sep.String()).
		Msg("import started")

	batch := imp.cat.NewBatch()
	for blk := range imp.readRecords(ctx, src) {
		if blk.err != nil {
			return sum, errors.Wrap(blk.err, "import aborted; catalog is partial; rerun required")
		}
		rec := blk.rec
		if rec.Start == rec.End {
			continue
		}
		id := batch.AppendRecord(rec.Start, rec.End)
		terms, _ := token.Unique(rec.Data)
		batch.AddTerms(id, terms)
		if batch.Len() >= imp.opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return sum, errors.Wrap(ErrCancelled, "catalog is partial; rerun required")
			}
			if err := batch.Flush(); err != nil {
				return sum, errors.Wrap(err, "import aborted; catalog is partial; rerun required")
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return sum, errors.Wrap(ErrCancelled, "catalog is partial; rerun required")
	}
	if err := batch.Flush(); err != nil {
		return sum, errors.Wrap(err, "import aborted; catalog is partial; rerun required")
	}

	if imp.opts.Acuity > 0 {
		res, err := imp.cat.ApplyAcuity(imp.opts.Acuity)
		if err != nil {
			return sum, errors.Wrap(err, "acuity compaction failed")
		}
		sum.TokensDeleted = res.TokensDeleted
		log.Info().
			Int64("threshold", imp.opts.Acuity).
			Uint64("tokens_deleted", res.TokensDeleted).
			Str("elapsed", res.Elapsed.String()).
			Msg("acuity compaction done")
	}

	stats := imp.cat.Stats()
	sum.Records = stats.Records
	sum.TokensImported = stats.TokensImported
	sum.Tokens = stats.Tokens
	sum.Occurrences = stats.Occurrences
	sum.Elapsed = time.Since(start)

	log.Info().
		Uint64("records", sum.Records).
		Uint64("tokens", sum.Tokens).
		Uint64("occurrences", sum.Occurrences).
		Str("elapsed", sum.Elapsed.String()).
		Msg("import done")
	return sum, nil
}
