// Package search resolves a query term to record ranges and materializes
// them by replaying the source through its codec. The decoded stream is
// consumed once, front to back; there is no seeking.
package search

import (
	"bufio"
	"context"
	"io"
	"os"
	"sort"
	"time"

	"github.com/oarkflow/log"
	"github.com/pkg/errors"

	"github.com/mcollard0/nixIndex/catalog"
	"github.com/mcollard0/nixIndex/codec"
	"github.com/mcollard0/nixIndex/token"
)

// DefaultLargeFileCutoff is the compressed size above which a streaming
// codec is handed to the external decoder, when one is configured.
const DefaultLargeFileCutoff = 1 << 30

// ErrCancelled is the cause of a search aborted by its context.
var ErrCancelled = errors.New("search cancelled")

// Result is one materialized byte range of the decoded stream. Records
// lists the matching record ids the range covers; adjacent or overlapping
// ranges collapse into one result.
type Result struct {
	Start   int64
	End     int64
	Records []uint64
	Data    []byte
}

// Report summarizes a query for the operator.
type Report struct {
	Matches int
	Results int
	Elapsed time.Duration
}

// Searcher answers single-term queries against one catalog.
type Searcher struct {
	cat             *catalog.Catalog
	LargeFileCutoff int64
}

func New(cat *catalog.Catalog) *Searcher {
	return &Searcher{cat: cat, LargeFileCutoff: DefaultLargeFileCutoff}
}

// Search returns the records containing term, in ascending record id
// order. sourceOverride, when non-empty, is read instead of the imported
// path. A term absent from the dictionary yields zero results, not an
// error.
func (s *Searcher) Search(ctx context.Context, term string, sourceOverride string) ([]Result, Report, error) {
	start := time.Now()
	term = token.Normalize(term)

	ids := s.cat.PostingsFor(term)
	if len(ids) == 0 {
		log.Info().Str("term", term).Msg("term not in dictionary")
		return nil, Report{Elapsed: time.Since(start)}, nil
	}

	spans, err := s.resolveSpans(ids)
	if err != nil {
		return nil, Report{}, err
	}

	manifest := s.cat.Manifest()
	c, err := codec.Resolve(manifest.Encoding)
	if err != nil {
		return nil, Report{}, errors.Wrap(err, "catalog names an unknown encoding")
	}
	path := manifest.Source
	if sourceOverride != "" {
		path = sourceOverride
	}

	results, err := s.extract(ctx, c, path, spans)
	if err != nil {
		return nil, Report{}, err
	}
	report := Report{Matches: len(ids), Results: len(results), Elapsed: time.Since(start)}
	log.Info().
		Str("term", term).
		Int("results", report.Results).
		Str("elapsed", report.Elapsed.String()).
		Msg("search done")
	return results, report, nil
}

type span struct {
	start, end int64
	records    []uint64
}

// resolveSpans maps posting record ids to byte ranges, dropping duplicate
// ids and merging adjacent or overlapping ranges. Postings are stored in
// id order and records are laid out in id order, so the merged spans come
// out sorted by start offset and by record id at once.
func (s *Searcher) resolveSpans(ids []uint64) ([]span, error) {
	spans := make([]span, 0, len(ids))
	var last uint64
	for i, id := range ids {
		if i > 0 && id == last {
			continue
		}
		last = id
		start, end, err := s.cat.RecordRange(id)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span{start: start, end: end, records: []uint64{id}})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := spans[:1]
	for _, sp := range spans[1:] {
		top := &merged[len(merged)-1]
		if sp.start <= top.end {
			if sp.end > top.end {
				top.end = sp.end
			}
			top.records = append(top.records, sp.records...)
			continue
		}
		merged = append(merged, sp)
	}
	return merged, nil
}

// openDecoded picks the extraction strategy from the codec descriptor and
// the compressed size, and returns the decoded stream.
func (s *Searcher) openDecoded(c *codec.Codec, path string) (codec.Decoder, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to open the source")
	}

	if !c.Streaming {
		log.Warn().
			Str("encoding", c.Name).
			Str("source", path).
			Msg("codec is not streaming; decoding the whole source in memory")
		dec, err := c.NewDecoder(bufio.NewReaderSize(file, 1<<20))
		if err != nil {
			file.Close()
			return nil, nil, err
		}
		return dec, file.Close, nil
	}

	if info, err := file.Stat(); err == nil && info.Size() > s.LargeFileCutoff {
		if prog, args, ok := codec.ExternalCommand(); ok {
			file.Close()
			ext, err := codec.NewExternalDecoder(prog, args, path)
			if err != nil {
				return nil, nil, err
			}
			log.Info().Str("decoder", prog).Msg("using external streaming decoder")
			return ext, ext.Close, nil
		}
	}

	dec, err := c.NewDecoder(bufio.NewReaderSize(file, 1<<20))
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return dec, file.Close, nil
}

// extract runs the forward-cursor range extractor: skip to each span's
// start, copy its bytes, move on. A decode failure mid-stream keeps the
// results emitted so far and drops the rest of the query's ranges.
func (s *Searcher) extract(ctx context.Context, c *codec.Codec, path string, spans []span) ([]Result, error) {
	dec, closeFn, err := s.openDecoded(c, path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	results := make([]Result, 0, len(spans))
	var cursor int64
	for _, sp := range spans {
		if err := ctx.Err(); err != nil {
			return results, errors.Wrap(ErrCancelled, "search aborted")
		}
		if err := discard(dec, sp.start-cursor); err != nil {
			log.Error().Err(err).Int64("offset", dec.Decoded()).Msg("decode failed; dropping remaining ranges")
			return results, nil
		}
		data := make([]byte, sp.end-sp.start)
		if _, err := io.ReadFull(dec, data); err != nil {
			log.Error().Err(err).Int64("offset", dec.Decoded()).Msg("decode failed; dropping remaining ranges")
			return results, nil
		}
		cursor = sp.end
		results = append(results, Result{Start: sp.start, End: sp.end, Records: sp.records, Data: data})
	}
	return results, nil
}

// discard advances the single forward cursor without buffering more than
// one copy chunk.
func discard(r io.Reader, n int64) error {
	if n < 0 {
		return errors.Wrap(catalog.ErrCorrupt, "record ranges are out of order")
	}
	_, err := io.CopyN(io.Discard, r, n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
