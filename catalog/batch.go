package catalog

import (
	"github.com/pkg/errors"
)

// Batch stages the rows for a group of records and writes them with one
// commit. The import pipeline flushes roughly every thousand records,
// which bounds both the write buffer and the manifest rewrite rate.
type Batch struct {
	c       *Catalog
	records []recordRow
	terms   map[string]*termDelta
	order   []string
}

type termDelta struct {
	postings []uint64
}

// NewBatch starts an empty batch.
func (c *Catalog) NewBatch() *Batch {
	return &Batch{c: c, terms: make(map[string]*termDelta)}
}

// Len reports the number of staged records.
func (b *Batch) Len() int { return len(b.records) }

// AppendRecord stages a record range and returns its id. Ids continue the
// committed sequence, so they are dense and monotonically increasing
// across batches.
func (b *Batch) AppendRecord(start, end int64) uint64 {
	b.records = append(b.records, recordRow{Start: start, End: end})
	return b.c.manifest.NumRecords + uint64(len(b.records))
}

// AddTerms stages the postings for one record's deduplicated term set.
func (b *Batch) AddTerms(recordID uint64, terms []string) {
	for _, term := range terms {
		d := b.terms[term]
		if d == nil {
			d = &termDelta{}
			b.terms[term] = d
			b.order = append(b.order, term)
		}
		d.postings = append(d.postings, recordID)
	}
}

// Flush writes the staged rows and commits the manifest. After Flush the
// batch is empty and can be reused.
func (b *Batch) Flush() error {
	if len(b.records) == 0 && len(b.terms) == 0 {
		return nil
	}
	base := b.c.manifest.NumRecords
	for i, row := range b.records {
		if err := b.c.putRecord(base+uint64(i)+1, row); err != nil {
			return errors.Wrap(err, "record append failed")
		}
	}
	for _, term := range b.order {
		d := b.terms[term]
		row, ok := b.c.getToken(term)
		if !ok {
			row = tokenRow{ID: b.c.manifest.NextTokenID}
			b.c.manifest.NextTokenID++
			b.c.manifest.NumTokens++
			b.c.manifest.TokensImported++
		}
		row.Count += uint64(len(d.postings))
		if err := b.c.putToken(term, row); err != nil {
			return errors.Wrap(err, "token upsert failed")
		}
		// record ids ascend within and across batches, so appending
		// keeps every posting list sorted
		ids := append(b.c.getPostings(row.ID), d.postings...)
		if err := b.c.putPostings(row.ID, ids); err != nil {
			return errors.Wrap(err, "posting insert failed")
		}
		b.c.manifest.NumOccurrences += uint64(len(d.postings))
	}
	b.c.manifest.NumRecords = base + uint64(len(b.records))
	b.records = b.records[:0]
	b.terms = make(map[string]*termDelta)
	b.order = b.order[:0]
	return b.c.Commit()
}
