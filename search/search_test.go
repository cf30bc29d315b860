package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcollard0/nixIndex/catalog"
)

// buildCatalog hand-writes a catalog over a plain-text source so the
// extraction path can be exercised with exact offsets.
func buildCatalog(t *testing.T, source string, records [][2]int64, postings map[string][]uint64) (*catalog.Catalog, string) {
	dir := t.TempDir()
	path := filepath.Join(dir, "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(source), 0644))

	cat, err := catalog.Open(filepath.Join(dir, "catalog"), true)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	require.NoError(t, cat.PutEncoding("none"))
	require.NoError(t, cat.PutSource(path))

	for _, r := range records {
		_, err := cat.AppendRecord(r[0], r[1])
		require.NoError(t, err)
	}
	for term, ids := range postings {
		tokenID, err := cat.UpsertToken(term)
		require.NoError(t, err)
		for _, id := range ids {
			require.NoError(t, cat.AddPosting(tokenID, id))
		}
	}
	require.NoError(t, cat.Commit())
	return cat, path
}

func TestSearch_MissingTermIsNotAnError(t *testing.T) {
	cat, _ := buildCatalog(t, "alpha\n", [][2]int64{{0, 5}}, map[string][]uint64{"alpha": {1}})
	results, report, err := New(cat).Search(context.Background(), "missing", "")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, report.Results)
}

func TestSearch_NormalizesTerm(t *testing.T) {
	cat, _ := buildCatalog(t, "alpha\n", [][2]int64{{0, 5}}, map[string][]uint64{"alpha": {1}})
	results, _, err := New(cat).Search(context.Background(), "Alpha", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []byte("alpha"), results[0].Data)
}

func TestSearch_MergesAdjacentRanges(t *testing.T) {
	// records laid out back to back with no separator byte between them
	cat, _ := buildCatalog(t, "aaabbbccc", [][2]int64{{0, 3}, {3, 6}, {6, 9}},
		map[string][]uint64{"x": {1, 2, 3}})
	results, report, err := New(cat).Search(context.Background(), "x", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []byte("aaabbbccc"), results[0].Data)
	assert.Equal(t, []uint64{1, 2, 3}, results[0].Records)
	assert.Equal(t, 3, report.Matches)
	assert.Equal(t, 1, report.Results)
}

func TestSearch_SkipsUnmatchedGaps(t *testing.T) {
	cat, _ := buildCatalog(t, "one\ntwo\nthree\n", [][2]int64{{0, 3}, {4, 7}, {8, 13}},
		map[string][]uint64{"odd": {1, 3}})
	results, _, err := New(cat).Search(context.Background(), "odd", "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []byte("one"), results[0].Data)
	assert.Equal(t, []byte("three"), results[1].Data)
}

func TestSearch_ResultsAscendByRecordID(t *testing.T) {
	cat, _ := buildCatalog(t, "one\ntwo\nthree\n", [][2]int64{{0, 3}, {4, 7}, {8, 13}},
		map[string][]uint64{"all": {1, 2, 3}})
	results, _, err := New(cat).Search(context.Background(), "all", "")
	require.NoError(t, err)
	var last uint64
	for _, res := range results {
		for _, id := range res.Records {
			assert.Greater(t, id, last)
			last = id
		}
	}
}

func TestSearch_SourceOverride(t *testing.T) {
	cat, _ := buildCatalog(t, "one\n", [][2]int64{{0, 3}}, map[string][]uint64{"one": {1}})
	override := filepath.Join(t.TempDir(), "moved.txt")
	require.NoError(t, os.WriteFile(override, []byte("uno\n"), 0644))

	results, _, err := New(cat).Search(context.Background(), "one", override)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []byte("uno"), results[0].Data)
}

func TestSearch_MissingSourceFails(t *testing.T) {
	cat, path := buildCatalog(t, "one\n", [][2]int64{{0, 3}}, map[string][]uint64{"one": {1}})
	require.NoError(t, os.Remove(path))
	_, _, err := New(cat).Search(context.Background(), "one", "")
	assert.Error(t, err)
}

func TestSearch_TruncatedSourceKeepsPrefix(t *testing.T) {
	// the second range lies beyond the truncated source; the first result
	// is preserved and the remainder is dropped without an error
	cat, path := buildCatalog(t, "one\ntwo\n", [][2]int64{{0, 3}, {4, 7}},
		map[string][]uint64{"both": {1, 2}})
	require.NoError(t, os.WriteFile(path, []byte("one\n"), 0644))

	results, _, err := New(cat).Search(context.Background(), "both", "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []byte("one"), results[0].Data)
}

func TestSearch_ExternalDecoderAboveCutoff(t *testing.T) {
	cat, _ := buildCatalog(t, "one\ntwo\n", [][2]int64{{0, 3}, {4, 7}},
		map[string][]uint64{"both": {1, 2}})
	t.Setenv("NIXINDEX_ZCAT", "cat")

	s := New(cat)
	s.LargeFileCutoff = 0
	results, _, err := s.Search(context.Background(), "both", "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []byte("one"), results[0].Data)
	assert.Equal(t, []byte("two"), results[1].Data)
}

func TestSearch_Cancelled(t *testing.T) {
	cat, _ := buildCatalog(t, "one\n", [][2]int64{{0, 3}}, map[string][]uint64{"one": {1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New(cat).Search(ctx, "one", "")
	assert.Error(t, err)
}
