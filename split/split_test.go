package split

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string, sep string, chunkSize int) []Record {
	s, err := ParseSeparator(sep)
	require.NoError(t, err)
	splitter := New(strings.NewReader(input), s, chunkSize)
	var records []Record
	for {
		rec, err := splitter.Next()
		if err == io.EOF {
			return records
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}

func TestParseSeparator_Escapes(t *testing.T) {
	sep, err := ParseSeparator(`\n`)
	require.NoError(t, err)
	assert.Equal(t, []byte("\n"), sep.literal)

	sep, err = ParseSeparator(`a\tb\\c\x41`)
	require.NoError(t, err)
	assert.Equal(t, []byte("a\tb\\cA"), sep.literal)

	sep, err = ParseSeparator(`\0`)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, sep.literal)
}

func TestParseSeparator_Bad(t *testing.T) {
	for _, spec := range []string{"", `\q`, `\x4`, `\xzz`, `bad\`, "re:(", "re:a*"} {
		_, err := ParseSeparator(spec)
		assert.Equal(t, ErrBadSeparator, errors.Cause(err), spec)
	}
}

func TestSplitter_Literal(t *testing.T) {
	records := collect(t, "alpha beta\ngamma alpha\n", `\n`, 0)
	require.Len(t, records, 2)
	assert.Equal(t, Record{Index: 0, Start: 0, End: 10, Data: []byte("alpha beta")}, records[0])
	assert.Equal(t, Record{Index: 1, Start: 11, End: 22, Data: []byte("gamma alpha")}, records[1])
}

func TestSplitter_TrailingPartialRecord(t *testing.T) {
	records := collect(t, "one\ntwo", `\n`, 0)
	require.Len(t, records, 2)
	assert.Equal(t, []byte("two"), records[1].Data)
	assert.Equal(t, int64(4), records[1].Start)
	assert.Equal(t, int64(7), records[1].End)
}

func TestSplitter_EmptyRecords(t *testing.T) {
	records := collect(t, "a\n\nb", `\n`, 0)
	require.Len(t, records, 3)
	assert.Equal(t, records[1].Start, records[1].End)
	assert.Empty(t, records[1].Data)
	assert.Equal(t, []byte("b"), records[2].Data)
}

func TestSplitter_LiteralSpansChunkBoundary(t *testing.T) {
	// a two-byte separator straddling the 8-byte read chunk
	input := "1234567" + "::" + "abc"
	records := collect(t, input, "::", 8)
	require.Len(t, records, 2)
	assert.Equal(t, []byte("1234567"), records[0].Data)
	assert.Equal(t, []byte("abc"), records[1].Data)
}

func TestSplitter_RegexSpansChunkBoundary(t *testing.T) {
	// "-----" separator straddles the 64-byte chunk edge
	left := strings.Repeat("x", 62)
	input := left + "-----" + strings.Repeat("y", 10) + "---" + "tail"
	records := collect(t, input, "re:---+", 64)

	reference := regexp.MustCompile("---+").Split(input, -1)
	require.Len(t, records, len(reference))
	for i, want := range reference {
		assert.Equal(t, []byte(want), records[i].Data, "record %d", i)
	}
}

func TestSplitter_RegexMatchesWholeRun(t *testing.T) {
	// the full separator run is consumed even when it ends a chunk
	records := collect(t, "aa----bb", "re:-+", 6)
	require.Len(t, records, 2)
	assert.Equal(t, []byte("aa"), records[0].Data)
	assert.Equal(t, []byte("bb"), records[1].Data)
	assert.Equal(t, int64(6), records[1].Start)
}

func TestSplitter_RegexRunAtEOF(t *testing.T) {
	records := collect(t, "aa----", "re:-+", 0)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("aa"), records[0].Data)
}

func TestSplitter_OffsetsMatchSingleBufferReference(t *testing.T) {
	input := "alpha--beta----gamma--"
	records := collect(t, input, "re:-+", 4)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, []byte(input[rec.Start:rec.End]), rec.Data)
	}
}

func TestSplitter_LargeRecordAcrossManyChunks(t *testing.T) {
	big := bytes.Repeat([]byte("z"), 10000)
	input := string(big) + "\nrest"
	records := collect(t, input, `\n`, 512)
	require.Len(t, records, 2)
	assert.Equal(t, big, records[0].Data)
	assert.Equal(t, int64(0), records[0].Start)
	assert.Equal(t, int64(10000), records[0].End)
}
