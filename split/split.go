// Package split turns a decoded byte stream into records delimited by a
// literal or regular-expression separator. Offsets are measured in the
// decoded coordinate space and separators belong to no record.
package split

import (
	"bytes"
	"io"
	"regexp"

	"github.com/pkg/errors"
)

// ErrBadSeparator is the cause of any separator spec that fails to parse
// or compile.
var ErrBadSeparator = errors.New("invalid separator")

// RegexPrefix marks a separator spec as a regular expression pattern.
const RegexPrefix = "re:"

// DefaultChunkSize is used when a splitter is created with chunk size 0.
const DefaultChunkSize = 64 * 1024

// Separator is a compiled record separator.
type Separator struct {
	literal []byte
	re      *regexp.Regexp
	spec    string
}

// ParseSeparator compiles a separator spec. A spec prefixed with "re:" is
// a regular expression; anything else is a literal byte string with the
// escapes \n \t \r \0 \\ and \xNN.
func ParseSeparator(spec string) (*Separator, error) {
	if rest, ok := cutPrefix(spec, RegexPrefix); ok {
		re, err := regexp.Compile(rest)
		if err != nil {
			return nil, errors.Wrapf(ErrBadSeparator, "pattern %q: %v", rest, err)
		}
		if re.MatchString("") {
			return nil, errors.Wrapf(ErrBadSeparator, "pattern %q matches the empty string", rest)
		}
		return &Separator{re: re, spec: spec}, nil
	}
	lit, err := unescape(spec)
	if err != nil {
		return nil, err
	}
	if len(lit) == 0 {
		return nil, errors.Wrap(ErrBadSeparator, "separator is empty")
	}
	return &Separator{literal: lit, spec: spec}, nil
}

// String returns the spec as given.
func (s *Separator) String() string { return s.spec }

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

func unescape(spec string) ([]byte, error) {
	out := make([]byte, 0, len(spec))
	for i := 0; i < len(spec); i++ {
		c := spec[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(spec) {
			return nil, errors.Wrap(ErrBadSeparator, "trailing backslash")
		}
		switch spec[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case '0':
			out = append(out, 0)
		case '\\':
			out = append(out, '\\')
		case 'x':
			if i+2 >= len(spec) {
				return nil, errors.Wrap(ErrBadSeparator, "truncated \\x escape")
			}
			hi, ok1 := hexVal(spec[i+1])
			lo, ok2 := hexVal(spec[i+2])
			if !ok1 || !ok2 {
				return nil, errors.Wrapf(ErrBadSeparator, "bad \\x escape %q", spec[i+1:i+3])
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			return nil, errors.Wrapf(ErrBadSeparator, "unknown escape \\%c", spec[i])
		}
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Record is one separator-delimited byte range of the decoded stream.
// The range [Start, End) is half-open; Data holds a copy of the bytes.
type Record struct {
	Index int64
	Start int64
	End   int64
	Data  []byte
}

// Splitter reads records from a stream of unlimited length. It keeps one
// window of undelivered bytes; the window only grows to the size of the
// largest record plus one read chunk.
type Splitter struct {
	r         io.Reader
	sep       *Separator
	chunkSize int
	buf       []byte
	base      int64
	index     int64
	eof       bool
}

func New(r io.Reader, sep *Separator, chunkSize int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Splitter{r: r, sep: sep, chunkSize: chunkSize}
}

// Next returns the next record, or io.EOF after the last one. Empty
// records (adjacent separators) are returned with Start == End; a
// trailing partial record is returned only if it is non-empty.
func (s *Splitter) Next() (Record, error) {
	for {
		start, end, found := s.find()
		if found {
			return s.emit(start, end), nil
		}
		if s.eof {
			if len(s.buf) > 0 {
				return s.emit(len(s.buf), len(s.buf)), nil
			}
			return Record{}, io.EOF
		}
		if err := s.fill(); err != nil {
			return Record{}, err
		}
	}
}

// find locates the next complete separator match in the window. A regex
// match that touches the end of the window is deferred until more input
// arrives, so a separator spanning a chunk boundary still matches whole.
func (s *Splitter) find() (start, end int, found bool) {
	if s.sep.literal != nil {
		i := bytes.Index(s.buf, s.sep.literal)
		if i < 0 {
			return 0, 0, false
		}
		return i, i + len(s.sep.literal), true
	}
	loc := s.sep.re.FindIndex(s.buf)
	if loc == nil {
		return 0, 0, false
	}
	if loc[1] == len(s.buf) && !s.eof {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}

func (s *Splitter) emit(recLen, sepEnd int) Record {
	data := make([]byte, recLen)
	copy(data, s.buf[:recLen])
	rec := Record{
		Index: s.index,
		Start: s.base,
		End:   s.base + int64(recLen),
		Data:  data,
	}
	s.index++
	s.base += int64(sepEnd)
	s.buf = s.buf[:copy(s.buf, s.buf[sepEnd:])]
	return rec
}

func (s *Splitter) fill() error {
	chunk := make([]byte, s.chunkSize)
	n, err := s.r.Read(chunk)
	s.buf = append(s.buf, chunk[:n]...)
	if err == io.EOF {
		s.eof = true
		return nil
	}
	return err
}
