package codec

import (
	"bytes"
	"compress/bzip2"
	"encoding/ascii85"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupported is returned when an encoding tag is not in the registry.
	ErrUnsupported = errors.New("unsupported encoding")

	// ErrDecode is the cause of any failure while decoding a malformed stream.
	// Output produced before the failing frame remains readable.
	ErrDecode = errors.New("malformed input")
)

// Decoder is a sequential reader over the decoded byte stream. Decoded
// reports how many decoded bytes have been emitted so far, which is the
// coordinate space all record offsets are measured in.
type Decoder interface {
	io.Reader

	// Decoded returns the number of decoded bytes read so far.
	Decoded() int64
}

// Kind identifies one of the known codec families.
type Kind int

const (
	None Kind = iota
	Gzip
	Zlib
	Bzip2
	Brotli
	Base64
	Ascii85
	Hex
	Rot
	Caesar
	Uuencode
	Xxencode
	Zip
	Tar
)

// Codec describes a resolved encoding. Shift is only meaningful for the
// Rot and Caesar kinds.
type Codec struct {
	Kind      Kind
	Name      string
	Streaming bool
	Shift     int
}

// Resolve looks up an encoding tag and returns its codec descriptor.
// Tags are case-insensitive. Unknown tags fail with ErrUnsupported.
func Resolve(tag string) (*Codec, error) {
	name := strings.ToLower(strings.TrimSpace(tag))
	switch name {
	case "", "none":
		return &Codec{Kind: None, Name: "none", Streaming: true}, nil
	case "gzip", "gz":
		return &Codec{Kind: Gzip, Name: "gzip", Streaming: true}, nil
	case "zlib":
		return &Codec{Kind: Zlib, Name: "zlib", Streaming: true}, nil
	case "bzip2", "bz2":
		return &Codec{Kind: Bzip2, Name: "bzip2", Streaming: true}, nil
	case "brotli":
		return &Codec{Kind: Brotli, Name: "brotli", Streaming: true}, nil
	case "base64":
		return &Codec{Kind: Base64, Name: "base64", Streaming: true}, nil
	case "ascii85", "a85":
		return &Codec{Kind: Ascii85, Name: "ascii85", Streaming: true}, nil
	case "hex", "hexadecimal", "base16":
		return &Codec{Kind: Hex, Name: "hex", Streaming: true}, nil
	case "uuencode", "uu":
		return &Codec{Kind: Uuencode, Name: "uuencode", Streaming: true}, nil
	case "xxencode", "xx":
		return &Codec{Kind: Xxencode, Name: "xxencode", Streaming: true}, nil
	case "zip":
		return &Codec{Kind: Zip, Name: "zip", Streaming: false}, nil
	case "tar":
		return &Codec{Kind: Tar, Name: "tar", Streaming: true}, nil
	}
	if rest, ok := cutPrefix(name, "rot"); ok {
		shift, err := parseShift(rest, 13)
		if err != nil {
			return nil, err
		}
		shift = ((shift % 26) + 26) % 26
		return &Codec{Kind: Rot, Name: "rot:" + strconv.Itoa(shift), Streaming: true, Shift: shift}, nil
	}
	if rest, ok := cutPrefix(name, "caesar"); ok {
		shift, err := parseShift(rest, 3)
		if err != nil {
			return nil, err
		}
		if shift < -24 || shift > 24 {
			return nil, errors.Wrapf(ErrUnsupported, "caesar shift %d out of range [-24, 24]", shift)
		}
		return &Codec{Kind: Caesar, Name: "caesar:" + strconv.Itoa(shift), Streaming: true, Shift: shift}, nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "unknown encoding tag %q", tag)
}

// parseShift parses the parameter of a rot/caesar tag. The empty string
// means the default. Both "rot:7" and the legacy "rot7" form are accepted.
func parseShift(rest string, def int) (int, error) {
	if rest == "" {
		return def, nil
	}
	rest = strings.TrimPrefix(rest, ":")
	shift, err := strconv.Atoi(rest)
	if err != nil {
		return 0, errors.Wrapf(ErrUnsupported, "invalid shift %q", rest)
	}
	return shift, nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

// NewDecoder wraps an encoded byte stream in the decoder for this codec.
// Non-streaming codecs buffer the whole input in memory; callers must
// consult Streaming before choosing a strategy for large inputs.
func (c *Codec) NewDecoder(r io.Reader) (Decoder, error) {
	switch c.Kind {
	case None:
		return newCountingReader(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(ErrDecode, "gzip: %v", err)
		}
		return newCountingReader(zr), nil
	case Zlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(ErrDecode, "zlib: %v", err)
		}
		return newCountingReader(zr), nil
	case Bzip2:
		return newCountingReader(bzip2.NewReader(r)), nil
	case Brotli:
		return newCountingReader(brotli.NewReader(r)), nil
	case Base64:
		return newCountingReader(base64.NewDecoder(base64.StdEncoding, stripSpace(r))), nil
	case Ascii85:
		return newCountingReader(ascii85.NewDecoder(r)), nil
	case Hex:
		return newCountingReader(hex.NewDecoder(stripSpace(r))), nil
	case Rot:
		return newCountingReader(&rotReader{r: r, shift: c.Shift}), nil
	case Caesar:
		return newCountingReader(&rotReader{r: r, shift: -c.Shift}), nil
	case Uuencode:
		return newCountingReader(newLineReader(r, decodeUuLine)), nil
	case Xxencode:
		return newCountingReader(newLineReader(r, decodeXxLine)), nil
	case Zip:
		return newZipDecoder(r)
	case Tar:
		return newTarDecoder(r), nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "no decoder for kind %d", c.Kind)
}

// countingReader implements the Decoder contract on top of any reader.
// Errors other than EOF are tagged with ErrDecode and the decoded offset
// at which the stream failed.
type countingReader struct {
	r io.Reader
	n int64
}

func newCountingReader(r io.Reader) *countingReader {
	return &countingReader{r: r}
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	if err != nil && err != io.EOF {
		if errors.Cause(err) != ErrDecode {
			err = errors.Wrapf(ErrDecode, "at decoded byte %d: %v", r.n, err)
		}
	}
	return n, err
}

func (r *countingReader) Decoded() int64 {
	return r.n
}

// stripSpace removes ASCII whitespace from a textual encoding before it
// reaches the decoder.
type spaceStripper struct {
	r io.Reader
}

func stripSpace(r io.Reader) io.Reader {
	return &spaceStripper{r: r}
}

func (s *spaceStripper) Read(p []byte) (int, error) {
	for {
		n, err := s.r.Read(p)
		kept := 0
		for _, b := range p[:n] {
			switch b {
			case ' ', '\t', '\r', '\n', '\v', '\f':
			default:
				p[kept] = b
				kept++
			}
		}
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}

// rotReader rotates ASCII letters by shift positions, leaving all other
// bytes untouched. A negative shift rotates left.
type rotReader struct {
	r     io.Reader
	shift int
}

func (r *rotReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	for i, b := range p[:n] {
		p[i] = rotateByte(b, r.shift)
	}
	return n, err
}

func rotateByte(b byte, shift int) byte {
	switch {
	case b >= 'A' && b <= 'Z':
		return byte((((int(b-'A')+shift)%26)+26)%26) + 'A'
	case b >= 'a' && b <= 'z':
		return byte((((int(b-'a')+shift)%26)+26)%26) + 'a'
	}
	return b
}

func rotate(data []byte, shift int) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = rotateByte(b, shift)
	}
	return out
}

// DecodeAll fully decodes data in memory. It is used by the generator and
// by tests; the import and search paths always stream.
func (c *Codec) DecodeAll(data []byte) ([]byte, error) {
	d, err := c.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(d)
}
