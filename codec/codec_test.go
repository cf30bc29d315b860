package codec

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_KnownTags(t *testing.T) {
	tests := []struct {
		tag       string
		kind      Kind
		streaming bool
	}{
		{"none", None, true},
		{"gzip", Gzip, true},
		{"gz", Gzip, true},
		{"zlib", Zlib, true},
		{"bzip2", Bzip2, true},
		{"bz2", Bzip2, true},
		{"brotli", Brotli, true},
		{"base64", Base64, true},
		{"ascii85", Ascii85, true},
		{"a85", Ascii85, true},
		{"hex", Hex, true},
		{"base16", Hex, true},
		{"uuencode", Uuencode, true},
		{"xxencode", Xxencode, true},
		{"tar", Tar, true},
		{"zip", Zip, false},
	}
	for _, tt := range tests {
		c, err := Resolve(tt.tag)
		require.NoError(t, err, tt.tag)
		assert.Equal(t, tt.kind, c.Kind, tt.tag)
		assert.Equal(t, tt.streaming, c.Streaming, tt.tag)
	}
}

func TestResolve_Rot(t *testing.T) {
	c, err := Resolve("rot")
	require.NoError(t, err)
	assert.Equal(t, 13, c.Shift)

	c, err = Resolve("rot13")
	require.NoError(t, err)
	assert.Equal(t, 13, c.Shift)

	c, err = Resolve("rot:7")
	require.NoError(t, err)
	assert.Equal(t, 7, c.Shift)

	c, err = Resolve("rot:-1")
	require.NoError(t, err)
	assert.Equal(t, 25, c.Shift)
}

func TestResolve_Caesar(t *testing.T) {
	c, err := Resolve("caesar:3")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Shift)

	c, err = Resolve("caesar:-5")
	require.NoError(t, err)
	assert.Equal(t, -5, c.Shift)

	_, err = Resolve("caesar:25")
	assert.Equal(t, ErrUnsupported, errors.Cause(err))
}

func TestResolve_Unknown(t *testing.T) {
	_, err := Resolve("rsa")
	assert.Equal(t, ErrUnsupported, errors.Cause(err))
}

func decodeAll(t *testing.T, tag string, data []byte) []byte {
	c, err := Resolve(tag)
	require.NoError(t, err)
	out, err := c.DecodeAll(data)
	require.NoError(t, err)
	return out
}

func TestRoundTrip(t *testing.T) {
	payload := []byte("The quick brown fox jumps over the lazy dog 0123456789\nsecond line\n")
	tags := []string{"none", "gzip", "zlib", "brotli", "base64", "ascii85", "hex", "rot", "rot:7", "caesar:3", "caesar:-5", "uuencode", "xxencode", "zip", "tar"}
	for _, tag := range tags {
		c, err := Resolve(tag)
		require.NoError(t, err, tag)
		encoded, err := c.Encode(payload)
		require.NoError(t, err, tag)
		assert.Equal(t, payload, decodeAll(t, tag, encoded), tag)
	}
}

func TestEncode_Bzip2Unsupported(t *testing.T) {
	c, err := Resolve("bzip2")
	require.NoError(t, err)
	_, err = c.Encode([]byte("x"))
	assert.Equal(t, ErrUnsupported, errors.Cause(err))
}

func TestCaesarShiftsLetters(t *testing.T) {
	c, err := Resolve("caesar:3")
	require.NoError(t, err)
	encoded, err := c.Encode([]byte("hello world\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("khoor zruog\n"), encoded)
	assert.Equal(t, []byte("hello world\n"), decodeAll(t, "caesar:3", encoded))
}

func TestRotIsSelfInverse(t *testing.T) {
	assert.Equal(t, []byte("uryyb"), decodeAll(t, "rot13", []byte("hello")))
	assert.Equal(t, []byte("hello"), decodeAll(t, "rot13", []byte("uryyb")))
}

func TestBase64IgnoresWhitespace(t *testing.T) {
	// "hello world" split across lines
	assert.Equal(t, []byte("hello world"), decodeAll(t, "base64", []byte("aGVsb G8g\nd29y\tbGQ=\n")))
}

func TestHexIgnoresWhitespace(t *testing.T) {
	assert.Equal(t, []byte("hi"), decodeAll(t, "hex", []byte("68 69\n")))
}

func TestHex_TruncatedGroupFails(t *testing.T) {
	c, err := Resolve("hex")
	require.NoError(t, err)
	d, err := c.NewDecoder(bytes.NewReader([]byte("68696")))
	require.NoError(t, err)
	out, err := io.ReadAll(d)
	require.Error(t, err)
	assert.Equal(t, ErrDecode, errors.Cause(err))
	assert.Equal(t, []byte("hi"), out, "partial output up to the error boundary stays observable")
}

func TestGzip_MultistreamUnits(t *testing.T) {
	c, err := Resolve("gzip")
	require.NoError(t, err)
	unit, err := c.Encode([]byte("abc "))
	require.NoError(t, err)
	repeated := bytes.Repeat(unit, 3)
	assert.Equal(t, []byte("abc abc abc "), decodeAll(t, "gzip", repeated))
}

func TestZip_FirstMemberOnly(t *testing.T) {
	var buf bytes.Buffer
	writeZipMembers(t, &buf, []string{"first member", "second member"})
	assert.Equal(t, []byte("first member"), decodeAll(t, "zip", buf.Bytes()))
}

func TestTar_NoRegularMembers(t *testing.T) {
	c, err := Resolve("tar")
	require.NoError(t, err)
	d, err := c.NewDecoder(bytes.NewReader(tarWithDirOnly(t)))
	require.NoError(t, err)
	_, err = io.ReadAll(d)
	assert.Equal(t, ErrDecode, errors.Cause(err))
}

func TestDecodedPosition(t *testing.T) {
	c, err := Resolve("none")
	require.NoError(t, err)
	d, err := c.NewDecoder(bytes.NewReader([]byte("0123456789")))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(d, buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), d.Decoded())
	_, err = io.Copy(io.Discard, d)
	require.NoError(t, err)
	assert.Equal(t, int64(10), d.Decoded())
}

func writeZipMembers(t *testing.T, buf *bytes.Buffer, members []string) {
	w := zip.NewWriter(buf)
	for i, content := range members {
		f, err := w.Create(string(rune('a'+i)) + ".txt")
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func tarWithDirOnly(t *testing.T) []byte {
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	require.NoError(t, w.WriteHeader(&tar.Header{Name: "dir/", Mode: 0755, Typeflag: tar.TypeDir}))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestUuencode_SkipsFramingLines(t *testing.T) {
	c, err := Resolve("uuencode")
	require.NoError(t, err)
	encoded, err := c.Encode([]byte("hello"))
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "begin 644")
	assert.Contains(t, string(encoded), "end\n")
	assert.Equal(t, []byte("hello"), decodeAll(t, "uuencode", encoded))

	// repeated units decode to repeated payloads
	assert.Equal(t, []byte("hellohello"), decodeAll(t, "uuencode", append(encoded, encoded...)))
}
