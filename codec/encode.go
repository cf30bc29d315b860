package codec

import (
	"archive/tar"
	"bytes"
	"encoding/ascii85"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// Encode produces one encoded unit of data, the inverse of NewDecoder.
// The generator repeats encoded units to reach a target size; for the
// self-delimiting codecs (gzip, archives, line-framed text) concatenated
// units still decode as a single stream of the first unit or of all
// members, which the import path handles.
func (c *Codec) Encode(data []byte) ([]byte, error) {
	switch c.Kind {
	case None:
		return data, nil
	case Gzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Zlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Brotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Base64:
		out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
		base64.StdEncoding.Encode(out, data)
		return out, nil
	case Ascii85:
		out := make([]byte, ascii85.MaxEncodedLen(len(data)))
		n := ascii85.Encode(out, data)
		return out[:n], nil
	case Hex:
		out := make([]byte, hex.EncodedLen(len(data)))
		hex.Encode(out, data)
		return out, nil
	case Rot:
		return rotate(data, -c.Shift), nil
	case Caesar:
		return rotate(data, c.Shift), nil
	case Uuencode:
		return encodeLines(data, func(chunk []byte) string {
			return encodeSextetLine(chunk, func(v int) byte { return byte(32 + v) }, byte(32+len(chunk)))
		}), nil
	case Xxencode:
		return encodeLines(data, func(chunk []byte) string {
			return encodeSextetLine(chunk, func(v int) byte { return xxAlphabet[v] }, xxAlphabet[len(chunk)])
		}), nil
	case Zip:
		var buf bytes.Buffer
		w := zip.NewWriter(&buf)
		f, err := w.Create("data")
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Tar:
		var buf bytes.Buffer
		w := tar.NewWriter(&buf)
		hdr := &tar.Header{Name: "data", Mode: 0644, Size: int64(len(data)), Typeflag: tar.TypeReg}
		if err := w.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "no encoder for %s", c.Name)
}

func encodeLines(data []byte, encodeLine func(chunk []byte) string) []byte {
	var sb strings.Builder
	sb.WriteString("begin 644 data\n")
	for off := 0; off < len(data); off += 45 {
		end := off + 45
		if end > len(data) {
			end = len(data)
		}
		sb.WriteString(encodeLine(data[off:end]))
		sb.WriteByte('\n')
	}
	sb.WriteString("end\n")
	return []byte(sb.String())
}

func encodeSextetLine(chunk []byte, char func(int) byte, length byte) string {
	var sb strings.Builder
	sb.WriteByte(length)
	for i := 0; i < len(chunk); i += 3 {
		var b1, b2, b3 byte
		b1 = chunk[i]
		if i+1 < len(chunk) {
			b2 = chunk[i+1]
		}
		if i+2 < len(chunk) {
			b3 = chunk[i+2]
		}
		sb.WriteByte(char(int(b1 >> 2)))
		sb.WriteByte(char(int(b1<<4|b2>>4) & 0x3f))
		sb.WriteByte(char(int(b2<<2|b3>>6) & 0x3f))
		sb.WriteByte(char(int(b3) & 0x3f))
	}
	return sb.String()
}
