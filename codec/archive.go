package codec

import (
	"archive/tar"
	"bytes"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// newZipDecoder buffers the whole archive (the central directory lives at
// the end of the file, so zip cannot stream) and emits the bytes of the
// first regular member.
func newZipDecoder(r io.Reader) (Decoder, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "zip: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "zip: %v", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(ErrDecode, "zip: open member %q: %v", f.Name, err)
		}
		return newCountingReader(rc), nil
	}
	return nil, errors.Wrap(ErrDecode, "zip: archive has no regular members")
}

// tarDecoder streams the first regular member of a tar archive and
// reports EOF once that member is exhausted.
type tarDecoder struct {
	tr      *tar.Reader
	started bool
	done    bool
}

func newTarDecoder(r io.Reader) Decoder {
	return newCountingReader(&tarDecoder{tr: tar.NewReader(r)})
}

func (d *tarDecoder) Read(p []byte) (int, error) {
	if d.done {
		return 0, io.EOF
	}
	if !d.started {
		for {
			hdr, err := d.tr.Next()
			if err == io.EOF {
				d.done = true
				return 0, errors.Wrap(ErrDecode, "tar: archive has no regular members")
			}
			if err != nil {
				d.done = true
				return 0, errors.Wrapf(ErrDecode, "tar: %v", err)
			}
			if hdr.Typeflag == tar.TypeReg {
				d.started = true
				break
			}
		}
	}
	n, err := d.tr.Read(p)
	if err == io.EOF {
		d.done = true
	}
	return n, err
}
