// Package gen builds test fixtures: it takes a payload from a URL, a
// file, or a deterministic generator, encodes it with a named codec, and
// repeats the encoded unit until a target size is reached.
package gen

import (
	"bytes"
	"io"
	"math/rand"
	"net/http"
	"os"

	"github.com/oarkflow/log"
	"github.com/pkg/errors"

	"github.com/mcollard0/nixIndex/codec"
)

// Options configures one generation run. Exactly one of URL and File may
// be set; with neither, a fixed-seed pseudo-random payload keeps the
// output reproducible across runs.
type Options struct {
	URL        string
	File       string
	Encoding   string
	TargetSize int64
	Output     string
}

const defaultPayloadSize = 1 << 20

// Generate writes the fixture and returns its path and final size.
func Generate(opts Options) (string, int64, error) {
	c, err := codec.Resolve(opts.Encoding)
	if err != nil {
		return "", 0, err
	}

	payload, err := loadPayload(opts)
	if err != nil {
		return "", 0, err
	}
	payload = extractArchive(payload)
	if len(payload) == 0 {
		return "", 0, errors.New("payload is empty")
	}

	unit, err := c.Encode(payload)
	if err != nil {
		return "", 0, errors.Wrapf(err, "encoding %s is not generatable", c.Name)
	}

	out, path, err := openOutput(opts.Output)
	if err != nil {
		return "", 0, err
	}
	defer out.Close()

	log.Info().
		Str("output", path).
		Str("encoding", c.Name).
		Int64("target_size", opts.TargetSize).
		Msg("generating fixture")

	var written int64
	reps := 0
	for written < opts.TargetSize || reps == 0 {
		n, err := out.Write(unit)
		written += int64(n)
		if err != nil {
			return path, written, errors.Wrap(err, "write failed")
		}
		reps++
		if reps%100 == 0 {
			log.Info().Int64("written", written).Msg("generating...")
		}
	}
	return path, written, nil
}

func loadPayload(opts Options) ([]byte, error) {
	switch {
	case opts.URL != "":
		resp, err := http.Get(opts.URL)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to download %s", opts.URL)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("failed to download %s: %s", opts.URL, resp.Status)
		}
		return io.ReadAll(resp.Body)
	case opts.File != "":
		data, err := os.ReadFile(opts.File)
		return data, errors.Wrapf(err, "failed to read %s", opts.File)
	}
	payload := make([]byte, defaultPayloadSize)
	rand.New(rand.NewSource(1)).Read(payload)
	return payload, nil
}

// extractArchive unwraps a zip or tar payload to its first regular
// member; anything else passes through untouched.
func extractArchive(data []byte) []byte {
	var tag string
	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		tag = "zip"
	case len(data) > 262 && bytes.Equal(data[257:262], []byte("ustar")):
		tag = "tar"
	default:
		return data
	}
	c, err := codec.Resolve(tag)
	if err != nil {
		return data
	}
	member, err := c.DecodeAll(data)
	if err != nil || len(member) == 0 {
		log.Warn().Str("format", tag).Msg("payload looks like an archive but did not extract; using it as-is")
		return data
	}
	log.Info().Str("format", tag).Int("bytes", len(member)).Msg("extracted first archive member")
	return member
}

func openOutput(path string) (*os.File, string, error) {
	if path != "" {
		f, err := os.Create(path)
		return f, path, errors.Wrap(err, "unable to create the output file")
	}
	f, err := os.CreateTemp("", "nixindex_*.bin")
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to create a temporary output file")
	}
	return f, f.Name(), nil
}
