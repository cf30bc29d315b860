package codec

import (
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// ZcatEnv names an external streaming decompressor, e.g. "zcat" or
// "/usr/bin/bzcat". When set, searches over large inputs read the decoded
// stream from the program's stdout instead of decoding in-process. The
// program is invoked with the source path as its last argument and must
// write the decoded bytes to stdout.
const ZcatEnv = "NIXINDEX_ZCAT"

// ExternalDecoder reads a decoded stream from a spawned decoder process.
// It satisfies the same contract as the in-process decoders; callers see
// it only through the Decoder interface.
type ExternalDecoder struct {
	cmd   *exec.Cmd
	out   io.ReadCloser
	n     int64
	waitE error
	done  bool
}

// ExternalCommand reports the configured external decoder command, split
// into program and leading arguments, or ok=false if none is configured.
func ExternalCommand() (prog string, args []string, ok bool) {
	raw := strings.TrimSpace(os.Getenv(ZcatEnv))
	if raw == "" {
		return "", nil, false
	}
	fields := strings.Fields(raw)
	return fields[0], fields[1:], true
}

// NewExternalDecoder spawns prog with the source path appended to args and
// streams its stdout.
func NewExternalDecoder(prog string, args []string, path string) (*ExternalDecoder, error) {
	cmd := exec.Command(prog, append(append([]string{}, args...), path)...)
	cmd.Stderr = os.Stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "external decoder pipe failed")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "external decoder %q failed to start", prog)
	}
	return &ExternalDecoder{cmd: cmd, out: out}, nil
}

func (d *ExternalDecoder) Read(p []byte) (int, error) {
	n, err := d.out.Read(p)
	d.n += int64(n)
	if err == io.EOF {
		if werr := d.wait(); werr != nil {
			err = errors.Wrapf(ErrDecode, "at decoded byte %d: %v", d.n, werr)
		}
	}
	return n, err
}

func (d *ExternalDecoder) Decoded() int64 {
	return d.n
}

// Close terminates the decoder process if it is still running.
func (d *ExternalDecoder) Close() error {
	d.out.Close()
	if !d.done {
		d.cmd.Process.Kill()
		d.wait()
	}
	return nil
}

func (d *ExternalDecoder) wait() error {
	if !d.done {
		d.waitE = d.cmd.Wait()
		d.done = true
	}
	return d.waitE
}
