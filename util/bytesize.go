package util

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseSize parses a byte size with an optional K/KB/M/MB/G/GB suffix,
// case-insensitive. A bare integer means kibibytes, which is what the
// chunk-size flag has always meant. Any other suffix is rejected.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, errors.New("empty size")
	}
	cut := len(s)
	for cut > 0 && (s[cut-1] < '0' || s[cut-1] > '9') {
		cut--
	}
	number, suffix := s[:cut], s[cut:]
	n, err := strconv.ParseInt(number, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid size %q", s)
	}
	var mult int64
	switch suffix {
	case "", "K", "KB":
		mult = 1 << 10
	case "M", "MB":
		mult = 1 << 20
	case "G", "GB":
		mult = 1 << 30
	default:
		return 0, errors.Errorf("invalid size suffix %q", suffix)
	}
	if n > (1<<62)/mult {
		return 0, errors.Errorf("size %q overflows", s)
	}
	return n * mult, nil
}

// FormatSize renders a byte count the way the operator summaries print
// them, with two decimals of the largest fitting unit.
func FormatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return strconv.FormatFloat(float64(n)/(1<<30), 'f', 2, 64) + " GB"
	case n >= 1<<20:
		return strconv.FormatFloat(float64(n)/(1<<20), 'f', 2, 64) + " MB"
	case n >= 1<<10:
		return strconv.FormatFloat(float64(n)/(1<<10), 'f', 2, 64) + " KB"
	}
	return strconv.FormatInt(n, 10) + " B"
}
