// Package token extracts index terms from record bytes. A term is a
// maximal run of ASCII alphanumerics, lowercased; anything else,
// including invalid UTF-8, separates runs.
package token

// MaxLen caps the stored length of a single term. Longer runs are
// truncated, which keeps pathological inputs from bloating the dictionary.
const MaxLen = 255

// Fields returns the lowercased maximal ASCII alphanumeric runs in data,
// in order, duplicates included.
func Fields(data []byte) []string {
	var terms []string
	scan(data, func(term string) {
		terms = append(terms, term)
	})
	return terms
}

// Unique returns the terms of one record deduplicated in first-occurrence
// order, plus the total number of runs. Each term contributes at most one
// posting per record.
func Unique(data []byte) ([]string, int) {
	var terms []string
	seen := make(map[string]struct{})
	total := 0
	scan(data, func(term string) {
		total++
		if _, ok := seen[term]; !ok {
			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	})
	return terms, total
}

func scan(data []byte, emit func(string)) {
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		run := data[start:end]
		if len(run) > MaxLen {
			run = run[:MaxLen]
		}
		emit(lower(run))
		start = -1
	}
	for i, b := range data {
		if isAlnum(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func lower(run []byte) string {
	out := make([]byte, len(run))
	for i, b := range run {
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		out[i] = b
	}
	return string(out)
}

// Normalize lowercases a query term the same way Fields lowercases runs.
func Normalize(term string) string {
	return string(lower([]byte(term)))
}
