// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dchest/safefile"
	"github.com/pkg/errors"
)

const ManifestFilename = "manifest.json"

// Manifest is the catalog's committed state. It is rewritten atomically
// after every batch flush, so a crash mid-import leaves the tables and
// the manifest describing a committed prefix.
type Manifest struct {
	CommitID       uint64 `json:"commit_id"`
	Encoding       string `json:"encoding"`
	Source         string `json:"source"`
	NumRecords     uint64 `json:"nrecords"`
	NumTokens      uint64 `json:"ntokens"`
	TokensImported uint64 `json:"ntokens_imported"`
	NumOccurrences uint64 `json:"noccurrences"`
	NextTokenID    uint64 `json:"next_token_id"`
	Acuity         int64  `json:"acuity,omitempty"`
}

// Reset clears all state for a fresh import.
func (m *Manifest) Reset() {
	*m = Manifest{NextTokenID: 1}
}

// Load reads the manifest from dir. When create is set, a missing file
// yields a fresh manifest (as after Reset), which is saved to dir.
func (m *Manifest) Load(dir string, create bool) error {
	file, err := os.Open(filepath.Join(dir, ManifestFilename))
	if err != nil {
		if os.IsNotExist(err) && create {
			m.Reset()
			return m.Save(dir)
		}
		return errors.Wrap(err, "open failed")
	}
	defer file.Close()
	err = json.NewDecoder(file).Decode(m)
	if err != nil {
		return errors.Wrap(err, "decode failed")
	}
	return nil
}

// Save writes the manifest atomically (write-then-rename).
func (m *Manifest) Save(dir string) error {
	file, err := safefile.Create(filepath.Join(dir, ManifestFilename), 0644)
	if err != nil {
		return errors.Wrap(err, "create failed")
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	err = encoder.Encode(m)
	if err != nil {
		return errors.Wrap(err, "encode failed")
	}
	return errors.Wrap(file.Commit(), "commit failed")
}
