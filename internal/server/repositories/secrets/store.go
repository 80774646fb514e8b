// Package secrets keeps per-account secret blobs, state records and
// password history as owner-only files in one directory.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/filex"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/google/uuid"
)

const (
	filePerm = 0o600
	dirPerm  = 0o700

	stateSuffix   = ".state"
	historySuffix = ".history"
)

// Store resolves account secret files under a single directory.
//
// The store holds no lock of its own. Writers to the same account are
// serialized by the directory lock held around the record update that
// triggers them.
type Store struct {
	dir string
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if _, err := filex.EnsureDir(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store lives in.
func (s *Store) Dir() string { return s.dir }

// Location is a resolved secret file. State and history files are its
// siblings.
type Location struct {
	Path string
	// Legacy is set when the file is keyed by account name.
	Legacy bool
}

// StatePath is the sibling file holding AccountState.
func (l Location) StatePath() string { return l.Path + stateSuffix }

// HistoryPath is the sibling file holding password history.
func (l Location) HistoryPath() string { return l.Path + historySuffix }

// guidPath returns the identifier-keyed path, or "" when the account has no
// usable GeneratedUID.
func (s *Store) guidPath(acct *models.Account) string {
	if acct.GUID == "" {
		return ""
	}
	id, err := uuid.Parse(acct.GUID)
	if err != nil {
		return ""
	}
	return filepath.Join(s.dir, strings.ToUpper(id.String()))
}

func (s *Store) namePath(acct *models.Account) (string, error) {
	name := acct.Name
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: account name %q cannot name a secret file", common.ErrInvalidInput, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Resolve finds the secret file for acct. The identifier-keyed path wins
// when it exists. Otherwise an existing name-keyed file is used, flagged
// Legacy when the account has an identifier to migrate to. When neither
// exists, the path a Write would create is returned.
func (s *Store) Resolve(acct *models.Account) (Location, error) {
	gp := s.guidPath(acct)
	if gp != "" && exists(gp) {
		return Location{Path: gp}, nil
	}
	np, err := s.namePath(acct)
	if err == nil && exists(np) {
		return Location{Path: np, Legacy: gp != ""}, nil
	}
	if gp != "" {
		return Location{Path: gp}, nil
	}
	if err != nil {
		return Location{}, err
	}
	return Location{Path: np}, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Read loads the account's blob. legacy reports that the blob is in a short
// format or stored under the account name, and should be rewritten through
// MigrateIfNeeded on the next successful verification. A missing file is
// common.ErrNotFound.
func (s *Store) Read(acct *models.Account) (blob *cryptox.Blob, legacy bool, err error) {
	loc, err := s.Resolve(acct)
	if err != nil {
		return nil, false, err
	}
	text, err := os.ReadFile(loc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, common.ErrNotFound
		}
		return nil, false, fmt.Errorf("%w: read secret: %w", common.ErrStorage, err)
	}
	defer common.WipeByteArray(text)

	blob, err = cryptox.DecodeBlob(text)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return blob, blob.IsLegacy() || loc.Legacy, nil
}

// Write replaces the account's blob atomically, always in the full format
// and under the identifier-keyed path when the account has one. A
// name-keyed predecessor has its state and history moved over and is then
// shredded.
func (s *Store) Write(acct *models.Account, blob *cryptox.Blob) error {
	prev, err := s.Resolve(acct)
	if err != nil {
		return err
	}
	path := prev.Path
	if prev.Legacy {
		path = s.guidPath(acct)
	}

	text := blob.Encode()
	defer common.WipeByteArray(text)
	if err := filex.WriteFileAtomic(path, text, filePerm); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	if prev.Legacy {
		cur := Location{Path: path}
		for _, pair := range [][2]string{
			{prev.StatePath(), cur.StatePath()},
			{prev.HistoryPath(), cur.HistoryPath()},
		} {
			if err := copyFile(pair[0], pair[1]); err != nil {
				return err
			}
		}
		return s.shredLocation(Location{Path: prev.Path})
	}
	return nil
}

// MigrateIfNeeded rewrites blob when dirty (an upgrade filled new slots) or
// when it still lives under the account name. It reports whether anything
// was written.
func (s *Store) MigrateIfNeeded(acct *models.Account, blob *cryptox.Blob, dirty bool) (bool, error) {
	loc, err := s.Resolve(acct)
	if err != nil {
		return false, err
	}
	if !dirty && !loc.Legacy && !blob.IsLegacy() {
		return false, nil
	}
	if err := s.Write(acct, blob); err != nil {
		return false, err
	}
	return true, nil
}

func copyFile(from, to string) error {
	data, err := os.ReadFile(from)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	defer common.WipeByteArray(data)
	if err := filex.WriteFileAtomic(to, data, filePerm); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}

// Delete shreds the secret, state and history files of acct, under both
// the identifier and the name key.
func (s *Store) Delete(acct *models.Account) error {
	var locs []Location
	if gp := s.guidPath(acct); gp != "" {
		locs = append(locs, Location{Path: gp})
	}
	if np, err := s.namePath(acct); err == nil {
		locs = append(locs, Location{Path: np})
	}
	for _, l := range locs {
		if err := s.shredLocation(l); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) shredLocation(l Location) error {
	for _, p := range []string{l.Path, l.StatePath(), l.HistoryPath()} {
		if err := filex.Shred(p); err != nil {
			return fmt.Errorf("%w: %w", common.ErrStorage, err)
		}
	}
	return nil
}
