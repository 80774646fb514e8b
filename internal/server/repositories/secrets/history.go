package secrets

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/filex"
	"github.com/dmitrijs2005/credengine/internal/server/models"
)

// MaxHistory is the deepest password history kept.
const MaxHistory = 15

// ReadHistory returns the salted SHA1 entries of previous passwords, newest
// first. The caller should wipe the entries.
func (s *Store) ReadHistory(acct *models.Account) ([][]byte, error) {
	loc, err := s.Resolve(acct)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(loc.HistoryPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %w", common.ErrStorage, err)
	}
	defer common.WipeByteArray(data)

	var out [][]byte
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		entry := make([]byte, hex.DecodedLen(len(line)))
		if _, err := hex.Decode(entry, line); err != nil || len(entry) != cryptox.SaltedSHA1Size {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// PushHistory prepends entry and keeps at most depth entries. A depth of
// zero removes the history file.
func (s *Store) PushHistory(acct *models.Account, entry []byte, depth int) error {
	loc, err := s.Resolve(acct)
	if err != nil {
		return err
	}
	if depth <= 0 {
		if err := filex.Shred(loc.HistoryPath()); err != nil {
			return fmt.Errorf("%w: %w", common.ErrStorage, err)
		}
		return nil
	}
	if depth > MaxHistory {
		depth = MaxHistory
	}

	prev, err := s.ReadHistory(acct)
	if err != nil {
		return err
	}
	entries := append([][]byte{entry}, prev...)
	if len(entries) > depth {
		entries = entries[:depth]
	}

	var buf bytes.Buffer
	buf.Grow(len(entries) * (2*cryptox.SaltedSHA1Size + 1))
	for _, e := range entries {
		line := make([]byte, hex.EncodedLen(len(e)))
		hex.Encode(line, e)
		for i, c := range line {
			if c >= 'a' && c <= 'f' {
				line[i] = c - 'a' + 'A'
			}
		}
		buf.Write(line)
		buf.WriteByte('\n')
		common.WipeByteArray(line)
	}
	for _, e := range prev {
		common.WipeByteArray(e)
	}
	data := buf.Bytes()
	defer common.WipeByteArray(data)

	if err := filex.WriteFileAtomic(loc.HistoryPath(), data, filePerm); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}
