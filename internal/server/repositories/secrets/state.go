package secrets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/filex"
	"github.com/dmitrijs2005/credengine/internal/server/models"
)

const (
	stateMagic   = "CSTA"
	stateVersion = 1
	stateSize    = 36

	flagNewPasswordRequired = 1 << 0
	flagDisabled            = 1 << 1
)

// MarshalState encodes st in the fixed 36-byte state layout.
func MarshalState(st models.AccountState) []byte {
	buf := make([]byte, stateSize)
	copy(buf[0:4], stateMagic)
	buf[4] = stateVersion
	var flags byte
	if st.NewPasswordRequired {
		flags |= flagNewPasswordRequired
	}
	if st.Disabled {
		flags |= flagDisabled
	}
	buf[5] = flags
	failed := st.FailedLoginAttempts
	if failed < 0 {
		failed = 0
	}
	binary.BigEndian.PutUint32(buf[8:12], uint32(failed))
	binary.BigEndian.PutUint64(buf[12:20], uint64(unixOrZero(st.LastLoginDate)))
	binary.BigEndian.PutUint64(buf[20:28], uint64(unixOrZero(st.ModDateOfPassword)))
	binary.BigEndian.PutUint64(buf[28:36], uint64(unixOrZero(st.LastFailedLoginDate)))
	return buf
}

// UnmarshalState decodes the fixed state layout.
func UnmarshalState(buf []byte) (models.AccountState, error) {
	var st models.AccountState
	if len(buf) != stateSize || string(buf[0:4]) != stateMagic {
		return st, fmt.Errorf("%w: malformed state record", common.ErrStorage)
	}
	if buf[4] != stateVersion {
		return st, fmt.Errorf("%w: unsupported state version %d", common.ErrStorage, buf[4])
	}
	st.NewPasswordRequired = buf[5]&flagNewPasswordRequired != 0
	st.Disabled = buf[5]&flagDisabled != 0
	st.FailedLoginAttempts = int(binary.BigEndian.Uint32(buf[8:12]))
	st.LastLoginDate = timeOrZero(int64(binary.BigEndian.Uint64(buf[12:20])))
	st.ModDateOfPassword = timeOrZero(int64(binary.BigEndian.Uint64(buf[20:28])))
	st.LastFailedLoginDate = timeOrZero(int64(binary.BigEndian.Uint64(buf[28:36])))
	return st, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// ReadState loads the state record of acct. A missing file yields a zero
// state; the file is created by the first WriteState.
func (s *Store) ReadState(acct *models.Account) (models.AccountState, error) {
	loc, err := s.Resolve(acct)
	if err != nil {
		return models.AccountState{}, err
	}
	buf, err := os.ReadFile(loc.StatePath())
	if errors.Is(err, fs.ErrNotExist) {
		return models.AccountState{}, nil
	}
	if err != nil {
		return models.AccountState{}, fmt.Errorf("%w: read state: %w", common.ErrStorage, err)
	}
	return UnmarshalState(buf)
}

// WriteState replaces the state record next to the account's secret.
func (s *Store) WriteState(acct *models.Account, st models.AccountState) error {
	loc, err := s.Resolve(acct)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(loc.StatePath(), MarshalState(st), filePerm); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return nil
}
