package directory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/google/uuid"
)

type memRecord struct {
	name  string
	attrs map[string][]string
}

// MemoryRepository is a directory kept in process memory. It backs the
// server when no database is configured, and the tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*memRecord // by handle
	byName  map[string]string
	groups  map[string]map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: map[string]*memRecord{},
		byName:  map[string]string{},
		groups:  map[string]map[string]struct{}{},
	}
}

// AddAccount creates a user record with a fresh GeneratedUID and the given
// authority values, returning it.
func (m *MemoryRepository) AddAccount(name string, authority ...string) *models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle := uuid.NewString()
	guid := strings.ToUpper(uuid.NewString())
	m.records[handle] = &memRecord{
		name: name,
		attrs: map[string][]string{
			common.AttrRecordName:   {name},
			common.AttrGeneratedUID: {guid},
			common.AttrAuthority:    slices.Clone(authority),
		},
	}
	m.byName[name] = handle
	return &models.Account{Handle: handle, Name: name, GUID: guid}
}

// AddMember puts name into group.
func (m *MemoryRepository) AddMember(group, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groups[group] == nil {
		m.groups[group] = map[string]struct{}{}
	}
	m.groups[group][name] = struct{}{}
}

func (m *MemoryRepository) LookupAccount(ctx context.Context, name string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handle, ok := m.byName[name]
	if !ok {
		return nil, common.ErrNotFound
	}
	acct := &models.Account{Handle: handle, Name: name}
	if v := m.records[handle].attrs[common.AttrGeneratedUID]; len(v) > 0 {
		acct.GUID = v[0]
	}
	return acct, nil
}

func (m *MemoryRepository) ReadAttribute(ctx context.Context, handle, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[handle]
	if !ok {
		return nil, common.ErrNotFound
	}
	return append([]string{}, rec.attrs[name]...), nil
}

func (m *MemoryRepository) WriteAttribute(ctx context.Context, handle, name string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[handle]
	if !ok {
		return common.ErrNotFound
	}
	if len(values) == 0 {
		delete(rec.attrs, name)
		return nil
	}
	rec.attrs[name] = slices.Clone(values)
	return nil
}

func (m *MemoryRepository) IsMember(ctx context.Context, group, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.groups[group][name]
	return ok, nil
}
