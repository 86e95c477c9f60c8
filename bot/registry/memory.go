package registry

import (
	"context"
	"sync"
)

type memGroup struct {
	name    string
	members []int64
	present map[int64]struct{}
}

type optKey struct {
	chatID int64
	userID int64
}

// Memory is an in-process Registry used for tests and the memory storage
// driver. Groups keep creation order, members keep join order.
type Memory struct {
	mu      sync.Mutex
	limit   int
	groups  map[int64][]*memGroup
	optouts map[optKey]struct{}
}

// NewMemory returns an empty in-memory registry. A non-positive limit
// falls back to DefaultGroupLimit.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultGroupLimit
	}
	return &Memory{
		limit:   limit,
		groups:  make(map[int64][]*memGroup),
		optouts: make(map[optKey]struct{}),
	}
}

func (m *Memory) find(chatID int64, name string) *memGroup {
	for _, g := range m.groups[chatID] {
		if g.name == name {
			return g
		}
	}
	return nil
}

func (m *Memory) CreateGroup(_ context.Context, chatID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.find(chatID, name) != nil {
		return ErrGroupExists
	}
	if len(m.groups[chatID]) >= m.limit {
		return ErrGroupLimit
	}
	m.groups[chatID] = append(m.groups[chatID], &memGroup{
		name:    name,
		present: make(map[int64]struct{}),
	})
	return nil
}

func (m *Memory) DeleteGroup(_ context.Context, chatID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.groups[chatID]
	for i, g := range list {
		if g.name == name {
			m.groups[chatID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrGroupNotFound
}

func (m *Memory) ListGroups(_ context.Context, chatID int64) ([]GroupInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.groups[chatID]
	infos := make([]GroupInfo, 0, len(list))
	for _, g := range list {
		infos = append(infos, GroupInfo{Name: g.name, MemberCount: len(g.members)})
	}
	return infos, nil
}

func (m *Memory) AddMember(_ context.Context, chatID int64, name string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.find(chatID, name)
	if g == nil {
		return ErrGroupNotFound
	}
	if _, ok := g.present[userID]; ok {
		return ErrAlreadyMember
	}
	g.present[userID] = struct{}{}
	g.members = append(g.members, userID)
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, chatID int64, name string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.find(chatID, name)
	if g == nil {
		return ErrGroupNotFound
	}
	if _, ok := g.present[userID]; !ok {
		return ErrNotMember
	}
	delete(g.present, userID)
	for i, id := range g.members {
		if id == userID {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) GetMembers(_ context.Context, chatID int64, name string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.find(chatID, name)
	if g == nil {
		return nil, ErrGroupNotFound
	}
	out := make([]int64, len(g.members))
	copy(out, g.members)
	return out, nil
}

func (m *Memory) SetOptOut(_ context.Context, chatID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optouts[optKey{chatID, userID}] = struct{}{}
	return nil
}

func (m *Memory) ClearOptOut(_ context.Context, chatID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.optouts, optKey{chatID, userID})
	return nil
}

func (m *Memory) IsOptOut(_ context.Context, chatID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.optouts[optKey{chatID, userID}]
	return ok, nil
}
