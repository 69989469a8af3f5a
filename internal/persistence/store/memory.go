package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps everything in process memory. It backs tests and the
// server's -db=:mem: mode.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]Profile
	global   *GlobalState
	imports  map[string]int

	// Fail, when set, is returned by every call. Tests use it to simulate an
	// unavailable backend.
	Fail error
}

var _ Store = (*MemoryStore)(nil)

func NewMemory() *MemoryStore {
	return &MemoryStore{profiles: map[string]Profile{}, imports: map[string]int{}}
}

func (m *MemoryStore) SetFail(err error) {
	m.mu.Lock()
	m.Fail = err
	m.mu.Unlock()
}

func (m *MemoryStore) GetProfile(_ context.Context, identity string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return Profile{}, m.Fail
	}
	p, ok := m.profiles[identity]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) GetOrCreateProfile(_ context.Context, identity, day string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return Profile{}, m.Fail
	}
	p, ok := m.profiles[identity]
	if !ok {
		p = Profile{Identity: identity, LastResetDate: day}
	}
	if p.LastResetDate != day {
		p.TodayClicks = 0
		p.LastResetDate = day
	}
	m.profiles[identity] = p
	return p, nil
}

func (m *MemoryStore) IncrementProfile(_ context.Context, identity string, d Delta, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if d.IsZero() {
		return nil
	}
	p, ok := m.profiles[identity]
	if !ok {
		p = Profile{Identity: identity}
	}
	p.Clicks += d.Clicks
	p.Coins += d.Coins
	p.Shards += d.Shards
	p.Collected += d.Collected
	if p.LastResetDate == day {
		p.TodayClicks += d.TodayClicks
	} else {
		p.TodayClicks = d.TodayClicks
	}
	p.LastResetDate = day
	m.profiles[identity] = p
	return nil
}

func (m *MemoryStore) FlushProfile(_ context.Context, in Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.mergeLocked(in)
	return nil
}

func (m *MemoryStore) mergeLocked(in Profile) {
	p, ok := m.profiles[in.Identity]
	if !ok {
		m.profiles[in.Identity] = in
		return
	}
	if in.Name != "" {
		p.Name = in.Name
	}
	p.Clicks = max(p.Clicks, in.Clicks)
	p.Coins = max(p.Coins, in.Coins)
	p.Shards = max(p.Shards, in.Shards)
	p.Collected = max(p.Collected, in.Collected)
	switch {
	case in.LastResetDate == p.LastResetDate:
		p.TodayClicks = max(p.TodayClicks, in.TodayClicks)
	case in.LastResetDate > p.LastResetDate:
		p.TodayClicks = in.TodayClicks
		p.LastResetDate = in.LastResetDate
	}
	m.profiles[in.Identity] = p
}

func (m *MemoryStore) SetDisplayName(_ context.Context, identity, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	p, ok := m.profiles[identity]
	if !ok {
		p = Profile{Identity: identity}
	}
	p.Name = name
	m.profiles[identity] = p
	return nil
}

func (m *MemoryStore) TopProfiles(_ context.Context, n int) ([]Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	var out []Profile
	for _, p := range m.profiles {
		if p.Clicks > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clicks != out[j].Clicks {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].Identity < out[j].Identity
	})
	if n < len(out) {
		out = out[:max(n, 0)]
	}
	return out, nil
}

func (m *MemoryStore) ResetDailyQuotas(_ context.Context, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for id, p := range m.profiles {
		if p.LastResetDate != day {
			p.TodayClicks = 0
			p.LastResetDate = day
			m.profiles[id] = p
		}
	}
	return nil
}

func (m *MemoryStore) ResetScores(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for id, p := range m.profiles {
		p.Clicks, p.Coins, p.Shards, p.Collected = 0, 0, 0, 0
		m.profiles[id] = p
	}
	return nil
}

func (m *MemoryStore) LoadGlobal(_ context.Context, defaults GlobalState) (GlobalState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return GlobalState{}, m.Fail
	}
	if m.global == nil {
		if defaults.SchemaVersion == 0 {
			defaults.SchemaVersion = SchemaVersion
		}
		g := defaults
		m.global = &g
	}
	return *m.global, nil
}

func (m *MemoryStore) SaveGlobal(_ context.Context, g GlobalState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if g.SchemaVersion == 0 {
		g.SchemaVersion = SchemaVersion
	}
	m.global = &g
	return nil
}

func (m *MemoryStore) ImportLegacy(_ context.Context, key string, profiles []Profile, g *GlobalState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return false, m.Fail
	}
	if _, ok := m.imports[key]; ok {
		return false, nil
	}
	for _, p := range profiles {
		if p.Identity != "" {
			m.mergeLocked(p)
		}
	}
	if g != nil {
		gg := *g
		m.global = &gg
	}
	m.imports[key] = len(profiles)
	return true, nil
}

func (m *MemoryStore) Close() error { return nil }
