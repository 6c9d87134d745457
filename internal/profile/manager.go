package profile

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ChangeFunc is called after the active profile changes.
type ChangeFunc func(p *Profile)

// Manager holds the known profiles and the active one. Readers get the
// active profile with a single atomic load.
type Manager struct {
	mu        sync.RWMutex
	profiles  map[string]*Profile
	listeners []ChangeFunc

	current atomic.Pointer[Profile]

	logger zerolog.Logger
}

// NewManager creates a manager from a profile list. An empty list yields
// the built-in default profile. An empty active name selects the default
// profile if present, otherwise the first profile by name.
func NewManager(profiles []Profile, active string, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{logger: logger}
	if err := m.Replace(profiles, active); err != nil {
		return nil, err
	}
	return m, nil
}

// Current returns the active profile. The returned value must not be
// modified.
func (m *Manager) Current() *Profile {
	return m.current.Load()
}

// Get returns a profile by name.
func (m *Manager) Get(name string) (*Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[name]
	return p, ok
}

// List returns all profiles sorted by name.
func (m *Manager) List() []*Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Switch activates a profile by name.
func (m *Manager) Switch(name string) error {
	m.mu.RLock()
	p, ok := m.profiles[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	prev := m.current.Swap(p)
	if prev != p {
		m.logger.Info().Str("profile", name).Msg("active profile switched")
		m.notify(p)
	}
	return nil
}

// Replace installs a new profile set. The active profile keeps its name if
// the new set still contains it; otherwise active is used, then the
// default fallback.
func (m *Manager) Replace(profiles []Profile, active string) error {
	if len(profiles) == 0 {
		profiles = []Profile{Default()}
	}

	next := make(map[string]*Profile, len(profiles))
	for i := range profiles {
		p := profiles[i].WithDefaults()
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := next[p.Name]; dup {
			return fmt.Errorf("%w: duplicate profile name %s", ErrInvalidProfile, p.Name)
		}
		next[p.Name] = &p
	}

	var selected *Profile
	if cur := m.current.Load(); cur != nil {
		selected = next[cur.Name]
	}
	if selected == nil && active != "" {
		p, ok := next[active]
		if !ok {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, active)
		}
		selected = p
	}
	if selected == nil {
		selected = fallback(next)
	}

	m.mu.Lock()
	m.profiles = next
	m.mu.Unlock()

	m.current.Store(selected)
	m.logger.Info().
		Int("profiles", len(next)).
		Str("active", selected.Name).
		Msg("profiles loaded")
	m.notify(selected)
	return nil
}

// OnChange registers a listener for active profile changes.
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) notify(p *Profile) {
	m.mu.RLock()
	listeners := make([]ChangeFunc, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(p)
	}
}

func fallback(profiles map[string]*Profile) *Profile {
	if p, ok := profiles[DefaultName]; ok {
		return p
	}
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return profiles[names[0]]
}
