// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hotkeys provides the keyboard shortcut dispatcher.
//
// Shortcuts are registered against a stable identifier with a key
// chord, a description, and a scope. A chord is the active modifiers in
// the fixed order ctrl, alt, shift, cmd followed by the lower-cased
// non-modifier key, joined by "+". Matching requires exact modifier-set
// equality; there is no chord-prefix matching.
//
// The service is an explicit instance, not a process-wide singleton, so
// independent surfaces (and tests) never share registration state.
package hotkeys

import (
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// SHORTCUT
// =============================================================================

// Shortcut binds a key chord to an action.
type Shortcut struct {
	// Key is the chord, e.g. "ctrl+n" or "cmd+]" or "/".
	Key string

	// Description is shown in the shortcuts help surface.
	Description string

	// Scope groups shortcuts by UI region, e.g. "Global", "Chat".
	Scope string

	// Callback runs when the chord is pressed.
	Callback func()
}

// Binding is a registered shortcut together with its identifier.
type Binding struct {
	ID string
	Shortcut
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the shortcut registry and dispatcher.
type Service struct {
	mu        sync.Mutex
	shortcuts map[string]Shortcut
	order     []string
	listeners map[int]func([]Binding)
	nextSub   int
}

// NewService creates an empty shortcut service.
func NewService() *Service {
	return &Service{
		shortcuts: make(map[string]Shortcut),
		listeners: make(map[int]func([]Binding)),
	}
}

// Register binds a shortcut to an identifier. Registering an id that
// already exists replaces the prior binding: last registration wins.
func (s *Service) Register(id string, shortcut Shortcut) {
	s.mu.Lock()
	if _, exists := s.shortcuts[id]; !exists {
		s.order = append(s.order, id)
	}
	s.shortcuts[id] = shortcut
	s.mu.Unlock()
	s.notify()
}

// Unregister removes a binding by identifier.
func (s *Service) Unregister(id string) {
	s.mu.Lock()
	if _, exists := s.shortcuts[id]; exists {
		delete(s.shortcuts, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	s.notify()
}

// =============================================================================
// DISPATCH
// =============================================================================

// Normalize builds the canonical chord string from a modifier set and a
// non-modifier key: ctrl, alt, shift, cmd in that order, then the
// lower-cased key.
func Normalize(ctrl, alt, shift, cmd bool, key string) string {
	var combo []string
	if ctrl {
		combo = append(combo, "ctrl")
	}
	if alt {
		combo = append(combo, "alt")
	}
	if shift {
		combo = append(combo, "shift")
	}
	if cmd {
		combo = append(combo, "cmd")
	}
	if key != "" {
		combo = append(combo, strings.ToLower(key))
	}
	return strings.Join(combo, "+")
}

// Handle dispatches a normalized chord to every binding whose
// configured chord matches exactly (case-insensitively). It reports
// whether at least one callback fired.
func (s *Service) Handle(chord string) bool {
	chord = strings.ToLower(chord)

	s.mu.Lock()
	var callbacks []func()
	for _, id := range s.order {
		sc := s.shortcuts[id]
		if strings.ToLower(sc.Key) == chord && sc.Callback != nil {
			callbacks = append(callbacks, sc.Callback)
		}
	}
	s.mu.Unlock()

	// Callbacks run outside the lock: they commonly re-enter the
	// service (e.g. a help toggle that re-registers bindings).
	for _, cb := range callbacks {
		cb()
	}
	return len(callbacks) > 0
}

// =============================================================================
// ENUMERATION
// =============================================================================

// Shortcuts returns all current bindings in registration order.
func (s *Service) Shortcuts() []Binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ByScope returns current bindings grouped by scope. Scopes are sorted;
// bindings within a scope keep registration order.
func (s *Service) ByScope() map[string][]Binding {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string][]Binding)
	for _, b := range s.snapshotLocked() {
		scope := b.Scope
		if scope == "" {
			scope = "Global"
		}
		groups[scope] = append(groups[scope], b)
	}
	return groups
}

// Scopes returns the sorted scope names present in the registry.
func (s *Service) Scopes() []string {
	groups := s.ByScope()
	scopes := make([]string, 0, len(groups))
	for scope := range groups {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

// Subscribe registers a listener that receives the full binding list
// now and after every change. It returns an unsubscribe function.
func (s *Service) Subscribe(fn func([]Binding)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	fn(snapshot)
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) notify() {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	fns := make([]func([]Binding), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// snapshotLocked copies the bindings in registration order. Caller
// holds s.mu.
func (s *Service) snapshotLocked() []Binding {
	out := make([]Binding, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Binding{ID: id, Shortcut: s.shortcuts[id]})
	}
	return out
}
