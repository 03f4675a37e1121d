// Package usecase orchestrates chat sessions: credential selection,
// the single-flight session controller, and finalization.
package usecase

import (
	"sync"

	"vocabchat/internal/domain"
)

// KeySelector resolves which credential accompanies a request: a
// reference into the server-side preset list, or an inline secret typed
// by the user. Exactly one kind is active at any time; the selection
// persists across requests until changed.
type KeySelector struct {
	mu      sync.Mutex
	presets []domain.PresetEntry
	custom  bool
	index   int
	secret  string
}

// NewKeySelector creates a selector over the preset listing fetched at
// startup. A non-empty list defaults to entry 0; an empty list (for
// example after a swallowed fetch failure) defaults to the inline
// secret, which stays usable regardless.
func NewKeySelector(presets []domain.PresetEntry) *KeySelector {
	ks := &KeySelector{presets: presets}
	if len(presets) == 0 {
		ks.custom = true
	}
	return ks
}

// SelectPreset activates the preset at index i and clears the inline
// secret, disabling its input surface.
func (ks *KeySelector) SelectPreset(i int) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if i < 0 || i >= len(ks.presets) {
		return domain.ErrPresetOutOfRange
	}
	ks.custom = false
	ks.index = i
	ks.secret = ""
	return nil
}

// SelectCustom activates the inline secret input.
func (ks *KeySelector) SelectCustom() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.custom = true
}

// SetSecret stores the typed inline secret. Only meaningful while the
// custom credential is active.
func (ks *KeySelector) SetSecret(secret string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.secret = secret
}

// Resolve returns the active credential.
func (ks *KeySelector) Resolve() domain.Credential {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.custom {
		return domain.InlineSecret{Value: ks.secret}
	}
	return domain.PresetRef{Index: ks.presets[ks.index].Index}
}

// Presets returns a copy of the fetched listing.
func (ks *KeySelector) Presets() []domain.PresetEntry {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	out := make([]domain.PresetEntry, len(ks.presets))
	copy(out, ks.presets)
	return out
}

// Custom reports whether the inline secret is the active kind.
func (ks *KeySelector) Custom() bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.custom
}

// ActivePreset returns the selected preset index, or false when the
// inline secret is active.
func (ks *KeySelector) ActivePreset() (int, bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.custom {
		return 0, false
	}
	return ks.index, true
}
