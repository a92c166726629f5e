package viewer

import (
	"sync"
	"time"
)

// DefaultReactionLifetime is how long a heart stays on screen.
const DefaultReactionLifetime = 2500 * time.Millisecond

// Reaction is one rendered heart.
type Reaction struct {
	ID           uint64
	OriginOffset float64
	ExpiresAt    time.Time
}

// ReactionTray holds reactions currently on screen. Expiry is local only; senders get no acknowledgement.
type ReactionTray struct {
	mu       sync.Mutex
	lifetime time.Duration
	next     uint64
	items    []Reaction
}

func NewReactionTray(lifetime time.Duration) *ReactionTray {
	if lifetime <= 0 {
		lifetime = DefaultReactionLifetime
	}
	return &ReactionTray{lifetime: lifetime}
}

// Add renders a reaction received at now.
func (t *ReactionTray) Add(originOffset float64, now time.Time) Reaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	r := Reaction{ID: t.next, OriginOffset: originOffset, ExpiresAt: now.Add(t.lifetime)}
	t.items = append(t.items, r)
	return r
}

// Sweep removes reactions whose lifetime has elapsed and returns how many were removed.
func (t *ReactionTray) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.items[:0]
	for _, r := range t.items {
		if now.Before(r.ExpiresAt) {
			kept = append(kept, r)
		}
	}
	removed := len(t.items) - len(kept)
	t.items = kept
	return removed
}

// Visible returns a copy of the reactions on screen.
func (t *ReactionTray) Visible() []Reaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Reaction, len(t.items))
	copy(out, t.items)
	return out
}
