// Package viewer holds the client-side pieces of watching a live session:
// layout variant selection, local reaction expiry and the engagement client.
package viewer

import "sync"

// Variant is the presentation of the engagement surface.
type Variant string

const (
	// VariantOverlay floats chat and reactions over the video (narrow screens).
	VariantOverlay Variant = "overlay"
	// VariantPanel shows chat in a side panel next to the video.
	VariantPanel Variant = "panel"
)

// DefaultBreakpoint is the viewport width, in CSS pixels, at which the panel variant starts.
const DefaultBreakpoint = 1024

// Layout picks a variant from viewport width.
type Layout struct {
	Breakpoint int
}

// Select returns overlay below the breakpoint and panel at or above it.
func (l Layout) Select(width int) Variant {
	bp := l.Breakpoint
	if bp <= 0 {
		bp = DefaultBreakpoint
	}
	if width < bp {
		return VariantOverlay
	}
	return VariantPanel
}

// Viewport tracks the current variant as the window is resized.
type Viewport struct {
	mu       sync.Mutex
	layout   Layout
	current  Variant
	onChange func(Variant)
}

// NewViewport starts at the variant for width. onChange may be nil.
func NewViewport(layout Layout, width int, onChange func(Variant)) *Viewport {
	return &Viewport{layout: layout, current: layout.Select(width), onChange: onChange}
}

func (v *Viewport) Current() Variant {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Resize recomputes the variant and fires onChange when it differs.
func (v *Viewport) Resize(width int) (Variant, bool) {
	v.mu.Lock()
	next := v.layout.Select(width)
	changed := next != v.current
	v.current = next
	cb := v.onChange
	v.mu.Unlock()
	if changed && cb != nil {
		cb(next)
	}
	return next, changed
}
