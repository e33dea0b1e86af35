package scene

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"

	"synesthetica/music"
)

// Kind is the closed set of entity kinds a renderer must understand.
// Anything richer travels in Entity.Data and is renderer-interpreted.
type Kind string

const (
	KindParticle Kind = "particle"
	KindTrail    Kind = "trail"
	KindField    Kind = "field"
	KindGlyph    Kind = "glyph"
	KindGroup    Kind = "group"
)

// HSVA is a hue/saturation/value/alpha tuple. H in degrees 0-360,
// the rest 0-1.
type HSVA struct {
	H float64
	S float64
	V float64
	A float64
}

// Hex returns the #rrggbb form of the color, alpha dropped.
func (c HSVA) Hex() string {
	return colorful.Hsv(c.H, c.S, c.V).Hex()
}

// WithAlpha returns a copy with alpha replaced.
func (c HSVA) WithAlpha(a float64) HSVA {
	c.A = a
	return c
}

// Style is the visual styling every entity carries.
type Style struct {
	Color HSVA
	Size  float64 // renderer units, 1.0 = nominal
}

// Vec is a 2D position or velocity in canvas units.
type Vec struct {
	X float64
	Y float64
}

// Life tracks an entity's age against its time-to-live.
type Life struct {
	TTLMs float64
	AgeMs float64
}

// Entity is one drawable element. Owned exclusively by the grammar that
// created it; only that grammar mutates it, and only on its next cycle.
// ID is scoped (grammarID, semantic role, counter or source element id).
type Entity struct {
	ID        string
	PartID    string
	Kind      Kind
	CreatedAt music.Millis
	UpdatedAt music.Millis
	Position  *Vec
	Velocity  *Vec
	Life      *Life
	Style     Style
	Data      map[string]any
}

// Severity of a diagnostic.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
)

// Diagnostic reports degraded operation. ID is stable per condition so
// consumers can deduplicate.
type Diagnostic struct {
	ID       string
	Severity Severity
	Message  string
}

// Warnf builds a warning diagnostic.
func Warnf(id, format string, args ...any) Diagnostic {
	return Diagnostic{ID: id, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

// Frame is one rendered scene.
type Frame struct {
	Time        music.Millis
	Entities    []Entity
	Diagnostics []Diagnostic
}

// Empty returns a frame with no content stamped at t.
func Empty(t music.Millis) Frame {
	return Frame{Time: t}
}
