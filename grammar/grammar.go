// Package grammar holds the visual generators. A grammar consumes the
// annotated snapshot and its own previous scene and decides which screen
// entities exist this frame. Entity lifetime belongs to the grammar alone:
// an entity may outlive the musical element it visualizes, or die before it.
package grammar

import (
	"hash/fnv"
	"math/rand"

	"synesthetica/ruleset"
	"synesthetica/scene"
)

// InitContext is supplied once per part when the pipeline first sees the
// part, before the grammar's first Update.
type InitContext struct {
	PartID string
	Width  float64 // canvas size in renderer units
	Height float64
	Seed   int64 // base seed for any stochastic variation
}

// Grammar is the single dispatch point for visual-generator kinds.
type Grammar interface {
	ID() string
	Init(ctx InitContext)
	Update(a ruleset.Annotated, prev scene.Frame) scene.Frame
}

// Spec registers a grammar kind with the pipeline. New must return a fresh
// instance; the pipeline creates one per part.
type Spec struct {
	ID  string
	New func() Grammar
}

// jitterRand returns a generator seeded from the entity's own identity, the
// grammar seed and a coarse time bucket. Same id and bucket always yield
// the same sequence, so decorative variation is reproducible and animates
// at bucket rate rather than per exact millisecond.
func jitterRand(baseSeed int64, entityID string, bucket int64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(entityID))
	seed := int64(h.Sum64()) ^ baseSeed ^ (bucket * 0x9e3779b9)
	return rand.New(rand.NewSource(seed))
}

// boundaryFade is the shared fade curve: full opacity until start*window,
// then a continuous monotonic ramp reaching exactly zero at the window
// boundary. Never steps, so nothing pops.
func boundaryFade(age, window, start float64) float64 {
	if window <= 0 || age >= window {
		return 0
	}
	if age < 0 {
		age = 0
	}
	knee := window * start
	if age <= knee {
		return 1
	}
	return (window - age) / (window - knee)
}
