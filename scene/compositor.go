package scene

import "synesthetica/music"

// Compositor merges the scenes all grammars produced in one cycle.
type Compositor interface {
	Composite(t music.Millis, frames []Frame) Frame
}

// Concat is the minimal compositor: entity and diagnostic lists are
// concatenated in input order. No reordering, culling or z-resolution;
// richer blending belongs to the renderer.
type Concat struct{}

func (Concat) Composite(t music.Millis, frames []Frame) Frame {
	out := Frame{Time: t}
	if len(frames) == 0 {
		return out
	}
	for _, f := range frames {
		out.Entities = append(out.Entities, f.Entities...)
		out.Diagnostics = append(out.Diagnostics, f.Diagnostics...)
	}
	return out
}
