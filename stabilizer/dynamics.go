package stabilizer

import "synesthetica/music"

const (
	loudnessAlpha = 0.3    // EWMA weight of a fresh onset
	loudnessDecay = 0.985  // per-cycle decay while silent
)

// DynamicsNode keeps a running loudness estimate from note-on velocities.
type DynamicsNode struct {
	loudness float64
	prev     float64
}

// NewDynamicsNode returns a node with silent initial state.
func NewDynamicsNode() Node {
	return &DynamicsNode{}
}

func (d *DynamicsNode) Process(_ string, batch music.RawBatch, _ music.Snapshot, _ music.Snapshot) music.Snapshot {
	d.prev = d.loudness

	struck := false
	for _, ev := range batch.Events {
		if ev.Type == music.NoteOn && ev.Velocity > 0 {
			v := float64(ev.Velocity) / 127
			d.loudness = d.loudness*(1-loudnessAlpha) + v*loudnessAlpha
			struck = true
		}
	}
	if !struck {
		d.loudness *= loudnessDecay
	}

	return music.Snapshot{Dynamics: music.Dynamics{
		Loudness: d.loudness,
		Trend:    d.loudness - d.prev,
	}}
}
