package grammar

import (
	"fmt"
	"math"

	"synesthetica/music"
	"synesthetica/ruleset"
	"synesthetica/scene"
)

const (
	pulseTTLMs   = 900.0
	pulseSpeed   = 0.06 // canvas units per ms at velocity 127
	pulsePerNote = 6
)

// Pulse spawns a small radial burst of particles on every note attack.
// The particles live on their own clock: they keep flying and fading after
// the note releases, carried forward from the previous scene each cycle.
type Pulse struct {
	ctx     InitContext
	spawned map[string]bool // note ids already burst
}

// NewPulse returns a pulse grammar.
func NewPulse() *Pulse {
	return &Pulse{spawned: make(map[string]bool)}
}

func (p *Pulse) ID() string { return "pulse" }

func (p *Pulse) Init(ctx InitContext) {
	p.ctx = ctx
}

func (p *Pulse) Update(a ruleset.Annotated, prev scene.Frame) scene.Frame {
	now := a.Snapshot.Time
	out := scene.Frame{Time: now}

	dt := float64(0)
	if prev.Time > 0 && now > prev.Time {
		dt = float64(now - prev.Time)
	}

	// Advance surviving particles from the previous cycle.
	for _, e := range prev.Entities {
		if e.Life == nil || e.Position == nil || e.Velocity == nil {
			continue
		}
		e.Life.AgeMs += dt
		alpha := boundaryFade(e.Life.AgeMs, e.Life.TTLMs, 0.3)
		if alpha <= 0 {
			continue
		}
		e.Position.X += e.Velocity.X * dt
		e.Position.Y += e.Velocity.Y * dt
		if e.Position.X < -screenMargin || e.Position.X > p.ctx.Width+screenMargin ||
			e.Position.Y < -screenMargin || e.Position.Y > p.ctx.Height+screenMargin {
			continue
		}
		e.UpdatedAt = now
		e.Style.Color = e.Style.Color.WithAlpha(alpha)
		out.Entities = append(out.Entities, e)
	}

	// Burst for freshly attacked notes.
	live := make(map[string]bool, len(a.Notes))
	for _, n := range a.Notes {
		live[n.ID] = true
		if n.Phase != music.PhaseAttack || p.spawned[n.ID] {
			continue
		}
		p.spawned[n.ID] = true
		p.burst(&out, n, now)
	}
	for id := range p.spawned {
		if !live[id] {
			delete(p.spawned, id)
		}
	}

	return out
}

func (p *Pulse) burst(out *scene.Frame, n ruleset.AnnotatedNote, now music.Millis) {
	cx := p.ctx.Width / 2
	cy := p.ctx.Height * (1 - (float64(n.PitchClass())+0.5)/12)
	speed := pulseSpeed * float64(n.Velocity) / 127

	for i := 0; i < pulsePerNote; i++ {
		angle := 2 * math.Pi * float64(i) / pulsePerNote
		out.Entities = append(out.Entities, scene.Entity{
			ID:        fmt.Sprintf("%s/burst/%s/%d", p.ID(), n.ID, i),
			PartID:    p.ctx.PartID,
			Kind:      scene.KindParticle,
			CreatedAt: now,
			UpdatedAt: now,
			Position:  &scene.Vec{X: cx, Y: cy},
			Velocity:  &scene.Vec{X: math.Cos(angle) * speed, Y: math.Sin(angle) * speed},
			Life:      &scene.Life{TTLMs: pulseTTLMs},
			Style: scene.Style{
				Color: n.Visual.Palette.Accent.WithAlpha(1),
				Size:  0.3 + float64(n.Velocity)/254,
			},
		})
	}
}
