package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"synesthetica/adapter"
	"synesthetica/config"
	"synesthetica/debug"
	"synesthetica/grammar"
	"synesthetica/music"
	"synesthetica/pipeline"
	"synesthetica/ruleset"
	"synesthetica/scene"
	"synesthetica/stabilizer"
	"synesthetica/theme"
)

func main() {
	midiFile := flag.String("file", "", "replay a standard MIDI file instead of live input")
	serialDev := flag.String("serial", "", "read a serial instrument from this device")
	baud := flag.Int("baud", 115200, "serial baud rate")
	debugFlag := flag.Bool("debug", false, "write a debug log")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Debug || *debugFlag {
		if err := debug.Enable(); err != nil {
			fmt.Printf("debug log: %v\n", err)
		}
	}
	defer debug.Disable()

	palette := theme.Default()
	if cfg.PalettePath != "" {
		p, err := theme.LoadGPL(cfg.PalettePath)
		if err != nil {
			fmt.Printf("palette %s: %v (using default)\n", cfg.PalettePath, err)
		} else {
			palette = p
		}
	}

	pipe := pipeline.New(stabilizer.MustGraph(stabilizer.DefaultSpecs()))
	pipe.SetRuleset(ruleset.NewStandard(palette))
	pipe.SetCompositor(scene.Concat{})
	pipe.SetCanvas(cfg.CanvasWidth, cfg.CanvasHeight)
	pipe.SetSeed(cfg.Seed)
	if cfg.Tempo > 0 {
		pipe.SetPrescribedTempo(cfg.Tempo)
	}
	if cfg.Meter != nil {
		pipe.SetPrescribedMeter(&music.Meter{Beats: cfg.Meter.Beats, Unit: cfg.Meter.Unit})
	}

	// The horizon control is part of the external control surface; it hooks
	// every rhythm grammar instance the pipeline creates.
	ctl := newHorizonControl(cfg.Horizon)
	pipe.AddGrammar(grammar.Spec{ID: "rhythm", New: func() grammar.Grammar {
		g := grammar.NewRhythm()
		ctl.attach(g)
		return g
	}})
	pipe.AddGrammar(grammar.Spec{ID: "pulse", New: func() grammar.Grammar { return grammar.NewPulse() }})

	clock := adapter.WallClock(time.Now())

	switch {
	case *midiFile != "":
		fs, err := adapter.NewFileSource("", "part-1", *midiFile, clock)
		if err != nil {
			fmt.Printf("midi file: %v\n", err)
			os.Exit(1)
		}
		pipe.AddSource(fs)
		fmt.Printf("replaying %s\n", *midiFile)
	case *serialDev != "":
		ss, err := adapter.OpenSerialSource("", "part-1", *serialDev, *baud, clock)
		if err != nil {
			fmt.Printf("serial: %v\n", err)
			os.Exit(1)
		}
		defer ss.Close()
		pipe.AddSource(ss)
		fmt.Printf("reading %s @ %d baud\n", *serialDev, *baud)
	default:
		defer gomidi.CloseDriver()
		if n := connectMIDIInputs(pipe, cfg, clock); n == 0 {
			fmt.Println("no MIDI inputs found - scene will stay empty")
		}
	}

	m := newModel(pipe, clock, ctl, cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	pipe.Dispose()
}

// connectMIDIInputs opens every non-excluded input port as its own part.
func connectMIDIInputs(pipe *pipeline.Pipeline, cfg *config.Config, clock adapter.Clock) int {
	n := 0
	for _, port := range gomidi.GetInPorts() {
		name := port.String()
		if matchesAny(name, cfg.MIDI.ExcludedPatterns) {
			continue
		}
		if len(cfg.MIDI.PreferredPatterns) > 0 && !matchesAny(name, cfg.MIDI.PreferredPatterns) {
			continue
		}
		n++
		partID := fmt.Sprintf("part-%d", n)
		ks, err := adapter.NewKeyboardSource("", partID, port, clock)
		if err != nil {
			fmt.Printf("midi %s: %v\n", name, err)
			n--
			continue
		}
		pipe.AddSource(ks)
		fmt.Printf("connected %s as %s\n", name, partID)
	}
	return n
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// horizonControl fans one control value out to every rhythm grammar the
// pipeline has created so far.
type horizonControl struct {
	value    float64
	grammars []*grammar.Rhythm
}

func newHorizonControl(v float64) *horizonControl {
	return &horizonControl{value: v}
}

func (c *horizonControl) attach(g *grammar.Rhythm) {
	g.SetHorizon(c.value)
	c.grammars = append(c.grammars, g)
}

func (c *horizonControl) set(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.value = v
	for _, g := range c.grammars {
		g.SetHorizon(v)
	}
}
