// Package theme holds the color palettes the ruleset draws from.
// A palette is a small ordered list of colors looked up by a normalized
// position; palettes load from GIMP .gpl files or are built as HSV ramps.
package theme

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// LoadGPL parses a GIMP palette file.
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &Palette{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Name:") {
			p.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			continue
		}
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") || strings.HasPrefix(line, "Columns") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) >= 3 {
			r, err1 := strconv.Atoi(fields[0])
			g, err2 := strconv.Atoi(fields[1])
			b, err3 := strconv.Atoi(fields[2])
			if err1 == nil && err2 == nil && err3 == nil {
				p.Colors = append(p.Colors, RGB{uint8(r), uint8(g), uint8(b)})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no colors found in palette %s", path)
	}
	return p, nil
}

// Ramp builds an n-color palette sweeping hue from h0 to h1 at the given
// saturation and value.
func Ramp(name string, h0, h1, sat, val float64, n int) *Palette {
	if n < 2 {
		n = 2
	}
	p := &Palette{Name: name}
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		c := colorful.Hsv(h0+(h1-h0)*t, sat, val)
		r, g, b := c.RGB255()
		p.Colors = append(p.Colors, RGB{r, g, b})
	}
	return p
}

// Default is the palette used when the config names no .gpl file: a cool
// blue-to-magenta sweep that reads well on dark backgrounds.
func Default() *Palette {
	return Ramp("default", 200, 330, 0.75, 0.95, 16)
}

// Lookup returns the interpolated color for a normalized position 0-1.
func (p *Palette) Lookup(norm float64) RGB {
	if norm <= 0 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}
	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	frac := pos - float64(i)

	c0, c1 := p.Colors[i], p.Colors[i+1]
	return RGB{
		lerp(c0[0], c1[0], frac),
		lerp(c0[1], c1[1], frac),
		lerp(c0[2], c1[2], frac),
	}
}

// HSV returns the interpolated color as hue/saturation/value.
func (p *Palette) HSV(norm float64) (h, s, v float64) {
	c := p.Lookup(norm)
	return colorful.Color{
		R: float64(c[0]) / 255,
		G: float64(c[1]) / 255,
		B: float64(c[2]) / 255,
	}.Hsv()
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}
