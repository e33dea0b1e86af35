package theme

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLookupEndpointsAndClamp(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {100, 100, 100}, {200, 200, 200}}}

	if got := p.Lookup(0); got != p.Colors[0] {
		t.Errorf("Lookup(0) = %v, want first color", got)
	}
	if got := p.Lookup(1); got != p.Colors[2] {
		t.Errorf("Lookup(1) = %v, want last color", got)
	}
	if got := p.Lookup(-0.5); got != p.Colors[0] {
		t.Errorf("Lookup(-0.5) = %v, want clamp to first", got)
	}
	if got := p.Lookup(1.5); got != p.Colors[2] {
		t.Errorf("Lookup(1.5) = %v, want clamp to last", got)
	}
}

func TestLookupInterpolates(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {200, 100, 50}}}

	got := p.Lookup(0.5)
	want := RGB{100, 50, 25}
	if got != want {
		t.Errorf("Lookup(0.5) = %v, want %v", got, want)
	}
}

func TestRamp(t *testing.T) {
	p := Ramp("test", 0, 120, 1, 1, 5)
	if len(p.Colors) != 5 {
		t.Fatalf("colors = %d, want 5", len(p.Colors))
	}
	if p.Name != "test" {
		t.Errorf("name = %q", p.Name)
	}

	// Endpoints: pure red sweeping to pure green.
	if p.Colors[0] != (RGB{255, 0, 0}) {
		t.Errorf("first = %v, want red", p.Colors[0])
	}
	if p.Colors[4] != (RGB{0, 255, 0}) {
		t.Errorf("last = %v, want green", p.Colors[4])
	}

	// Undersized n is padded to a usable ramp.
	if got := len(Ramp("tiny", 0, 60, 1, 1, 1).Colors); got != 2 {
		t.Errorf("n=1 ramp has %d colors, want 2", got)
	}
}

func TestLoadGPL(t *testing.T) {
	content := `GIMP Palette
Name: Testing
Columns: 3
# a comment
255   0   0 red
  0 255   0 green
  0   0 255 blue
`
	path := filepath.Join(t.TempDir(), "test.gpl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadGPL(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Testing" {
		t.Errorf("name = %q, want Testing", p.Name)
	}
	want := []RGB{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}}
	if len(p.Colors) != len(want) {
		t.Fatalf("colors = %v", p.Colors)
	}
	for i, c := range want {
		if p.Colors[i] != c {
			t.Errorf("color %d = %v, want %v", i, p.Colors[i], c)
		}
	}
}

func TestLoadGPLEmptyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpl")
	if err := os.WriteFile(path, []byte("GIMP Palette\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGPL(path); err == nil {
		t.Error("palette with no colors loaded without error")
	}
}
