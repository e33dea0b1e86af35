package stabilizer

// DefaultSpecs is the standard graph: note tracking feeding chord
// classification and rhythm measurement, dynamics straight off the batch.
func DefaultSpecs() []NodeSpec {
	return []NodeSpec{
		{ID: "notes", New: NewNotesNode},
		{ID: "chords", DependsOn: []string{"notes"}, New: NewChordsNode},
		{ID: "rhythm", DependsOn: []string{"notes"}, New: NewRhythmNode},
		{ID: "dynamics", New: NewDynamicsNode},
	}
}

// MustGraph builds a graph from specs and panics on a declaration error.
// For the default specs this cannot fail; assembly code that builds custom
// graphs should use NewGraph and handle the error.
func MustGraph(specs []NodeSpec) *Graph {
	g, err := NewGraph(specs)
	if err != nil {
		panic(err)
	}
	return g
}
