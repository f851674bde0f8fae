package domain

// Gazetteer is the read-only location reference table, keyed by name.
// It is safe for concurrent reads once built.
type Gazetteer struct {
	byName map[string]Location
	order  []string
}

// NewGazetteer indexes locations by name, keeping the first row for a
// duplicated name. It returns the names that were dropped as duplicates.
func NewGazetteer(locations []Location) (*Gazetteer, []string) {
	g := &Gazetteer{
		byName: make(map[string]Location, len(locations)),
		order:  make([]string, 0, len(locations)),
	}
	var dupes []string
	for _, loc := range locations {
		if _, ok := g.byName[loc.Name]; ok {
			dupes = append(dupes, loc.Name)
			continue
		}
		g.byName[loc.Name] = loc
		g.order = append(g.order, loc.Name)
	}
	return g, dupes
}

// Lookup returns the named location or an *UnknownLocationError.
func (g *Gazetteer) Lookup(name string) (Location, error) {
	loc, ok := g.byName[name]
	if !ok {
		return Location{}, &UnknownLocationError{Name: name}
	}
	return loc, nil
}

// Resolve looks up every name in order, failing on the first unknown one.
func (g *Gazetteer) Resolve(names []string) ([]Location, error) {
	out := make([]Location, 0, len(names))
	for _, name := range names {
		loc, err := g.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

// Names returns up to limit names in reference-table order. A limit <= 0
// returns all of them.
func (g *Gazetteer) Names(limit int) []string {
	n := len(g.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, n)
	copy(out, g.order[:n])
	return out
}

// Len is the number of distinct locations.
func (g *Gazetteer) Len() int { return len(g.order) }
