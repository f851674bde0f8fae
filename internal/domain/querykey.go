package domain

import "strings"

// Query kinds. Each kind has its own memo and key shape.
const (
	KindTotals     = "totals"
	KindMap        = "map"
	KindCategories = "categories"
)

// QueryKey identifies a retrieval by location identity rather than raw
// coordinates, so keys compare exactly.
type QueryKey struct {
	Kind      string
	Locations []string
	Periods   []Period
}

// keyEscaper backslash-escapes the separators so distinct location lists
// never render to the same key.
var keyEscaper = strings.NewReplacer(`\`, `\\`, ",", `\,`, "|", `\|`)

// String renders the key as "kind|loc1,loc2|p1,p2". Location order is kept
// because it determines row order in the result. An empty period list renders
// as "latest".
func (k QueryKey) String() string {
	var b strings.Builder
	b.WriteString(k.Kind)
	b.WriteByte('|')
	for i, name := range k.Locations {
		if i > 0 {
			b.WriteByte(',')
		}
		keyEscaper.WriteString(&b, name) //nolint:errcheck // strings.Builder never fails
	}
	b.WriteByte('|')
	if len(k.Periods) == 0 {
		b.WriteString("latest")
		return b.String()
	}
	for i, p := range k.Periods {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(string(p))
	}
	return b.String()
}
