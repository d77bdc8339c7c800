// Package catalog holds the immutable KPM metric definitions served by the
// measurement provider.
//
// Two tables are kept: the general 3GPP TS 28.552 table and an extension
// table. They are merged into a single name index when a Catalog is built.
// On a name collision the general table wins, and the shadowed extension
// entry stays visible through Extension() for diagnostics.
package catalog

import "sync"

// Catalog is a read-only metric index. It is safe for concurrent use.
type Catalog struct {
	general   []Definition
	extension []Definition
	byName    map[string]Definition
	order     []string
}

// New builds a catalog from the general and extension tables.
func New(general, extension []Definition) *Catalog {
	c := &Catalog{
		general:   stamp(general, ProvenanceTS28552),
		extension: stamp(extension, ProvenanceExtension),
		byName:    make(map[string]Definition, len(general)+len(extension)),
		order:     make([]string, 0, len(general)+len(extension)),
	}

	for _, table := range [][]Definition{c.general, c.extension} {
		for _, def := range table {
			if _, ok := c.byName[def.Name]; ok {
				continue
			}

			c.byName[def.Name] = def
			c.order = append(c.order, def.Name)
		}
	}

	return c
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the process-wide catalog built from the static tables.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = New(general28552, extensionTable)
	})

	return defaultCatalog
}

// Lookup returns the definition for name. A miss means the metric is not
// supported.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	def, ok := c.byName[name]

	return def, ok
}

// NamesForLevel returns every metric name defined at the given level, in
// merged table order. Entries not flagged Supported are included.
func (c *Catalog) NamesForLevel(level Level) []string {
	names := make([]string, 0, len(c.order))

	for _, name := range c.order {
		if c.byName[name].Levels.Has(level) {
			names = append(names, name)
		}
	}

	return names
}

// Names returns every metric name in merged order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)

	return out
}

// General returns a copy of the general table.
func (c *Catalog) General() []Definition {
	return clone(c.general)
}

// Extension returns a copy of the extension table, including entries
// shadowed by the general table.
func (c *Catalog) Extension() []Definition {
	return clone(c.extension)
}

// Shadowed reports whether the extension table's entry for name is hidden
// behind a general table entry.
func (c *Catalog) Shadowed(name string) bool {
	def, ok := c.byName[name]
	if !ok || def.Provenance != ProvenanceTS28552 {
		return false
	}

	for _, ext := range c.extension {
		if ext.Name == name {
			return true
		}
	}

	return false
}

func stamp(defs []Definition, p Provenance) []Definition {
	out := clone(defs)
	for i := range out {
		out[i].Provenance = p
	}

	return out
}

func clone(defs []Definition) []Definition {
	out := make([]Definition, len(defs))
	copy(out, defs)

	return out
}
