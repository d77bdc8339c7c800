// Package provider answers E2SM-KPM measurement queries from accumulated DU
// telemetry and reports which metrics, labels and scopes can be served.
package provider

import (
	"fmt"
	"math"

	e2sm_mho "github.com/onosproject/onos-e2-sm/servicemodels/e2sm_mho/v1/e2sm-mho"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/e2kpm/internal/kpm/catalog"
	"github.com/ethpandaops/e2kpm/internal/kpm/cellid"
	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
	"github.com/ethpandaops/e2kpm/internal/kpm/ueid"
)

// LabelInfo is one entry of a KPM label filter list.
type LabelInfo struct {
	Label catalog.Label
}

// Option configures a Provider.
type Option func(*Provider)

// WithSources restricts the enabled telemetry sources. Metrics from a
// disabled source are reported as unsupported.
func WithSources(sources ...catalog.Source) Option {
	return func(p *Provider) {
		p.sources = make(map[catalog.Source]bool, len(sources))
		for _, s := range sources {
			p.sources[s] = true
		}
	}
}

// WithTranslator sets the UE identity translator. The default treats
// identities as decimal UE indexes.
func WithTranslator(t ueid.Translator) Option {
	return func(p *Provider) {
		p.translator = t
	}
}

// WithCatalog replaces the default metric catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(p *Provider) {
		p.catalog = c
	}
}

// Provider is the DU measurement provider. It is safe for concurrent use;
// queries only read accumulator snapshots.
type Provider struct {
	log        logrus.FieldLogger
	acc        *telemetry.Accumulator
	catalog    *catalog.Catalog
	translator ueid.Translator
	sources    map[catalog.Source]bool
	computers  map[string]computer
}

// New creates a provider over acc.
func New(log logrus.FieldLogger, acc *telemetry.Accumulator, opts ...Option) *Provider {
	p := &Provider{
		log:        log.WithField("component", "provider"),
		acc:        acc,
		catalog:    catalog.Default(),
		translator: ueid.IndexTranslator{},
		sources: map[catalog.Source]bool{
			catalog.SourceScheduler: true,
			catalog.SourceRLC:       true,
		},
		computers: make(map[string]computer, len(schedulerMetrics)+len(rlcMetrics)),
	}

	for _, opt := range opts {
		opt(p)
	}

	for name, c := range schedulerMetrics {
		p.computers[name] = c
	}

	for name, c := range rlcMetrics {
		p.computers[name] = c
	}

	return p
}

// Catalog returns the catalog the provider resolves names against.
func (p *Provider) Catalog() *catalog.Catalog {
	return p.catalog
}

// Translator returns the configured UE identity translator.
func (p *Provider) Translator() ueid.Translator {
	return p.translator
}

// SupportedMetricNames lists the metrics that can be served at level, in
// catalog order.
func (p *Provider) SupportedMetricNames(level catalog.Level) []string {
	names := p.catalog.NamesForLevel(level)
	out := make([]string, 0, len(names))

	for _, name := range names {
		def, _ := p.catalog.Lookup(name)
		if p.servable(def) {
			out = append(out, name)
		}
	}

	return out
}

// IsMetricSupported reports whether name can be served at level with label,
// optionally restricted to a single cell.
func (p *Provider) IsMetricSupported(name string, label catalog.Label, level catalog.Level, cellScope bool) bool {
	def, ok := p.catalog.Lookup(name)
	if !ok {
		return false
	}

	if !def.Levels.Has(level) || !p.servable(def) {
		return false
	}

	if !def.Labels.Accepts(label) {
		return false
	}

	return !cellScope || def.CellScope
}

// GetMeasData returns the records for one metric. An empty ue list, or a
// metric without a UE level, selects the E2 node level; otherwise one record
// is produced per label and resolvable UE, label-major. A nil result means the request cannot be
// served.
func (p *Provider) GetMeasData(
	name string,
	labels []LabelInfo,
	ues []ueid.ID,
	cell *e2sm_mho.CellGlobalId,
) []Record {
	def, ok := p.catalog.Lookup(name)
	if !ok {
		p.log.WithField("metric", name).Debug("Requested metric is not in the catalog")

		return nil
	}

	if !p.servable(def) {
		return nil
	}

	if len(labels) == 0 {
		labels = []LabelInfo{{Label: catalog.NoLabel}}
	}

	for _, l := range labels {
		if !def.Labels.Accepts(l.Label) {
			return nil
		}
	}

	var filter *cellid.CellGlobalID

	if cell != nil {
		if !def.CellScope {
			return nil
		}

		cgi, ok := cellid.FromProto(cell)
		if !ok {
			p.log.WithField("metric", name).Debug("Ignoring request with unsupported cell global id")

			return nil
		}

		filter = &cgi
	}

	comp := p.computers[def.Name]

	// Subscriber filters do not apply to node-only metrics.
	if len(ues) == 0 || !def.Levels.Has(catalog.LevelUE) {
		if !def.Levels.Has(catalog.LevelNode) {
			return nil
		}

		sc := p.nodeScope(filter)

		out := make([]Record, 0, len(labels))
		for _, l := range labels {
			out = append(out, evaluate(def, comp, sc.withLabel(l.Label, def.Window)))
		}

		return out
	}

	scopes := make([]*scope, 0, len(ues))

	for _, id := range ues {
		idx, ok := p.translator.ToIndex(id)
		if !ok {
			p.log.WithField("ue_id", id).Debug("Unresolvable UE identity")

			continue
		}

		scopes = append(scopes, p.ueScope(idx, filter))
	}

	out := make([]Record, 0, len(labels)*len(scopes))

	for _, l := range labels {
		for _, sc := range scopes {
			out = append(out, evaluate(def, comp, sc.withLabel(l.Label, def.Window)))
		}
	}

	return out
}

func (p *Provider) servable(def catalog.Definition) bool {
	if !def.Supported || !p.sources[def.Source] {
		return false
	}

	_, ok := p.computers[def.Name]

	return ok
}

func (p *Provider) nodeScope(filter *cellid.CellGlobalID) *scope {
	sc := &scope{}

	for _, c := range p.acc.Cells() {
		if filter != nil && !sameCell(c.Latest.CellID, filter) {
			continue
		}

		sc.cells = append(sc.cells, c)
		sc.ues = append(sc.ues, c.Latest.UEs...)
	}

	// RLC reports carry no cell identity, so node-level bearer state is
	// only read when no cell filter applies.
	if filter == nil {
		for _, ue := range p.acc.UEs() {
			sc.bearers = append(sc.bearers, ue.Bearers...)
		}
	}

	return sc
}

func (p *Provider) ueScope(idx telemetry.UEIndex, filter *cellid.CellGlobalID) *scope {
	sc := &scope{ueLevel: true}

	st, ok := p.acc.UE(idx)
	if !ok {
		return sc
	}

	if st.Scheduler != nil {
		inCell := true

		if filter != nil {
			c, ok := p.acc.Cell(st.CellPCI)
			inCell = ok && sameCell(c.Latest.CellID, filter)

			if inCell {
				sc.cells = append(sc.cells, c)
			}
		}

		if inCell {
			sc.ues = append(sc.ues, *st.Scheduler)
		}
	}

	if filter == nil {
		sc.bearers = st.Bearers
	}

	return sc
}

// evaluate computes one record. Absent telemetry yields the catalog default;
// a computation that has no defined value yields no-value.
func evaluate(def catalog.Definition, comp computer, sc *scope) Record {
	if comp.kind != def.DataType {
		panic(fmt.Sprintf("metric %s computes %s but is declared %s", def.Name, comp.kind, def.DataType))
	}

	sc.nullable = def.NoValueWhenAbsent

	if sc.absent(def.Source) {
		if def.NoValueWhenAbsent {
			return NoValueRecord()
		}

		return typed(def.DataType, 0)
	}

	v, ok := comp.fn(sc)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return NoValueRecord()
	}

	return typed(def.DataType, v)
}

func typed(kind catalog.DataType, v float64) Record {
	if kind == catalog.Integer {
		return IntegerRecord(int64(math.Round(v)))
	}

	return RealRecord(v)
}

func sameCell(have, want *cellid.CellGlobalID) bool {
	return have != nil && want != nil && *have == *want
}
