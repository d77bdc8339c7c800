// Package ueid maps external subscriber identities to DU-local UE indexes.
package ueid

import (
	"strconv"
	"sync"

	e2sm_mho "github.com/onosproject/onos-e2-sm/servicemodels/e2sm_mho/v1/e2sm-mho"

	"github.com/ethpandaops/e2kpm/internal/kpm/telemetry"
)

// ID is an external UE identity as carried in E2SM UeIdentity values.
type ID string

// FromProto returns the identity carried by an E2SM UeIdentity.
func FromProto(ue *e2sm_mho.UeIdentity) ID {
	return ID(ue.GetValue())
}

// Proto returns the E2SM representation of the identity.
func (id ID) Proto() *e2sm_mho.UeIdentity {
	return &e2sm_mho.UeIdentity{Value: string(id)}
}

// Translator resolves identities in both directions.
type Translator interface {
	ToIndex(id ID) (telemetry.UEIndex, bool)
	ToID(idx telemetry.UEIndex) (ID, bool)
}

// IndexTranslator treats the identity as the decimal UE index.
type IndexTranslator struct{}

var _ Translator = IndexTranslator{}

// ToIndex parses id as a decimal index.
func (IndexTranslator) ToIndex(id ID) (telemetry.UEIndex, bool) {
	v, err := strconv.ParseUint(string(id), 10, 16)
	if err != nil {
		return 0, false
	}

	idx := telemetry.UEIndex(v)
	if !idx.Valid() {
		return 0, false
	}

	return idx, true
}

// ToID formats idx as a decimal identity.
func (IndexTranslator) ToID(idx telemetry.UEIndex) (ID, bool) {
	if !idx.Valid() {
		return "", false
	}

	return ID(strconv.FormatUint(uint64(idx), 10)), true
}

// MapTranslator is a learned bidirectional mapping. It is safe for
// concurrent use.
type MapTranslator struct {
	mu      sync.RWMutex
	toIndex map[ID]telemetry.UEIndex
	toID    map[telemetry.UEIndex]ID
}

var _ Translator = (*MapTranslator)(nil)

// NewMapTranslator creates an empty mapping.
func NewMapTranslator() *MapTranslator {
	return &MapTranslator{
		toIndex: make(map[ID]telemetry.UEIndex, 64),
		toID:    make(map[telemetry.UEIndex]ID, 64),
	}
}

// Bind associates id with idx, replacing any previous binding of either.
func (m *MapTranslator) Bind(id ID, idx telemetry.UEIndex) bool {
	if id == "" || !idx.Valid() {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.toIndex[id]; ok {
		delete(m.toID, old)
	}

	if old, ok := m.toID[idx]; ok {
		delete(m.toIndex, old)
	}

	m.toIndex[id] = idx
	m.toID[idx] = id

	return true
}

// Unbind removes the binding for idx.
func (m *MapTranslator) Unbind(idx telemetry.UEIndex) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.toID[idx]; ok {
		delete(m.toIndex, id)
		delete(m.toID, idx)
	}
}

// ToIndex implements Translator.
func (m *MapTranslator) ToIndex(id ID) (telemetry.UEIndex, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.toIndex[id]

	return idx, ok
}

// ToID implements Translator.
func (m *MapTranslator) ToID(idx telemetry.UEIndex) (ID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.toID[idx]

	return id, ok
}

// Len returns the number of bindings.
func (m *MapTranslator) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.toIndex)
}

// BindRNTIs binds each UE in a scheduler report by its C-RNTI, rendered as
// decimal. It returns the number of new or changed bindings.
func (m *MapTranslator) BindRNTIs(report telemetry.SchedulerCellMetrics) int {
	changed := 0

	for _, ue := range report.UEs {
		id := RNTIID(ue.RNTI)

		if cur, ok := m.ToIndex(id); ok && cur == ue.UEIndex {
			continue
		}

		if m.Bind(id, ue.UEIndex) {
			changed++
		}
	}

	return changed
}

// RNTIID renders a C-RNTI as an identity.
func RNTIID(rnti uint16) ID {
	return ID(strconv.FormatUint(uint64(rnti), 10))
}
