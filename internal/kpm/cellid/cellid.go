// Package cellid converts between the NR cell global identity used by the
// telemetry layer and the E2SM CGI carried in KPM action definitions.
package cellid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/onosproject/onos-e2-sm/servicemodels/e2sm_mho/pdubuilder"
	e2sm_mho "github.com/onosproject/onos-e2-sm/servicemodels/e2sm_mho/v1/e2sm-mho"
)

const (
	// NCIBits is the bit length of an NR cell identity.
	NCIBits = 36

	maxNCI  = 1<<NCIBits - 1
	maxPLMN = 1<<24 - 1
)

// ErrInvalid is returned when a textual CGI cannot be parsed.
var ErrInvalid = errors.New("invalid cell global id")

// CellGlobalID is an NR CGI: a 24-bit PLMN identity plus a 36-bit NR cell
// identity.
type CellGlobalID struct {
	PLMN uint32
	NCI  uint64
}

// String renders the CGI as hex "plmn/nci", e.g. "00f110/000000019".
func (c CellGlobalID) String() string {
	return fmt.Sprintf("%06x/%09x", c.PLMN, c.NCI)
}

// Parse reads the format produced by String.
func Parse(s string) (CellGlobalID, error) {
	plmnPart, nciPart, ok := strings.Cut(s, "/")
	if !ok {
		return CellGlobalID{}, fmt.Errorf("%w: %q: missing separator", ErrInvalid, s)
	}

	plmn, err := strconv.ParseUint(plmnPart, 16, 32)
	if err != nil || plmn > maxPLMN {
		return CellGlobalID{}, fmt.Errorf("%w: %q: bad plmn", ErrInvalid, s)
	}

	nci, err := strconv.ParseUint(nciPart, 16, 64)
	if err != nil || nci > maxNCI {
		return CellGlobalID{}, fmt.Errorf("%w: %q: bad nci", ErrInvalid, s)
	}

	return CellGlobalID{PLMN: uint32(plmn), NCI: nci}, nil
}

// FromProto extracts an NR CGI. E-UTRA CGIs and malformed PLMN identities
// are rejected.
func FromProto(cgi *e2sm_mho.CellGlobalId) (CellGlobalID, bool) {
	nr := cgi.GetNrCgi()
	if nr == nil {
		return CellGlobalID{}, false
	}

	plmn := nr.GetPLmnIdentity().GetValue()
	if len(plmn) != 3 {
		return CellGlobalID{}, false
	}

	nci := nr.GetNRcellIdentity().GetValue()
	if nci == nil || nci.GetValue() > maxNCI {
		return CellGlobalID{}, false
	}

	return CellGlobalID{
		PLMN: uint32(plmn[0])<<16 | uint32(plmn[1])<<8 | uint32(plmn[2]),
		NCI:  nci.GetValue(),
	}, true
}

// Proto builds the E2SM representation of the CGI.
func (c CellGlobalID) Proto() (*e2sm_mho.CellGlobalId, error) {
	plmn := []byte{byte(c.PLMN >> 16), byte(c.PLMN >> 8), byte(c.PLMN)}

	cgi, err := pdubuilder.CreateCellGlobalIDNrCgi(plmn, &e2sm_mho.BitString{
		Value: c.NCI,
		Len:   NCIBits,
	})
	if err != nil {
		return nil, fmt.Errorf("building nr cgi: %w", err)
	}

	return cgi, nil
}
