package cellid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringParse(t *testing.T) {
	cgi := CellGlobalID{PLMN: 0x00f110, NCI: 0x19b}

	assert.Equal(t, "00f110/00000019b", cgi.String())

	got, err := Parse(cgi.String())
	require.NoError(t, err)
	assert.Equal(t, cgi, got)
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"00f110",
		"zz/1",
		"1000000/1",
		"00f110/1000000000",
		"00f110/",
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalid, in)
	}
}

func TestProtoRoundTrip(t *testing.T) {
	cgi := CellGlobalID{PLMN: 0x13f184, NCI: 0x000000001}

	pb, err := cgi.Proto()
	require.NoError(t, err)

	got, ok := FromProto(pb)
	require.True(t, ok)
	assert.Equal(t, cgi, got)
}

func TestFromProto_Nil(t *testing.T) {
	_, ok := FromProto(nil)
	assert.False(t, ok)
}
