package spnego

import (
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegTokenInit(t *testing.T) {
	nmsg := []byte("NTLMSSP\x00\x01\x00\x00\x00")

	bs, err := EncodeNegTokenInit([]asn1.ObjectIdentifier{NlmpOid}, nmsg)
	require.NoError(t, err)
	assert.Equal(t, byte(0x60), bs[0])

	init, err := DecodeNegTokenInit(bs)
	require.NoError(t, err)
	assert.Equal(t, nmsg, init.MechToken)
	assert.True(t, init.HasMech(NlmpOid))
	assert.False(t, init.HasMech(KerberosOid))
}

func TestNegTokenResp(t *testing.T) {
	bs, err := EncodeNegTokenResp(AcceptIncomplete, NlmpOid, []byte("challenge"), nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0xa1), bs[0])

	resp, err := DecodeNegTokenResp(bs)
	require.NoError(t, err)
	assert.Equal(t, AcceptIncomplete, resp.NegState)
	assert.True(t, resp.SupportedMech.Equal(NlmpOid))
	assert.Equal(t, []byte("challenge"), resp.ResponseToken)
	assert.Nil(t, resp.MechListMIC)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := DecodeNegTokenResp([]byte{0xa1, 0x05, 0x30})
	assert.Error(t, err)

	_, err = DecodeNegTokenInit([]byte{0x60, 0x00})
	assert.Error(t, err)
}
