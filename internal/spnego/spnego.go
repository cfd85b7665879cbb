// Package spnego wraps NTLM tokens in the SPNEGO (RFC 4178) envelope used by
// SMB2 SESSION_SETUP. Tokens are written as DER and read as BER, since
// servers are not consistent about definite lengths.
package spnego

import (
	"encoding/asn1"
	"errors"
	"fmt"

	"github.com/geoffgarside/ber"
)

var (
	SpnegoOid     = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 2}
	MsKerberosOid = asn1.ObjectIdentifier{1, 2, 840, 48018, 1, 2, 2}
	KerberosOid   = asn1.ObjectIdentifier{1, 2, 840, 113554, 1, 2, 2}
	NlmpOid       = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 2, 10}
)

// NegState values of NegTokenResp.
const (
	AcceptCompleted  asn1.Enumerated = 0
	AcceptIncomplete asn1.Enumerated = 1
	Reject           asn1.Enumerated = 2
	RequestMIC       asn1.Enumerated = 3
)

var ErrNoToken = errors.New("spnego: no mechanism token")

type initialContextToken struct { // `asn1:"application,tag:0"`
	ThisMech asn1.ObjectIdentifier `asn1:"optional"`
	Init     []NegTokenInit        `asn1:"optional,tag:0"`
}

type NegTokenInit struct {
	MechTypes   []asn1.ObjectIdentifier `asn1:"explicit,optional,tag:0"`
	ReqFlags    asn1.BitString          `asn1:"explicit,optional,tag:1"`
	MechToken   []byte                  `asn1:"explicit,optional,tag:2"`
	MechListMIC []byte                  `asn1:"explicit,optional,tag:3"`
}

// HasMech reports whether oid is among the offered mechanisms.
func (t *NegTokenInit) HasMech(oid asn1.ObjectIdentifier) bool {
	for _, m := range t.MechTypes {
		if m.Equal(oid) {
			return true
		}
	}
	return false
}

type NegTokenResp struct {
	NegState      asn1.Enumerated       `asn1:"explicit,optional,tag:0"`
	SupportedMech asn1.ObjectIdentifier `asn1:"explicit,optional,tag:1"`
	ResponseToken []byte                `asn1:"explicit,optional,tag:2"`
	MechListMIC   []byte                `asn1:"explicit,optional,tag:3"`
}

// EncodeNegTokenInit builds the GSS-API initial context token.
func EncodeNegTokenInit(types []asn1.ObjectIdentifier, token []byte) ([]byte, error) {
	bs, err := asn1.Marshal(initialContextToken{
		ThisMech: SpnegoOid,
		Init:     []NegTokenInit{{MechTypes: types, MechToken: token}},
	})
	if err != nil {
		return nil, err
	}

	bs[0] = 0x60 // `asn1:"application,tag:0"`

	return bs, nil
}

func DecodeNegTokenInit(bs []byte) (*NegTokenInit, error) {
	var init initialContextToken

	_, err := ber.UnmarshalWithParams(bs, &init, "application,tag:0")
	if err != nil {
		return nil, fmt.Errorf("spnego: broken neg token init: %w", err)
	}
	if !init.ThisMech.Equal(SpnegoOid) {
		return nil, fmt.Errorf("spnego: unexpected mechanism %v", init.ThisMech)
	}
	if len(init.Init) == 0 {
		return nil, ErrNoToken
	}

	return &init.Init[0], nil
}

func EncodeNegTokenResp(state asn1.Enumerated, typ asn1.ObjectIdentifier, token, mechListMIC []byte) ([]byte, error) {
	bs, err := asn1.Marshal(NegTokenResp{
		NegState:      state,
		SupportedMech: typ,
		ResponseToken: token,
		MechListMIC:   mechListMIC,
	})
	if err != nil {
		return nil, err
	}

	return asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        1,
		IsCompound: true,
		Bytes:      bs,
	})
}

func DecodeNegTokenResp(bs []byte) (*NegTokenResp, error) {
	var resp NegTokenResp

	_, err := ber.UnmarshalWithParams(bs, &resp, "explicit,tag:1")
	if err != nil {
		return nil, fmt.Errorf("spnego: broken neg token resp: %w", err)
	}

	return &resp, nil
}

// MechListBytes returns the DER encoding of types, the input of mechListMIC.
func MechListBytes(types []asn1.ObjectIdentifier) ([]byte, error) {
	return asn1.Marshal(types)
}
