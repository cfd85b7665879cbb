package smbclient

import (
	"encoding/asn1"

	"github.com/smbclient-go/smbclient/internal/ntlm"
	"github.com/smbclient-go/smbclient/internal/spnego"
)

// initiator produces the security blobs of SESSION_SETUP.
type initiator interface {
	// GSS_Init_sec_context: the first call gets a nil inputToken.
	init(inputToken []byte) (outputToken []byte, done bool, err error)
	// verify checks the final token sent with the accepting response.
	verify(finalToken []byte) error
	sessionKey() []byte
	fail()
}

// ntlmInitiator runs NTLMv2 wrapped in SPNEGO. It doesn't support NTLMv1.
type ntlmInitiator struct {
	c        *ntlm.Client
	mechList []asn1.ObjectIdentifier
}

func newNTLMInitiator(user, password, domain, workstation, targetSPN string) *ntlmInitiator {
	return &ntlmInitiator{
		c: &ntlm.Client{
			User:        user,
			Password:    password,
			Domain:      domain,
			Workstation: workstation,
			TargetSPN:   targetSPN,
		},
		mechList: []asn1.ObjectIdentifier{spnego.NlmpOid},
	}
}

func (i *ntlmInitiator) init(inputToken []byte) ([]byte, bool, error) {
	if inputToken == nil { // Negotiate
		nmsg, err := i.c.Negotiate()
		if err != nil {
			return nil, false, &InternalError{err.Error()}
		}

		negTokenInitBytes, err := spnego.EncodeNegTokenInit(i.mechList, nmsg)
		if err != nil {
			return nil, false, &InternalError{err.Error()}
		}

		return negTokenInitBytes, false, nil
	}

	// Authenticate

	negTokenResp, err := spnego.DecodeNegTokenResp(inputToken)
	if err != nil {
		return nil, false, &InvalidResponseError{Message: err.Error(), Err: err}
	}

	if negTokenResp.NegState == spnego.Reject {
		return nil, false, &AuthenticationError{Err: errRejected}
	}

	if len(negTokenResp.ResponseToken) == 0 {
		return nil, false, &InvalidResponseError{Message: spnego.ErrNoToken.Error(), Err: spnego.ErrNoToken}
	}

	amsg, err := i.c.Authenticate(negTokenResp.ResponseToken)
	if err != nil {
		return nil, false, &InvalidResponseError{Message: err.Error(), Err: err}
	}

	ms, err := spnego.MechListBytes(i.mechList)
	if err != nil {
		return nil, false, &InternalError{err.Error()}
	}

	mechListMIC, _ := i.c.Session().Sum(ms, 0)

	negTokenRespBytes, err := spnego.EncodeNegTokenResp(spnego.AcceptIncomplete, nil, amsg, mechListMIC)
	if err != nil {
		return nil, false, &InternalError{err.Error()}
	}

	return negTokenRespBytes, true, nil
}

func (i *ntlmInitiator) verify(finalToken []byte) error {
	if len(finalToken) > 0 {
		negTokenResp, err := spnego.DecodeNegTokenResp(finalToken)
		if err != nil {
			return &InvalidResponseError{Message: err.Error(), Err: err}
		}
		if negTokenResp.NegState == spnego.Reject {
			return &AuthenticationError{Err: errRejected}
		}
	}
	if err := i.c.Complete(); err != nil {
		return &InternalError{err.Error()}
	}
	return nil
}

func (i *ntlmInitiator) sessionKey() []byte {
	if s := i.c.Session(); s != nil {
		return s.SessionKey()
	}
	return nil
}

func (i *ntlmInitiator) fail() {
	i.c.Fail()
}
