package ntlm

import (
	"bytes"
	"crypto/rc4"
)

// Session is the security context established by a completed handshake.
// The client and the server each hold one, with directions swapped.
type Session struct {
	isClientSide bool

	user string

	negotiateFlags     uint32
	exportedSessionKey []byte

	outSigningKey []byte
	inSigningKey  []byte
	outHandle     *rc4.Cipher
	inHandle      *rc4.Cipher

	targetInfo SessionTargetInfo
}

type SessionTargetInfo struct {
	ServerName    string
	DomainName    string
	DnsServerName string
	DnsDomainName string
}

func newSession(isClientSide bool, user string, negotiateFlags uint32, exportedSessionKey []byte, info AVPairs) (*Session, error) {
	s := &Session{
		isClientSide:       isClientSide,
		user:               user,
		negotiateFlags:     negotiateFlags,
		exportedSessionKey: exportedSessionKey,
		targetInfo: SessionTargetInfo{
			ServerName:    info.String(MsvAvNbComputerName),
			DomainName:    info.String(MsvAvNbDomainName),
			DnsServerName: info.String(MsvAvDnsComputerName),
			DnsDomainName: info.String(MsvAvDnsDomainName),
		},
	}

	clientSign := signKey(negotiateFlags, exportedSessionKey, true)
	serverSign := signKey(negotiateFlags, exportedSessionKey, false)

	clientHandle, err := rc4.NewCipher(sealKey(negotiateFlags, exportedSessionKey, true))
	if err != nil {
		return nil, err
	}
	serverHandle, err := rc4.NewCipher(sealKey(negotiateFlags, exportedSessionKey, false))
	if err != nil {
		return nil, err
	}

	if isClientSide {
		s.outSigningKey, s.inSigningKey = clientSign, serverSign
		s.outHandle, s.inHandle = clientHandle, serverHandle
	} else {
		s.outSigningKey, s.inSigningKey = serverSign, clientSign
		s.outHandle, s.inHandle = serverHandle, clientHandle
	}

	return s, nil
}

func (s *Session) User() string {
	return s.user
}

func (s *Session) SessionKey() []byte {
	return s.exportedSessionKey
}

func (s *Session) TargetInfo() SessionTargetInfo {
	return s.targetInfo
}

// Sum signs an outgoing message.
func (s *Session) Sum(plaintext []byte, seqNum uint32) ([]byte, uint32) {
	if s.negotiateFlags&NTLMSSP_NEGOTIATE_SIGN == 0 {
		return nil, 0
	}
	return mac(nil, s.negotiateFlags, s.outHandle, s.outSigningKey, seqNum, plaintext)
}

// CheckSum verifies the signature of an incoming message.
func (s *Session) CheckSum(sum, plaintext []byte, seqNum uint32) (bool, uint32) {
	if s.negotiateFlags&NTLMSSP_NEGOTIATE_SIGN == 0 {
		return sum == nil, 0
	}

	ret, seqNum := mac(nil, s.negotiateFlags, s.inHandle, s.inSigningKey, seqNum, plaintext)
	if !bytes.Equal(sum, ret) {
		return false, 0
	}
	return true, seqNum
}
