package ntlm

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/smbclient-go/smbclient/internal/smbenc"
)

// ErrLogonFailure is returned by Server.Authenticate for unknown users and
// wrong passwords.
var ErrLogonFailure = errors.New("ntlm: logon failure")

// Server is the acceptor half of the handshake. It is used by test servers.
type Server struct {
	targetName string
	accounts   map[string][]byte // upper(user) -> NT hash

	Rand io.Reader
	Now  func() time.Time

	nmsg      []byte
	cmsg      []byte
	challenge *ChallengeMessage
	session   *Session
}

func NewServer(targetName string) *Server {
	return &Server{
		targetName: targetName,
		accounts:   make(map[string][]byte),
	}
}

func (s *Server) AddAccount(user, password string) {
	s.accounts[strings.ToUpper(user)] = NTHash(password)
}

// Challenge consumes a NEGOTIATE_MESSAGE and returns a CHALLENGE_MESSAGE.
func (s *Server) Challenge(nmsg []byte) ([]byte, error) {
	negotiate, err := DecodeNegotiateMessage(nmsg)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	timeStamp := make([]byte, 8)
	le.PutUint64(timeStamp, uint64(now.UnixNano()/100+116444736000000000))

	name := smbenc.EncodeString(strings.ToUpper(s.targetName))

	c := &ChallengeMessage{
		NegotiateFlags: negotiate.NegotiateFlags&clientDefaultFlags | NTLMSSP_NEGOTIATE_TARGET_INFO | NTLMSSP_TARGET_TYPE_SERVER,
		TargetName:     strings.ToUpper(s.targetName),
		TargetInfo: AVPairs{
			{Id: MsvAvNbDomainName, Value: name},
			{Id: MsvAvNbComputerName, Value: name},
			{Id: MsvAvDnsDomainName, Value: smbenc.EncodeString(s.targetName)},
			{Id: MsvAvDnsComputerName, Value: smbenc.EncodeString(s.targetName)},
			{Id: MsvAvTimestamp, Value: timeStamp},
		},
		Version: version,
	}

	r := s.Rand
	if r == nil {
		r = rand.Reader
	}
	if _, err := io.ReadFull(r, c.ServerChallenge[:]); err != nil {
		return nil, err
	}

	s.nmsg = nmsg
	s.cmsg = c.Encode()
	s.challenge = c

	return s.cmsg, nil
}

// Authenticate verifies an AUTHENTICATE_MESSAGE against the known accounts.
func (s *Server) Authenticate(amsg []byte) error {
	if s.challenge == nil {
		return fmt.Errorf("%w: authenticate before challenge", ErrBadState)
	}

	am, err := DecodeAuthenticateMessage(amsg)
	if err != nil {
		return err
	}
	if len(am.NtChallengeResponse) < 16+28 {
		return &DecodeError{Message: "nt challenge response"}
	}

	hash, ok := s.accounts[strings.ToUpper(am.User)]
	if !ok {
		return ErrLogonFailure
	}

	respKey := ntowfv2Hash(smbenc.EncodeString(strings.ToUpper(am.User)), hash, smbenc.EncodeString(am.Domain))

	h := hmac.New(md5.New, respKey)
	h.Write(s.challenge.ServerChallenge[:])
	h.Write(am.NtChallengeResponse[16:])
	if !hmac.Equal(h.Sum(nil), am.NtChallengeResponse[:16]) {
		return ErrLogonFailure
	}

	h.Reset()
	h.Write(am.NtChallengeResponse[:16])
	sessionBaseKey := h.Sum(nil)

	exportedSessionKey := sessionBaseKey
	if am.NegotiateFlags&NTLMSSP_NEGOTIATE_KEY_EXCH != 0 {
		if len(am.EncryptedRandomSessionKey) != 16 {
			return &DecodeError{Message: "encrypted random session key"}
		}
		cipher, err := rc4.NewCipher(sessionBaseKey)
		if err != nil {
			return err
		}
		exportedSessionKey = make([]byte, 16)
		cipher.XORKeyStream(exportedSessionKey, am.EncryptedRandomSessionKey)
	}

	if am.MIC != [16]byte{} {
		zeroed := append([]byte(nil), amsg...)
		copy(zeroed[authenticateMICOffset:authenticatePayloadOff], make([]byte, 16))
		if !bytes.Equal(computeMIC(exportedSessionKey, s.nmsg, s.cmsg, zeroed), am.MIC[:]) {
			return ErrSignatureMismatch
		}
	}

	s.session, err = newSession(false, am.User, am.NegotiateFlags, exportedSessionKey, s.challenge.TargetInfo)
	return err
}

// Session returns the security context, or nil before Authenticate succeeds.
func (s *Server) Session() *Session {
	return s.session
}
