package ntlm

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/smbclient-go/smbclient/internal/smbenc"
)

type State int

const (
	StateStart State = iota
	StateNegotiateSent
	StateChallengeReceived
	StateAuthenticateSent
	StateComplete
	StateFailed
)

var stateNames = [...]string{
	StateStart:             "Start",
	StateNegotiateSent:     "NegotiateSent",
	StateChallengeReceived: "ChallengeReceived",
	StateAuthenticateSent:  "AuthenticateSent",
	StateComplete:          "Complete",
	StateFailed:            "Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// NTLM v2 client
type Client struct {
	User        string
	Password    string
	Hash        []byte // NT hash; used instead of Password when set
	Domain      string // e.g "WORKGROUP", "MicrosoftAccount"
	Workstation string // e.g "localhost", "HOME-PC"

	TargetSPN string // SPN ::= "service/hostname[:port]"; e.g "cifs/remotehost:1020"

	// Rand and Now default to crypto/rand and time.Now.
	Rand io.Reader
	Now  func() time.Time

	state   State
	nmsg    []byte
	session *Session
}

func (c *Client) State() State {
	return c.state
}

func (c *Client) rand() io.Reader {
	if c.Rand != nil {
		return c.Rand
	}
	return rand.Reader
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Negotiate returns the NEGOTIATE_MESSAGE. Domain and workstation are left
// empty; they are sent in the AUTHENTICATE_MESSAGE.
func (c *Client) Negotiate() ([]byte, error) {
	if c.state != StateStart {
		return nil, fmt.Errorf("%w: negotiate in state %v", ErrBadState, c.state)
	}

	nmsg := (&NegotiateMessage{
		NegotiateFlags: clientDefaultFlags,
		Version:        version,
	}).Encode()

	c.nmsg = nmsg
	c.state = StateNegotiateSent

	return nmsg, nil
}

// Authenticate consumes the server's CHALLENGE_MESSAGE and returns the
// AUTHENTICATE_MESSAGE. The session is available from Session afterwards.
func (c *Client) Authenticate(cmsg []byte) ([]byte, error) {
	if c.state != StateNegotiateSent {
		return nil, fmt.Errorf("%w: authenticate in state %v", ErrBadState, c.state)
	}

	challenge, err := DecodeChallengeMessage(cmsg)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}

	c.state = StateChallengeReceived

	amsg, session, err := c.authenticate(challenge, cmsg)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}

	c.session = session
	c.state = StateAuthenticateSent

	return amsg, nil
}

func (c *Client) authenticate(challenge *ChallengeMessage, cmsg []byte) ([]byte, *Session, error) {
	negotiateFlags := le.Uint32(c.nmsg[12:16]) & challenge.NegotiateFlags

	info := append(AVPairs(nil), challenge.TargetInfo...)

	timeStamp, ok := info.Get(MsvAvTimestamp)
	if !ok {
		timeStamp = make([]byte, 8)
		le.PutUint64(timeStamp, uint64(c.now().UnixNano()/100+116444736000000000))
	}

	flags := make([]byte, 4)
	if v, ok := info.Get(MsvAvFlags); ok && len(v) == 4 {
		copy(flags, v)
	}
	le.PutUint32(flags, le.Uint32(flags)|msvAvFlagMICPresent)
	info = info.Set(MsvAvFlags, flags)

	if c.TargetSPN != "" {
		info = info.Set(MsvAvTargetName, smbenc.EncodeString(c.TargetSPN))
	}

	USER := smbenc.EncodeString(strings.ToUpper(c.User))
	domain := smbenc.EncodeString(c.Domain)

	var respKey []byte
	if c.Hash != nil {
		respKey = ntowfv2Hash(USER, c.Hash, domain)
	} else {
		respKey = ntowfv2(USER, smbenc.EncodeString(c.Password), domain)
	}

	clientChallenge := make([]byte, 8)
	if _, err := io.ReadFull(c.rand(), clientChallenge); err != nil {
		return nil, nil, err
	}

	h := hmac.New(md5.New, respKey)

	ntChallengeResponse := encodeNtlmv2Response(h, challenge.ServerChallenge[:], clientChallenge, timeStamp, info.Encode())

	h.Reset()
	h.Write(ntChallengeResponse[:16])
	sessionBaseKey := h.Sum(nil)

	keyExchangeKey := sessionBaseKey // if ntlm version == 2

	am := &AuthenticateMessage{
		// LMv2 is zeroed when MsvAvTimestamp is present; it is never used here.
		LmChallengeResponse: make([]byte, 24),
		NtChallengeResponse: ntChallengeResponse,
		Domain:              c.Domain,
		User:                c.User,
		Workstation:         c.Workstation,
		NegotiateFlags:      negotiateFlags,
		Version:             version,
	}

	exportedSessionKey := keyExchangeKey
	if negotiateFlags&NTLMSSP_NEGOTIATE_KEY_EXCH != 0 {
		exportedSessionKey = make([]byte, 16)
		if _, err := io.ReadFull(c.rand(), exportedSessionKey); err != nil {
			return nil, nil, err
		}
		cipher, err := rc4.NewCipher(keyExchangeKey)
		if err != nil {
			return nil, nil, err
		}
		am.EncryptedRandomSessionKey = make([]byte, 16)
		cipher.XORKeyStream(am.EncryptedRandomSessionKey, exportedSessionKey)
	}

	// first pass with a zero MIC, second pass with the real one
	amsg := am.Encode()
	mic := computeMIC(exportedSessionKey, c.nmsg, cmsg, amsg)
	copy(am.MIC[:], mic)
	amsg = am.Encode()

	session, err := newSession(true, c.User, negotiateFlags, exportedSessionKey, challenge.TargetInfo)
	if err != nil {
		return nil, nil, err
	}

	return amsg, session, nil
}

func computeMIC(key, nmsg, cmsg, amsg []byte) []byte {
	h := hmac.New(md5.New, key)
	h.Write(nmsg)
	h.Write(cmsg)
	h.Write(amsg)
	return h.Sum(nil)
}

// Complete records that the server accepted the AUTHENTICATE_MESSAGE.
func (c *Client) Complete() error {
	if c.state != StateAuthenticateSent {
		return fmt.Errorf("%w: complete in state %v", ErrBadState, c.state)
	}
	c.state = StateComplete
	return nil
}

// Fail records that the handshake was rejected or abandoned.
func (c *Client) Fail() {
	c.state = StateFailed
	c.session = nil
}

// Session returns the security context, or nil before Authenticate succeeds.
func (c *Client) Session() *Session {
	return c.session
}
