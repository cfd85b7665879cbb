package ntlm

import (
	"github.com/smbclient-go/smbclient/internal/smbenc"
)

// ----------------------------------------------------------------------------
// AV pairs
//

type AVPair struct {
	Id    uint16
	Value []byte
}

// AVPairs is an ordered AV_PAIR list. The terminating MsvAvEOL is implicit.
type AVPairs []AVPair

func (ps AVPairs) Get(id uint16) ([]byte, bool) {
	for _, p := range ps {
		if p.Id == id {
			return p.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of id in place, or appends it.
func (ps AVPairs) Set(id uint16, value []byte) AVPairs {
	for i, p := range ps {
		if p.Id == id {
			ps[i].Value = value
			return ps
		}
	}
	return append(ps, AVPair{Id: id, Value: value})
}

// String returns a UTF-16 valued pair, or "" when absent.
func (ps AVPairs) String(id uint16) string {
	v, ok := ps.Get(id)
	if !ok {
		return ""
	}
	return smbenc.DecodeStringOrHex(v)
}

func (ps AVPairs) Encode() []byte {
	size := 4
	for _, p := range ps {
		size += 4 + len(p.Value)
	}
	w := smbenc.NewWriter(size)
	for _, p := range ps {
		w.WriteUint16(p.Id)
		w.WriteUint16(uint16(len(p.Value)))
		w.WriteBytes(p.Value)
	}
	w.WriteUint16(MsvAvEOL)
	w.WriteUint16(0)
	return w.Bytes()
}

func DecodeAVPairs(bs []byte) (AVPairs, error) {
	var ps AVPairs
	r := smbenc.NewReader(bs)
	for {
		id := r.ReadUint16()
		n := r.ReadUint16()
		v := r.ReadBytes(int(n))
		if err := r.Err(); err != nil {
			return nil, &DecodeError{Message: "target info", Err: err}
		}
		if id == MsvAvEOL {
			return ps, nil
		}
		ps = append(ps, AVPair{Id: id, Value: v})
	}
}

// ----------------------------------------------------------------------------
// NEGOTIATE_MESSAGE
//

type NegotiateMessage struct {
	NegotiateFlags uint32
	Domain         string
	Workstation    string
	Version        [8]byte
}

func (m *NegotiateMessage) Encode() []byte {
	//        NegotiateMessage
	//   0-8: Signature
	//  8-12: MessageType
	// 12-16: NegotiateFlags
	// 16-24: DomainNameFields
	// 24-32: WorkstationFields
	// 32-40: Version
	//   40-: Payload

	domain := []byte(m.Domain)
	workstation := []byte(m.Workstation)

	l := smbenc.NewLayout(40)
	df := l.Add(domain)
	wf := l.Add(workstation)

	w := smbenc.NewWriter(l.Offset())
	w.WriteBytes([]byte(signature))
	w.WriteUint32(NtLmNegotiate)
	w.WriteUint32(m.NegotiateFlags)
	w.WriteFields(df)
	w.WriteFields(wf)
	w.WriteBytes(m.Version[:])
	w.WriteBytes(domain)
	w.WriteBytes(workstation)
	return w.Bytes()
}

func DecodeNegotiateMessage(bs []byte) (*NegotiateMessage, error) {
	var m NegotiateMessage

	r := smbenc.NewReader(bs)
	r.ExpectBytes([]byte(signature))
	r.ExpectUint32(NtLmNegotiate)
	m.NegotiateFlags = r.ReadUint32()
	df := r.ReadFields()
	wf := r.ReadFields()
	if len(bs) >= 40 {
		r.ReadInto(m.Version[:])
	}
	m.Domain = string(r.Field(df))
	m.Workstation = string(r.Field(wf))
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "negotiate message", Err: err}
	}
	return &m, nil
}

// ----------------------------------------------------------------------------
// CHALLENGE_MESSAGE
//

type ChallengeMessage struct {
	NegotiateFlags  uint32
	TargetName      string
	ServerChallenge [8]byte
	TargetInfo      AVPairs
	Version         [8]byte

	// raw target info as sent by the server
	rawTargetInfo []byte
}

func (m *ChallengeMessage) Encode() []byte {
	//        ChallengeMessage
	//   0-8: Signature
	//  8-12: MessageType
	// 12-20: TargetNameFields
	// 20-24: NegotiateFlags
	// 24-32: ServerChallenge
	// 32-40: _
	// 40-48: TargetInfoFields
	// 48-56: Version
	//   56-: Payload

	name := smbenc.EncodeString(m.TargetName)
	info := m.TargetInfo.Encode()

	l := smbenc.NewLayout(56)
	nf := l.Add(name)
	tf := l.Add(info)

	w := smbenc.NewWriter(l.Offset())
	w.WriteBytes([]byte(signature))
	w.WriteUint32(NtLmChallenge)
	w.WriteFields(nf)
	w.WriteUint32(m.NegotiateFlags)
	w.WriteBytes(m.ServerChallenge[:])
	w.WriteZeros(8)
	w.WriteFields(tf)
	w.WriteBytes(m.Version[:])
	w.WriteBytes(name)
	w.WriteBytes(info)
	return w.Bytes()
}

func DecodeChallengeMessage(bs []byte) (*ChallengeMessage, error) {
	var m ChallengeMessage

	r := smbenc.NewReader(bs)
	r.ExpectBytes([]byte(signature))
	r.ExpectUint32(NtLmChallenge)
	nf := r.ReadFields()
	m.NegotiateFlags = r.ReadUint32()
	r.ReadInto(m.ServerChallenge[:])
	r.Skip(8)
	tf := r.ReadFields()
	r.ReadInto(m.Version[:])
	name := r.Field(nf)
	m.rawTargetInfo = r.Field(tf)
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "challenge message", Err: err}
	}

	m.TargetName = smbenc.DecodeStringOrHex(name)

	if m.NegotiateFlags&NTLMSSP_NEGOTIATE_TARGET_INFO != 0 || len(m.rawTargetInfo) > 0 {
		info, err := DecodeAVPairs(m.rawTargetInfo)
		if err != nil {
			return nil, err
		}
		m.TargetInfo = info
	}

	return &m, nil
}

// ----------------------------------------------------------------------------
// AUTHENTICATE_MESSAGE
//

const (
	authenticateMICOffset  = 72
	authenticatePayloadOff = 88
)

type AuthenticateMessage struct {
	LmChallengeResponse       []byte
	NtChallengeResponse       []byte
	Domain                    string
	User                      string
	Workstation               string
	EncryptedRandomSessionKey []byte
	NegotiateFlags            uint32
	Version                   [8]byte
	MIC                       [16]byte
}

func (m *AuthenticateMessage) Encode() []byte {
	//        AuthenticateMessage
	//   0-8: Signature
	//  8-12: MessageType
	// 12-20: LmChallengeResponseFields
	// 20-28: NtChallengeResponseFields
	// 28-36: DomainNameFields
	// 36-44: UserNameFields
	// 44-52: WorkstationFields
	// 52-60: EncryptedRandomSessionKeyFields
	// 60-64: NegotiateFlags
	// 64-72: Version
	// 72-88: MIC
	//   88-: Payload

	domain := smbenc.EncodeString(m.Domain)
	user := smbenc.EncodeString(m.User)
	workstation := smbenc.EncodeString(m.Workstation)

	l := smbenc.NewLayout(authenticatePayloadOff)
	lf := l.Add(m.LmChallengeResponse)
	ntf := l.Add(m.NtChallengeResponse)
	df := l.Add(domain)
	uf := l.Add(user)
	wf := l.Add(workstation)
	kf := l.Add(m.EncryptedRandomSessionKey)

	w := smbenc.NewWriter(l.Offset())
	w.WriteBytes([]byte(signature))
	w.WriteUint32(NtLmAuthenticate)
	w.WriteFields(lf)
	w.WriteFields(ntf)
	w.WriteFields(df)
	w.WriteFields(uf)
	w.WriteFields(wf)
	w.WriteFields(kf)
	w.WriteUint32(m.NegotiateFlags)
	w.WriteBytes(m.Version[:])
	w.WriteBytes(m.MIC[:])
	w.WriteBytes(m.LmChallengeResponse)
	w.WriteBytes(m.NtChallengeResponse)
	w.WriteBytes(domain)
	w.WriteBytes(user)
	w.WriteBytes(workstation)
	w.WriteBytes(m.EncryptedRandomSessionKey)
	return w.Bytes()
}

func DecodeAuthenticateMessage(bs []byte) (*AuthenticateMessage, error) {
	var m AuthenticateMessage

	r := smbenc.NewReader(bs)
	r.ExpectBytes([]byte(signature))
	r.ExpectUint32(NtLmAuthenticate)
	lf := r.ReadFields()
	ntf := r.ReadFields()
	df := r.ReadFields()
	uf := r.ReadFields()
	wf := r.ReadFields()
	kf := r.ReadFields()
	m.NegotiateFlags = r.ReadUint32()
	r.ReadInto(m.Version[:])
	r.ReadInto(m.MIC[:])
	m.LmChallengeResponse = r.Field(lf)
	m.NtChallengeResponse = r.Field(ntf)
	domain := r.Field(df)
	user := r.Field(uf)
	workstation := r.Field(wf)
	m.EncryptedRandomSessionKey = r.Field(kf)
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "authenticate message", Err: err}
	}

	m.Domain = smbenc.DecodeStringOrHex(domain)
	m.User = smbenc.DecodeStringOrHex(user)
	m.Workstation = smbenc.DecodeStringOrHex(workstation)

	return &m, nil
}
