package ntlm

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rc4"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smbclient-go/smbclient/internal/smbenc"
)

func TestNtowfv2(t *testing.T) {
	USER := smbenc.EncodeString("USER")
	password := smbenc.EncodeString("Password")
	domain := smbenc.EncodeString("Domain")
	ntlmv2Hash, err := hex.DecodeString("0c868a403bfd7a93a3001ef22ef02e3f")
	if err != nil {
		t.Fatal(err)
	}

	ret := ntowfv2(USER, password, domain)

	if !bytes.Equal(ret, ntlmv2Hash) {
		t.Errorf("expected %v, got %v", ntlmv2Hash, ret)
	}

	ret = ntowfv2Hash(USER, NTHash("Password"), domain)

	if !bytes.Equal(ret, ntlmv2Hash) {
		t.Errorf("expected %v, got %v", ntlmv2Hash, ret)
	}
}

func TestNtlmv2ClientChallenge(t *testing.T) {
	ntlmv2Hash, err := hex.DecodeString("0c868a403bfd7a93a3001ef22ef02e3f")
	if err != nil {
		t.Fatal(err)
	}
	serverChallenge, err := hex.DecodeString("0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	clientChallenge, err := hex.DecodeString("aaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatal(err)
	}
	timestamp, err := hex.DecodeString("0000000000000000")
	if err != nil {
		t.Fatal(err)
	}
	targetInfo, err := hex.DecodeString(
		"0200" + "0c00" + "44006f006d00610069006e00" + // MsvAvNbDomainName + dataLen + data
			"0100" + "0c00" + "530065007200760065007200" + // MsvAvNbComputerName + dataLen + data
			"0000" + "0000") // MsvAvEOL + dataLen
	if err != nil {
		t.Fatal(err)
	}
	temp, err := hex.DecodeString("01010000000000000000000000000000aaaaaaaaaaaaaaaa0000000002000c0044006f006d00610069006e0001000c005300650072007600650072000000000000000000")
	if err != nil {
		t.Fatal(err)
	}

	ntlmv2Response, err := hex.DecodeString("68cd0ab851e51c96aabc927bebef6a1c")
	if err != nil {
		t.Fatal(err)
	}

	h := hmac.New(md5.New, ntlmv2Hash)

	ret := encodeNtlmv2Response(h, serverChallenge, clientChallenge, timestamp, targetInfo)

	if !bytes.Equal(ret[16:], temp) {
		t.Errorf("expected %v, got %v", temp, ret[16:])
	}

	if !bytes.Equal(ret[:16], ntlmv2Response) {
		t.Errorf("expected %v, got %v", ntlmv2Response, ret[:16])
	}

	info, err := DecodeAVPairs(targetInfo)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(info.Encode(), targetInfo) {
		t.Errorf("expected %v, got %v", targetInfo, info.Encode())
	}
}

func TestSessionBaseKey(t *testing.T) {
	ntlmv2Hash, err := hex.DecodeString("0c868a403bfd7a93a3001ef22ef02e3f")
	if err != nil {
		t.Fatal(err)
	}

	ntlmv2Response, err := hex.DecodeString("68cd0ab851e51c96aabc927bebef6a1c")
	if err != nil {
		t.Fatal(err)
	}

	sessionBaseKey, err := hex.DecodeString("8de40ccadbc14a82f15cb0ad0de95ca3")
	if err != nil {
		t.Fatal(err)
	}

	h := hmac.New(md5.New, ntlmv2Hash)
	h.Write(ntlmv2Response)
	ret := h.Sum(nil)

	if !bytes.Equal(ret, sessionBaseKey) {
		t.Errorf("expected %v, got %v", sessionBaseKey, ret)
	}
}

func TestEncryptedSessionKey(t *testing.T) {
	randomSessionKey, err := hex.DecodeString("55555555555555555555555555555555")
	if err != nil {
		t.Fatal(err)
	}
	sessionBaseKey, err := hex.DecodeString("8de40ccadbc14a82f15cb0ad0de95ca3")
	if err != nil {
		t.Fatal(err)
	}
	encryptedSessionKey, err := hex.DecodeString("c5dad2544fc9799094ce1ce90bc9d03e")
	if err != nil {
		t.Fatal(err)
	}

	cipher, err := rc4.NewCipher(sessionBaseKey)
	if err != nil {
		t.Fatal(err)
	}

	ret := make([]byte, 16)

	cipher.XORKeyStream(ret, randomSessionKey)

	if !bytes.Equal(ret, encryptedSessionKey) {
		t.Errorf("expected %v, got %v", encryptedSessionKey, ret)
	}
}

func TestSealKey(t *testing.T) {
	randomSessionKey, err := hex.DecodeString("55555555555555555555555555555555")
	if err != nil {
		t.Fatal(err)
	}
	clientSealKey, err := hex.DecodeString("59f600973cc4960a25480a7c196e4c58")
	if err != nil {
		t.Fatal(err)
	}

	ret := sealKey(NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY|NTLMSSP_NEGOTIATE_128, randomSessionKey, true)

	if !bytes.Equal(ret, clientSealKey) {
		t.Errorf("expected %v, got %v", clientSealKey, ret)
	}
}

func TestSignKey(t *testing.T) {
	randomSessionKey, err := hex.DecodeString("55555555555555555555555555555555")
	if err != nil {
		t.Fatal(err)
	}
	clientSignKey, err := hex.DecodeString("4788dc861b4782f35d43fd98fe1a2d39")
	if err != nil {
		t.Fatal(err)
	}

	ret := signKey(NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY, randomSessionKey, true)

	if !bytes.Equal(ret, clientSignKey) {
		t.Errorf("expected %v, got %v", clientSignKey, ret)
	}
}

func TestSeal(t *testing.T) {
	seqNum := uint32(0)
	clientSealKey, err := hex.DecodeString("59f600973cc4960a25480a7c196e4c58")
	if err != nil {
		t.Fatal(err)
	}
	clientSignKey, err := hex.DecodeString("4788dc861b4782f35d43fd98fe1a2d39")
	if err != nil {
		t.Fatal(err)
	}
	data, err := hex.DecodeString("54e50165bf1936dc996020c1811b0f06fb5f")
	if err != nil {
		t.Fatal(err)
	}
	signature, err := hex.DecodeString("010000007fb38ec5c55d497600000000")
	if err != nil {
		t.Fatal(err)
	}
	clientHandle, err := rc4.NewCipher(clientSealKey)
	if err != nil {
		t.Fatal(err)
	}
	plainText := smbenc.EncodeString("Plaintext")
	ret := make([]byte, len(plainText)+16)
	clientHandle.XORKeyStream(ret[16:], plainText)
	_, next := mac(ret[:0], NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY|NTLMSSP_NEGOTIATE_KEY_EXCH, clientHandle, clientSignKey, seqNum, plainText)

	if !bytes.Equal(ret[16:], data) {
		t.Errorf("expected %v, got %v", data, ret[16:])
	}

	if !bytes.Equal(ret[:16], signature) {
		t.Errorf("expected %v, got %v", signature, ret[:16])
	}

	if next != 1 {
		t.Errorf("expected 1, got %d", next)
	}
}

// fixedReader yields the same byte forever.
type fixedReader byte

func (r fixedReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

func newTestPair() (*Client, *Server) {
	now := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	c := &Client{
		User:     "user",
		Password: "password",
		Domain:   "WORKGROUP",
		Rand:     fixedReader(0x55),
		Now:      now,
	}

	s := NewServer("server")
	s.Rand = fixedReader(0x11)
	s.Now = now
	s.AddAccount("user", "password")

	return c, s
}

func TestClientServer(t *testing.T) {
	c, s := newTestPair()

	nmsg, err := c.Negotiate()
	if err != nil {
		t.Fatal(err)
	}

	cmsg, err := s.Challenge(nmsg)
	if err != nil {
		t.Fatal(err)
	}

	amsg, err := c.Authenticate(cmsg)
	if err != nil {
		t.Fatal(err)
	}

	err = s.Authenticate(amsg)
	if err != nil {
		t.Fatal(err)
	}
	if c.Session() == nil {
		t.Error("error")
	}
	if s.Session() == nil {
		t.Error("error")
	}

	require.NoError(t, c.Complete())
	assert.Equal(t, StateComplete, c.State())
	assert.Equal(t, c.Session().SessionKey(), s.Session().SessionKey())
	assert.Equal(t, "user", s.Session().User())
	assert.Equal(t, "SERVER", c.Session().TargetInfo().ServerName)

	t.Run("signatures cross-verify", func(t *testing.T) {
		msg := []byte("mechListMIC input")
		sum, _ := c.Session().Sum(msg, 0)
		ok, next := s.Session().CheckSum(sum, msg, 0)
		assert.True(t, ok)
		assert.Equal(t, uint32(1), next)
	})
}

func TestClientDeterministic(t *testing.T) {
	run := func() []byte {
		c, s := newTestPair()
		nmsg, err := c.Negotiate()
		require.NoError(t, err)
		cmsg, err := s.Challenge(nmsg)
		require.NoError(t, err)
		amsg, err := c.Authenticate(cmsg)
		require.NoError(t, err)
		return amsg
	}

	first := run()
	assert.Equal(t, first, run())

	am, err := DecodeAuthenticateMessage(first)
	require.NoError(t, err)
	assert.NotEqual(t, [16]byte{}, am.MIC)
	assert.Equal(t, "user", am.User)
	assert.Equal(t, "WORKGROUP", am.Domain)
	assert.Len(t, am.EncryptedRandomSessionKey, 16)
}

// The client challenge carries the server's AV pairs in order and
// unchanged, except for the MIC-present bit in MsvAvFlags and the
// appended MsvAvTargetName.
func TestResponseTargetInfo(t *testing.T) {
	c, _ := newTestPair()
	c.TargetSPN = "cifs/server"

	stamp := []byte{0, 0x80, 0x3e, 0xd5, 0xde, 0xb1, 0x9d, 0x01}
	server := AVPairs{
		{Id: MsvAvNbComputerName, Value: smbenc.EncodeString("SERVER")},
		{Id: MsvAvNbDomainName, Value: smbenc.EncodeString("DOMAIN")},
		{Id: MsvAvFlags, Value: []byte{0x01, 0, 0, 0}},
		{Id: MsvAvTimestamp, Value: stamp},
	}
	cmsg := (&ChallengeMessage{
		NegotiateFlags:  clientDefaultFlags | NTLMSSP_NEGOTIATE_TARGET_INFO,
		ServerChallenge: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		TargetInfo:      server,
	}).Encode()

	_, err := c.Negotiate()
	require.NoError(t, err)
	amsg, err := c.Authenticate(cmsg)
	require.NoError(t, err)

	am, err := DecodeAuthenticateMessage(amsg)
	require.NoError(t, err)

	blob := am.NtChallengeResponse[16:]
	assert.Equal(t, stamp, blob[8:16], "the server timestamp is reused")

	got, err := DecodeAVPairs(blob[28:])
	require.NoError(t, err)

	want := AVPairs{
		server[0],
		server[1],
		{Id: MsvAvFlags, Value: []byte{0x03, 0, 0, 0}},
		server[3],
		{Id: MsvAvTargetName, Value: smbenc.EncodeString("cifs/server")},
	}
	assert.Equal(t, want, got)

	assert.Equal(t, 28+len(want.Encode())+4, len(blob))
	assert.Equal(t, []byte{0, 0, 0, 0}, blob[len(blob)-4:])
}

func TestWrongPassword(t *testing.T) {
	c, s := newTestPair()
	c.Password = "wrong"

	nmsg, err := c.Negotiate()
	require.NoError(t, err)
	cmsg, err := s.Challenge(nmsg)
	require.NoError(t, err)
	amsg, err := c.Authenticate(cmsg)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Authenticate(amsg), ErrLogonFailure)

	c.Fail()
	assert.Equal(t, StateFailed, c.State())
	assert.Nil(t, c.Session())
}

func TestTamperedMIC(t *testing.T) {
	c, s := newTestPair()

	nmsg, _ := c.Negotiate()
	cmsg, err := s.Challenge(nmsg)
	require.NoError(t, err)
	amsg, err := c.Authenticate(cmsg)
	require.NoError(t, err)

	amsg[authenticateMICOffset] ^= 0xff
	assert.ErrorIs(t, s.Authenticate(amsg), ErrSignatureMismatch)
}

func TestMalformedChallenge(t *testing.T) {
	c, s := newTestPair()

	nmsg, _ := c.Negotiate()
	cmsg, err := s.Challenge(nmsg)
	require.NoError(t, err)

	_, err = c.Authenticate(cmsg[:30])
	var derr *DecodeError
	assert.ErrorAs(t, err, &derr)
	assert.Equal(t, StateFailed, c.State())

	c, _ = newTestPair()
	c.Negotiate()
	bad := append([]byte(nil), cmsg...)
	bad[8] = NtLmAuthenticate
	_, err = c.Authenticate(bad)
	assert.ErrorIs(t, err, smbenc.ErrUnexpectedValue)
}

func TestStateOrder(t *testing.T) {
	c, _ := newTestPair()

	_, err := c.Authenticate(nil)
	assert.ErrorIs(t, err, ErrBadState)

	_, err = c.Negotiate()
	require.NoError(t, err)
	assert.Equal(t, StateNegotiateSent, c.State())

	_, err = c.Negotiate()
	assert.ErrorIs(t, err, ErrBadState)

	assert.ErrorIs(t, c.Complete(), ErrBadState)
}
