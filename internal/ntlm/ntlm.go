// Package ntlm implements the NTLMv2 authentication protocol (MS-NLMP):
// message codecs, the client and server halves of the handshake, and the
// session security used to sign the SPNEGO mechListMIC.
package ntlm

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rc4"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"

	"golang.org/x/crypto/md4"

	"github.com/smbclient-go/smbclient/internal/smbenc"
)

var le = binary.LittleEndian

const signature = "NTLMSSP\x00"

const (
	NtLmNegotiate    = 0x00000001
	NtLmChallenge    = 0x00000002
	NtLmAuthenticate = 0x00000003
)

const (
	NTLMSSP_NEGOTIATE_UNICODE = 1 << iota
	NTLM_NEGOTIATE_OEM
	NTLMSSP_REQUEST_TARGET
	_
	NTLMSSP_NEGOTIATE_SIGN
	NTLMSSP_NEGOTIATE_SEAL
	NTLMSSP_NEGOTIATE_DATAGRAM
	NTLMSSP_NEGOTIATE_LM_KEY
	_
	NTLMSSP_NEGOTIATE_NTLM
	_
	NTLMSSP_ANONYMOUS
	NTLMSSP_NEGOTIATE_OEM_DOMAIN_SUPPLIED
	NTLMSSP_NEGOTIATE_OEM_WORKSTATION_SUPPLIED
	_
	NTLMSSP_NEGOTIATE_ALWAYS_SIGN
	NTLMSSP_TARGET_TYPE_DOMAIN
	NTLMSSP_TARGET_TYPE_SERVER
	_
	NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY
	NTLMSSP_NEGOTIATE_IDENTIFY
	_
	NTLMSSP_REQUEST_NON_NT_SESSION_KEY
	NTLMSSP_NEGOTIATE_TARGET_INFO
	_
	NTLMSSP_NEGOTIATE_VERSION
	_
	_
	_
	NTLMSSP_NEGOTIATE_128
	NTLMSSP_NEGOTIATE_KEY_EXCH
	NTLMSSP_NEGOTIATE_56
)

const clientDefaultFlags = NTLMSSP_NEGOTIATE_56 |
	NTLMSSP_NEGOTIATE_KEY_EXCH |
	NTLMSSP_NEGOTIATE_128 |
	NTLMSSP_NEGOTIATE_VERSION |
	NTLMSSP_NEGOTIATE_TARGET_INFO |
	NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY |
	NTLMSSP_NEGOTIATE_ALWAYS_SIGN |
	NTLMSSP_NEGOTIATE_NTLM |
	NTLMSSP_NEGOTIATE_SEAL |
	NTLMSSP_NEGOTIATE_SIGN |
	NTLMSSP_REQUEST_TARGET |
	NTLMSSP_NEGOTIATE_UNICODE

// 10.0.0 build 0, NTLMSSP_REVISION_W2K3
var version = [8]byte{0: 10, 1: 0, 7: 0x0f}

const (
	MsvAvEOL = iota
	MsvAvNbComputerName
	MsvAvNbDomainName
	MsvAvDnsComputerName
	MsvAvDnsDomainName
	MsvAvDnsTreeName
	MsvAvFlags
	MsvAvTimestamp
	MsvAvSingleHost
	MsvAvTargetName
	MsvAvChannelBindings
)

// MsvAvFlags bit announcing a MIC in the AUTHENTICATE message.
const msvAvFlagMICPresent = 0x02

var (
	clientSigning = []byte("session key to client-to-server signing key magic constant\x00")
	serverSigning = []byte("session key to server-to-client signing key magic constant\x00")
	clientSealing = []byte("session key to client-to-server sealing key magic constant\x00")
	serverSealing = []byte("session key to server-to-client sealing key magic constant\x00")
)

var (
	// ErrBadState is returned when a handshake step is called out of order.
	ErrBadState = errors.New("ntlm: call out of order")

	// ErrSignatureMismatch is returned by the server MIC check.
	ErrSignatureMismatch = errors.New("ntlm: signature mismatch")
)

// DecodeError reports a malformed NTLM message.
type DecodeError struct {
	Message string
	Err     error
}

func (err *DecodeError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("ntlm: broken %s: %v", err.Message, err.Err)
	}
	return "ntlm: broken " + err.Message
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

// NTHash returns MD4(UTF16LE(password)).
func NTHash(password string) []byte {
	h := md4.New()
	h.Write(smbenc.EncodeString(password))
	return h.Sum(nil)
}

func ntowfv2(USER, password, domain []byte) []byte {
	h := md4.New()
	h.Write(password)
	return ntowfv2Hash(USER, h.Sum(nil), domain)
}

func ntowfv2Hash(USER, hash, domain []byte) []byte {
	hm := hmac.New(md5.New, hash)
	hm.Write(USER)
	hm.Write(domain)
	return hm.Sum(nil)
}

// encodeNtlmv2Response returns NTProofStr followed by the NTLMv2 client
// challenge blob. targetInfo must already end with MsvAvEOL.
func encodeNtlmv2Response(h hash.Hash, serverChallenge, clientChallenge, timeStamp, targetInfo []byte) []byte {
	//        NTLMv2Response
	//  0-16: Response
	//   16-: NTLMv2ClientChallenge
	//
	//        NTLMv2ClientChallenge
	//   0-1: RespType
	//   1-2: HiRespType
	//   2-4: _
	//   4-8: _
	//  8-16: TimeStamp
	// 16-24: ChallengeFromClient
	// 24-28: _
	//   28-: AvPairs

	ret := make([]byte, 16+28+len(targetInfo)+4)
	blob := ret[16:]
	blob[0] = 1
	blob[1] = 1
	copy(blob[8:16], timeStamp)
	copy(blob[16:24], clientChallenge)
	copy(blob[28:], targetInfo)

	h.Reset()
	h.Write(serverChallenge)
	h.Write(blob)
	h.Sum(ret[:0])

	return ret
}

func signKey(negotiateFlags uint32, randomSessionKey []byte, fromClient bool) []byte {
	if negotiateFlags&NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY == 0 {
		return nil
	}
	h := md5.New()
	h.Write(randomSessionKey)
	if fromClient {
		h.Write(clientSigning)
	} else {
		h.Write(serverSigning)
	}
	return h.Sum(nil)
}

func sealKey(negotiateFlags uint32, randomSessionKey []byte, fromClient bool) []byte {
	if negotiateFlags&NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY != 0 {
		h := md5.New()
		switch {
		case negotiateFlags&NTLMSSP_NEGOTIATE_128 != 0:
			h.Write(randomSessionKey)
		case negotiateFlags&NTLMSSP_NEGOTIATE_56 != 0:
			h.Write(randomSessionKey[:7])
		default:
			h.Write(randomSessionKey[:5])
		}
		if fromClient {
			h.Write(clientSealing)
		} else {
			h.Write(serverSealing)
		}
		return h.Sum(nil)
	}

	if negotiateFlags&NTLMSSP_NEGOTIATE_LM_KEY != 0 {
		sealingKey := make([]byte, 8)
		if negotiateFlags&NTLMSSP_NEGOTIATE_56 != 0 {
			copy(sealingKey, randomSessionKey[:7])
			sealingKey[7] = 0xa0
		} else {
			copy(sealingKey, randomSessionKey[:5])
			sealingKey[5] = 0xe5
			sealingKey[6] = 0x38
			sealingKey[7] = 0xb0
		}
		return sealingKey
	}

	return randomSessionKey
}

// mac appends a 16-byte message signature to dst and returns the next
// sequence number.
func mac(dst []byte, negotiateFlags uint32, handle *rc4.Cipher, signingKey []byte, seqNum uint32, msg []byte) ([]byte, uint32) {
	ret, tag := sliceForAppend(dst, 16)

	if negotiateFlags&NTLMSSP_NEGOTIATE_EXTENDED_SESSIONSECURITY == 0 {
		//        NtlmsspMessageSignature
		//   0-4: Version
		//   4-8: RandomPad
		//  8-12: Checksum
		// 12-16: SeqNum

		le.PutUint32(tag[:4], 1)
		le.PutUint32(tag[4:8], 0)
		le.PutUint32(tag[8:12], crc32.ChecksumIEEE(msg))
		le.PutUint32(tag[12:16], seqNum)

		handle.XORKeyStream(tag[4:16], tag[4:16])
		le.PutUint32(tag[4:8], 0)
	} else {
		//        NtlmsspMessageSignatureExt
		//   0-4: Version
		//  4-12: Checksum
		// 12-16: SeqNum

		le.PutUint32(tag[:4], 1)
		le.PutUint32(tag[12:16], seqNum)

		h := hmac.New(md5.New, signingKey)
		h.Write(tag[12:16])
		h.Write(msg)
		copy(tag[4:12], h.Sum(nil))

		if negotiateFlags&NTLMSSP_NEGOTIATE_KEY_EXCH != 0 {
			handle.XORKeyStream(tag[4:12], tag[4:12])
		}
	}

	return ret, seqNum + 1
}

func sliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}
