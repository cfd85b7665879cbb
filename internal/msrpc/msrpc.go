// Package msrpc implements the small slice of DCE/RPC over named pipes needed
// to enumerate shares through the srvsvc interface (MS-SRVS NetrShareEnum).
package msrpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/smbclient-go/smbclient/internal/smbenc"
)

const (
	RPC_VERSION       = 5
	RPC_VERSION_MINOR = 0

	RPC_TYPE_REQUEST  = 0
	RPC_TYPE_RESPONSE = 2
	RPC_TYPE_FAULT    = 3
	RPC_TYPE_BIND     = 11
	RPC_TYPE_BIND_ACK = 12

	RPC_PACKET_FLAG_FIRST = 0x01
	RPC_PACKET_FLAG_LAST  = 0x02

	SRVSVC_VERSION       = 3
	SRVSVC_VERSION_MINOR = 0

	NDR_VERSION = 2

	// srvsvc
	OP_NET_SHARE_ENUM = 15

	MaxFragSize = 4280

	headerSize = 24
)

var (
	SRVSVC_UUID = mustUUID("c84f324b7016d30112785a47bf6ee188")
	NDR_UUID    = mustUUID("045d888aeb1cc9119fe808002b104860")
)

func mustUUID(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// SHARE_INFO_1 shi1_type values.
const (
	STYPE_DISKTREE  = 0x00000000
	STYPE_PRINTQ    = 0x00000001
	STYPE_DEVICE    = 0x00000002
	STYPE_IPC       = 0x00000003
	STYPE_SPECIAL   = 0x80000000
	STYPE_TEMPORARY = 0x40000000
)

var ErrBindRejected = errors.New("msrpc: bind rejected")

// FaultError carries the status of an RPC fault PDU.
type FaultError struct {
	Status uint32
}

func (err *FaultError) Error() string {
	return fmt.Sprintf("msrpc: fault 0x%08x", err.Status)
}

// DecodeError reports a malformed PDU.
type DecodeError struct {
	Message string
	Err     error
}

func (err *DecodeError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("msrpc: broken %s: %v", err.Message, err.Err)
	}
	return "msrpc: broken " + err.Message
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

// Header is the common part of connection-oriented PDUs.
type Header struct {
	PacketType  uint8
	PacketFlags uint8
	FragLength  uint16
	AuthLength  uint16
	CallId      uint32
}

func encodeHeader(w *smbenc.Writer, typ uint8, callId uint32) {
	w.WriteUint8(RPC_VERSION)
	w.WriteUint8(RPC_VERSION_MINOR)
	w.WriteUint8(typ)
	w.WriteUint8(RPC_PACKET_FLAG_FIRST | RPC_PACKET_FLAG_LAST)

	// order = Little-Endian, float = IEEE, char = ASCII
	w.WriteBytes([]byte{0x10, 0, 0, 0})

	w.WriteUint16(0) // frag length
	w.WriteUint16(0) // auth length
	w.WriteUint32(callId)
}

func finishFrag(w *smbenc.Writer) []byte {
	w.PutUint16At(8, uint16(w.Len()))
	return w.Bytes()
}

func decodeHeader(r *smbenc.Reader) *Header {
	var h Header
	r.ExpectBytes([]byte{RPC_VERSION, RPC_VERSION_MINOR})
	h.PacketType = r.ReadUint8()
	h.PacketFlags = r.ReadUint8()
	r.Skip(4)
	h.FragLength = r.ReadUint16()
	h.AuthLength = r.ReadUint16()
	h.CallId = r.ReadUint32()
	return &h
}

// DecodeHeader decodes the common header of pdu.
func DecodeHeader(pdu []byte) (*Header, error) {
	r := smbenc.NewReader(pdu)
	h := decodeHeader(r)
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "header", Err: err}
	}
	return h, nil
}

// ----------------------------------------------------------------------------
// Bind
//

type Bind struct {
	CallId uint32
}

func (r *Bind) Encode() []byte {
	w := smbenc.NewWriter(72)
	encodeHeader(w, RPC_TYPE_BIND, r.CallId)

	w.WriteUint16(MaxFragSize) // max xmit frag
	w.WriteUint16(MaxFragSize) // max recv frag
	w.WriteUint32(0)           // assoc group
	w.WriteUint32(1)           // num ctx items
	w.WriteUint16(0)           // ctx item[1] .context id
	w.WriteUint16(1)           // ctx item[1] .num trans items

	w.WriteBytes(SRVSVC_UUID)
	w.WriteUint16(SRVSVC_VERSION)
	w.WriteUint16(SRVSVC_VERSION_MINOR)

	w.WriteBytes(NDR_UUID)
	w.WriteUint32(NDR_VERSION)

	return finishFrag(w)
}

func DecodeBind(pdu []byte) (*Bind, error) {
	r := smbenc.NewReader(pdu)
	h := decodeHeader(r)
	r.Skip(8)
	r.ExpectUint32(1)
	r.Skip(4)
	r.ExpectBytes(SRVSVC_UUID)
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "bind", Err: err}
	}
	if h.PacketType != RPC_TYPE_BIND {
		return nil, &DecodeError{Message: fmt.Sprintf("bind: packet type %d", h.PacketType)}
	}
	return &Bind{CallId: h.CallId}, nil
}

type BindAck struct {
	CallId       uint32
	AssocGroupId uint32
	Accepted     bool
}

func (a *BindAck) Encode() []byte {
	w := smbenc.NewWriter(68)
	encodeHeader(w, RPC_TYPE_BIND_ACK, a.CallId)

	w.WriteUint16(MaxFragSize)
	w.WriteUint16(MaxFragSize)
	w.WriteUint32(a.AssocGroupId)

	port := []byte(`\PIPE\srvsvc` + "\x00")
	w.WriteUint16(uint16(len(port)))
	w.WriteBytes(port)
	w.Pad(4)

	w.WriteUint32(1) // num results
	if a.Accepted {
		w.WriteUint16(0) // acceptance
	} else {
		w.WriteUint16(2) // provider rejection
	}
	w.WriteUint16(0)
	w.WriteBytes(NDR_UUID)
	w.WriteUint32(NDR_VERSION)

	return finishFrag(w)
}

func DecodeBindAck(pdu []byte) (*BindAck, error) {
	r := smbenc.NewReader(pdu)
	h := decodeHeader(r)
	r.Skip(4)
	assoc := r.ReadUint32()
	n := r.ReadUint16()
	r.Skip(int(n))
	r.Seek(smbenc.Roundup(r.Pos(), 4))
	results := r.ReadUint32()
	result := r.ReadUint16()
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "bind ack", Err: err}
	}
	if h.PacketType != RPC_TYPE_BIND_ACK {
		return nil, &DecodeError{Message: fmt.Sprintf("bind ack: packet type %d", h.PacketType)}
	}
	return &BindAck{
		CallId:       h.CallId,
		AssocGroupId: assoc,
		Accepted:     results > 0 && result == 0,
	}, nil
}

// ----------------------------------------------------------------------------
// NetrShareEnum
//

func writeString(w *smbenc.Writer, s string) {
	bs := smbenc.EncodeString(s + "\x00")
	count := uint32(len(bs) / 2)

	w.WriteUint32(count) // max count
	w.WriteUint32(0)     // offset
	w.WriteUint32(count) // actual count
	w.WriteBytes(bs)
	w.Pad(4)
}

func readString(r *smbenc.Reader) string {
	r.ReadUint32() // max count
	off := r.ReadUint32()
	count := r.ReadUint32()
	r.Skip(int(off) * 2)
	bs := r.ReadBytes(int(count) * 2)
	r.Seek(smbenc.Roundup(r.Pos(), 4))
	return strings.TrimRight(smbenc.DecodeStringOrHex(bs), "\x00")
}

type NetShareEnumAllRequest struct {
	CallId     uint32
	ServerName string
	Level      uint32
}

func (q *NetShareEnumAllRequest) Encode() []byte {
	w := smbenc.NewWriter(128)
	encodeHeader(w, RPC_TYPE_REQUEST, q.CallId)

	w.WriteUint32(0)                 // alloc hint
	w.WriteUint16(0)                 // context id
	w.WriteUint16(OP_NET_SHARE_ENUM) // opnum

	// pointer to server unc
	w.WriteUint32(0x20000) // referent ID
	writeString(w, q.ServerName)

	w.WriteUint32(q.Level)

	// pointer to ctr (srvsvc_NetShareCtr)
	w.WriteUint32(q.Level)    // ctr
	w.WriteUint32(0x20004)    // referent ID
	w.WriteUint32(0)          // ctr.count
	w.WriteUint32(0)          // ctr.pointer
	w.WriteUint32(0xffffffff) // max buffer
	w.WriteUint32(0)          // null resume handle

	w.PutUint32At(16, uint32(w.Len()-headerSize))

	return finishFrag(w)
}

func DecodeNetShareEnumAllRequest(pdu []byte) (*NetShareEnumAllRequest, error) {
	var q NetShareEnumAllRequest

	r := smbenc.NewReader(pdu)
	h := decodeHeader(r)
	r.Skip(6)
	r.ExpectUint16(OP_NET_SHARE_ENUM)
	r.Skip(4)
	q.ServerName = readString(r)
	q.Level = r.ReadUint32()
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "net share enum request", Err: err}
	}
	if h.PacketType != RPC_TYPE_REQUEST {
		return nil, &DecodeError{Message: fmt.Sprintf("net share enum request: packet type %d", h.PacketType)}
	}
	q.CallId = h.CallId
	return &q, nil
}

// ShareInfo1 is SHARE_INFO_1.
type ShareInfo1 struct {
	Name    string
	Type    uint32
	Comment string
}

type NetShareEnumAllResponse struct {
	CallId uint32
	Level  uint32
	Shares []ShareInfo1
	Status uint32 // WERROR
}

func (p *NetShareEnumAllResponse) Encode() []byte {
	w := smbenc.NewWriter(256)
	encodeHeader(w, RPC_TYPE_RESPONSE, p.CallId)

	w.WriteUint32(0) // alloc hint
	w.WriteUint16(0) // context id
	w.WriteUint8(0)  // cancel count
	w.WriteUint8(0)

	count := uint32(len(p.Shares))
	w.WriteUint32(1)       // level
	w.WriteUint32(1)       // ctr
	w.WriteUint32(0x20000) // referent ID
	w.WriteUint32(count)
	w.WriteUint32(0x20004) // array referent ID
	w.WriteUint32(count)   // max count

	ref := uint32(0x20008)
	for _, s := range p.Shares {
		w.WriteUint32(ref)
		w.WriteUint32(s.Type)
		w.WriteUint32(ref + 4)
		ref += 8
	}
	for _, s := range p.Shares {
		writeString(w, s.Name)
		writeString(w, s.Comment)
	}

	w.WriteUint32(count) // total entries
	w.WriteUint32(0)     // null resume handle
	w.WriteUint32(p.Status)

	w.PutUint32At(16, uint32(w.Len()-headerSize))

	return finishFrag(w)
}

// DecodeNetShareEnumAllResponse decodes a level 1 response.
func DecodeNetShareEnumAllResponse(pdu []byte) (*NetShareEnumAllResponse, error) {
	r := smbenc.NewReader(pdu)
	h := decodeHeader(r)
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "net share enum response", Err: err}
	}

	switch h.PacketType {
	case RPC_TYPE_RESPONSE:
	case RPC_TYPE_FAULT:
		return nil, &FaultError{Status: r.Uint32At(headerSize)}
	default:
		return nil, &DecodeError{Message: fmt.Sprintf("net share enum response: packet type %d", h.PacketType)}
	}

	p := &NetShareEnumAllResponse{CallId: h.CallId}

	r.Seek(headerSize)
	p.Level = r.ReadUint32()
	if r.Err() == nil && p.Level != 1 {
		return nil, &DecodeError{Message: fmt.Sprintf("net share enum response: level %d", p.Level)}
	}
	r.Skip(8) // ctr, referent ID
	count := r.ReadUint32()
	arrayRef := r.ReadUint32()

	if arrayRef != 0 && count > 0 {
		r.Skip(4) // max count

		if int(count)*12 > r.Remaining() {
			return nil, &DecodeError{Message: "net share enum response", Err: smbenc.ErrShortBuffer}
		}

		type entry struct{ nameRef, typ, commentRef uint32 }

		entries := make([]entry, count)
		for i := range entries {
			entries[i].nameRef = r.ReadUint32()
			entries[i].typ = r.ReadUint32()
			entries[i].commentRef = r.ReadUint32()
		}

		p.Shares = make([]ShareInfo1, count)
		for i, e := range entries {
			p.Shares[i].Type = e.typ
			if e.nameRef != 0 {
				p.Shares[i].Name = readString(r)
			}
			if e.commentRef != 0 {
				p.Shares[i].Comment = readString(r)
			}
		}
	}

	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "net share enum response", Err: err}
	}

	if n := r.Len(); n >= 4 {
		p.Status = r.Uint32At(n - 4)
	}

	return p, nil
}

// Reassemble joins the fragments of one response read from a pipe into a
// single PDU: the first fragment's header followed by every stub.
// It reports whether the last fragment has been seen; a trailing partial
// fragment is left out.
func Reassemble(data []byte) ([]byte, bool, error) {
	var pdu []byte

	for len(data) > 0 {
		if len(data) < headerSize {
			return pdu, false, nil
		}
		h, err := DecodeHeader(data)
		if err != nil {
			return nil, false, err
		}
		if int(h.FragLength) < headerSize {
			return nil, false, &DecodeError{Message: fmt.Sprintf("fragment length %d", h.FragLength)}
		}
		if int(h.FragLength) > len(data) { // the rest is still in the pipe
			return pdu, false, nil
		}
		frag := data[:h.FragLength]
		data = data[h.FragLength:]

		if pdu == nil {
			pdu = append(pdu, frag...)
		} else {
			pdu = append(pdu, frag[headerSize:]...)
		}

		if h.PacketFlags&RPC_PACKET_FLAG_LAST != 0 {
			return pdu, true, nil
		}
	}

	return pdu, false, nil
}
