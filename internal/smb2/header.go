package smb2

import (
	"fmt"

	"github.com/smbclient-go/smbclient/internal/smbenc"
)

// ----------------------------------------------------------------------------
// SMB2 Packet Header
//

// PacketHeader is the 64-byte header carried by every message.
// Status doubles as ChannelSequence/Reserved in requests. ProcessId is only
// meaningful for synchronous messages, AsyncId only for asynchronous ones.
type PacketHeader struct {
	CreditCharge          uint16
	Status                uint32
	Command               Command
	CreditRequestResponse uint16
	Flags                 HeaderFlags
	NextCommand           uint32
	MessageId             uint64
	AsyncId               uint64
	ProcessId             uint32
	TreeId                uint32
	SessionId             uint64
	Signature             [16]byte
}

func (hdr *PacketHeader) Header() *PacketHeader {
	return hdr
}

func (hdr *PacketHeader) IsAsync() bool {
	return hdr.Flags.Has(SMB2_FLAGS_ASYNC_COMMAND)
}

func (hdr *PacketHeader) IsResponse() bool {
	return hdr.Flags.Has(SMB2_FLAGS_SERVER_TO_REDIR)
}

func (hdr *PacketHeader) encode(w *smbenc.Writer, cmd Command) {
	hdr.Command = cmd

	w.WriteBytes([]byte(MAGIC))
	w.WriteUint16(HeaderSize)
	w.WriteUint16(hdr.CreditCharge)
	w.WriteUint32(hdr.Status)
	w.WriteUint16(uint16(cmd))
	w.WriteUint16(hdr.CreditRequestResponse)
	w.WriteUint32(uint32(hdr.Flags))
	w.WriteUint32(hdr.NextCommand)
	w.WriteUint64(hdr.MessageId)
	if hdr.IsAsync() {
		w.WriteUint64(hdr.AsyncId)
	} else {
		w.WriteUint32(hdr.ProcessId)
		w.WriteUint32(hdr.TreeId)
	}
	w.WriteUint64(hdr.SessionId)
	w.WriteBytes(hdr.Signature[:])
}

func (hdr *PacketHeader) decode(r *smbenc.Reader) {
	r.ExpectBytes([]byte(MAGIC))
	r.ExpectUint16(HeaderSize)
	hdr.CreditCharge = r.ReadUint16()
	hdr.Status = r.ReadUint32()
	hdr.Command = Command(r.ReadUint16())
	hdr.CreditRequestResponse = r.ReadUint16()
	hdr.Flags = HeaderFlags(r.ReadUint32())
	hdr.NextCommand = r.ReadUint32()
	hdr.MessageId = r.ReadUint64()
	if hdr.IsAsync() {
		hdr.AsyncId = r.ReadUint64()
	} else {
		hdr.ProcessId = r.ReadUint32()
		hdr.TreeId = r.ReadUint32()
	}
	hdr.SessionId = r.ReadUint64()
	r.ReadInto(hdr.Signature[:])
}

// DecodeHeader decodes only the header of pkt.
func DecodeHeader(pkt []byte) (*PacketHeader, error) {
	var hdr PacketHeader

	r := smbenc.NewReader(pkt)
	hdr.decode(r)
	if err := r.Err(); err != nil {
		return nil, &DecodeError{Message: "header", Err: err}
	}
	return &hdr, nil
}

// ----------------------------------------------------------------------------
// SMB2 Message Interface
//

type Message interface {
	Header() *PacketHeader
	Encode(w *smbenc.Writer)
	Decode(r *smbenc.Reader) error
}

// Marshal encodes m into a new packet.
func Marshal(m Message) ([]byte, error) {
	w := smbenc.NewWriter(HeaderSize + 64)
	m.Encode(w)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal decodes pkt into m.
func Unmarshal(pkt []byte, m Message) error {
	return m.Decode(smbenc.NewReader(pkt))
}

// DecodeError reports a malformed or truncated message.
type DecodeError struct {
	Command Command
	Message string
	Err     error
}

func (err *DecodeError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("smb2: broken %v %s: %v", err.Command, err.Message, err.Err)
	}
	return fmt.Sprintf("smb2: broken %v %s", err.Command, err.Message)
}

func (err *DecodeError) Unwrap() error {
	return err.Err
}

// decodeBody decodes the header, checks the command and structure size, and
// wraps any codec error into a *DecodeError.
func decodeBody(r *smbenc.Reader, hdr *PacketHeader, cmd Command, what string, structureSize uint16, body func()) error {
	hdr.decode(r)
	if err := r.Err(); err != nil {
		return &DecodeError{Command: cmd, Message: what + " header", Err: err}
	}
	if hdr.Command != cmd {
		return &DecodeError{Command: cmd, Message: fmt.Sprintf("%s: unexpected command %v", what, hdr.Command)}
	}
	r.ExpectUint16(structureSize)
	body()
	if err := r.Err(); err != nil {
		return &DecodeError{Command: cmd, Message: what, Err: err}
	}
	return nil
}
