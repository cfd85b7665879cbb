package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 SESSION_SETUP Request Packet
//

type SessionSetupRequest struct {
	PacketHeader

	Flags             uint8
	SecurityMode      uint8
	Capabilities      uint32
	Channel           uint32
	SecurityBuffer    []byte
	PreviousSessionId uint64
}

func (c *SessionSetupRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_SESSION_SETUP)

	sec := smbenc.NewLayout(HeaderSize + 24).Add(c.SecurityBuffer)

	w.WriteUint16(25)
	w.WriteUint8(c.Flags)
	w.WriteUint8(c.SecurityMode)
	w.WriteUint32(c.Capabilities)
	w.WriteUint32(c.Channel)
	w.WriteUint16(uint16(sec.Offset))
	w.WriteUint16(sec.Len)
	w.WriteUint64(c.PreviousSessionId)
	w.WriteBytes(c.SecurityBuffer)
}

func (c *SessionSetupRequest) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_SESSION_SETUP, "session setup request", 25, func() {
		c.Flags = r.ReadUint8()
		c.SecurityMode = r.ReadUint8()
		c.Capabilities = r.ReadUint32()
		c.Channel = r.ReadUint32()
		off := r.ReadUint16()
		n := r.ReadUint16()
		c.PreviousSessionId = r.ReadUint64()
		c.SecurityBuffer = r.Field(smbenc.Fields{Len: n, Offset: uint32(off)})
	})
}

// ----------------------------------------------------------------------------
// SMB2 SESSION_SETUP Response Packet
//

type SessionSetupResponse struct {
	PacketHeader

	SessionFlags   uint16
	SecurityBuffer []byte
}

func (c *SessionSetupResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_SESSION_SETUP)

	sec := smbenc.NewLayout(HeaderSize + 8).Add(c.SecurityBuffer)

	w.WriteUint16(9)
	w.WriteUint16(c.SessionFlags)
	w.WriteUint16(uint16(sec.Offset))
	w.WriteUint16(sec.Len)
	w.WriteBytes(c.SecurityBuffer)
}

func (c *SessionSetupResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_SESSION_SETUP, "session setup response", 9, func() {
		c.SessionFlags = r.ReadUint16()
		off := r.ReadUint16()
		n := r.ReadUint16()
		c.SecurityBuffer = r.Field(smbenc.Fields{Len: n, Offset: uint32(off)})
	})
}
