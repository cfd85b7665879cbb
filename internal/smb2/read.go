package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 READ Request Packet
//

type ReadRequest struct {
	PacketHeader

	Padding         uint8
	Flags           uint8
	Length          uint32
	Offset          uint64
	FileId          *FileId
	MinimumCount    uint32
	Channel         uint32
	RemainingBytes  uint32
	ReadChannelInfo []byte
}

func (c *ReadRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_READ)

	var rf smbenc.Fields
	if len(c.ReadChannelInfo) > 0 {
		rf = smbenc.NewLayout(HeaderSize + 48).Add(c.ReadChannelInfo)
	}

	w.WriteUint16(49)
	w.WriteUint8(c.Padding)
	w.WriteUint8(c.Flags)
	w.WriteUint32(c.Length)
	w.WriteUint64(c.Offset)
	c.FileId.encode(w)
	w.WriteUint32(c.MinimumCount)
	w.WriteUint32(c.Channel)
	w.WriteUint32(c.RemainingBytes)
	w.WriteUint16(uint16(rf.Offset))
	w.WriteUint16(rf.Len)
	if len(c.ReadChannelInfo) > 0 {
		w.WriteBytes(c.ReadChannelInfo)
	} else {
		w.WriteUint8(0)
	}
}

func (c *ReadRequest) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_READ, "read request", 49, func() {
		c.Padding = r.ReadUint8()
		c.Flags = r.ReadUint8()
		c.Length = r.ReadUint32()
		c.Offset = r.ReadUint64()
		c.FileId = decodeFileId(r)
		c.MinimumCount = r.ReadUint32()
		c.Channel = r.ReadUint32()
		c.RemainingBytes = r.ReadUint32()
		off := r.ReadUint16()
		n := r.ReadUint16()
		c.ReadChannelInfo = r.Field(smbenc.Fields{Len: n, Offset: uint32(off)})
	})
}

// ----------------------------------------------------------------------------
// SMB2 READ Response Packet
//

type ReadResponse struct {
	PacketHeader

	DataRemaining uint32
	Data          []byte
}

func (c *ReadResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_READ)

	w.WriteUint16(17)
	w.WriteUint8(HeaderSize + 16)
	w.WriteUint8(0)
	w.WriteUint32(uint32(len(c.Data)))
	w.WriteUint32(c.DataRemaining)
	w.WriteUint32(0)
	w.WriteBytes(c.Data)
}

func (c *ReadResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_READ, "read response", 17, func() {
		off := r.ReadUint8()
		r.Skip(1)
		n := r.ReadUint32()
		c.DataRemaining = r.ReadUint32()
		r.Skip(4)
		if n > 0 {
			c.Data = r.BytesAt(int(off), int(n))
		}
	})
}
