package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 WRITE Request Packet
//

type WriteRequest struct {
	PacketHeader

	Offset           uint64
	FileId           *FileId
	Channel          uint32
	RemainingBytes   uint32
	Flags            uint32
	WriteChannelInfo []byte
	Data             []byte
}

func (c *WriteRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_WRITE)

	l := smbenc.NewLayout(HeaderSize + 48)
	df := l.Add(c.Data)
	var cf smbenc.Fields
	if len(c.WriteChannelInfo) > 0 {
		cf = l.Add(c.WriteChannelInfo)
	}

	w.WriteUint16(49)
	w.WriteUint16(uint16(df.Offset))
	w.WriteUint32(uint32(len(c.Data)))
	w.WriteUint64(c.Offset)
	c.FileId.encode(w)
	w.WriteUint32(c.Channel)
	w.WriteUint32(c.RemainingBytes)
	w.WriteUint16(uint16(cf.Offset))
	w.WriteUint16(cf.Len)
	w.WriteUint32(c.Flags)
	w.WriteBytes(c.Data)
	w.WriteBytes(c.WriteChannelInfo)
	if len(c.Data) == 0 && len(c.WriteChannelInfo) == 0 {
		w.WriteUint8(0)
	}
}

func (c *WriteRequest) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_WRITE, "write request", 49, func() {
		doff := r.ReadUint16()
		n := r.ReadUint32()
		c.Offset = r.ReadUint64()
		c.FileId = decodeFileId(r)
		c.Channel = r.ReadUint32()
		c.RemainingBytes = r.ReadUint32()
		coff := r.ReadUint16()
		clen := r.ReadUint16()
		c.Flags = r.ReadUint32()
		if n > 0 {
			c.Data = r.BytesAt(int(doff), int(n))
		}
		c.WriteChannelInfo = r.Field(smbenc.Fields{Len: clen, Offset: uint32(coff)})
	})
}

// ----------------------------------------------------------------------------
// SMB2 WRITE Response Packet
//

type WriteResponse struct {
	PacketHeader

	Count     uint32
	Remaining uint32
}

func (c *WriteResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_WRITE)

	w.WriteUint16(17)
	w.WriteUint16(0)
	w.WriteUint32(c.Count)
	w.WriteUint32(c.Remaining)
	w.WriteUint16(0)
	w.WriteUint16(0)
}

func (c *WriteResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_WRITE, "write response", 17, func() {
		r.Skip(2)
		c.Count = r.ReadUint32()
		c.Remaining = r.ReadUint32()
		r.Skip(4)
	})
}
