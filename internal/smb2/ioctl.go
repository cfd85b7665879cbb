package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 IOCTL Request Packet
//

type IoctlRequest struct {
	PacketHeader

	CtlCode           uint32
	FileId            *FileId
	MaxInputResponse  uint32
	MaxOutputResponse uint32
	Flags             uint32
	Input             []byte
	Output            []byte
}

func (c *IoctlRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_IOCTL)

	l := smbenc.NewLayout(HeaderSize + 56)
	in := l.Add(c.Input)
	out := l.Add(c.Output)

	w.WriteUint16(57)
	w.WriteUint16(0)
	w.WriteUint32(c.CtlCode)
	c.FileId.encode(w)
	w.WriteUint32(in.Offset)
	w.WriteUint32(uint32(len(c.Input)))
	w.WriteUint32(c.MaxInputResponse)
	w.WriteUint32(out.Offset)
	w.WriteUint32(uint32(len(c.Output)))
	w.WriteUint32(c.MaxOutputResponse)
	w.WriteUint32(c.Flags)
	w.WriteUint32(0)
	w.WriteBytes(c.Input)
	w.WriteBytes(c.Output)
}

func (c *IoctlRequest) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_IOCTL, "ioctl request", 57, func() {
		r.Skip(2)
		c.CtlCode = r.ReadUint32()
		c.FileId = decodeFileId(r)
		inOff := r.ReadUint32()
		inLen := r.ReadUint32()
		c.MaxInputResponse = r.ReadUint32()
		outOff := r.ReadUint32()
		outLen := r.ReadUint32()
		c.MaxOutputResponse = r.ReadUint32()
		c.Flags = r.ReadUint32()
		r.Skip(4)
		if inLen > 0 {
			c.Input = r.BytesAt(int(inOff), int(inLen))
		}
		if outLen > 0 {
			c.Output = r.BytesAt(int(outOff), int(outLen))
		}
	})
}

// ----------------------------------------------------------------------------
// SMB2 IOCTL Response Packet
//

type IoctlResponse struct {
	PacketHeader

	CtlCode uint32
	FileId  *FileId
	Flags   uint32
	Input   []byte
	Output  []byte
}

func (c *IoctlResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_IOCTL)

	l := smbenc.NewLayout(HeaderSize + 48)
	in := l.Add(c.Input)
	l.Align(8)
	out := l.Add(c.Output)

	w.WriteUint16(49)
	w.WriteUint16(0)
	w.WriteUint32(c.CtlCode)
	c.FileId.encode(w)
	w.WriteUint32(in.Offset)
	w.WriteUint32(uint32(len(c.Input)))
	w.WriteUint32(out.Offset)
	w.WriteUint32(uint32(len(c.Output)))
	w.WriteUint32(c.Flags)
	w.WriteUint32(0)
	w.WriteBytes(c.Input)
	w.PadTo(int(out.Offset))
	w.WriteBytes(c.Output)
}

func (c *IoctlResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_IOCTL, "ioctl response", 49, func() {
		r.Skip(2)
		c.CtlCode = r.ReadUint32()
		c.FileId = decodeFileId(r)
		inOff := r.ReadUint32()
		inLen := r.ReadUint32()
		outOff := r.ReadUint32()
		outLen := r.ReadUint32()
		c.Flags = r.ReadUint32()
		r.Skip(4)
		if inLen > 0 {
			c.Input = r.BytesAt(int(inOff), int(inLen))
		}
		if outLen > 0 {
			c.Output = r.BytesAt(int(outOff), int(outLen))
		}
	})
}
