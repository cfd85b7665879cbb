package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 CREATE Request Packet
//

type CreateRequest struct {
	PacketHeader

	SecurityFlags        uint8
	RequestedOplockLevel uint8
	ImpersonationLevel   uint32
	SmbCreateFlags       uint64
	DesiredAccess        uint32
	FileAttributes       FileAttributes
	ShareAccess          uint32
	CreateDisposition    uint32
	CreateOptions        uint32
	Name                 string
	Contexts             []byte // raw SMB2_CREATE_CONTEXT chain
}

func (c *CreateRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_CREATE)

	name := smbenc.EncodeString(c.Name)

	l := smbenc.NewLayout(HeaderSize + 56)
	nf := l.Add(name)
	if len(name) == 0 {
		// the buffer must not be empty
		l.Add([]byte{0})
	}
	var cf smbenc.Fields
	if len(c.Contexts) > 0 {
		l.Align(8)
		cf = l.Add(c.Contexts)
	}

	w.WriteUint16(57)
	w.WriteUint8(c.SecurityFlags)
	w.WriteUint8(c.RequestedOplockLevel)
	w.WriteUint32(c.ImpersonationLevel)
	w.WriteUint64(c.SmbCreateFlags)
	w.WriteUint64(0) // Reserved
	w.WriteUint32(c.DesiredAccess)
	w.WriteUint32(uint32(c.FileAttributes))
	w.WriteUint32(c.ShareAccess)
	w.WriteUint32(c.CreateDisposition)
	w.WriteUint32(c.CreateOptions)
	w.WriteUint16(uint16(nf.Offset))
	w.WriteUint16(nf.Len)
	w.WriteUint32(cf.Offset)
	w.WriteUint32(uint32(len(c.Contexts)))
	w.WriteBytes(name)
	if len(name) == 0 {
		w.WriteUint8(0)
	}
	if len(c.Contexts) > 0 {
		w.PadTo(int(cf.Offset))
		w.WriteBytes(c.Contexts)
	}
}

func (c *CreateRequest) Decode(r *smbenc.Reader) error {
	var name []byte
	err := decodeBody(r, &c.PacketHeader, SMB2_CREATE, "create request", 57, func() {
		c.SecurityFlags = r.ReadUint8()
		c.RequestedOplockLevel = r.ReadUint8()
		c.ImpersonationLevel = r.ReadUint32()
		c.SmbCreateFlags = r.ReadUint64()
		r.Skip(8)
		c.DesiredAccess = r.ReadUint32()
		c.FileAttributes = FileAttributes(r.ReadUint32())
		c.ShareAccess = r.ReadUint32()
		c.CreateDisposition = r.ReadUint32()
		c.CreateOptions = r.ReadUint32()
		noff := r.ReadUint16()
		nlen := r.ReadUint16()
		coff := r.ReadUint32()
		clen := r.ReadUint32()
		name = r.Field(smbenc.Fields{Len: nlen, Offset: uint32(noff)})
		if clen > 0 {
			c.Contexts = r.BytesAt(int(coff), int(clen))
		}
	})
	if err != nil {
		return err
	}
	c.Name, err = smbenc.DecodeString(name)
	if err != nil {
		return &DecodeError{Command: SMB2_CREATE, Message: "create name", Err: err}
	}
	return nil
}

// ----------------------------------------------------------------------------
// SMB2 CREATE Response Packet
//

type CreateResponse struct {
	PacketHeader

	OplockLevel    uint8
	Flags          uint8
	CreateAction   uint32
	CreationTime   Filetime
	LastAccessTime Filetime
	LastWriteTime  Filetime
	ChangeTime     Filetime
	AllocationSize int64
	EndOfFile      int64
	FileAttributes FileAttributes
	FileId         *FileId
	Contexts       []byte
}

func (c *CreateResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_CREATE)

	var cf smbenc.Fields
	if len(c.Contexts) > 0 {
		l := smbenc.NewLayout(HeaderSize + 88)
		l.Align(8)
		cf = l.Add(c.Contexts)
	}

	w.WriteUint16(89)
	w.WriteUint8(c.OplockLevel)
	w.WriteUint8(c.Flags)
	w.WriteUint32(c.CreateAction)
	w.WriteUint64(uint64(c.CreationTime))
	w.WriteUint64(uint64(c.LastAccessTime))
	w.WriteUint64(uint64(c.LastWriteTime))
	w.WriteUint64(uint64(c.ChangeTime))
	w.WriteUint64(uint64(c.AllocationSize))
	w.WriteUint64(uint64(c.EndOfFile))
	w.WriteUint32(uint32(c.FileAttributes))
	w.WriteUint32(0) // Reserved2
	c.FileId.encode(w)
	w.WriteUint32(cf.Offset)
	w.WriteUint32(uint32(len(c.Contexts)))
	if len(c.Contexts) > 0 {
		w.PadTo(int(cf.Offset))
		w.WriteBytes(c.Contexts)
	}
}

func (c *CreateResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_CREATE, "create response", 89, func() {
		c.OplockLevel = r.ReadUint8()
		c.Flags = r.ReadUint8()
		c.CreateAction = r.ReadUint32()
		c.CreationTime = Filetime(r.ReadUint64())
		c.LastAccessTime = Filetime(r.ReadUint64())
		c.LastWriteTime = Filetime(r.ReadUint64())
		c.ChangeTime = Filetime(r.ReadUint64())
		c.AllocationSize = int64(r.ReadUint64())
		c.EndOfFile = int64(r.ReadUint64())
		c.FileAttributes = FileAttributes(r.ReadUint32())
		r.Skip(4)
		c.FileId = decodeFileId(r)
		coff := r.ReadUint32()
		clen := r.ReadUint32()
		if clen > 0 {
			c.Contexts = r.BytesAt(int(coff), int(clen))
		}
	})
}
