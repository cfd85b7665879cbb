package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 CLOSE Request Packet
//

type CloseRequest struct {
	PacketHeader

	Flags  uint16
	FileId *FileId
}

func (c *CloseRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_CLOSE)

	w.WriteUint16(24)
	w.WriteUint16(c.Flags)
	w.WriteUint32(0)
	c.FileId.encode(w)
}

func (c *CloseRequest) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_CLOSE, "close request", 24, func() {
		c.Flags = r.ReadUint16()
		r.Skip(4)
		c.FileId = decodeFileId(r)
	})
}

// ----------------------------------------------------------------------------
// SMB2 CLOSE Response Packet
//

type CloseResponse struct {
	PacketHeader

	Flags          uint16
	CreationTime   Filetime
	LastAccessTime Filetime
	LastWriteTime  Filetime
	ChangeTime     Filetime
	AllocationSize int64
	EndOfFile      int64
	FileAttributes FileAttributes
}

func (c *CloseResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_CLOSE)

	w.WriteUint16(60)
	w.WriteUint16(c.Flags)
	w.WriteUint32(0)
	w.WriteUint64(uint64(c.CreationTime))
	w.WriteUint64(uint64(c.LastAccessTime))
	w.WriteUint64(uint64(c.LastWriteTime))
	w.WriteUint64(uint64(c.ChangeTime))
	w.WriteUint64(uint64(c.AllocationSize))
	w.WriteUint64(uint64(c.EndOfFile))
	w.WriteUint32(uint32(c.FileAttributes))
}

func (c *CloseResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_CLOSE, "close response", 60, func() {
		c.Flags = r.ReadUint16()
		r.Skip(4)
		c.CreationTime = Filetime(r.ReadUint64())
		c.LastAccessTime = Filetime(r.ReadUint64())
		c.LastWriteTime = Filetime(r.ReadUint64())
		c.ChangeTime = Filetime(r.ReadUint64())
		c.AllocationSize = int64(r.ReadUint64())
		c.EndOfFile = int64(r.ReadUint64())
		c.FileAttributes = FileAttributes(r.ReadUint32())
	})
}

// ----------------------------------------------------------------------------
// SMB2 FLUSH Request Packet
//

type FlushRequest struct {
	PacketHeader

	FileId *FileId
}

func (c *FlushRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_FLUSH)

	w.WriteUint16(24)
	w.WriteUint16(0)
	w.WriteUint32(0)
	c.FileId.encode(w)
}

func (c *FlushRequest) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_FLUSH, "flush request", 24, func() {
		r.Skip(6)
		c.FileId = decodeFileId(r)
	})
}
