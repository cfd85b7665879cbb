package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

type QueryDirectoryFlags uint8

const (
	SMB2_RESTART_SCANS       QueryDirectoryFlags = 0x01
	SMB2_RETURN_SINGLE_ENTRY QueryDirectoryFlags = 0x02
	SMB2_INDEX_SPECIFIED     QueryDirectoryFlags = 0x04
	SMB2_REOPEN              QueryDirectoryFlags = 0x10
)

func (f QueryDirectoryFlags) Has(x QueryDirectoryFlags) bool {
	return f&x == x
}

// ----------------------------------------------------------------------------
// SMB2 QUERY_DIRECTORY Request Packet
//

type QueryDirectoryRequest struct {
	PacketHeader

	FileInformationClass FileInformationClass
	Flags                QueryDirectoryFlags
	FileIndex            uint32
	FileId               *FileId
	OutputBufferLength   uint32
	FileName             string
}

func (c *QueryDirectoryRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_QUERY_DIRECTORY)

	name := smbenc.EncodeString(c.FileName)
	nf := smbenc.NewLayout(HeaderSize + 32).Add(name)

	w.WriteUint16(33)
	w.WriteUint8(uint8(c.FileInformationClass))
	w.WriteUint8(uint8(c.Flags))
	w.WriteUint32(c.FileIndex)
	c.FileId.encode(w)
	w.WriteUint16(uint16(nf.Offset))
	w.WriteUint16(nf.Len)
	w.WriteUint32(c.OutputBufferLength)
	w.WriteBytes(name)
}

func (c *QueryDirectoryRequest) Decode(r *smbenc.Reader) error {
	err := decodeBody(r, &c.PacketHeader, SMB2_QUERY_DIRECTORY, "query directory request", 33, func() {
		c.FileInformationClass = FileInformationClass(r.ReadUint8())
		c.Flags = QueryDirectoryFlags(r.ReadUint8())
		c.FileIndex = r.ReadUint32()
		c.FileId = decodeFileId(r)
		off := r.ReadUint16()
		n := r.ReadUint16()
		c.OutputBufferLength = r.ReadUint32()
		c.FileName = smbenc.DecodeStringOrHex(r.Field(smbenc.Fields{Len: n, Offset: uint32(off)}))
	})
	if err != nil {
		return err
	}
	if err := ValidateDirectoryClass(c.FileInformationClass); err != nil {
		return &DecodeError{Command: SMB2_QUERY_DIRECTORY, Message: "query directory request", Err: err}
	}
	return nil
}

// ----------------------------------------------------------------------------
// SMB2 QUERY_DIRECTORY Response Packet
//

type QueryDirectoryResponse struct {
	PacketHeader

	OutputBuffer []byte
}

func (c *QueryDirectoryResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_QUERY_DIRECTORY)

	w.WriteUint16(9)
	w.WriteUint16(HeaderSize + 8)
	w.WriteUint32(uint32(len(c.OutputBuffer)))
	w.WriteBytes(c.OutputBuffer)
}

func (c *QueryDirectoryResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_QUERY_DIRECTORY, "query directory response", 9, func() {
		off := r.ReadUint16()
		n := r.ReadUint32()
		if n > 0 {
			c.OutputBuffer = r.BytesAt(int(off), int(n))
		}
	})
}

// Entries decodes the output buffer as FileIdBothDirectoryInformation.
func (c *QueryDirectoryResponse) Entries() *DirectoryIterator {
	return NewDirectoryIterator(c.OutputBuffer)
}
