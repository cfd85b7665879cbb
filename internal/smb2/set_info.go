package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 SET_INFO Request Packet
//

type SetInfoRequest struct {
	PacketHeader

	InfoType              InfoType
	FileInfoClass         FileInformationClass
	AdditionalInformation uint32
	FileId                *FileId
	Buffer                []byte
}

// NewSetInfoRequest builds a file-level SET_INFO carrying info.
func NewSetInfoRequest(fileId *FileId, info InfoEncoder) *SetInfoRequest {
	w := smbenc.NewWriter(64)
	info.Encode(w)
	return &SetInfoRequest{
		InfoType:      SMB2_0_INFO_FILE,
		FileInfoClass: info.Class(),
		FileId:        fileId,
		Buffer:        w.Bytes(),
	}
}

func (c *SetInfoRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_SET_INFO)

	w.WriteUint16(33)
	w.WriteUint8(uint8(c.InfoType))
	w.WriteUint8(uint8(c.FileInfoClass))
	w.WriteUint32(uint32(len(c.Buffer)))
	w.WriteUint16(HeaderSize + 32)
	w.WriteUint16(0)
	w.WriteUint32(c.AdditionalInformation)
	c.FileId.encode(w)
	w.WriteBytes(c.Buffer)
}

func (c *SetInfoRequest) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_SET_INFO, "set info request", 33, func() {
		c.InfoType = InfoType(r.ReadUint8())
		c.FileInfoClass = FileInformationClass(r.ReadUint8())
		n := r.ReadUint32()
		off := r.ReadUint16()
		r.Skip(2)
		c.AdditionalInformation = r.ReadUint32()
		c.FileId = decodeFileId(r)
		if n > 0 {
			c.Buffer = r.BytesAt(int(off), int(n))
		}
	})
}

// ----------------------------------------------------------------------------
// SMB2 SET_INFO Response Packet
//

type SetInfoResponse struct {
	PacketHeader
}

func (c *SetInfoResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_SET_INFO)

	w.WriteUint16(2)
}

func (c *SetInfoResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_SET_INFO, "set info response", 2, func() {})
}
