package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 QUERY_INFO Request Packet
//

type QueryInfoRequest struct {
	PacketHeader

	InfoType              InfoType
	FileInfoClass         FileInformationClass
	OutputBufferLength    uint32
	AdditionalInformation uint32
	Flags                 uint32
	FileId                *FileId
	Input                 []byte
}

func (c *QueryInfoRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_QUERY_INFO)

	off := HeaderSize + 40
	if len(c.Input) == 0 {
		off = 0
	}

	w.WriteUint16(41)
	w.WriteUint8(uint8(c.InfoType))
	w.WriteUint8(uint8(c.FileInfoClass))
	w.WriteUint32(c.OutputBufferLength)
	w.WriteUint16(uint16(off))
	w.WriteUint16(0)
	w.WriteUint32(uint32(len(c.Input)))
	w.WriteUint32(c.AdditionalInformation)
	w.WriteUint32(c.Flags)
	c.FileId.encode(w)
	if len(c.Input) > 0 {
		w.WriteBytes(c.Input)
	} else {
		w.WriteUint8(0)
	}
}

func (c *QueryInfoRequest) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_QUERY_INFO, "query info request", 41, func() {
		c.InfoType = InfoType(r.ReadUint8())
		c.FileInfoClass = FileInformationClass(r.ReadUint8())
		c.OutputBufferLength = r.ReadUint32()
		off := r.ReadUint16()
		r.Skip(2)
		n := r.ReadUint32()
		c.AdditionalInformation = r.ReadUint32()
		c.Flags = r.ReadUint32()
		c.FileId = decodeFileId(r)
		if n > 0 {
			c.Input = r.BytesAt(int(off), int(n))
		}
	})
}

// ----------------------------------------------------------------------------
// SMB2 QUERY_INFO Response Packet
//

type QueryInfoResponse struct {
	PacketHeader

	OutputBuffer []byte
}

func (c *QueryInfoResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_QUERY_INFO)

	w.WriteUint16(9)
	w.WriteUint16(HeaderSize + 8)
	w.WriteUint32(uint32(len(c.OutputBuffer)))
	w.WriteBytes(c.OutputBuffer)
}

func (c *QueryInfoResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_QUERY_INFO, "query info response", 9, func() {
		off := r.ReadUint16()
		n := r.ReadUint32()
		if n > 0 {
			c.OutputBuffer = r.BytesAt(int(off), int(n))
		}
	})
}
