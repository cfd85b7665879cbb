package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 TREE_CONNECT Request Packet
//

type TreeConnectRequest struct {
	PacketHeader

	Flags uint16
	Path  string
}

func (c *TreeConnectRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_TREE_CONNECT)

	path := smbenc.EncodeString(c.Path)
	f := smbenc.NewLayout(HeaderSize + 8).Add(path)

	w.WriteUint16(9)
	w.WriteUint16(c.Flags)
	w.WriteUint16(uint16(f.Offset))
	w.WriteUint16(f.Len)
	w.WriteBytes(path)
}

func (c *TreeConnectRequest) Decode(r *smbenc.Reader) error {
	var path []byte
	err := decodeBody(r, &c.PacketHeader, SMB2_TREE_CONNECT, "tree connect request", 9, func() {
		c.Flags = r.ReadUint16()
		off := r.ReadUint16()
		n := r.ReadUint16()
		path = r.Field(smbenc.Fields{Len: n, Offset: uint32(off)})
	})
	if err != nil {
		return err
	}
	c.Path, err = smbenc.DecodeString(path)
	if err != nil {
		return &DecodeError{Command: SMB2_TREE_CONNECT, Message: "tree connect path", Err: err}
	}
	return nil
}

// ----------------------------------------------------------------------------
// SMB2 TREE_CONNECT Response Packet
//

type TreeConnectResponse struct {
	PacketHeader

	ShareType     uint8
	ShareFlags    uint32
	Capabilities  uint32
	MaximalAccess uint32
}

func (c *TreeConnectResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_TREE_CONNECT)

	w.WriteUint16(16)
	w.WriteUint8(c.ShareType)
	w.WriteUint8(0)
	w.WriteUint32(c.ShareFlags)
	w.WriteUint32(c.Capabilities)
	w.WriteUint32(c.MaximalAccess)
}

func (c *TreeConnectResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_TREE_CONNECT, "tree connect response", 16, func() {
		c.ShareType = r.ReadUint8()
		r.Skip(1)
		c.ShareFlags = r.ReadUint32()
		c.Capabilities = r.ReadUint32()
		c.MaximalAccess = r.ReadUint32()
	})
}
