package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// Messages whose body is StructureSize 4 followed by a reserved field.

type simple struct {
	PacketHeader
}

func (c *simple) encode(w *smbenc.Writer, cmd Command) {
	c.PacketHeader.encode(w, cmd)

	w.WriteUint16(4)
	w.WriteUint16(0)
}

func (c *simple) decode(r *smbenc.Reader, cmd Command, what string) error {
	return decodeBody(r, &c.PacketHeader, cmd, what, 4, func() {
		r.Skip(2)
	})
}

// ----------------------------------------------------------------------------
// SMB2 LOGOFF Request and Response
//

type LogoffRequest struct{ simple }

func (c *LogoffRequest) Encode(w *smbenc.Writer) { c.encode(w, SMB2_LOGOFF) }

func (c *LogoffRequest) Decode(r *smbenc.Reader) error {
	return c.decode(r, SMB2_LOGOFF, "logoff request")
}

type LogoffResponse struct{ simple }

func (c *LogoffResponse) Encode(w *smbenc.Writer) { c.encode(w, SMB2_LOGOFF) }

func (c *LogoffResponse) Decode(r *smbenc.Reader) error {
	return c.decode(r, SMB2_LOGOFF, "logoff response")
}

// ----------------------------------------------------------------------------
// SMB2 TREE_DISCONNECT Request and Response
//

type TreeDisconnectRequest struct{ simple }

func (c *TreeDisconnectRequest) Encode(w *smbenc.Writer) { c.encode(w, SMB2_TREE_DISCONNECT) }

func (c *TreeDisconnectRequest) Decode(r *smbenc.Reader) error {
	return c.decode(r, SMB2_TREE_DISCONNECT, "tree disconnect request")
}

type TreeDisconnectResponse struct{ simple }

func (c *TreeDisconnectResponse) Encode(w *smbenc.Writer) { c.encode(w, SMB2_TREE_DISCONNECT) }

func (c *TreeDisconnectResponse) Decode(r *smbenc.Reader) error {
	return c.decode(r, SMB2_TREE_DISCONNECT, "tree disconnect response")
}

// ----------------------------------------------------------------------------
// SMB2 ECHO Request and Response
//

type EchoRequest struct{ simple }

func (c *EchoRequest) Encode(w *smbenc.Writer) { c.encode(w, SMB2_ECHO) }

func (c *EchoRequest) Decode(r *smbenc.Reader) error {
	return c.decode(r, SMB2_ECHO, "echo request")
}

type EchoResponse struct{ simple }

func (c *EchoResponse) Encode(w *smbenc.Writer) { c.encode(w, SMB2_ECHO) }

func (c *EchoResponse) Decode(r *smbenc.Reader) error {
	return c.decode(r, SMB2_ECHO, "echo response")
}

// ----------------------------------------------------------------------------
// SMB2 CANCEL Request
//

type CancelRequest struct{ simple }

func (c *CancelRequest) Encode(w *smbenc.Writer) { c.encode(w, SMB2_CANCEL) }

func (c *CancelRequest) Decode(r *smbenc.Reader) error {
	return c.decode(r, SMB2_CANCEL, "cancel request")
}

// ----------------------------------------------------------------------------
// SMB2 FLUSH Response / SET_INFO Response
//

type FlushResponse struct{ simple }

func (c *FlushResponse) Encode(w *smbenc.Writer) { c.encode(w, SMB2_FLUSH) }

func (c *FlushResponse) Decode(r *smbenc.Reader) error {
	return c.decode(r, SMB2_FLUSH, "flush response")
}
