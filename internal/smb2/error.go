package smb2

import "github.com/smbclient-go/smbclient/internal/smbenc"

// ----------------------------------------------------------------------------
// SMB2 Error Response
//

type ErrorResponse struct {
	PacketHeader

	ErrorContextCount uint8
	ErrorData         []byte
}

func (c *ErrorResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, c.Command)

	w.WriteUint16(9)
	w.WriteUint8(c.ErrorContextCount)
	w.WriteUint8(0)
	w.WriteUint32(uint32(len(c.ErrorData)))
	if len(c.ErrorData) == 0 {
		w.WriteUint8(0)
	} else {
		w.WriteBytes(c.ErrorData)
	}
}

// Decode accepts an error response to any command.
func (c *ErrorResponse) Decode(r *smbenc.Reader) error {
	c.PacketHeader.decode(r)
	r.ExpectUint16(9)
	c.ErrorContextCount = r.ReadUint8()
	r.Skip(1)
	n := r.ReadUint32()
	if n > 0 {
		c.ErrorData = r.ReadBytes(int(n))
	}
	if err := r.Err(); err != nil {
		return &DecodeError{Command: c.Command, Message: "error response", Err: err}
	}
	return nil
}
