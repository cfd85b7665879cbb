package smb2

import (
	"github.com/smbclient-go/smbclient/internal/smbenc"
)

// ----------------------------------------------------------------------------
// SMB2 NEGOTIATE Contexts
//

// From SMB311

type NegotiateContext struct {
	ContextType uint16
	Data        []byte
}

func encodeNegotiateContexts(w *smbenc.Writer, ctxs []NegotiateContext) {
	for i, ctx := range ctxs {
		if i > 0 {
			w.Pad(8)
		}
		w.WriteUint16(ctx.ContextType)
		w.WriteUint16(uint16(len(ctx.Data)))
		w.WriteUint32(0) // Reserved
		w.WriteBytes(ctx.Data)
	}
}

func decodeNegotiateContexts(r *smbenc.Reader, off uint32, count uint16) []NegotiateContext {
	if count == 0 {
		return nil
	}
	r.Seek(int(off))
	ctxs := make([]NegotiateContext, 0, count)
	for i := 0; i < int(count); i++ {
		if i > 0 {
			r.Seek(smbenc.Roundup(r.Pos(), 8))
		}
		typ := r.ReadUint16()
		n := r.ReadUint16()
		r.Skip(4)
		data := r.ReadBytes(int(n))
		if r.Err() != nil {
			return nil
		}
		ctxs = append(ctxs, NegotiateContext{ContextType: typ, Data: data})
	}
	return ctxs
}

// HashContext builds SMB2_PREAUTH_INTEGRITY_CAPABILITIES.
func HashContext(algs []uint16, salt []byte) NegotiateContext {
	w := smbenc.NewWriter(4 + 2*len(algs) + len(salt))
	w.WriteUint16(uint16(len(algs)))
	w.WriteUint16(uint16(len(salt)))
	for _, alg := range algs {
		w.WriteUint16(alg)
	}
	w.WriteBytes(salt)
	return NegotiateContext{ContextType: SMB2_PREAUTH_INTEGRITY_CAPABILITIES, Data: w.Bytes()}
}

// CipherContext builds SMB2_ENCRYPTION_CAPABILITIES.
func CipherContext(ciphers []uint16) NegotiateContext {
	w := smbenc.NewWriter(2 + 2*len(ciphers))
	w.WriteUint16(uint16(len(ciphers)))
	for _, c := range ciphers {
		w.WriteUint16(c)
	}
	return NegotiateContext{ContextType: SMB2_ENCRYPTION_CAPABILITIES, Data: w.Bytes()}
}

// ----------------------------------------------------------------------------
// SMB2 NEGOTIATE Request Packet
//

type NegotiateRequest struct {
	PacketHeader

	SecurityMode uint16
	Capabilities uint32
	ClientGuid   [16]byte
	Dialects     []uint16
	Contexts     []NegotiateContext
}

func (c *NegotiateRequest) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_NEGOTIATE)

	w.WriteUint16(36)
	w.WriteUint16(uint16(len(c.Dialects)))
	w.WriteUint16(c.SecurityMode)
	w.WriteUint16(0)
	w.WriteUint32(c.Capabilities)
	w.WriteBytes(c.ClientGuid[:])
	ctxOffsetAt := w.Len()
	w.WriteUint32(0) // NegotiateContextOffset
	w.WriteUint16(uint16(len(c.Contexts)))
	w.WriteUint16(0)
	for _, d := range c.Dialects {
		w.WriteUint16(d)
	}

	if len(c.Contexts) > 0 {
		w.Pad(8)
		w.PutUint32At(ctxOffsetAt, uint32(w.Len()))
		encodeNegotiateContexts(w, c.Contexts)
	}
}

func (c *NegotiateRequest) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_NEGOTIATE, "negotiate request", 36, func() {
		n := r.ReadUint16()
		c.SecurityMode = r.ReadUint16()
		r.Skip(2)
		c.Capabilities = r.ReadUint32()
		r.ReadInto(c.ClientGuid[:])
		ctxOff := r.ReadUint32()
		ctxCount := r.ReadUint16()
		r.Skip(2)
		c.Dialects = make([]uint16, 0, n)
		for i := 0; i < int(n) && r.Err() == nil; i++ {
			c.Dialects = append(c.Dialects, r.ReadUint16())
		}
		c.Contexts = decodeNegotiateContexts(r, ctxOff, ctxCount)
	})
}

// ----------------------------------------------------------------------------
// SMB2 NEGOTIATE Response Packet
//

type NegotiateResponse struct {
	PacketHeader

	SecurityMode    uint16
	DialectRevision uint16
	ServerGuid      [16]byte
	Capabilities    uint32
	MaxTransactSize uint32
	MaxReadSize     uint32
	MaxWriteSize    uint32
	SystemTime      Filetime
	ServerStartTime Filetime
	SecurityBuffer  []byte
	Contexts        []NegotiateContext
}

func (c *NegotiateResponse) Encode(w *smbenc.Writer) {
	c.PacketHeader.encode(w, SMB2_NEGOTIATE)

	l := smbenc.NewLayout(HeaderSize + 64)
	sec := l.Add(c.SecurityBuffer)

	w.WriteUint16(65)
	w.WriteUint16(c.SecurityMode)
	w.WriteUint16(c.DialectRevision)
	w.WriteUint16(uint16(len(c.Contexts)))
	w.WriteBytes(c.ServerGuid[:])
	w.WriteUint32(c.Capabilities)
	w.WriteUint32(c.MaxTransactSize)
	w.WriteUint32(c.MaxReadSize)
	w.WriteUint32(c.MaxWriteSize)
	w.WriteUint64(uint64(c.SystemTime))
	w.WriteUint64(uint64(c.ServerStartTime))
	w.WriteUint16(uint16(sec.Offset))
	w.WriteUint16(sec.Len)
	ctxOffsetAt := w.Len()
	w.WriteUint32(0)
	w.WriteBytes(c.SecurityBuffer)

	if len(c.Contexts) > 0 {
		w.Pad(8)
		w.PutUint32At(ctxOffsetAt, uint32(w.Len()))
		encodeNegotiateContexts(w, c.Contexts)
	}
}

func (c *NegotiateResponse) Decode(r *smbenc.Reader) error {
	return decodeBody(r, &c.PacketHeader, SMB2_NEGOTIATE, "negotiate response", 65, func() {
		c.SecurityMode = r.ReadUint16()
		c.DialectRevision = r.ReadUint16()
		ctxCount := r.ReadUint16()
		r.ReadInto(c.ServerGuid[:])
		c.Capabilities = r.ReadUint32()
		c.MaxTransactSize = r.ReadUint32()
		c.MaxReadSize = r.ReadUint32()
		c.MaxWriteSize = r.ReadUint32()
		c.SystemTime = Filetime(r.ReadUint64())
		c.ServerStartTime = Filetime(r.ReadUint64())
		secOff := r.ReadUint16()
		secLen := r.ReadUint16()
		ctxOff := r.ReadUint32()
		c.SecurityBuffer = r.Field(smbenc.Fields{Len: secLen, Offset: uint32(secOff)})
		if c.DialectRevision == SMB311 {
			c.Contexts = decodeNegotiateContexts(r, ctxOff, ctxCount)
		}
	})
}
