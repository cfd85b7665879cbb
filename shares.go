package smbclient

import (
	"context"
	"fmt"

	"github.com/smbclient-go/smbclient/internal/logger"
	"github.com/smbclient-go/smbclient/internal/msrpc"
	"github.com/smbclient-go/smbclient/internal/smb2"
)

// ShareType is the shi1_type of SHARE_INFO_1.
type ShareType uint32

const (
	ShareTypeDisk    = ShareType(msrpc.STYPE_DISKTREE)
	ShareTypePrinter = ShareType(msrpc.STYPE_PRINTQ)
	ShareTypeDevice  = ShareType(msrpc.STYPE_DEVICE)
	ShareTypeIPC     = ShareType(msrpc.STYPE_IPC)

	ShareTypeSpecial   = ShareType(msrpc.STYPE_SPECIAL)
	ShareTypeTemporary = ShareType(msrpc.STYPE_TEMPORARY)
)

// Base strips the special and temporary bits.
func (t ShareType) Base() ShareType {
	return t &^ (ShareTypeSpecial | ShareTypeTemporary)
}

func (t ShareType) IsSpecial() bool {
	return t&ShareTypeSpecial != 0
}

func (t ShareType) String() string {
	var s string
	switch t.Base() {
	case ShareTypeDisk:
		s = "disk"
	case ShareTypePrinter:
		s = "printer"
	case ShareTypeDevice:
		s = "device"
	case ShareTypeIPC:
		s = "ipc"
	default:
		s = fmt.Sprintf("0x%x", uint32(t.Base()))
	}
	if t.IsSpecial() {
		s += " (special)"
	}
	return s
}

type Share struct {
	Name    string
	Type    ShareType
	Comment string
}

func (s Share) IsDisk() bool    { return s.Type.Base() == ShareTypeDisk }
func (s Share) IsPrinter() bool { return s.Type.Base() == ShareTypePrinter }
func (s Share) IsDevice() bool  { return s.Type.Base() == ShareTypeDevice }
func (s Share) IsIPC() bool     { return s.Type.Base() == ShareTypeIPC }

// IsAdmin reports an administrative share such as C$ or ADMIN$.
func (s Share) IsAdmin() bool { return s.Type.IsSpecial() }

// ListShares enumerates the server's shares through NetrShareEnum on
// IPC$\srvsvc. The connected share, if any, is left untouched.
func (c *Client) ListShares(ctx context.Context) (shares []Share, err error) {
	ctx, end := c.startSpan(ctx, "list_shares")
	defer end(&err)

	c.mu.Lock()
	s := c.s
	c.mu.Unlock()

	if s == nil {
		return nil, errNotLoggedIn
	}

	tc, err := treeConnect(ctx, s, sharePath(c.cfg.Host, "IPC$"))
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multiError(err, tc.disconnect(ctx))
	}()

	req := openRequest(
		smb2.FILE_READ_DATA|smb2.FILE_WRITE_DATA|smb2.FILE_READ_EA|smb2.FILE_READ_ATTRIBUTES|smb2.READ_CONTROL|smb2.SYNCHRONIZE,
		smb2.FILE_OPEN,
		0,
	)
	req.ShareAccess = smb2.FILE_SHARE_READ | smb2.FILE_SHARE_WRITE

	f, err := openFile(ctx, tc, "srvsvc", req)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multiError(err, f.close(ctx))
	}()

	callId := uint32(1)

	bind := &msrpc.Bind{CallId: callId}

	if _, err := f.writeAt(ctx, bind.Encode(), 0); err != nil {
		return nil, err
	}

	pdu, err := readPDU(ctx, f, nil, false)
	if err != nil {
		return nil, err
	}

	ack, err := msrpc.DecodeBindAck(pdu)
	if err != nil {
		return nil, &InvalidResponseError{Message: err.Error(), Err: err}
	}
	if !ack.Accepted {
		return nil, msrpc.ErrBindRejected
	}

	callId++

	enum := &msrpc.NetShareEnumAllRequest{
		CallId:     callId,
		ServerName: c.cfg.Host,
		Level:      1,
	}

	out, more, err := f.transceive(ctx, enum.Encode())
	if err != nil {
		return nil, err
	}

	pdu, err = readPDU(ctx, f, out, more)
	if err != nil {
		return nil, err
	}

	res, err := msrpc.DecodeNetShareEnumAllResponse(pdu)
	if err != nil {
		if _, ok := err.(*msrpc.FaultError); ok {
			return nil, err
		}
		return nil, &InvalidResponseError{Message: err.Error(), Err: err}
	}
	if res.Status != 0 {
		return nil, fmt.Errorf("NetrShareEnum failed: WERROR 0x%08x", res.Status)
	}

	shares = make([]Share, len(res.Shares))
	for i, sh := range res.Shares {
		shares[i] = Share{Name: sh.Name, Type: ShareType(sh.Type), Comment: sh.Comment}
	}

	logger.DebugCtx(ctx, "listed shares", "count", len(shares))

	return shares, nil
}

// readPDU keeps reading the pipe until a whole PDU, possibly split into
// several fragments and several SMB reads, is available.
func readPDU(ctx context.Context, f *RemoteFile, buf []byte, more bool) ([]byte, error) {
	for {
		if len(buf) > 0 && !more {
			pdu, done, err := msrpc.Reassemble(buf)
			if err != nil {
				return nil, &InvalidResponseError{Message: err.Error(), Err: err}
			}
			if done {
				return pdu, nil
			}
		}

		bs, overflow, err := f.readPipe(ctx)
		if err != nil {
			return nil, err
		}
		if len(bs) == 0 && !overflow {
			return nil, &InvalidResponseError{Message: "empty read on pipe"}
		}

		buf = append(buf, bs...)
		more = overflow
	}
}
