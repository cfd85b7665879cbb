package smbclient

import (
	"context"
	"fmt"

	"github.com/smbclient-go/smbclient/internal/logger"
	"github.com/smbclient-go/smbclient/internal/smb2"

	. "github.com/smbclient-go/smbclient/internal/erref"
)

type treeConn struct {
	*session
	path string

	treeId uint32

	shareType     uint8
	shareFlags    uint32
	capabilities  uint32
	maximalAccess uint32
}

func treeConnect(ctx context.Context, s *session, path string) (*treeConn, error) {
	req := &smb2.TreeConnectRequest{
		Path: path,
	}
	res := new(smb2.TreeConnectResponse)

	if _, err := s.call(ctx, req, res); err != nil {
		return nil, err
	}

	tc := &treeConn{
		session:       s,
		path:          path,
		treeId:        res.TreeId,
		shareType:     res.ShareType,
		shareFlags:    res.ShareFlags,
		capabilities:  res.Capabilities,
		maximalAccess: res.MaximalAccess,
	}

	logger.Debug("tree connected",
		logger.KeyShare, path,
		logger.KeyTreeID, tc.treeId,
		"share_type", tc.shareType)

	return tc, nil
}

func (tc *treeConn) disconnect(ctx context.Context) error {
	req := new(smb2.TreeDisconnectRequest)
	res := new(smb2.TreeDisconnectResponse)

	_, err := tc.call(ctx, req, res)
	return err
}

// call sends a single-credit request on the tree.
func (tc *treeConn) call(ctx context.Context, req, res smb2.Message, accepted ...NtStatus) (NtStatus, error) {
	status, err := tc.conn.call(ctx, req, res, tc.sessionId, tc.treeId, accepted...)
	if err != nil {
		return status, err
	}
	return status, tc.checkTree(res)
}

// transfer sends a request whose charge was loaned by the caller.
func (tc *treeConn) transfer(ctx context.Context, req, res smb2.Message, charge uint16, accepted ...NtStatus) (NtStatus, error) {
	status, err := tc.conn.roundTrip(ctx, req, res, charge, tc.sessionId, tc.treeId, accepted...)
	if err != nil {
		return status, err
	}
	return status, tc.checkTree(res)
}

func (tc *treeConn) checkTree(res smb2.Message) error {
	hdr := res.Header()
	if !hdr.IsAsync() && hdr.TreeId != tc.treeId {
		return &InvalidResponseError{Message: fmt.Sprintf("expected tree id: %v, got %v", tc.treeId, hdr.TreeId)}
	}
	return nil
}
