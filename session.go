package smbclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/smbclient-go/smbclient/internal/logger"
	"github.com/smbclient-go/smbclient/internal/smb2"

	. "github.com/smbclient-go/smbclient/internal/erref"
)

var errRejected = errors.New("security mechanism rejected the credentials")

// statuses a server uses to refuse credentials
var logonFailures = []NtStatus{
	STATUS_LOGON_FAILURE,
	STATUS_WRONG_PASSWORD,
	STATUS_NO_SUCH_USER,
	STATUS_ACCOUNT_RESTRICTION,
	STATUS_ACCOUNT_DISABLED,
	STATUS_PASSWORD_EXPIRED,
	STATUS_ACCESS_DENIED,
}

type session struct {
	*conn
	sessionFlags uint16
	sessionId    uint64
	sessionKey   []byte
	user         string
	domain       string
}

func sessionSetup(ctx context.Context, conn *conn, i initiator, user, domain string) (*session, error) {
	outputToken, _, err := i.init(nil)
	if err != nil {
		return nil, err
	}

	req := &smb2.SessionSetupRequest{
		SecurityMode:   clientSecurityMode,
		Capabilities:   conn.capabilities & smb2.SMB2_GLOBAL_CAP_DFS,
		SecurityBuffer: outputToken,
	}

	res := new(smb2.SessionSetupResponse)

	status, err := conn.call(ctx, req, res, 0, 0, STATUS_MORE_PROCESSING_REQUIRED)
	if err != nil {
		i.fail()
		return nil, authError(err)
	}
	if status != STATUS_MORE_PROCESSING_REQUIRED {
		i.fail()
		return nil, &InvalidResponseError{Message: fmt.Sprintf("unexpected session setup status: %v", status.Name())}
	}

	s := &session{
		conn:         conn,
		sessionId:    res.SessionId,
		sessionFlags: res.SessionFlags,
		user:         user,
		domain:       domain,
	}

	outputToken, _, err = i.init(res.SecurityBuffer)
	if err != nil {
		i.fail()
		return nil, err
	}

	req = &smb2.SessionSetupRequest{
		SecurityMode:   clientSecurityMode,
		Capabilities:   req.Capabilities,
		SecurityBuffer: outputToken,
	}

	res = new(smb2.SessionSetupResponse)

	if _, err := s.call(ctx, req, res); err != nil {
		i.fail()
		return nil, authError(err)
	}

	if err := i.verify(res.SecurityBuffer); err != nil {
		i.fail()
		return nil, err
	}

	s.sessionFlags = res.SessionFlags
	s.sessionKey = i.sessionKey()

	logger.Debug("session established",
		logger.KeySessionID, s.sessionId,
		logger.KeyUsername, user,
		logger.KeyDomain, domain,
		"guest", s.isGuest())

	return s, nil
}

// authError maps a credential rejection to *AuthenticationError.
func authError(err error) error {
	if hasStatus(err, logonFailures...) {
		var rerr *ResponseError
		errors.As(err, &rerr)
		return &AuthenticationError{Code: rerr.Code}
	}
	return err
}

func (s *session) isGuest() bool {
	return s.sessionFlags&(smb2.SMB2_SESSION_FLAG_IS_GUEST|smb2.SMB2_SESSION_FLAG_IS_NULL) != 0
}

func (s *session) logoff(ctx context.Context) error {
	req := new(smb2.LogoffRequest)
	res := new(smb2.LogoffResponse)

	_, err := s.call(ctx, req, res)
	return err
}

// call sends a single-credit request within the session.
func (s *session) call(ctx context.Context, req, res smb2.Message, accepted ...NtStatus) (NtStatus, error) {
	return s.conn.call(ctx, req, res, s.sessionId, 0, accepted...)
}
