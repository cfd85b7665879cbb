package smbclient

import (
	"context"
	"crypto/rand"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smbclient-go/smbclient/internal/logger"
	"github.com/smbclient-go/smbclient/internal/smb2"

	. "github.com/smbclient-go/smbclient/internal/erref"
)

// requestResponse is an entry of the pending table.
type requestResponse struct {
	msgId        uint64
	asyncId      uint64 // set by an interim response; guarded by conn.m
	creditCharge uint16
	command      smb2.Command
	sessionId    uint64
	treeId       uint32
	start        time.Time

	recv chan []byte // buffered(1); nil pkt means err is set
	err  error
}

// conn is one transport connection with its negotiated parameters, credit
// account and pending table.
type conn struct {
	t       Transport
	account *account
	metrics *metrics

	dialect         uint16
	securityMode    uint16
	capabilities    uint32
	clientGuid      [16]byte
	serverGuid      [16]byte
	maxTransactSize uint32
	maxReadSize     uint32
	maxWriteSize    uint32

	wmu       sync.Mutex // serializes message id assignment with the transport write
	messageId uint64

	m           sync.Mutex
	outstanding map[uint64]*requestResponse
	err         error

	closing      atomic.Bool
	done         chan struct{}
	once         sync.Once
	onDisconnect func(error)
}

func newConn(t Transport, cfg *Config, m *metrics) *conn {
	c := &conn{
		t:            t,
		account:      openAccount(cfg.MaxCreditBalance, m),
		metrics:      m,
		clientGuid:   uuid.New(),
		outstanding:  make(map[uint64]*requestResponse),
		done:         make(chan struct{}),
		onDisconnect: cfg.OnDisconnect,
	}

	go c.runReceiver()

	return c
}

func (c *conn) negotiate(ctx context.Context, dialects []uint16) error {
	req := &smb2.NegotiateRequest{
		SecurityMode: clientSecurityMode,
		Capabilities: clientCapabilities,
		ClientGuid:   c.clientGuid,
		Dialects:     dialects,
	}

	if slices.Contains(dialects, smb2.SMB311) {
		salt := make([]byte, 32)
		if _, err := rand.Read(salt); err != nil {
			return &InternalError{err.Error()}
		}
		req.Contexts = []smb2.NegotiateContext{smb2.HashContext(clientHashAlgorithms, salt)}
	}

	res := new(smb2.NegotiateResponse)

	if _, err := c.call(ctx, req, res, 0, 0); err != nil {
		return err
	}

	if !slices.Contains(dialects, res.DialectRevision) {
		return &InvalidResponseError{Message: fmt.Sprintf("unexpected dialect returned: 0x%03x", res.DialectRevision)}
	}

	if res.DialectRevision == smb2.SMB311 {
		ok := false
		for _, nc := range res.Contexts {
			if nc.ContextType == smb2.SMB2_PREAUTH_INTEGRITY_CAPABILITIES {
				ok = true
			}
		}
		if !ok {
			return &InvalidResponseError{Message: "missing preauth integrity capabilities"}
		}
	}

	c.dialect = res.DialectRevision
	c.securityMode = res.SecurityMode
	c.capabilities = clientCapabilities & res.Capabilities
	c.serverGuid = res.ServerGuid
	c.maxTransactSize = clampTransfer(res.MaxTransactSize, c.capabilities)
	c.maxReadSize = clampTransfer(res.MaxReadSize, c.capabilities)
	c.maxWriteSize = clampTransfer(res.MaxWriteSize, c.capabilities)

	if c.securityMode&smb2.SMB2_NEGOTIATE_SIGNING_REQUIRED != 0 {
		logger.Warn("server requires message signing; unsigned requests may be rejected")
	}

	logger.Debug("negotiated",
		logger.KeyDialect, dialectName(c.dialect),
		"max_read", c.maxReadSize,
		"max_write", c.maxWriteSize)

	return nil
}

func clampTransfer(size, capabilities uint32) uint32 {
	limit := uint32(clientMaxTransferSize)
	if capabilities&smb2.SMB2_GLOBAL_CAP_LARGE_MTU == 0 {
		limit = creditUnit
	}
	if size == 0 || size > limit {
		return limit
	}
	return size
}

// loanCredit takes the credits for a payload of size bytes. When fewer
// credits are available the payload shrinks to what they cover, so the
// returned n may be smaller than size.
func (c *conn) loanCredit(ctx context.Context, size int) (charge uint16, n int, err error) {
	want := uint16(1)
	if c.capabilities&smb2.SMB2_GLOBAL_CAP_LARGE_MTU != 0 {
		want = creditsFor(size)
	}

	charge, err = c.account.loan(ctx, c.done, want)
	if err == errAccountClosed {
		return 0, 0, c.disconnected()
	}
	if err != nil {
		return 0, 0, &ContextError{Err: err}
	}

	if max := int(charge) * creditUnit; size > max {
		size = max
	}

	return charge, size, nil
}

// send transmits req, which has already been charged charge credits.
func (c *conn) send(req smb2.Message, charge uint16, sessionId uint64, treeId uint32) (*requestResponse, error) {
	hdr := req.Header()

	hdr.CreditCharge = charge
	if c.dialect == smb2.UnknownSMB || c.dialect == smb2.SMB202 {
		hdr.CreditCharge = 0
	}
	hdr.CreditRequestResponse = c.account.request(charge)
	hdr.SessionId = sessionId
	hdr.TreeId = treeId

	c.wmu.Lock()
	defer c.wmu.Unlock()

	hdr.MessageId = c.messageId

	pkt, err := smb2.Marshal(req)
	if err != nil {
		c.account.grant(charge)
		return nil, &InternalError{err.Error()}
	}

	rr := &requestResponse{
		msgId:        hdr.MessageId,
		creditCharge: charge,
		command:      hdr.Command,
		sessionId:    sessionId,
		treeId:       treeId,
		start:        time.Now(),
		recv:         make(chan []byte, 1),
	}

	c.m.Lock()
	if c.err != nil {
		err := c.err
		c.m.Unlock()
		return nil, err
	}
	c.outstanding[rr.msgId] = rr
	c.m.Unlock()

	if err := c.t.Send(pkt); err != nil {
		c.m.Lock()
		delete(c.outstanding, rr.msgId)
		c.m.Unlock()
		return nil, &TransportError{err}
	}

	ids := uint64(charge)
	if ids == 0 {
		ids = 1
	}
	c.messageId += ids

	if logger.Enabled(logger.LevelDebug) {
		logger.Debug("send",
			logger.KeyCommand, rr.command,
			logger.KeyMessageID, rr.msgId,
			logger.KeyCharge, charge,
			logger.KeyCredits, c.account.balance())
	}

	return rr, nil
}

// recv waits for the response of rr. A canceled ctx abandons the request
// and sends SMB2 CANCEL on a best-effort basis.
func (c *conn) recv(ctx context.Context, rr *requestResponse) ([]byte, error) {
	select {
	case pkt := <-rr.recv:
		if pkt == nil {
			return nil, rr.err
		}
		return pkt, nil
	case <-ctx.Done():
		c.cancel(rr)
		return nil, &ContextError{Err: ctx.Err()}
	}
}

func (c *conn) cancel(rr *requestResponse) {
	c.m.Lock()
	if _, ok := c.outstanding[rr.msgId]; !ok {
		c.m.Unlock()
		return
	}
	delete(c.outstanding, rr.msgId)
	asyncId := rr.asyncId
	c.m.Unlock()

	req := new(smb2.CancelRequest)
	hdr := req.Header()
	hdr.MessageId = rr.msgId
	hdr.SessionId = rr.sessionId
	if asyncId != 0 {
		hdr.Flags |= smb2.SMB2_FLAGS_ASYNC_COMMAND
		hdr.AsyncId = asyncId
	} else {
		hdr.TreeId = rr.treeId
	}

	pkt, err := smb2.Marshal(req)
	if err == nil {
		err = c.t.Send(pkt)
	}

	args := []any{
		logger.KeyCommand, rr.command,
		logger.KeyMessageID, rr.msgId,
		logger.KeyAsyncID, asyncId,
	}
	logger.Debug("cancel", append(args, logger.Err(err)...)...)
}

// call loans one credit, sends req and decodes the response into res.
// Statuses in accepted are returned instead of being turned into errors.
func (c *conn) call(ctx context.Context, req, res smb2.Message, sessionId uint64, treeId uint32, accepted ...NtStatus) (NtStatus, error) {
	charge, _, err := c.loanCredit(ctx, 0)
	if err != nil {
		return 0, err
	}
	return c.roundTrip(ctx, req, res, charge, sessionId, treeId, accepted...)
}

// roundTrip sends req with credits already loaned and decodes its response.
func (c *conn) roundTrip(ctx context.Context, req, res smb2.Message, charge uint16, sessionId uint64, treeId uint32, accepted ...NtStatus) (NtStatus, error) {
	rr, err := c.send(req, charge, sessionId, treeId)
	if err != nil {
		return 0, err
	}

	pkt, err := c.recv(ctx, rr)
	if err != nil {
		return 0, err
	}

	return accept(pkt, res, sessionId, accepted...)
}

// accept decodes pkt into res. Error statuses become *ResponseError unless
// listed in accepted.
func accept(pkt []byte, res smb2.Message, sessionId uint64, accepted ...NtStatus) (NtStatus, error) {
	hdr, err := smb2.DecodeHeader(pkt)
	if err != nil {
		return 0, &InvalidResponseError{Message: err.Error(), Err: err}
	}

	if sessionId != 0 && hdr.SessionId != sessionId {
		return 0, &InvalidResponseError{Message: fmt.Sprintf("expected session id: %v, got %v", sessionId, hdr.SessionId)}
	}

	status := NtStatus(hdr.Status)

	if status != STATUS_SUCCESS && !slices.Contains(accepted, status) {
		return status, acceptError(pkt, status)
	}

	if err := smb2.Unmarshal(pkt, res); err != nil {
		return status, &InvalidResponseError{Message: err.Error(), Err: err}
	}

	return status, nil
}

func acceptError(pkt []byte, status NtStatus) error {
	var res smb2.ErrorResponse
	if err := smb2.Unmarshal(pkt, &res); err != nil {
		return &ResponseError{Code: uint32(status)}
	}
	return &ResponseError{Code: uint32(status), data: res.ErrorData}
}

func (c *conn) runReceiver() {
	var err error

	for {
		pkt, e := c.t.Receive()
		if e != nil {
			if c.closing.Load() {
				err = &TransportError{ErrClosed}
			} else {
				err = &TransportError{e}
			}
			break
		}

		// split compounded responses
		for len(pkt) > 0 {
			hdr, e := smb2.DecodeHeader(pkt)
			if e != nil {
				logger.Debug("discarding malformed message", logger.Err(e)...)
				break
			}

			msg := pkt
			if next := int(hdr.NextCommand); next != 0 && next < len(pkt) {
				msg, pkt = pkt[:next], pkt[next:]
			} else {
				pkt = nil
			}

			c.dispatch(hdr, msg)
		}
	}

	c.shutdown(err)
}

func (c *conn) dispatch(hdr *smb2.PacketHeader, pkt []byte) {
	c.account.grant(hdr.CreditRequestResponse)

	status := NtStatus(hdr.Status)

	c.m.Lock()
	rr, ok := c.outstanding[hdr.MessageId]
	if !ok {
		c.m.Unlock()
		logger.Debug("discarding unmatched response",
			logger.KeyCommand, hdr.Command,
			logger.KeyMessageID, hdr.MessageId,
			logger.KeyStatus, status.Name())
		return
	}
	if hdr.IsAsync() && status == STATUS_PENDING {
		rr.asyncId = hdr.AsyncId
		c.m.Unlock()
		logger.Debug("interim response",
			logger.KeyCommand, hdr.Command,
			logger.KeyMessageID, hdr.MessageId,
			logger.KeyAsyncID, hdr.AsyncId)
		return
	}
	delete(c.outstanding, hdr.MessageId)
	c.m.Unlock()

	c.metrics.recordRequest(rr.command.String(), status.Name(), time.Since(rr.start))

	if logger.Enabled(logger.LevelDebug) {
		logger.Debug("recv",
			logger.KeyCommand, hdr.Command,
			logger.KeyMessageID, hdr.MessageId,
			logger.KeyStatus, status.Name(),
			logger.KeyCredits, c.account.balance())
	}

	rr.recv <- pkt
}

// shutdown fails every pending request with err and only then reports the
// disconnect.
func (c *conn) shutdown(err error) {
	c.m.Lock()
	c.err = err
	pending := c.outstanding
	c.outstanding = nil
	c.m.Unlock()

	for _, rr := range pending {
		rr.err = err
		rr.recv <- nil
	}

	c.metrics.recordDisconnect()

	if c.closing.Load() {
		logger.Debug("connection closed", "pending", len(pending))
	} else {
		logger.Warn("connection lost", append([]any{"pending", len(pending)}, logger.Err(err)...)...)
	}

	close(c.done)

	c.once.Do(func() {
		if c.onDisconnect != nil {
			c.onDisconnect(err)
		}
	})
}

// disconnected returns the error that ended the connection, if any.
func (c *conn) disconnected() error {
	c.m.Lock()
	defer c.m.Unlock()
	return c.err
}

func (c *conn) close() error {
	c.closing.Store(true)
	err := c.t.Close()
	<-c.done
	return err
}
