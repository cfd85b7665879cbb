// Package smbtest provides an in-memory SMB2 server for tests. It speaks
// enough of the protocol to exercise a client end to end: NTLMv2 logon,
// disk and IPC$ trees, file and directory operations, srvsvc share
// enumeration. It audits the credits and message ids every request uses.
package smbtest

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/smbclient-go/smbclient/internal/smb2"

	. "github.com/smbclient-go/smbclient/internal/erref"
)

const (
	defaultMaxCredits   = 512
	defaultTransferSize = 1024 * 1024
)

// Server is an in-memory SMB2 server. Exported fields must be set before
// the first connection.
type Server struct {
	Name         string // NetBIOS/DNS name used in NTLM target info
	Dialect      uint16 // highest dialect to select (default 3.1.1)
	Capabilities uint32 // default LARGE_MTU
	MaxReadSize  uint32 // default 1 MiB
	MaxWriteSize uint32 // default 1 MiB
	MaxCredits   uint16 // credits a connection may hold (default 512)

	// PendingReads makes every READ answer with an interim STATUS_PENDING
	// response first.
	PendingReads bool

	// DisconnectOnRead drops the connection when the n-th READ arrives.
	DisconnectOnRead int

	// Hold, if set, is called with the command of every request before it
	// is handled. Blocking in it delays the response.
	Hold func(cmd smb2.Command)

	// StrayEchoCredits makes every ECHO answer come with two responses
	// nothing is waiting for: one with an unused message id before the
	// answer and a duplicate of the answer after it. Each grants this many
	// credits.
	StrayEchoCredits uint16

	// RPCFragmentSize splits srvsvc responses into fragments of this many
	// stub bytes.
	RPCFragmentSize int

	mu       sync.Mutex
	accounts map[string]string
	shares   map[string]*share
	conns    map[*conn]struct{}
	stats    Stats
	nextSess uint64
	nextFid  uint64
}

// Stats counts what the server has seen.
type Stats struct {
	Requests         int
	Reads            int
	Writes           int
	Cancels          int
	MaxCharge        uint16
	MaxOutstanding   int // highest number of requests in flight at once
	CreditViolations int // requests charged beyond the granted balance
	IdViolations     int // message ids used twice
}

func NewServer(name string) *Server {
	return &Server{
		Name:     name,
		accounts: make(map[string]string),
		shares:   make(map[string]*share),
		conns:    make(map[*conn]struct{}),
	}
}

func (s *Server) AddAccount(user, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[user] = password
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Pipe starts serving one end of an in-memory connection and returns the
// other end.
func (s *Server) Pipe() net.Conn {
	cli, srv := net.Pipe()
	s.Serve(srv)
	return cli
}

// Serve handles nc in the background until it is closed.
func (s *Server) Serve(nc net.Conn) {
	c := &conn{
		srv:     s,
		nc:      nc,
		balance: 1,
		used:    make(map[uint64]bool),
		trees:   make(map[uint32]*share),
		opens:   make(map[uint64]*open),
	}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	go c.serve()
}

// Disconnect drops every connection.
func (s *Server) Disconnect() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.nc.Close()
	}
}

func (s *Server) dialect() uint16 {
	if s.Dialect == 0 {
		return smb2.SMB311
	}
	return s.Dialect
}

func (s *Server) capabilities() uint32 {
	if s.Capabilities == 0 {
		return smb2.SMB2_GLOBAL_CAP_LARGE_MTU
	}
	return s.Capabilities
}

func (s *Server) maxCredits() int {
	if s.MaxCredits == 0 {
		return defaultMaxCredits
	}
	return int(s.MaxCredits)
}

func orDefault(v uint32) uint32 {
	if v == 0 {
		return defaultTransferSize
	}
	return v
}

// ----------------------------------------------------------------------------
// connection
//

type conn struct {
	srv *Server
	nc  net.Conn

	wmu sync.Mutex

	// guarded by srv.mu
	dialect     uint16
	balance     int
	outstanding int
	used        map[uint64]bool
	sessions    []*logon
	trees       map[uint32]*share
	nextTree    uint32
	opens       map[uint64]*open
	nextAsync   uint64
}

type request struct {
	hdr *smb2.PacketHeader
	pkt []byte

	grant uint16
}

var errBadFrame = errors.New("smbtest: bad frame")

func readFrame(r io.Reader) ([]byte, error) {
	var h [4]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, err
	}
	if h[0] != 0 {
		return nil, errBadFrame
	}
	n := int(h[1])<<16 | int(h[2])<<8 | int(h[3])
	pkt := make([]byte, n)
	if _, err := io.ReadFull(r, pkt); err != nil {
		return nil, err
	}
	return pkt, nil
}

func (c *conn) serve() {
	defer func() {
		c.nc.Close()
		c.srv.mu.Lock()
		delete(c.srv.conns, c)
		c.srv.mu.Unlock()
	}()

	for {
		pkt, err := readFrame(c.nc)
		if err != nil {
			return
		}

		hdr, err := smb2.DecodeHeader(pkt)
		if err != nil {
			return
		}

		req := &request{hdr: hdr, pkt: pkt}

		if hdr.Command == smb2.SMB2_CANCEL {
			c.srv.mu.Lock()
			c.srv.stats.Cancels++
			c.srv.mu.Unlock()
			continue
		}

		if !c.account(req) {
			return
		}

		go c.handle(req)
	}
}

// account charges req against the balance granted so far.
func (c *conn) account(req *request) bool {
	s := c.srv

	s.mu.Lock()
	defer s.mu.Unlock()

	charge := req.hdr.CreditCharge
	if charge == 0 {
		charge = 1
	}

	s.stats.Requests++
	if charge > s.stats.MaxCharge {
		s.stats.MaxCharge = charge
	}

	if int(charge) > c.balance {
		s.stats.CreditViolations++
	}
	c.balance -= int(charge)

	for id := req.hdr.MessageId; id < req.hdr.MessageId+uint64(charge); id++ {
		if c.used[id] {
			s.stats.IdViolations++
		}
		c.used[id] = true
	}

	c.outstanding++
	if c.outstanding > s.stats.MaxOutstanding {
		s.stats.MaxOutstanding = c.outstanding
	}

	want := int(req.hdr.CreditRequestResponse)
	if want == 0 {
		want = 1
	}
	if room := s.maxCredits() - c.balance; want > room {
		want = room
	}
	if want < 0 {
		want = 0
	}
	if c.balance+want < 1 {
		want = 1 - c.balance
	}
	req.grant = uint16(want)

	if req.hdr.Command == smb2.SMB2_READ {
		s.stats.Reads++
		if s.DisconnectOnRead > 0 && s.stats.Reads >= s.DisconnectOnRead {
			return false
		}
	}
	if req.hdr.Command == smb2.SMB2_WRITE {
		s.stats.Writes++
	}

	return true
}

// reply sends res for req. The grant is added to the balance before the
// response is written.
func (c *conn) reply(req *request, status NtStatus, res smb2.Message, async uint64) {
	hdr := res.Header()
	hdr.Command = req.hdr.Command
	hdr.Status = uint32(status)
	hdr.Flags = smb2.SMB2_FLAGS_SERVER_TO_REDIR
	hdr.MessageId = req.hdr.MessageId
	hdr.CreditCharge = req.hdr.CreditCharge
	if hdr.SessionId == 0 {
		hdr.SessionId = req.hdr.SessionId
	}
	if hdr.TreeId == 0 {
		hdr.TreeId = req.hdr.TreeId
	}
	if async != 0 {
		hdr.Flags |= smb2.SMB2_FLAGS_ASYNC_COMMAND
		hdr.AsyncId = async
	}

	c.srv.mu.Lock()
	hdr.CreditRequestResponse = req.grant
	c.balance += int(req.grant)
	req.grant = 0
	if !(async != 0 && status == STATUS_PENDING) {
		c.outstanding--
	}
	c.srv.mu.Unlock()

	c.writeFrame(req.hdr.Command, res)
}

// stray sends an ECHO response with message id msgId that was not asked
// for.
func (c *conn) stray(req *request, msgId uint64) {
	res := new(smb2.EchoResponse)
	hdr := res.Header()
	hdr.Command = smb2.SMB2_ECHO
	hdr.Flags = smb2.SMB2_FLAGS_SERVER_TO_REDIR
	hdr.MessageId = msgId
	hdr.SessionId = req.hdr.SessionId

	c.srv.mu.Lock()
	hdr.CreditRequestResponse = c.srv.StrayEchoCredits
	c.balance += int(c.srv.StrayEchoCredits)
	c.srv.mu.Unlock()

	c.writeFrame(smb2.SMB2_ECHO, res)
}

func (c *conn) writeFrame(cmd smb2.Command, res smb2.Message) {
	pkt, err := smb2.Marshal(res)
	if err != nil {
		panic(fmt.Sprintf("smbtest: marshal %v: %v", cmd, err))
	}

	frame := make([]byte, 4+len(pkt))
	binary.BigEndian.PutUint32(frame, uint32(len(pkt)))
	copy(frame[4:], pkt)

	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.nc.Write(frame)
}

func (c *conn) fail(req *request, status NtStatus) {
	c.reply(req, status, &smb2.ErrorResponse{}, 0)
}

func (c *conn) handle(req *request) {
	if h := c.srv.Hold; h != nil {
		h(req.hdr.Command)
	}

	if req.hdr.Command != smb2.SMB2_NEGOTIATE && req.hdr.Command != smb2.SMB2_SESSION_SETUP && req.hdr.Command != smb2.SMB2_ECHO {
		if c.session(req.hdr.SessionId) == nil {
			c.fail(req, STATUS_USER_SESSION_DELETED)
			return
		}
	}

	switch req.hdr.Command {
	case smb2.SMB2_NEGOTIATE:
		c.negotiate(req)
	case smb2.SMB2_SESSION_SETUP:
		c.sessionSetup(req)
	case smb2.SMB2_LOGOFF:
		c.logoff(req)
	case smb2.SMB2_ECHO:
		c.echo(req)
	case smb2.SMB2_TREE_CONNECT:
		c.treeConnect(req)
	case smb2.SMB2_TREE_DISCONNECT:
		c.treeDisconnect(req)
	case smb2.SMB2_CREATE:
		c.create(req)
	case smb2.SMB2_CLOSE:
		c.close(req)
	case smb2.SMB2_FLUSH:
		c.reply(req, STATUS_SUCCESS, new(smb2.FlushResponse), 0)
	case smb2.SMB2_READ:
		c.read(req)
	case smb2.SMB2_WRITE:
		c.write(req)
	case smb2.SMB2_QUERY_DIRECTORY:
		c.queryDirectory(req)
	case smb2.SMB2_QUERY_INFO:
		c.queryInfo(req)
	case smb2.SMB2_SET_INFO:
		c.setInfo(req)
	case smb2.SMB2_IOCTL:
		c.ioctl(req)
	default:
		c.fail(req, STATUS_NOT_SUPPORTED)
	}
}

func (c *conn) echo(req *request) {
	if c.srv.StrayEchoCredits == 0 {
		c.reply(req, STATUS_SUCCESS, new(smb2.EchoResponse), 0)
		return
	}

	c.stray(req, 1<<48+req.hdr.MessageId)
	c.reply(req, STATUS_SUCCESS, new(smb2.EchoResponse), 0)
	c.stray(req, req.hdr.MessageId)
}

func decode(req *request, m smb2.Message) bool {
	return smb2.Unmarshal(req.pkt, m) == nil
}

func (c *conn) negotiate(req *request) {
	var q smb2.NegotiateRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	var dialect uint16
	for _, d := range q.Dialects {
		if d <= c.srv.dialect() && d > dialect {
			dialect = d
		}
	}
	if dialect == 0 {
		c.fail(req, STATUS_NOT_SUPPORTED)
		return
	}

	c.srv.mu.Lock()
	c.dialect = dialect
	c.srv.mu.Unlock()

	res := &smb2.NegotiateResponse{
		SecurityMode:    smb2.SMB2_NEGOTIATE_SIGNING_ENABLED,
		DialectRevision: dialect,
		Capabilities:    c.srv.capabilities() & q.Capabilities,
		MaxTransactSize: orDefault(c.srv.MaxReadSize),
		MaxReadSize:     orDefault(c.srv.MaxReadSize),
		MaxWriteSize:    orDefault(c.srv.MaxWriteSize),
		SystemTime:      smb2.TimeToFiletime(time.Now()),
		SecurityBuffer:  negTokenHint(),
	}
	rand.Read(res.ServerGuid[:])

	if dialect == smb2.SMB311 {
		salt := make([]byte, 32)
		rand.Read(salt)
		res.Contexts = []smb2.NegotiateContext{smb2.HashContext([]uint16{smb2.SHA512}, salt)}
	}

	c.reply(req, STATUS_SUCCESS, res, 0)
}
