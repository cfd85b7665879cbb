package smbclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/smbclient-go/smbclient/internal/logger"
	"github.com/smbclient-go/smbclient/internal/smb2"

	. "github.com/smbclient-go/smbclient/internal/erref"
)

var (
	errNotLoggedIn     = errors.New("smbclient: not logged in")
	errNoShare         = errors.New("smbclient: no share connected")
	errAlreadyLoggedIn = errors.New("smbclient: already logged in")
)

// State is the position of a Client in its connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateNegotiated
	StateAuthenticating
	StateAuthenticated
	StateTreeConnected
	StateLoggedOff
)

var stateNames = [...]string{
	StateDisconnected:   "disconnected",
	StateConnected:      "connected",
	StateNegotiated:     "negotiated",
	StateAuthenticating: "authenticating",
	StateAuthenticated:  "authenticated",
	StateTreeConnected:  "tree_connected",
	StateLoggedOff:      "logged_off",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Client is an SMB2/3 client over one connection. It holds at most one
// session and one connected share. It is safe for concurrent use.
type Client struct {
	cfg     Config
	conn    *conn
	tracer  trace.Tracer
	metrics *metrics

	lmu sync.Mutex // serializes session and tree changes; held across round trips

	mu     sync.Mutex // guards the fields below; never held across a round trip
	state  State
	s      *session
	tc     *treeConn
	closed bool
}

// Dial connects to cfg.Host and negotiates a dialect.
func Dial(ctx context.Context, cfg *Config) (*Client, error) {
	c := *cfg
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	nc, err := dial(ctx, &c)
	if err != nil {
		return nil, &TransportError{err}
	}

	return NewClient(ctx, NewDirectTransport(nc), &c)
}

// NewClient negotiates over an established transport. The client owns t
// from now on, even when an error is returned.
func NewClient(ctx context.Context, t Transport, cfg *Config) (_ *Client, err error) {
	conf := *cfg
	conf.setDefaults()
	if err := conf.Validate(); err != nil {
		t.Close()
		return nil, err
	}

	m, err := newMetrics(conf.Metrics)
	if err != nil {
		t.Close()
		return nil, err
	}

	c := &Client{
		cfg:     conf,
		tracer:  newTracer(conf.TracerProvider),
		metrics: m,
		state:   StateConnected,
	}

	ctx, end := c.startSpan(ctx, "negotiate", attribute.String(attrServer, conf.Addr()))
	defer end(&err)

	c.conn = newConn(t, &c.cfg, m)

	if err = c.conn.negotiate(ctx, conf.Dialects); err != nil {
		c.conn.close()
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String(attrDialect, dialectName(c.conn.dialect)))

	c.state = StateNegotiated

	return c, nil
}

// Connect dials, logs in with the configured credentials and connects
// cfg.Share when it is set.
func Connect(ctx context.Context, cfg *Config) (*Client, error) {
	c, err := Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := c.Login(ctx, cfg.User, cfg.Password, cfg.Domain); err != nil {
		c.Close()
		return nil, err
	}

	if cfg.Share != "" {
		if err := c.ConnectShare(ctx, cfg.Share); err != nil {
			c.Close()
			return nil, err
		}
	}

	return c, nil
}

// Dialect returns the negotiated dialect revision.
func (c *Client) Dialect() uint16 {
	return c.conn.dialect
}

// State reports the lifecycle state. A lost connection is StateDisconnected.
func (c *Client) State() State {
	select {
	case <-c.conn.done:
		return StateDisconnected
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Share returns the UNC path of the connected share, or "".
func (c *Client) Share() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tc == nil {
		return ""
	}
	return c.tc.path
}

func (c *Client) shareName() string {
	return shareName(c.Share())
}

// Login runs SESSION_SETUP with NTLMv2. Empty credentials are sent as they
// are, which servers with guest access map to the guest account.
func (c *Client) Login(ctx context.Context, user, password, domain string) (err error) {
	ctx, end := c.startSpan(ctx, "login", attribute.String(attrServer, c.cfg.Addr()))
	defer end(&err)

	c.lmu.Lock()
	defer c.lmu.Unlock()

	c.mu.Lock()
	if err := c.conn.disconnected(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.s != nil {
		c.mu.Unlock()
		return errAlreadyLoggedIn
	}
	prev := c.state
	c.state = StateAuthenticating
	c.mu.Unlock()

	i := newNTLMInitiator(user, password, domain, c.cfg.Workstation, "cifs/"+c.cfg.Host)

	s, err := sessionSetup(ctx, c.conn, i, user, domain)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil && c.closed {
		err = &TransportError{ErrClosed}
	}
	if err != nil {
		c.state = prev
		logger.WarnCtx(ctx, "login failed", append([]any{logger.KeyUsername, user, logger.KeyDomain, domain}, logger.Err(err)...)...)
		return err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64(attrSessionID, int64(s.sessionId)))

	c.s = s
	c.state = StateAuthenticated

	return nil
}

// Logoff disconnects the share, if any, and ends the session. The
// connection stays open.
func (c *Client) Logoff(ctx context.Context) (err error) {
	ctx, end := c.startSpan(ctx, "logoff")
	defer end(&err)

	c.lmu.Lock()
	defer c.lmu.Unlock()

	c.mu.Lock()
	s, tc := c.s, c.tc
	c.mu.Unlock()

	if s == nil {
		return errNotLoggedIn
	}

	if tc != nil {
		if err := tc.disconnect(ctx); err != nil {
			logger.DebugCtx(ctx, "tree disconnect failed", logger.Err(err)...)
		}
	}

	err = s.logoff(ctx)

	c.mu.Lock()
	c.tc = nil
	c.s = nil
	c.state = StateLoggedOff
	c.mu.Unlock()

	return err
}

// ConnectShare connects a share, given as a name or a UNC path. A share
// that was connected before is disconnected first.
func (c *Client) ConnectShare(ctx context.Context, name string) (err error) {
	path := sharePath(c.cfg.Host, name)

	ctx, end := c.startSpan(ctx, "tree_connect", attribute.String(attrShare, path))
	defer end(&err)

	c.lmu.Lock()
	defer c.lmu.Unlock()

	c.mu.Lock()
	s, prev := c.s, c.tc
	if prev != nil {
		c.tc = nil
		c.state = StateAuthenticated
	}
	c.mu.Unlock()

	if s == nil {
		return errNotLoggedIn
	}

	if prev != nil {
		if err := prev.disconnect(ctx); err != nil {
			logger.DebugCtx(ctx, "tree disconnect failed", append([]any{logger.KeyShare, prev.path}, logger.Err(err)...)...)
		}
	}

	tc, err := treeConnect(ctx, s, path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &TransportError{ErrClosed}
	}

	c.tc = tc
	c.state = StateTreeConnected

	return nil
}

// TreeConnect is an alias of ConnectShare.
func (c *Client) TreeConnect(ctx context.Context, name string) error {
	return c.ConnectShare(ctx, name)
}

func (c *Client) DisconnectShare(ctx context.Context) (err error) {
	ctx, end := c.startSpan(ctx, "tree_disconnect")
	defer end(&err)

	c.lmu.Lock()
	defer c.lmu.Unlock()

	c.mu.Lock()
	tc := c.tc
	c.tc = nil
	if tc != nil {
		c.state = StateAuthenticated
	}
	c.mu.Unlock()

	if tc == nil {
		return errNoShare
	}

	return tc.disconnect(ctx)
}

// TreeDisconnect is an alias of DisconnectShare.
func (c *Client) TreeDisconnect(ctx context.Context) error {
	return c.DisconnectShare(ctx)
}

// Echo sends an ECHO request. It can be used as a keepalive.
func (c *Client) Echo(ctx context.Context) (err error) {
	ctx, end := c.startSpan(ctx, "echo")
	defer end(&err)

	var sessionId uint64
	c.mu.Lock()
	if c.s != nil {
		sessionId = c.s.sessionId
	}
	c.mu.Unlock()

	_, err = c.conn.call(ctx, new(smb2.EchoRequest), new(smb2.EchoResponse), sessionId, 0)
	return err
}

// Close logs off when possible and closes the connection. Pending requests
// fail with a *TransportError.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	tc, s := c.tc, c.s
	c.tc, c.s = nil, nil
	c.mu.Unlock()

	if s != nil && c.conn.disconnected() == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if tc != nil {
			tc.disconnect(ctx)
		}
		s.logoff(ctx)
		cancel()
	}

	err := c.conn.close()

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()

	return err
}

func (c *Client) tree() (*treeConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.disconnected(); err != nil {
		return nil, err
	}
	if c.tc == nil {
		return nil, errNoShare
	}
	return c.tc, nil
}

// withFile opens path on the connected share, runs fn and closes the
// handle. Errors come back as *os.PathError.
func (c *Client) withFile(ctx context.Context, op, path string, req *smb2.CreateRequest, fn func(f *RemoteFile) error) error {
	tc, err := c.tree()
	if err != nil {
		return &os.PathError{Op: op, Path: path, Err: err}
	}

	name := normPath(path)
	if isInvalidPath(name) {
		return &os.PathError{Op: op, Path: path, Err: os.ErrInvalid}
	}

	f, err := openFile(ctx, tc, name, req)
	if err != nil {
		return &os.PathError{Op: op, Path: path, Err: err}
	}

	err = fn(f)
	err = multiError(err, f.close(ctx))
	if err != nil {
		return &os.PathError{Op: op, Path: path, Err: err}
	}

	return nil
}

// ListDirectory lists path with a wildcard pattern; "" means "*".
// "." and ".." are returned as the server sends them.
func (c *Client) ListDirectory(ctx context.Context, path, pattern string) (files []File, err error) {
	ctx, end := c.startSpan(ctx, "list_directory", attribute.String(attrPath, path))
	defer end(&err)

	if pattern == "" {
		pattern = "*"
	}

	req := openRequest(smb2.FILE_LIST_DIRECTORY|smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE, smb2.FILE_OPEN, smb2.FILE_DIRECTORY_FILE)

	err = c.withFile(ctx, "readdir", path, req, func(f *RemoteFile) (err error) {
		files, err = f.readdir(ctx, pattern)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.DebugCtx(ctx, "listed", logger.KeyPath, path, logger.KeyFiles, len(files))

	return files, nil
}

func (c *Client) CreateDirectory(ctx context.Context, path string) (err error) {
	ctx, end := c.startSpan(ctx, "create_directory", attribute.String(attrPath, path))
	defer end(&err)

	req := openRequest(smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE, smb2.FILE_CREATE, smb2.FILE_DIRECTORY_FILE)
	req.FileAttributes = smb2.FILE_ATTRIBUTE_DIRECTORY

	return c.withFile(ctx, "mkdir", path, req, func(*RemoteFile) error { return nil })
}

// DeleteDirectory removes an empty directory.
func (c *Client) DeleteDirectory(ctx context.Context, path string) (err error) {
	ctx, end := c.startSpan(ctx, "delete_directory", attribute.String(attrPath, path))
	defer end(&err)

	req := openRequest(smb2.DELETE|smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE, smb2.FILE_OPEN, smb2.FILE_DIRECTORY_FILE)

	return c.withFile(ctx, "rmdir", path, req, func(f *RemoteFile) error {
		return f.remove(ctx)
	})
}

func (c *Client) DeleteFile(ctx context.Context, path string) (err error) {
	ctx, end := c.startSpan(ctx, "delete_file", attribute.String(attrPath, path))
	defer end(&err)

	req := openRequest(smb2.DELETE|smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE, smb2.FILE_OPEN, smb2.FILE_NON_DIRECTORY_FILE)

	return c.withFile(ctx, "remove", path, req, func(f *RemoteFile) error {
		return f.remove(ctx)
	})
}

// Move renames oldpath to newpath within the share. An existing newpath
// is not replaced.
func (c *Client) Move(ctx context.Context, oldpath, newpath string) (err error) {
	ctx, end := c.startSpan(ctx, "move", attribute.String(attrPath, oldpath), attribute.String(attrNewPath, newpath))
	defer end(&err)

	target := normPath(newpath)
	if target == "" || isInvalidPath(target) {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrInvalid}
	}

	req := openRequest(smb2.DELETE|smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE, smb2.FILE_OPEN, 0)

	err = c.withFile(ctx, "rename", oldpath, req, func(f *RemoteFile) error {
		return f.rename(ctx, target)
	})
	if err != nil {
		var perr *os.PathError
		if errors.As(err, &perr) {
			err = perr.Err
		}
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}

	logger.DebugCtx(ctx, "renamed", logger.KeyOldPath, oldpath, logger.KeyNewPath, newpath)

	return nil
}

// Rename is an alias of Move.
func (c *Client) Rename(ctx context.Context, oldpath, newpath string) error {
	return c.Move(ctx, oldpath, newpath)
}

// FileStat returns the attributes reported by CREATE.
func (c *Client) FileStat(ctx context.Context, path string) (stat *FileStat, err error) {
	ctx, end := c.startSpan(ctx, "file_stat", attribute.String(attrPath, path))
	defer end(&err)

	req := openRequest(smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE, smb2.FILE_OPEN, 0)

	err = c.withFile(ctx, "stat", path, req, func(f *RemoteFile) error {
		stat = f.stat
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stat, nil
}

// ExistFile reports whether path names a regular file. A missing path or a
// directory is (false, nil).
func (c *Client) ExistFile(ctx context.Context, path string) (ok bool, err error) {
	ctx, end := c.startSpan(ctx, "exist_file", attribute.String(attrPath, path))
	defer end(&err)

	req := openRequest(smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE, smb2.FILE_OPEN, smb2.FILE_NON_DIRECTORY_FILE)

	err = c.withFile(ctx, "stat", path, req, func(*RemoteFile) error { return nil })
	switch {
	case err == nil:
		return true, nil
	case IsNotExist(err), hasStatus(err, STATUS_FILE_IS_A_DIRECTORY):
		return false, nil
	default:
		return false, err
	}
}

// ExistDirectory reports whether path names a directory.
func (c *Client) ExistDirectory(ctx context.Context, path string) (ok bool, err error) {
	ctx, end := c.startSpan(ctx, "exist_directory", attribute.String(attrPath, path))
	defer end(&err)

	req := openRequest(smb2.FILE_READ_ATTRIBUTES|smb2.SYNCHRONIZE, smb2.FILE_OPEN, smb2.FILE_DIRECTORY_FILE)

	err = c.withFile(ctx, "stat", path, req, func(*RemoteFile) error { return nil })
	switch {
	case err == nil:
		return true, nil
	case IsNotExist(err), hasStatus(err, STATUS_NOT_A_DIRECTORY):
		return false, nil
	default:
		return false, err
	}
}

// FileInfo queries FileAllInformation.
func (c *Client) FileInfo(ctx context.Context, path string) (info *FileAllInformation, err error) {
	ctx, end := c.startSpan(ctx, "file_info", attribute.String(attrPath, path))
	defer end(&err)

	req := openRequest(smb2.FILE_READ_ATTRIBUTES|smb2.FILE_READ_EA|smb2.SYNCHRONIZE, smb2.FILE_OPEN, 0)

	err = c.withFile(ctx, "stat", path, req, func(f *RemoteFile) error {
		buf, err := f.queryInfo(ctx, smb2.FileAllInformation)
		if err != nil {
			return err
		}
		all, err := smb2.DecodeFileAllInfo(buf)
		if err != nil {
			return &InvalidResponseError{Message: err.Error(), Err: err}
		}
		info = newFileAllInformation(f.name, all)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// FileReader returns a reader for path. The file is opened on first use.
func (c *Client) FileReader(path string) *FileReader {
	return &FileReader{c: c, path: path, ctx: context.Background()}
}

// FileWriter returns a writer for path. The file is created or truncated
// on first use.
func (c *Client) FileWriter(path string) *FileWriter {
	return &FileWriter{c: c, path: path, ctx: context.Background()}
}

// Download reads the whole file.
func (c *Client) Download(ctx context.Context, path string) (data []byte, err error) {
	ctx, end := c.startSpan(ctx, "download", attribute.String(attrPath, path))
	defer end(&err)

	r := c.FileReader(path)

	data, err = r.Download(ctx)
	err = multiError(err, r.Close())
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(attrBytes, len(data)))

	return data, nil
}

// Upload writes data to path, replacing its content. progress, when not
// nil, receives the completed fraction after each chunk.
func (c *Client) Upload(ctx context.Context, data []byte, path string, progress func(float64)) (err error) {
	ctx, end := c.startSpan(ctx, "upload", attribute.String(attrPath, path), attribute.Int(attrBytes, len(data)))
	defer end(&err)

	w := c.FileWriter(path)

	err = w.Upload(ctx, data, progress)
	return multiError(err, w.Close())
}

// UploadFrom copies size bytes from r to path.
func (c *Client) UploadFrom(ctx context.Context, r io.Reader, size int64, path string, progress func(float64)) (err error) {
	ctx, end := c.startSpan(ctx, "upload", attribute.String(attrPath, path), attribute.Int64(attrBytes, size))
	defer end(&err)

	w := c.FileWriter(path)

	_, err = w.UploadFrom(ctx, r, size, progress)
	return multiError(err, w.Close())
}
