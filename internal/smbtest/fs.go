package smbtest

import (
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/smbclient-go/smbclient/internal/msrpc"
	"github.com/smbclient-go/smbclient/internal/ntlm"
	"github.com/smbclient-go/smbclient/internal/smb2"
	"github.com/smbclient-go/smbclient/internal/smbenc"
	"github.com/smbclient-go/smbclient/internal/spnego"

	. "github.com/smbclient-go/smbclient/internal/erref"
)

// CreateAction
const (
	fileSuperseded  = 0
	fileOpened      = 1
	fileCreated     = 2
	fileOverwritten = 3
)

const creditUnit = 64 * 1024

type node struct {
	name     string
	dir      bool
	data     []byte
	id       uint64
	created  time.Time
	modified time.Time
}

func (n *node) attributes() smb2.FileAttributes {
	if n.dir {
		return smb2.FILE_ATTRIBUTE_DIRECTORY
	}
	return smb2.FILE_ATTRIBUTE_ARCHIVE
}

type share struct {
	name    string
	comment string
	ipc     bool
	nodes   map[string]*node // lower-case path; "" is the root
	nextId  uint64
}

func newShare(name, comment string, ipc bool) *share {
	now := time.Now()
	return &share{
		name:    name,
		comment: comment,
		ipc:     ipc,
		nodes: map[string]*node{
			"": {dir: true, created: now, modified: now},
		},
	}
}

func key(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	return strings.ToLower(strings.Trim(p, `\`))
}

func parentKey(k string) string {
	if i := strings.LastIndexByte(k, '\\'); i >= 0 {
		return k[:i]
	}
	return ""
}

func baseName(p string) string {
	p = strings.Trim(strings.ReplaceAll(p, "/", `\`), `\`)
	if i := strings.LastIndexByte(p, '\\'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func (sh *share) mkdirAll(p string) (*node, error) {
	k := key(p)
	if n, ok := sh.nodes[k]; ok {
		if !n.dir {
			return nil, fmt.Errorf("smbtest: %s is a file", p)
		}
		return n, nil
	}
	if _, err := sh.mkdirAll(parentKey(k)); err != nil {
		return nil, err
	}
	return sh.add(k, baseName(p), true), nil
}

func (sh *share) add(k, name string, dir bool) *node {
	sh.nextId++
	now := time.Now()
	n := &node{name: name, dir: dir, id: sh.nextId, created: now, modified: now}
	sh.nodes[k] = n
	return n
}

func (sh *share) children(k string) []string {
	var keys []string
	for c := range sh.nodes {
		if c != "" && c != k && parentKey(c) == k {
			keys = append(keys, c)
		}
	}
	sort.Strings(keys)
	return keys
}

// AddShare adds an empty disk share.
func (s *Server) AddShare(name, comment string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[strings.ToLower(name)] = newShare(name, comment, false)
}

// WriteFile stores data at path, creating parent directories.
func (s *Server) WriteFile(shareName, p string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shares[strings.ToLower(shareName)]
	if !ok {
		return fmt.Errorf("smbtest: no share %s", shareName)
	}
	if _, err := sh.mkdirAll(parentKey(key(p))); err != nil {
		return err
	}
	n, ok := sh.nodes[key(p)]
	if !ok {
		n = sh.add(key(p), baseName(p), false)
	}
	if n.dir {
		return fmt.Errorf("smbtest: %s is a directory", p)
	}
	n.data = append([]byte(nil), data...)
	n.modified = time.Now()
	return nil
}

// MkdirAll creates a directory and its parents.
func (s *Server) MkdirAll(shareName, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shares[strings.ToLower(shareName)]
	if !ok {
		return fmt.Errorf("smbtest: no share %s", shareName)
	}
	_, err := sh.mkdirAll(p)
	return err
}

// ReadFile returns a copy of the file at path.
func (s *Server) ReadFile(shareName, p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shares[strings.ToLower(shareName)]
	if !ok {
		return nil, false
	}
	n, ok := sh.nodes[key(p)]
	if !ok || n.dir {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// Exists reports whether path exists on the share.
func (s *Server) Exists(shareName, p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shares[strings.ToLower(shareName)]
	if !ok {
		return false
	}
	_, ok = sh.nodes[key(p)]
	return ok
}

// ----------------------------------------------------------------------------
// session and tree
//

type logon struct {
	id   uint64
	ntlm *ntlm.Server
	done bool
}

// session returns the authenticated logon with id.
func (c *conn) session(id uint64) *logon {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	for _, l := range c.sessions {
		if l.id == id && l.done {
			return l
		}
	}
	return nil
}

func negTokenHint() []byte {
	bs, err := spnego.EncodeNegTokenInit([]asn1.ObjectIdentifier{spnego.NlmpOid}, nil)
	if err != nil {
		panic(err)
	}
	return bs
}

func (c *conn) respond(req *request, status NtStatus, res smb2.Message) {
	if res == nil {
		res = new(smb2.ErrorResponse)
	}
	c.reply(req, status, res, 0)
}

func (c *conn) sessionSetup(req *request) {
	var q smb2.SessionSetupRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	s := c.srv

	s.mu.Lock()
	var l *logon
	for _, x := range c.sessions {
		if req.hdr.SessionId != 0 && x.id == req.hdr.SessionId {
			l = x
		}
	}
	if l == nil {
		s.nextSess++
		l = &logon{
			id:   s.nextSess<<32 | 0x41,
			ntlm: ntlm.NewServer(s.Name),
		}
		for user, password := range s.accounts {
			l.ntlm.AddAccount(user, password)
		}
		c.sessions = append(c.sessions, l)
		s.mu.Unlock()

		init, err := spnego.DecodeNegTokenInit(q.SecurityBuffer)
		if err != nil || !init.HasMech(spnego.NlmpOid) {
			c.fail(req, STATUS_INVALID_PARAMETER)
			return
		}

		cmsg, err := l.ntlm.Challenge(init.MechToken)
		if err != nil {
			c.fail(req, STATUS_INVALID_PARAMETER)
			return
		}

		tok, err := spnego.EncodeNegTokenResp(spnego.AcceptIncomplete, spnego.NlmpOid, cmsg, nil)
		if err != nil {
			panic(err)
		}

		res := &smb2.SessionSetupResponse{SecurityBuffer: tok}
		res.SessionId = l.id
		c.respond(req, STATUS_MORE_PROCESSING_REQUIRED, res)
		return
	}
	s.mu.Unlock()

	resp, err := spnego.DecodeNegTokenResp(q.SecurityBuffer)
	if err != nil {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	if err := l.ntlm.Authenticate(resp.ResponseToken); err != nil {
		c.dropSession(l.id)
		c.fail(req, STATUS_LOGON_FAILURE)
		return
	}

	if len(resp.MechListMIC) > 0 {
		ms, _ := spnego.MechListBytes([]asn1.ObjectIdentifier{spnego.NlmpOid})
		if ok, _ := l.ntlm.Session().CheckSum(resp.MechListMIC, ms, 0); !ok {
			c.dropSession(l.id)
			c.fail(req, STATUS_LOGON_FAILURE)
			return
		}
	}

	tok, err := spnego.EncodeNegTokenResp(spnego.AcceptCompleted, nil, nil, nil)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	l.done = true
	s.mu.Unlock()

	c.respond(req, STATUS_SUCCESS, &smb2.SessionSetupResponse{SecurityBuffer: tok})
}

func (c *conn) dropSession(id uint64) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()

	for i, l := range c.sessions {
		if l.id == id {
			c.sessions = append(c.sessions[:i], c.sessions[i+1:]...)
			return
		}
	}
}

func (c *conn) logoff(req *request) {
	c.dropSession(req.hdr.SessionId)
	c.respond(req, STATUS_SUCCESS, new(smb2.LogoffResponse))
}

func (c *conn) treeConnect(req *request) {
	var q smb2.TreeConnectRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	s := c.srv
	name := strings.ToLower(baseName(q.Path))

	s.mu.Lock()
	sh, ok := s.shares[name]
	if !ok && name == "ipc$" {
		sh, ok = newShare("IPC$", "Remote IPC", true), true
		s.shares[name] = sh
	}
	if !ok {
		s.mu.Unlock()
		c.fail(req, STATUS_BAD_NETWORK_NAME)
		return
	}
	c.nextTree++
	id := c.nextTree
	c.trees[id] = sh
	s.mu.Unlock()

	res := &smb2.TreeConnectResponse{
		ShareType:     smb2.SMB2_SHARE_TYPE_DISK,
		MaximalAccess: 0x001f01ff,
	}
	if sh.ipc {
		res.ShareType = smb2.SMB2_SHARE_TYPE_PIPE
	}
	res.TreeId = id

	c.respond(req, STATUS_SUCCESS, res)
}

func (c *conn) treeDisconnect(req *request) {
	c.srv.mu.Lock()
	_, ok := c.trees[req.hdr.TreeId]
	delete(c.trees, req.hdr.TreeId)
	c.srv.mu.Unlock()

	if !ok {
		c.fail(req, STATUS_NETWORK_NAME_DELETED)
		return
	}
	c.respond(req, STATUS_SUCCESS, new(smb2.TreeDisconnectResponse))
}

// ----------------------------------------------------------------------------
// open files
//

type open struct {
	id    uint64
	share *share
	key   string
	node  *node
	pipe  *pipe

	deletePending bool
	listing       []*smb2.FileIdBothDirectoryInfo
	listed        bool
}

type pipe struct {
	out []byte
}

func fileId(id uint64) *smb2.FileId {
	var fd smb2.FileId
	binary.LittleEndian.PutUint64(fd.Persistent[:], id)
	binary.LittleEndian.PutUint64(fd.Volatile[:], id)
	return &fd
}

// lookup returns the open named by fd on the request's tree. It must be
// called with srv.mu held.
func (c *conn) lookup(req *request, fd *smb2.FileId) (*open, NtStatus) {
	if _, ok := c.trees[req.hdr.TreeId]; !ok {
		return nil, STATUS_NETWORK_NAME_DELETED
	}
	if fd == nil {
		return nil, STATUS_INVALID_HANDLE
	}
	o, ok := c.opens[binary.LittleEndian.Uint64(fd.Volatile[:])]
	if !ok {
		return nil, STATUS_FILE_CLOSED
	}
	return o, STATUS_SUCCESS
}

func ft(t time.Time) smb2.Filetime {
	return smb2.TimeToFiletime(t)
}

func allocation(n int) int64 {
	return int64(smbenc.Roundup(n, 4096))
}

func (c *conn) create(req *request) {
	var q smb2.CreateRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	status, res := c.doCreate(req, &q)
	c.respond(req, status, res)
}

func (c *conn) doCreate(req *request, q *smb2.CreateRequest) (NtStatus, smb2.Message) {
	s := c.srv

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := c.trees[req.hdr.TreeId]
	if !ok {
		return STATUS_NETWORK_NAME_DELETED, nil
	}

	s.nextFid++
	o := &open{id: s.nextFid, share: sh}

	if sh.ipc {
		if key(q.Name) != "srvsvc" {
			return STATUS_OBJECT_NAME_NOT_FOUND, nil
		}
		o.pipe = new(pipe)
		c.opens[o.id] = o

		res := &smb2.CreateResponse{
			CreateAction:   fileOpened,
			FileAttributes: smb2.FILE_ATTRIBUTE_NORMAL,
			FileId:         fileId(o.id),
		}
		return STATUS_SUCCESS, res
	}

	k := key(q.Name)
	n, exists := sh.nodes[k]
	action := uint32(fileOpened)

	if exists {
		if q.CreateDisposition == smb2.FILE_CREATE {
			return STATUS_OBJECT_NAME_COLLISION, nil
		}
		if q.CreateOptions&smb2.FILE_DIRECTORY_FILE != 0 && !n.dir {
			return STATUS_NOT_A_DIRECTORY, nil
		}
		if q.CreateOptions&smb2.FILE_NON_DIRECTORY_FILE != 0 && n.dir {
			return STATUS_FILE_IS_A_DIRECTORY, nil
		}
		switch q.CreateDisposition {
		case smb2.FILE_OVERWRITE, smb2.FILE_OVERWRITE_IF, smb2.FILE_SUPERSEDE:
			if n.dir {
				return STATUS_INVALID_PARAMETER, nil
			}
			n.data = nil
			n.modified = time.Now()
			action = fileOverwritten
			if q.CreateDisposition == smb2.FILE_SUPERSEDE {
				action = fileSuperseded
			}
		}
	} else {
		parent, ok := sh.nodes[parentKey(k)]
		if !ok || !parent.dir {
			return STATUS_OBJECT_PATH_NOT_FOUND, nil
		}
		switch q.CreateDisposition {
		case smb2.FILE_OPEN, smb2.FILE_OVERWRITE:
			return STATUS_OBJECT_NAME_NOT_FOUND, nil
		}
		n = sh.add(k, baseName(q.Name), q.CreateOptions&smb2.FILE_DIRECTORY_FILE != 0)
		action = fileCreated
	}

	o.key = k
	o.node = n
	if q.CreateOptions&smb2.FILE_DELETE_ON_CLOSE != 0 {
		o.deletePending = true
	}
	c.opens[o.id] = o

	res := &smb2.CreateResponse{
		CreateAction:   action,
		CreationTime:   ft(n.created),
		LastAccessTime: ft(n.modified),
		LastWriteTime:  ft(n.modified),
		ChangeTime:     ft(n.modified),
		AllocationSize: allocation(len(n.data)),
		EndOfFile:      int64(len(n.data)),
		FileAttributes: n.attributes(),
		FileId:         fileId(o.id),
	}

	return STATUS_SUCCESS, res
}

func (c *conn) close(req *request) {
	var q smb2.CloseRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	s := c.srv

	s.mu.Lock()
	o, status := c.lookup(req, q.FileId)
	if status == STATUS_SUCCESS {
		delete(c.opens, o.id)
		if o.deletePending && o.node != nil {
			for k, n := range o.share.nodes {
				if n == o.node {
					delete(o.share.nodes, k)
				}
			}
		}
	}
	s.mu.Unlock()

	if status != STATUS_SUCCESS {
		c.fail(req, status)
		return
	}
	c.respond(req, STATUS_SUCCESS, new(smb2.CloseResponse))
}

// checkPayload counts a request that moves more bytes than its charge
// covers.
func (c *conn) checkPayload(req *request, n uint32) {
	charge := uint32(req.hdr.CreditCharge)
	if charge == 0 {
		charge = 1
	}
	if n > charge*creditUnit {
		c.srv.stats.CreditViolations++
	}
}

func (c *conn) read(req *request) {
	var q smb2.ReadRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	s := c.srv

	var async uint64
	if s.PendingReads {
		s.mu.Lock()
		c.nextAsync++
		async = c.nextAsync
		s.mu.Unlock()

		c.reply(req, STATUS_PENDING, new(smb2.ErrorResponse), async)
	}

	status, res := c.doRead(req, &q)
	if res == nil {
		res = new(smb2.ErrorResponse)
	}
	c.reply(req, status, res, async)
}

func (c *conn) doRead(req *request, q *smb2.ReadRequest) (NtStatus, smb2.Message) {
	s := c.srv

	s.mu.Lock()
	defer s.mu.Unlock()

	c.checkPayload(req, q.Length)

	o, status := c.lookup(req, q.FileId)
	if status != STATUS_SUCCESS {
		return status, nil
	}

	if o.pipe != nil {
		if len(o.pipe.out) == 0 {
			return STATUS_END_OF_FILE, nil
		}
		n := min(int(q.Length), len(o.pipe.out))
		res := &smb2.ReadResponse{Data: o.pipe.out[:n]}
		o.pipe.out = o.pipe.out[n:]
		if len(o.pipe.out) > 0 {
			res.DataRemaining = uint32(len(o.pipe.out))
			return STATUS_BUFFER_OVERFLOW, res
		}
		return STATUS_SUCCESS, res
	}

	if o.node.dir {
		return STATUS_INVALID_DEVICE_REQUEST, nil
	}

	data := o.node.data
	if q.Offset >= uint64(len(data)) {
		return STATUS_END_OF_FILE, nil
	}

	n := min(uint64(q.Length), uint64(len(data))-q.Offset, uint64(orDefault(s.MaxReadSize)))

	return STATUS_SUCCESS, &smb2.ReadResponse{
		Data: append([]byte(nil), data[q.Offset:q.Offset+n]...),
	}
}

func (c *conn) write(req *request) {
	var q smb2.WriteRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	status, res := c.doWrite(req, &q)
	c.respond(req, status, res)
}

func (c *conn) doWrite(req *request, q *smb2.WriteRequest) (NtStatus, smb2.Message) {
	s := c.srv

	s.mu.Lock()
	defer s.mu.Unlock()

	c.checkPayload(req, uint32(len(q.Data)))

	o, status := c.lookup(req, q.FileId)
	if status != STATUS_SUCCESS {
		return status, nil
	}

	if o.pipe != nil {
		bind, err := msrpc.DecodeBind(q.Data)
		if err != nil {
			return STATUS_INVALID_PARAMETER, nil
		}
		ack := &msrpc.BindAck{CallId: bind.CallId, AssocGroupId: 0x5153, Accepted: true}
		o.pipe.out = append(o.pipe.out, ack.Encode()...)
		return STATUS_SUCCESS, &smb2.WriteResponse{Count: uint32(len(q.Data))}
	}

	if o.node.dir {
		return STATUS_INVALID_DEVICE_REQUEST, nil
	}

	end := int(q.Offset) + len(q.Data)
	if end > len(o.node.data) {
		grown := make([]byte, end)
		copy(grown, o.node.data)
		o.node.data = grown
	}
	copy(o.node.data[q.Offset:], q.Data)
	o.node.modified = time.Now()

	return STATUS_SUCCESS, &smb2.WriteResponse{Count: uint32(len(q.Data))}
}

func (c *conn) queryDirectory(req *request) {
	var q smb2.QueryDirectoryRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	status, res := c.doQueryDirectory(req, &q)
	c.respond(req, status, res)
}

func dirInfo(name string, n *node) *smb2.FileIdBothDirectoryInfo {
	return &smb2.FileIdBothDirectoryInfo{
		CreationTime:   ft(n.created),
		LastAccessTime: ft(n.modified),
		LastWriteTime:  ft(n.modified),
		ChangeTime:     ft(n.modified),
		EndOfFile:      int64(len(n.data)),
		AllocationSize: allocation(len(n.data)),
		FileAttributes: n.attributes(),
		FileId:         n.id,
		FileName:       name,
	}
}

func match(pattern, name string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, _ := path.Match(strings.ToLower(pattern), strings.ToLower(name))
	return ok
}

func (c *conn) doQueryDirectory(req *request, q *smb2.QueryDirectoryRequest) (NtStatus, smb2.Message) {
	s := c.srv

	s.mu.Lock()
	defer s.mu.Unlock()

	c.checkPayload(req, q.OutputBufferLength)

	o, status := c.lookup(req, q.FileId)
	if status != STATUS_SUCCESS {
		return status, nil
	}
	if o.node == nil || !o.node.dir {
		return STATUS_INVALID_PARAMETER, nil
	}

	first := false
	if q.Flags.Has(smb2.SMB2_RESTART_SCANS) || !o.listed {
		first = true
		o.listed = true
		o.listing = nil

		parent := o.share.nodes[parentKey(o.key)]
		for _, e := range []struct {
			name string
			n    *node
		}{{".", o.node}, {"..", parent}} {
			if e.n != nil && match(q.FileName, e.name) {
				o.listing = append(o.listing, dirInfo(e.name, e.n))
			}
		}
		for _, k := range o.share.children(o.key) {
			n := o.share.nodes[k]
			if match(q.FileName, n.name) {
				o.listing = append(o.listing, dirInfo(n.name, n))
			}
		}
	}

	if len(o.listing) == 0 {
		if first {
			return STATUS_NO_SUCH_FILE, nil
		}
		return STATUS_NO_MORE_FILES, nil
	}

	var size, count int
	for _, info := range o.listing {
		next := smbenc.Roundup(size, 8) + 104 + smbenc.EncodedStringLen(info.FileName)
		if next > int(q.OutputBufferLength) {
			break
		}
		size = next
		count++
	}
	if count == 0 {
		return STATUS_BUFFER_TOO_SMALL, nil
	}

	batch := o.listing[:count]
	o.listing = o.listing[count:]

	return STATUS_SUCCESS, &smb2.QueryDirectoryResponse{OutputBuffer: smb2.EncodeDirectory(batch)}
}

func (c *conn) queryInfo(req *request) {
	var q smb2.QueryInfoRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	status, res := c.doQueryInfo(req, &q)
	c.respond(req, status, res)
}

func (c *conn) doQueryInfo(req *request, q *smb2.QueryInfoRequest) (NtStatus, smb2.Message) {
	s := c.srv

	s.mu.Lock()
	defer s.mu.Unlock()

	o, status := c.lookup(req, q.FileId)
	if status != STATUS_SUCCESS {
		return status, nil
	}
	if o.node == nil || q.InfoType != smb2.SMB2_0_INFO_FILE || q.FileInfoClass != smb2.FileAllInformation {
		return STATUS_NOT_SUPPORTED, nil
	}

	n := o.node
	info := &smb2.FileAllInfo{
		Basic: smb2.FileBasicInfo{
			CreationTime:   ft(n.created),
			LastAccessTime: ft(n.modified),
			LastWriteTime:  ft(n.modified),
			ChangeTime:     ft(n.modified),
			FileAttributes: n.attributes(),
		},
		Standard: smb2.FileStandardInfo{
			AllocationSize: allocation(len(n.data)),
			EndOfFile:      int64(len(n.data)),
			NumberOfLinks:  1,
			DeletePending:  o.deletePending,
			Directory:      n.dir,
		},
		IndexNumber:       n.id,
		AccessFlags:       0x001f01ff,
		AlignmentRequired: 0,
		FileName:          `\` + o.key,
	}

	w := smbenc.NewWriter(128)
	info.Encode(w)
	buf := w.Bytes()
	if len(buf) > int(q.OutputBufferLength) {
		return STATUS_BUFFER_OVERFLOW, &smb2.QueryInfoResponse{OutputBuffer: buf[:q.OutputBufferLength]}
	}

	return STATUS_SUCCESS, &smb2.QueryInfoResponse{OutputBuffer: buf}
}

func (c *conn) setInfo(req *request) {
	var q smb2.SetInfoRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	status, res := c.doSetInfo(req, &q)
	c.respond(req, status, res)
}

func (c *conn) doSetInfo(req *request, q *smb2.SetInfoRequest) (NtStatus, smb2.Message) {
	s := c.srv

	s.mu.Lock()
	defer s.mu.Unlock()

	o, status := c.lookup(req, q.FileId)
	if status != STATUS_SUCCESS {
		return status, nil
	}
	if o.node == nil || q.InfoType != smb2.SMB2_0_INFO_FILE {
		return STATUS_NOT_SUPPORTED, nil
	}

	switch q.FileInfoClass {
	case smb2.FileDispositionInformation:
		if len(q.Buffer) < 1 {
			return STATUS_INVALID_PARAMETER, nil
		}
		if q.Buffer[0] != 0 && o.node.dir && len(o.share.children(o.key)) > 0 {
			return STATUS_DIRECTORY_NOT_EMPTY, nil
		}
		if o.key == "" {
			return STATUS_ACCESS_DENIED, nil
		}
		o.deletePending = q.Buffer[0] != 0

	case smb2.FileRenameInformation:
		info, err := smb2.DecodeFileRenameInfo(q.Buffer)
		if err != nil {
			return STATUS_INVALID_PARAMETER, nil
		}
		if status := c.rename(o, info); status != STATUS_SUCCESS {
			return status, nil
		}

	case smb2.FileEndOfFileInformation:
		if len(q.Buffer) < 8 || o.node.dir {
			return STATUS_INVALID_PARAMETER, nil
		}
		size := int(binary.LittleEndian.Uint64(q.Buffer))
		data := make([]byte, size)
		copy(data, o.node.data)
		o.node.data = data

	case smb2.FileBasicInformation:

	default:
		return STATUS_NOT_SUPPORTED, nil
	}

	return STATUS_SUCCESS, new(smb2.SetInfoResponse)
}

// rename moves o and everything below it. It must be called with srv.mu
// held.
func (c *conn) rename(o *open, info *smb2.FileRenameInfo) NtStatus {
	sh := o.share
	from := o.key
	to := key(info.FileName)

	if to == "" || from == "" {
		return STATUS_ACCESS_DENIED
	}
	if to == from {
		o.node.name = baseName(info.FileName)
		return STATUS_SUCCESS
	}
	if strings.HasPrefix(to, from+`\`) {
		return STATUS_INVALID_PARAMETER
	}
	if existing, ok := sh.nodes[to]; ok {
		if !info.ReplaceIfExists || existing.dir {
			return STATUS_OBJECT_NAME_COLLISION
		}
	}
	if parent, ok := sh.nodes[parentKey(to)]; !ok || !parent.dir {
		return STATUS_OBJECT_PATH_NOT_FOUND
	}

	moved := make(map[string]string)
	nodes := make(map[string]*node)
	for k, n := range sh.nodes {
		if k == from || strings.HasPrefix(k, from+`\`) {
			moved[k] = to + k[len(from):]
			nodes[moved[k]] = n
		}
	}
	for k := range moved {
		delete(sh.nodes, k)
	}
	for k, n := range nodes {
		sh.nodes[k] = n
	}
	o.node.name = baseName(info.FileName)

	for _, other := range c.opens {
		if other.share != sh {
			continue
		}
		if newKey, ok := moved[other.key]; ok {
			other.key = newKey
		}
	}

	return STATUS_SUCCESS
}

func (c *conn) ioctl(req *request) {
	var q smb2.IoctlRequest
	if !decode(req, &q) {
		c.fail(req, STATUS_INVALID_PARAMETER)
		return
	}

	status, res := c.doIoctl(req, &q)
	c.respond(req, status, res)
}

func (c *conn) doIoctl(req *request, q *smb2.IoctlRequest) (NtStatus, smb2.Message) {
	s := c.srv

	s.mu.Lock()
	defer s.mu.Unlock()

	o, status := c.lookup(req, q.FileId)
	if status != STATUS_SUCCESS {
		return status, nil
	}
	if q.CtlCode != smb2.FSCTL_PIPE_TRANSCEIVE || o.pipe == nil {
		return STATUS_INVALID_DEVICE_REQUEST, nil
	}

	enum, err := msrpc.DecodeNetShareEnumAllRequest(q.Input)
	if err != nil {
		return STATUS_INVALID_PARAMETER, nil
	}

	res := &msrpc.NetShareEnumAllResponse{CallId: enum.CallId, Level: 1}

	names := make([]string, 0, len(s.shares)+1)
	for name := range s.shares {
		names = append(names, name)
	}
	if _, ok := s.shares["ipc$"]; !ok {
		names = append(names, "ipc$")
	}
	sort.Strings(names)

	for _, name := range names {
		sh, ok := s.shares[name]
		if !ok || sh.ipc {
			res.Shares = append(res.Shares, msrpc.ShareInfo1{Name: "IPC$", Type: msrpc.STYPE_IPC | msrpc.STYPE_SPECIAL, Comment: "Remote IPC"})
			continue
		}
		res.Shares = append(res.Shares, msrpc.ShareInfo1{Name: sh.name, Type: msrpc.STYPE_DISKTREE, Comment: sh.comment})
	}

	out := fragmentPDU(res.Encode(), s.RPCFragmentSize)

	max := int(q.MaxOutputResponse)
	if len(out) > max {
		o.pipe.out = append(o.pipe.out, out[max:]...)
		return STATUS_BUFFER_OVERFLOW, &smb2.IoctlResponse{CtlCode: q.CtlCode, FileId: q.FileId, Output: out[:max]}
	}

	return STATUS_SUCCESS, &smb2.IoctlResponse{CtlCode: q.CtlCode, FileId: q.FileId, Output: out}
}

// fragmentPDU splits the stub of a response PDU into fragments of at most
// size bytes.
func fragmentPDU(pdu []byte, size int) []byte {
	const headerSize = 24

	stub := pdu[headerSize:]
	if size <= 0 || len(stub) <= size {
		return pdu
	}

	var out []byte
	for i := 0; i < len(stub); i += size {
		chunk := stub[i:min(i+size, len(stub))]

		frag := append([]byte(nil), pdu[:headerSize]...)
		frag[3] = 0
		if i == 0 {
			frag[3] |= msrpc.RPC_PACKET_FLAG_FIRST
		}
		if i+size >= len(stub) {
			frag[3] |= msrpc.RPC_PACKET_FLAG_LAST
		}
		frag = append(frag, chunk...)
		binary.LittleEndian.PutUint16(frag[8:], uint16(len(frag)))

		out = append(out, frag...)
	}
	return out
}
