package smb2

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smbclient-go/smbclient/internal/smbenc"
)

var testFileId = &FileId{
	Persistent: [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
	Volatile:   [8]byte{9, 10, 11, 12, 13, 14, 15, 16},
}

// SMB2_CREATE_QUERY_MAXIMAL_ACCESS_REQUEST context, and its response
// granting 0x1f01ff.
var (
	mxAcRequest = []byte{
		0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x04, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		'M', 'x', 'A', 'c', 0x00, 0x00, 0x00, 0x00,
	}
	mxAcResponse = []byte{
		0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x04, 0x00,
		0x00, 0x00, 0x18, 0x00, 0x08, 0x00, 0x00, 0x00,
		'M', 'x', 'A', 'c', 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0xff, 0x01, 0x1f, 0x00,
	}
)

// SMB_DIRECT_BUFFER_DESCRIPTOR_V1
var rdmaDescriptor = []byte{
	0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x2a, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00,
}

func mustMarshal(t *testing.T, m Message) []byte {
	t.Helper()
	pkt, err := Marshal(m)
	require.NoError(t, err)
	return pkt
}

func TestEchoRequestVector(t *testing.T) {
	req := &EchoRequest{}
	req.MessageId = 7
	req.CreditRequestResponse = 1

	pkt := mustMarshal(t, req)

	expected, _ := hex.DecodeString(
		"fe534d4240000000000000000d00010000000000000000000700000000000000" +
			"0000000000000000000000000000000000000000000000000000000000000000" +
			"04000000")

	if !bytes.Equal(pkt, expected) {
		t.Errorf("fail")
	}
}

func TestRoundTrip(t *testing.T) {
	now := TimeToFiletime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	msgs := map[string]func() (Message, Message){
		"negotiate request": func() (Message, Message) {
			return &NegotiateRequest{
				SecurityMode: SMB2_NEGOTIATE_SIGNING_ENABLED,
				Capabilities: SMB2_GLOBAL_CAP_LARGE_MTU,
				ClientGuid:   [16]byte{0xaa, 0xbb},
				Dialects:     []uint16{SMB202, SMB210, SMB300, SMB302, SMB311},
				Contexts: []NegotiateContext{
					HashContext([]uint16{SHA512}, make([]byte, 32)),
					CipherContext([]uint16{AES128GCM, AES128CCM}),
				},
			}, &NegotiateRequest{}
		},
		"negotiate response": func() (Message, Message) {
			m := &NegotiateResponse{
				DialectRevision: SMB311,
				MaxTransactSize: 1 << 20,
				MaxReadSize:     1 << 20,
				MaxWriteSize:    1 << 20,
				SystemTime:      now,
				SecurityBuffer:  []byte{0x60, 0x01, 0x02},
				Contexts:        []NegotiateContext{HashContext([]uint16{SHA512}, []byte{1, 2, 3})},
			}
			m.Flags = SMB2_FLAGS_SERVER_TO_REDIR
			return m, &NegotiateResponse{}
		},
		"session setup request": func() (Message, Message) {
			return &SessionSetupRequest{SecurityMode: 1, SecurityBuffer: []byte("NTLMSSP\x00")}, &SessionSetupRequest{}
		},
		"session setup response": func() (Message, Message) {
			m := &SessionSetupResponse{SessionFlags: SMB2_SESSION_FLAG_IS_GUEST, SecurityBuffer: []byte{0xa1, 0x00}}
			m.Status = 0xc0000016
			m.SessionId = 0x1122334455667788
			return m, &SessionSetupResponse{}
		},
		"tree connect request": func() (Message, Message) {
			return &TreeConnectRequest{Path: `\\server\share`}, &TreeConnectRequest{}
		},
		"tree connect response": func() (Message, Message) {
			return &TreeConnectResponse{ShareType: SMB2_SHARE_TYPE_DISK, MaximalAccess: 0x1f01ff}, &TreeConnectResponse{}
		},
		"create request": func() (Message, Message) {
			return &CreateRequest{
				ImpersonationLevel: Impersonation,
				DesiredAccess:      FILE_READ_DATA | FILE_READ_ATTRIBUTES,
				FileAttributes:     FILE_ATTRIBUTE_NORMAL,
				ShareAccess:        FILE_SHARE_READ,
				CreateDisposition:  FILE_OPEN,
				CreateOptions:      FILE_NON_DIRECTORY_FILE,
				Name:               `dir\file.txt`,
			}, &CreateRequest{}
		},
		"create request with empty name": func() (Message, Message) {
			return &CreateRequest{CreateDisposition: FILE_OPEN}, &CreateRequest{}
		},
		"create response": func() (Message, Message) {
			return &CreateResponse{
				CreateAction:   1,
				CreationTime:   now,
				LastWriteTime:  now,
				EndOfFile:      1234,
				AllocationSize: 4096,
				FileAttributes: FILE_ATTRIBUTE_ARCHIVE,
				FileId:         testFileId,
			}, &CreateResponse{}
		},
		"create request with contexts": func() (Message, Message) {
			return &CreateRequest{
				DesiredAccess:     FILE_READ_ATTRIBUTES,
				CreateDisposition: FILE_OPEN,
				Name:              "x",
				Contexts:          mxAcRequest,
			}, &CreateRequest{}
		},
		"create response with contexts": func() (Message, Message) {
			return &CreateResponse{
				CreateAction: 1,
				FileId:       testFileId,
				Contexts:     mxAcResponse,
			}, &CreateResponse{}
		},
		"close request": func() (Message, Message) {
			return &CloseRequest{Flags: SMB2_CLOSE_FLAG_POSTQUERY_ATTRIB, FileId: testFileId}, &CloseRequest{}
		},
		"read request": func() (Message, Message) {
			return &ReadRequest{Length: 65536, Offset: 1 << 33, FileId: testFileId}, &ReadRequest{}
		},
		"read request with channel info": func() (Message, Message) {
			return &ReadRequest{
				Length:          4096,
				FileId:          testFileId,
				Channel:         1,
				ReadChannelInfo: rdmaDescriptor,
			}, &ReadRequest{}
		},
		"read response": func() (Message, Message) {
			return &ReadResponse{Data: []byte("hello")}, &ReadResponse{}
		},
		"write request": func() (Message, Message) {
			return &WriteRequest{Offset: 10, FileId: testFileId, Data: []byte("payload")}, &WriteRequest{}
		},
		"write request with channel info": func() (Message, Message) {
			return &WriteRequest{
				FileId:           testFileId,
				Channel:          1,
				WriteChannelInfo: rdmaDescriptor,
				Data:             []byte("payload"),
			}, &WriteRequest{}
		},
		"write request with empty data": func() (Message, Message) {
			return &WriteRequest{Offset: 4096, FileId: testFileId}, &WriteRequest{}
		},
		"write response": func() (Message, Message) {
			return &WriteResponse{Count: 7}, &WriteResponse{}
		},
		"ioctl request": func() (Message, Message) {
			return &IoctlRequest{
				CtlCode:           FSCTL_PIPE_TRANSCEIVE,
				FileId:            testFileId,
				MaxOutputResponse: 4280,
				Flags:             SMB2_0_IOCTL_IS_FSCTL,
				Input:             []byte{5, 0, 0, 3},
			}, &IoctlRequest{}
		},
		"ioctl response": func() (Message, Message) {
			return &IoctlResponse{CtlCode: FSCTL_PIPE_TRANSCEIVE, FileId: testFileId, Output: []byte{5, 0, 2, 3, 1}}, &IoctlResponse{}
		},
		"query directory request": func() (Message, Message) {
			return &QueryDirectoryRequest{
				FileInformationClass: FileIdBothDirectoryInformation,
				Flags:                SMB2_RESTART_SCANS,
				FileId:               testFileId,
				OutputBufferLength:   65536,
				FileName:             "*",
			}, &QueryDirectoryRequest{}
		},
		"query directory response": func() (Message, Message) {
			return &QueryDirectoryResponse{OutputBuffer: EncodeDirectory([]*FileIdBothDirectoryInfo{{FileName: "a"}})}, &QueryDirectoryResponse{}
		},
		"query info request": func() (Message, Message) {
			return &QueryInfoRequest{
				InfoType:           SMB2_0_INFO_FILE,
				FileInfoClass:      FileAllInformation,
				OutputBufferLength: 4096,
				FileId:             testFileId,
			}, &QueryInfoRequest{}
		},
		"query info response": func() (Message, Message) {
			return &QueryInfoResponse{OutputBuffer: []byte{1, 2, 3, 4}}, &QueryInfoResponse{}
		},
		"set info request": func() (Message, Message) {
			return NewSetInfoRequest(testFileId, &FileRenameInfo{ReplaceIfExists: true, FileName: `a\b`}), &SetInfoRequest{}
		},
		"set info response": func() (Message, Message) {
			return &SetInfoResponse{}, &SetInfoResponse{}
		},
		"logoff request": func() (Message, Message) {
			return &LogoffRequest{}, &LogoffRequest{}
		},
		"logoff response": func() (Message, Message) {
			return &LogoffResponse{}, &LogoffResponse{}
		},
		"tree disconnect request": func() (Message, Message) {
			return &TreeDisconnectRequest{}, &TreeDisconnectRequest{}
		},
		"echo request": func() (Message, Message) {
			return &EchoRequest{}, &EchoRequest{}
		},
		"echo response": func() (Message, Message) {
			return &EchoResponse{}, &EchoResponse{}
		},
		"flush request": func() (Message, Message) {
			return &FlushRequest{FileId: testFileId}, &FlushRequest{}
		},
		"flush response": func() (Message, Message) {
			return &FlushResponse{}, &FlushResponse{}
		},
		"cancel request": func() (Message, Message) {
			m := &CancelRequest{}
			m.Flags = SMB2_FLAGS_ASYNC_COMMAND
			m.AsyncId = 7
			return m, &CancelRequest{}
		},
		"tree disconnect response": func() (Message, Message) {
			return &TreeDisconnectResponse{}, &TreeDisconnectResponse{}
		},
		"error response": func() (Message, Message) {
			m := &ErrorResponse{}
			m.Command = SMB2_CREATE
			m.Status = 0xc0000034
			return m, &ErrorResponse{}
		},
	}

	for name, f := range msgs {
		t.Run(name, func(t *testing.T) {
			in, out := f()
			pkt := mustMarshal(t, in)
			require.NoError(t, Unmarshal(pkt, out))
			assert.Equal(t, pkt, mustMarshal(t, out))
			assert.Equal(t, in.Header().Command, out.Header().Command)
		})
	}
}

func TestCreateFields(t *testing.T) {
	pkt := mustMarshal(t, &CreateRequest{Name: `dir\x`, DesiredAccess: GENERIC_READ})

	var req CreateRequest
	require.NoError(t, Unmarshal(pkt, &req))
	assert.Equal(t, `dir\x`, req.Name)
	assert.Equal(t, uint32(GENERIC_READ), req.DesiredAccess)
	assert.Equal(t, uint16(HeaderSize+56), smbenc.NewReader(pkt).Uint16At(HeaderSize+44))
}

func TestAsyncHeader(t *testing.T) {
	resp := &WriteResponse{Count: 1}
	resp.Flags = SMB2_FLAGS_SERVER_TO_REDIR | SMB2_FLAGS_ASYNC_COMMAND
	resp.AsyncId = 0xdeadbeef
	resp.Status = 0x103

	hdr, err := DecodeHeader(mustMarshal(t, resp))
	require.NoError(t, err)
	assert.True(t, hdr.IsAsync())
	assert.True(t, hdr.IsResponse())
	assert.Equal(t, uint64(0xdeadbeef), hdr.AsyncId)
	assert.Zero(t, hdr.TreeId)
}

func TestDecodeErrors(t *testing.T) {
	pkt := mustMarshal(t, &ReadResponse{Data: []byte("0123456789")})

	t.Run("truncated", func(t *testing.T) {
		var resp ReadResponse
		err := Unmarshal(pkt[:len(pkt)-3], &resp)
		var derr *DecodeError
		require.ErrorAs(t, err, &derr)
		assert.True(t, errors.Is(err, smbenc.ErrShortBuffer))
	})

	t.Run("wrong structure size", func(t *testing.T) {
		bad := append([]byte(nil), pkt...)
		bad[HeaderSize] = 99
		var resp ReadResponse
		assert.ErrorIs(t, Unmarshal(bad, &resp), smbenc.ErrUnexpectedValue)
	})

	t.Run("wrong command", func(t *testing.T) {
		var resp WriteResponse
		var derr *DecodeError
		assert.ErrorAs(t, Unmarshal(pkt, &resp), &derr)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte(nil), pkt...)
		bad[0] = 0xff
		_, err := DecodeHeader(bad)
		assert.Error(t, err)
	})

	t.Run("unknown information class", func(t *testing.T) {
		bad := mustMarshal(t, &QueryDirectoryRequest{FileInformationClass: FileIdBothDirectoryInformation, FileName: "*"})
		bad[HeaderSize+2] = 0x7f
		var req QueryDirectoryRequest
		assert.Error(t, Unmarshal(bad, &req))
	})
}

func TestDirectoryEntries(t *testing.T) {
	now := TimeToFiletime(time.Unix(1700000000, 0))
	in := []*FileIdBothDirectoryInfo{
		{FileName: ".", FileAttributes: FILE_ATTRIBUTE_DIRECTORY},
		{FileName: "..", FileAttributes: FILE_ATTRIBUTE_DIRECTORY},
		{FileName: "report.pdf", EndOfFile: 42, LastWriteTime: now, FileId: 99, ShortName: "REPORT~1.PDF"},
		{FileName: "日本語", FileAttributes: FILE_ATTRIBUTE_HIDDEN},
	}

	buf := EncodeDirectory(in)

	out, err := DecodeDirectory(buf)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, ".", out[0].FileName)
	assert.Equal(t, "..", out[1].FileName)
	assert.Equal(t, "report.pdf", out[2].FileName)
	assert.Equal(t, "REPORT~1.PDF", out[2].ShortName)
	assert.Equal(t, int64(42), out[2].EndOfFile)
	assert.Equal(t, uint64(99), out[2].FileId)
	assert.Equal(t, now.Time(), out[2].LastWriteTime.Time())
	assert.Equal(t, "日本語", out[3].FileName)
	assert.True(t, out[3].FileAttributes.Has(FILE_ATTRIBUTE_HIDDEN))

	t.Run("next offset past buffer", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		bad[0], bad[1], bad[2], bad[3] = 0xff, 0xff, 0, 0

		it := NewDirectoryIterator(bad)
		require.NotNil(t, it.Next())
		assert.Nil(t, it.Next())
		assert.Error(t, it.Err())
	})

	t.Run("last offset at end of buffer", func(t *testing.T) {
		two := EncodeDirectory(in[2:])
		first := binary.LittleEndian.Uint32(two)
		binary.LittleEndian.PutUint32(two[first:], uint32(len(two))-first)

		infos, err := DecodeDirectory(two)
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "日本語", infos[1].FileName)
	})

	t.Run("truncated name", func(t *testing.T) {
		it := NewDirectoryIterator(buf[:fileIdBothDirectoryInfoSize-1])
		assert.Nil(t, it.Next())
		assert.Error(t, it.Err())
	})

	t.Run("empty", func(t *testing.T) {
		infos, err := DecodeDirectory(nil)
		assert.NoError(t, err)
		assert.Empty(t, infos)
	})
}

func TestFileAllInfo(t *testing.T) {
	in := &FileAllInfo{
		Basic:    FileBasicInfo{FileAttributes: FILE_ATTRIBUTE_DIRECTORY},
		Standard: FileStandardInfo{EndOfFile: 10, NumberOfLinks: 1, Directory: true},
		FileName: `\dir`,
	}
	w := smbenc.NewWriter(128)
	in.Encode(w)
	assert.Equal(t, 100+8, w.Len())

	out, err := DecodeFileAllInfo(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeFileAllInfo(w.Bytes()[:50])
	assert.Error(t, err)
}

func TestRenameInfo(t *testing.T) {
	w := smbenc.NewWriter(32)
	(&FileRenameInfo{ReplaceIfExists: true, FileName: `new\name`}).Encode(w)
	assert.Equal(t, 20+16, w.Len())

	info, err := DecodeFileRenameInfo(w.Bytes())
	require.NoError(t, err)
	assert.True(t, info.ReplaceIfExists)
	assert.Equal(t, `new\name`, info.FileName)
}

func TestFiletime(t *testing.T) {
	assert.True(t, Filetime(0).Time().IsZero())

	tm := time.Date(2020, 5, 6, 7, 8, 9, 100, time.UTC)
	assert.True(t, tm.Equal(TimeToFiletime(tm).Time()))
	assert.Equal(t, Filetime(116444736000000000), TimeToFiletime(time.Unix(0, 0)))
}
