package smbclient

import (
	"github.com/smbclient-go/smbclient/internal/smb2"
)

// client

const (
	clientCapabilities = smb2.SMB2_GLOBAL_CAP_LARGE_MTU
	clientSecurityMode = smb2.SMB2_NEGOTIATE_SIGNING_ENABLED
)

var (
	clientHashAlgorithms = []uint16{smb2.SHA512}
	clientDialects       = []uint16{smb2.SMB311, smb2.SMB302, smb2.SMB300, smb2.SMB210, smb2.SMB202}
)

const (
	clientMaxCreditBalance = 128

	// bytes covered by one credit on a multi-credit READ/WRITE/QUERY_DIRECTORY
	creditUnit = 64 * 1024

	clientMaxTransferSize = 8 * 1024 * 1024
	clientDirectoryBuffer = 64 * 1024
	clientQueryInfoBuffer = 64 * 1024
	clientPipeBuffer      = 4280

	// Direct TCP frames carry a 24-bit length
	maxFrameSize = 0x00ffffff
)

var dialectNames = map[uint16]string{
	smb2.SMB202: "2.0.2",
	smb2.SMB210: "2.1",
	smb2.SMB300: "3.0",
	smb2.SMB302: "3.0.2",
	smb2.SMB311: "3.1.1",
}

func dialectName(d uint16) string {
	if s, ok := dialectNames[d]; ok {
		return s
	}
	return "unknown"
}
