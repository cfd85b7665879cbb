// Package erref holds the NTSTATUS values the client inspects.
// ref: MS-ERREF 2.3
package erref

import "fmt"

type NtStatus uint32

func (e NtStatus) Error() string {
	if s, ok := ntStatusStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("NTSTATUS 0x%08x", uint32(e))
}

// Name returns the symbolic name of e, or its hex value when unknown.
func (e NtStatus) Name() string {
	if s, ok := ntStatusNames[e]; ok {
		return s
	}
	return fmt.Sprintf("0x%08x", uint32(e))
}

// IsError reports whether the severity bits mark e as an error.
func (e NtStatus) IsError() bool {
	return uint32(e)>>30 == 3
}

const (
	STATUS_SUCCESS                  NtStatus = 0x00000000
	STATUS_PENDING                  NtStatus = 0x00000103
	STATUS_NOTIFY_ENUM_DIR          NtStatus = 0x0000010C
	STATUS_BUFFER_OVERFLOW          NtStatus = 0x80000005
	STATUS_NO_MORE_FILES            NtStatus = 0x80000006
	STATUS_STOPPED_ON_SYMLINK       NtStatus = 0x8000002D
	STATUS_INVALID_HANDLE           NtStatus = 0xC0000008
	STATUS_INVALID_PARAMETER        NtStatus = 0xC000000D
	STATUS_NO_SUCH_FILE             NtStatus = 0xC000000F
	STATUS_INVALID_DEVICE_REQUEST   NtStatus = 0xC0000010
	STATUS_END_OF_FILE              NtStatus = 0xC0000011
	STATUS_MORE_PROCESSING_REQUIRED NtStatus = 0xC0000016
	STATUS_ACCESS_DENIED            NtStatus = 0xC0000022
	STATUS_BUFFER_TOO_SMALL         NtStatus = 0xC0000023
	STATUS_OBJECT_NAME_INVALID      NtStatus = 0xC0000033
	STATUS_OBJECT_NAME_NOT_FOUND    NtStatus = 0xC0000034
	STATUS_OBJECT_NAME_COLLISION    NtStatus = 0xC0000035
	STATUS_OBJECT_PATH_NOT_FOUND    NtStatus = 0xC000003A
	STATUS_SHARING_VIOLATION        NtStatus = 0xC0000043
	STATUS_DELETE_PENDING           NtStatus = 0xC0000056
	STATUS_NO_SUCH_USER             NtStatus = 0xC0000064
	STATUS_WRONG_PASSWORD           NtStatus = 0xC000006A
	STATUS_LOGON_FAILURE            NtStatus = 0xC000006D
	STATUS_ACCOUNT_RESTRICTION      NtStatus = 0xC000006E
	STATUS_PASSWORD_EXPIRED         NtStatus = 0xC0000071
	STATUS_ACCOUNT_DISABLED         NtStatus = 0xC0000072
	STATUS_INSUFFICIENT_RESOURCES   NtStatus = 0xC000009A
	STATUS_FILE_IS_A_DIRECTORY      NtStatus = 0xC00000BA
	STATUS_NOT_SUPPORTED            NtStatus = 0xC00000BB
	STATUS_BAD_NETWORK_PATH         NtStatus = 0xC00000BE
	STATUS_NETWORK_NAME_DELETED     NtStatus = 0xC00000C9
	STATUS_BAD_NETWORK_NAME         NtStatus = 0xC00000CC
	STATUS_REQUEST_NOT_ACCEPTED     NtStatus = 0xC00000D0
	STATUS_DIRECTORY_NOT_EMPTY      NtStatus = 0xC0000101
	STATUS_NOT_A_DIRECTORY          NtStatus = 0xC0000103
	STATUS_CANCELLED                NtStatus = 0xC0000120
	STATUS_FILE_CLOSED              NtStatus = 0xC0000128
	STATUS_USER_SESSION_DELETED     NtStatus = 0xC0000203
	STATUS_NOT_FOUND                NtStatus = 0xC0000225
)

var ntStatusStrings = map[NtStatus]string{
	STATUS_SUCCESS:                  "The operation completed successfully.",
	STATUS_PENDING:                  "The operation that was requested is pending completion.",
	STATUS_NOTIFY_ENUM_DIR:          "A notify change request is being completed and the information is not being returned in the caller's buffer.",
	STATUS_BUFFER_OVERFLOW:          "The data was too large to fit into the specified buffer.",
	STATUS_NO_MORE_FILES:            "No more files were found which match the file specification.",
	STATUS_STOPPED_ON_SYMLINK:       "The create operation stopped after reaching a symbolic link.",
	STATUS_INVALID_HANDLE:           "An invalid HANDLE was specified.",
	STATUS_INVALID_PARAMETER:        "An invalid parameter was passed to a service or function.",
	STATUS_NO_SUCH_FILE:             "The file does not exist.",
	STATUS_INVALID_DEVICE_REQUEST:   "The specified request is not a valid operation for the target device.",
	STATUS_END_OF_FILE:              "The end-of-file marker has been reached.",
	STATUS_MORE_PROCESSING_REQUIRED: "The specified buffer contains ill-formed data.",
	STATUS_ACCESS_DENIED:            "A process has requested access to an object but has not been granted those access rights.",
	STATUS_BUFFER_TOO_SMALL:         "The buffer is too small to contain the entry.",
	STATUS_OBJECT_NAME_INVALID:      "The object name is invalid.",
	STATUS_OBJECT_NAME_NOT_FOUND:    "The object name is not found.",
	STATUS_OBJECT_NAME_COLLISION:    "The object name already exists.",
	STATUS_OBJECT_PATH_NOT_FOUND:    "The path does not exist.",
	STATUS_SHARING_VIOLATION:        "A file cannot be opened because the share access flags are incompatible.",
	STATUS_DELETE_PENDING:           "A non-close operation has been requested of a file object that has a delete pending.",
	STATUS_NO_SUCH_USER:             "The specified account does not exist.",
	STATUS_WRONG_PASSWORD:           "When trying to update a password, this return status indicates that the value provided as the current password is not correct.",
	STATUS_LOGON_FAILURE:            "The attempted logon is invalid. This is either due to a bad username or authentication information.",
	STATUS_ACCOUNT_RESTRICTION:      "Indicates a referenced user name and authentication information are valid, but some user account restriction has prevented successful authentication.",
	STATUS_PASSWORD_EXPIRED:         "The user account password has expired.",
	STATUS_ACCOUNT_DISABLED:         "The referenced account is currently disabled and cannot be logged on to.",
	STATUS_INSUFFICIENT_RESOURCES:   "Insufficient system resources exist to complete the API.",
	STATUS_FILE_IS_A_DIRECTORY:      "The file that was specified as a target is a directory, and the caller specified that it could be anything but a directory.",
	STATUS_NOT_SUPPORTED:            "The request is not supported.",
	STATUS_BAD_NETWORK_PATH:         "The network path cannot be located.",
	STATUS_NETWORK_NAME_DELETED:     "The network name was deleted.",
	STATUS_BAD_NETWORK_NAME:         "The specified share name cannot be found on the remote server.",
	STATUS_REQUEST_NOT_ACCEPTED:     "No more connections can be made to this remote computer at this time.",
	STATUS_DIRECTORY_NOT_EMPTY:      "Indicates that the directory trying to be deleted is not empty.",
	STATUS_NOT_A_DIRECTORY:          "A requested opened file is not a directory.",
	STATUS_CANCELLED:                "The I/O request was canceled.",
	STATUS_FILE_CLOSED:              "An I/O request other than close and several other special case operations was attempted using a file object that had already been closed.",
	STATUS_USER_SESSION_DELETED:     "The remote user session has been deleted.",
	STATUS_NOT_FOUND:                "The object was not found.",
}

var ntStatusNames = map[NtStatus]string{
	STATUS_SUCCESS:                  "STATUS_SUCCESS",
	STATUS_PENDING:                  "STATUS_PENDING",
	STATUS_NOTIFY_ENUM_DIR:          "STATUS_NOTIFY_ENUM_DIR",
	STATUS_BUFFER_OVERFLOW:          "STATUS_BUFFER_OVERFLOW",
	STATUS_NO_MORE_FILES:            "STATUS_NO_MORE_FILES",
	STATUS_STOPPED_ON_SYMLINK:       "STATUS_STOPPED_ON_SYMLINK",
	STATUS_INVALID_HANDLE:           "STATUS_INVALID_HANDLE",
	STATUS_INVALID_PARAMETER:        "STATUS_INVALID_PARAMETER",
	STATUS_NO_SUCH_FILE:             "STATUS_NO_SUCH_FILE",
	STATUS_INVALID_DEVICE_REQUEST:   "STATUS_INVALID_DEVICE_REQUEST",
	STATUS_END_OF_FILE:              "STATUS_END_OF_FILE",
	STATUS_MORE_PROCESSING_REQUIRED: "STATUS_MORE_PROCESSING_REQUIRED",
	STATUS_ACCESS_DENIED:            "STATUS_ACCESS_DENIED",
	STATUS_BUFFER_TOO_SMALL:         "STATUS_BUFFER_TOO_SMALL",
	STATUS_OBJECT_NAME_INVALID:      "STATUS_OBJECT_NAME_INVALID",
	STATUS_OBJECT_NAME_NOT_FOUND:    "STATUS_OBJECT_NAME_NOT_FOUND",
	STATUS_OBJECT_NAME_COLLISION:    "STATUS_OBJECT_NAME_COLLISION",
	STATUS_OBJECT_PATH_NOT_FOUND:    "STATUS_OBJECT_PATH_NOT_FOUND",
	STATUS_SHARING_VIOLATION:        "STATUS_SHARING_VIOLATION",
	STATUS_DELETE_PENDING:           "STATUS_DELETE_PENDING",
	STATUS_NO_SUCH_USER:             "STATUS_NO_SUCH_USER",
	STATUS_WRONG_PASSWORD:           "STATUS_WRONG_PASSWORD",
	STATUS_LOGON_FAILURE:            "STATUS_LOGON_FAILURE",
	STATUS_ACCOUNT_RESTRICTION:      "STATUS_ACCOUNT_RESTRICTION",
	STATUS_PASSWORD_EXPIRED:         "STATUS_PASSWORD_EXPIRED",
	STATUS_ACCOUNT_DISABLED:         "STATUS_ACCOUNT_DISABLED",
	STATUS_INSUFFICIENT_RESOURCES:   "STATUS_INSUFFICIENT_RESOURCES",
	STATUS_FILE_IS_A_DIRECTORY:      "STATUS_FILE_IS_A_DIRECTORY",
	STATUS_NOT_SUPPORTED:            "STATUS_NOT_SUPPORTED",
	STATUS_BAD_NETWORK_PATH:         "STATUS_BAD_NETWORK_PATH",
	STATUS_NETWORK_NAME_DELETED:     "STATUS_NETWORK_NAME_DELETED",
	STATUS_BAD_NETWORK_NAME:         "STATUS_BAD_NETWORK_NAME",
	STATUS_REQUEST_NOT_ACCEPTED:     "STATUS_REQUEST_NOT_ACCEPTED",
	STATUS_DIRECTORY_NOT_EMPTY:      "STATUS_DIRECTORY_NOT_EMPTY",
	STATUS_NOT_A_DIRECTORY:          "STATUS_NOT_A_DIRECTORY",
	STATUS_CANCELLED:                "STATUS_CANCELLED",
	STATUS_FILE_CLOSED:              "STATUS_FILE_CLOSED",
	STATUS_USER_SESSION_DELETED:     "STATUS_USER_SESSION_DELETED",
	STATUS_NOT_FOUND:                "STATUS_NOT_FOUND",
}
