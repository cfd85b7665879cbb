package smbclient

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	. "github.com/smbclient-go/smbclient/internal/erref"
)

// ErrClosed is returned by operations on a client after Close.
var ErrClosed = errors.New("smbclient: client closed")

// TransportError represents a error come from the transport layer.
// Once it is returned the connection is unusable.
type TransportError struct {
	Err error
}

func (err *TransportError) Error() string {
	return fmt.Sprintf("connection error: %v", err.Err)
}

func (err *TransportError) Unwrap() error {
	return err.Err
}

// InternalError represents internal error.
type InternalError struct {
	Message string
}

func (err *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", err.Message)
}

// InvalidResponseError represents a data sent by the server is corrupted or unexpected.
type InvalidResponseError struct {
	Message string
	Err     error
}

func (err *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid response error: %s", err.Message)
}

func (err *InvalidResponseError) Unwrap() error {
	return err.Err
}

// ResponseError represents a error with a nt status code sent by the server.
// The NTSTATUS is defined in [MS-ERREF].
// https://msdn.microsoft.com/en-au/library/cc704588.aspx
type ResponseError struct {
	Code uint32 // NTSTATUS
	data []byte
}

func (err *ResponseError) Error() string {
	return fmt.Sprintf("response error: %v (%s)", NtStatus(err.Code), NtStatus(err.Code).Name())
}

// Unwrap exposes the status so that errors.Is(err, erref.STATUS_XXX) works.
func (err *ResponseError) Unwrap() error {
	return NtStatus(err.Code)
}

// Is maps the status onto the io/fs sentinel errors.
func (err *ResponseError) Is(target error) bool {
	switch target {
	case fs.ErrNotExist:
		return hasStatus(err, STATUS_OBJECT_NAME_NOT_FOUND, STATUS_OBJECT_PATH_NOT_FOUND, STATUS_NOT_FOUND, STATUS_NO_SUCH_FILE)
	case fs.ErrExist:
		return hasStatus(err, STATUS_OBJECT_NAME_COLLISION)
	case fs.ErrPermission:
		return hasStatus(err, STATUS_ACCESS_DENIED)
	}
	return false
}

// AuthenticationError reports that the server rejected the credentials.
type AuthenticationError struct {
	Code uint32 // NTSTATUS
	Err  error
}

func (err *AuthenticationError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("authentication error: %v", err.Err)
	}
	return fmt.Sprintf("authentication error: %s", NtStatus(err.Code).Name())
}

func (err *AuthenticationError) Unwrap() error {
	if err.Err != nil {
		return err.Err
	}
	return NtStatus(err.Code)
}

// ContextError is returned when a request was abandoned because its
// context was canceled or expired.
type ContextError struct {
	Err error
}

func (err *ContextError) Error() string {
	return fmt.Sprintf("context error: %v", err.Err)
}

func (err *ContextError) Unwrap() error {
	return err.Err
}

type MultipleError []error

func (err MultipleError) Error() string {
	msg := "multiple error:"
	for _, e := range err {
		msg += "\n\t" + e.Error()
	}
	return msg
}

// Unwrap returns the collected errors so that errors.Is/As look into each.
func (err MultipleError) Unwrap() []error {
	return err
}

func multiError(errs ...error) error {
	var err MultipleError

	for _, e := range errs {
		switch e := e.(type) {
		case nil:
		case MultipleError:
			err = append(err, e...)
		default:
			err = append(err, e)
		}
	}

	switch len(err) {
	case 0:
		return nil
	case 1:
		return err[0]
	}

	return err
}

func hasStatus(err error, codes ...NtStatus) bool {
	var rerr *ResponseError
	if !errors.As(err, &rerr) {
		return false
	}
	for _, code := range codes {
		if NtStatus(rerr.Code) == code {
			return true
		}
	}
	return false
}

func IsExist(err error) bool {
	if err == nil {
		return false
	}
	return hasStatus(err, STATUS_OBJECT_NAME_COLLISION) || errors.Is(err, os.ErrExist)
}

func IsNotExist(err error) bool {
	if err == nil {
		return false
	}
	return hasStatus(err, STATUS_OBJECT_NAME_NOT_FOUND, STATUS_OBJECT_PATH_NOT_FOUND, STATUS_NOT_FOUND) ||
		errors.Is(err, os.ErrNotExist)
}

func IsPermission(err error) bool {
	if err == nil {
		return false
	}
	return hasStatus(err, STATUS_ACCESS_DENIED) || errors.Is(err, os.ErrPermission)
}

// IsDisconnected reports whether err means the connection is gone.
func IsDisconnected(err error) bool {
	if err == nil {
		return false
	}
	var terr *TransportError
	return errors.As(err, &terr) || errors.Is(err, ErrClosed)
}
