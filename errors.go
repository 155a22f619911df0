package dsa

import (
	"syscall"

	"github.com/ehrlich-b/go-dsa/internal/dsaerr"
)

// Error is the structured error returned by every engine operation. Use
// errors.As to inspect completion details (Status, FaultAddr, ...).
type Error = dsaerr.Error

// ErrorCode is a high-level error category
type ErrorCode = dsaerr.Code

const (
	ErrCodeNoDeviceFound        = dsaerr.CodeNoDeviceFound
	ErrCodeNoWorkQueue          = dsaerr.CodeNoWorkQueue
	ErrCodeQueueFull            = dsaerr.CodeQueueFull
	ErrCodeOperationFailed      = dsaerr.CodeOperationFailed
	ErrCodePageFault            = dsaerr.CodePageFault
	ErrCodeInvalidArgument      = dsaerr.CodeInvalidArgument
	ErrCodeBufferSizeMismatch   = dsaerr.CodeBufferSizeMismatch
	ErrCodeIOFailure            = dsaerr.CodeIOFailure
	ErrCodePlatformNotSupported = dsaerr.CodePlatformNotSupported
	ErrCodeDeviceNotEnabled     = dsaerr.CodeDeviceNotEnabled
	ErrCodePermissionDenied     = dsaerr.CodePermissionDenied
	ErrCodeMappingFailed        = dsaerr.CodeMappingFailed
	ErrCodeQueueClosed          = dsaerr.CodeQueueClosed
)

// Sentinel errors for errors.Is; a structured *Error matches the sentinel
// with the same code
var (
	ErrNoDeviceFound        error = dsaerr.Sentinel(dsaerr.CodeNoDeviceFound)
	ErrNoWorkQueue          error = dsaerr.Sentinel(dsaerr.CodeNoWorkQueue)
	ErrQueueFull            error = dsaerr.Sentinel(dsaerr.CodeQueueFull)
	ErrOperationFailed      error = dsaerr.Sentinel(dsaerr.CodeOperationFailed)
	ErrPageFault            error = dsaerr.Sentinel(dsaerr.CodePageFault)
	ErrInvalidArgument      error = dsaerr.Sentinel(dsaerr.CodeInvalidArgument)
	ErrBufferSizeMismatch   error = dsaerr.Sentinel(dsaerr.CodeBufferSizeMismatch)
	ErrIOFailure            error = dsaerr.Sentinel(dsaerr.CodeIOFailure)
	ErrPlatformNotSupported error = dsaerr.Sentinel(dsaerr.CodePlatformNotSupported)
	ErrDeviceNotEnabled     error = dsaerr.Sentinel(dsaerr.CodeDeviceNotEnabled)
	ErrPermissionDenied     error = dsaerr.Sentinel(dsaerr.CodePermissionDenied)
	ErrMappingFailed        error = dsaerr.Sentinel(dsaerr.CodeMappingFailed)
	ErrQueueClosed          error = dsaerr.Sentinel(dsaerr.CodeQueueClosed)
)

// IsCode checks if an error carries a specific code
func IsCode(err error, code ErrorCode) bool {
	return dsaerr.IsCode(err, code)
}

// IsErrno checks if an error carries a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	return dsaerr.IsErrno(err, errno)
}

// IsTimeout reports whether err came from an operation whose completion
// record never arrived within the spin budget
func IsTimeout(err error) bool {
	return dsaerr.IsTimeout(err)
}
