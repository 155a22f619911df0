// Package dsaerr defines the structured error shared by every layer of the driver
package dsaerr

import (
	"errors"
	"fmt"
	"syscall"
)

// Code is a high-level error category
type Code string

const (
	CodeNoDeviceFound        Code = "no DSA device found"
	CodeNoWorkQueue          Code = "no enabled work queue"
	CodeQueueFull            Code = "work queue full"
	CodeOperationFailed      Code = "operation failed"
	CodePageFault            Code = "page fault"
	CodeInvalidArgument      Code = "invalid argument"
	CodeBufferSizeMismatch   Code = "buffer size mismatch"
	CodeIOFailure            Code = "I/O failure"
	CodePlatformNotSupported Code = "platform not supported"
	CodeDeviceNotEnabled     Code = "device not enabled"
	CodePermissionDenied     Code = "permission denied"
	CodeMappingFailed        Code = "portal mapping failed"
	CodeQueueClosed          Code = "work queue closed"
)

// Sentinel is a comparable error value matched by code through errors.Is
type Sentinel Code

func (s Sentinel) Error() string {
	return "dsa: " + string(s)
}

// Error is the structured error every operation returns
type Error struct {
	Op    string        // operation that failed (e.g. "crc_gen", "open")
	Queue string        // work queue name, empty if not applicable
	Code  Code          // error category
	Errno syscall.Errno // kernel errno, 0 if not applicable
	Msg   string        // human-readable detail

	// Completion record details
	Status         uint8
	Result         uint8
	FaultAddr      uint64
	BytesCompleted uint32

	// Buffer size mismatch details
	Expected int
	Actual   int

	// Timeout marks an OperationFailed produced by an exhausted spin budget
	Timeout bool

	Inner error
}

func (e *Error) Error() string {
	var detail string
	switch e.Code {
	case CodeOperationFailed:
		if e.Timeout {
			detail = "timed out waiting for completion"
		} else {
			detail = fmt.Sprintf("status=%#02x result=%#02x", e.Status, e.Result)
		}
	case CodePageFault:
		detail = fmt.Sprintf("addr=%#x completed=%d", e.FaultAddr, e.BytesCompleted)
	case CodeBufferSizeMismatch:
		detail = fmt.Sprintf("expected=%d actual=%d", e.Expected, e.Actual)
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if detail != "" {
		msg = msg + ": " + detail
	}

	var ctx string
	switch {
	case e.Op != "" && e.Queue != "":
		ctx = fmt.Sprintf(" (op=%s wq=%s)", e.Op, e.Queue)
	case e.Op != "":
		ctx = fmt.Sprintf(" (op=%s)", e.Op)
	case e.Queue != "":
		ctx = fmt.Sprintf(" (wq=%s)", e.Queue)
	}
	if e.Errno != 0 {
		ctx += fmt.Sprintf(" errno=%d", e.Errno)
	}

	return "dsa: " + msg + ctx
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is matches sentinels and other structured errors by code
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if s, ok := target.(Sentinel); ok {
		return e.Code == Code(s)
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// New creates a structured error
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Newf creates a structured error with a formatted message
func Newf(op string, code Code, format string, args ...any) *Error {
	return &Error{Op: op, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// InvalidArgument reports a caller error detected before submission
func InvalidArgument(op, msg string) *Error {
	return New(op, CodeInvalidArgument, msg)
}

// SizeMismatch reports buffers whose lengths differ
func SizeMismatch(op string, expected, actual int) *Error {
	return &Error{Op: op, Code: CodeBufferSizeMismatch, Expected: expected, Actual: actual}
}

// QueueFull reports that every ENQCMD attempt was rejected
func QueueFull(op, queue string, attempts int) *Error {
	return &Error{
		Op:    op,
		Queue: queue,
		Code:  CodeQueueFull,
		Msg:   fmt.Sprintf("work queue full after %d attempts", attempts),
	}
}

// OperationFailed reports a terminal non-success completion status
func OperationFailed(op, queue string, status, result uint8) *Error {
	return &Error{Op: op, Queue: queue, Code: CodeOperationFailed, Status: status, Result: result}
}

// Timeout reports a completion record that never left the pending state
func Timeout(op, queue string) *Error {
	return &Error{Op: op, Queue: queue, Code: CodeOperationFailed, Timeout: true}
}

// PageFault reports a device fault on caller memory
func PageFault(op, queue string, addr uint64, completed uint32) *Error {
	return &Error{Op: op, Queue: queue, Code: CodePageFault, FaultAddr: addr, BytesCompleted: completed}
}

// QueueClosed reports an operation issued after Close
func QueueClosed(op, queue string) *Error {
	return &Error{Op: op, Queue: queue, Code: CodeQueueClosed}
}

// Wrap wraps err with driver context. Errnos are mapped to codes.
func Wrap(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	var de *Error
	if errors.As(inner, &de) {
		out := *de
		out.Op = op
		return &out
	}

	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{
			Op:    op,
			Code:  mapErrnoToCode(errno),
			Errno: errno,
			Msg:   errno.Error(),
			Inner: inner,
		}
	}

	return &Error{Op: op, Code: CodeIOFailure, Msg: inner.Error(), Inner: inner}
}

// WrapCode wraps err under an explicit code, keeping any errno it carries
func WrapCode(op string, code Code, inner error) *Error {
	e := &Error{Op: op, Code: code, Inner: inner}
	if inner != nil {
		e.Msg = fmt.Sprintf("%s: %v", code, inner)
		var errno syscall.Errno
		if errors.As(inner, &errno) {
			e.Errno = errno
		}
	}
	return e
}

func mapErrnoToCode(errno syscall.Errno) Code {
	switch errno {
	case syscall.ENOENT:
		return CodeNoDeviceFound
	case syscall.EACCES, syscall.EPERM:
		return CodePermissionDenied
	case syscall.ENODEV, syscall.ENXIO:
		return CodeDeviceNotEnabled
	case syscall.EINVAL:
		return CodeInvalidArgument
	default:
		return CodeIOFailure
	}
}

// IsCode checks if an error carries a specific code
func IsCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsErrno checks if an error carries a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Errno == errno
	}
	return false
}

// IsTimeout reports whether err is a completion timeout
func IsTimeout(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == CodeOperationFailed && de.Timeout
	}
	return false
}
