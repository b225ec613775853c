// Package errs defines the error taxonomy shared by every sasmux component.
//
// Each failure carries a Kind for classification, the operation that failed,
// and a numeric Code in the platform's 0x80xxxxxx convention so callers that
// bridge to native code can still report the familiar values.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindConfiguration is an invalid parameter or combination of parameters.
	KindConfiguration
	// KindResourceExhausted covers a full slot table or heap.
	KindResourceExhausted
	// KindHardwareRejected is a port, codec or memory service refusing a request.
	KindHardwareRejected
	// KindIO is a storage failure.
	KindIO
	// KindInvalidPointer is a free or realloc of an address no block owns.
	KindInvalidPointer
	// KindInvalidHandle is an operation on a destroyed or unknown handle.
	KindInvalidHandle
	// KindState is an operation that is not valid in the current lifecycle state.
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindResourceExhausted:
		return "resource exhausted"
	case KindHardwareRejected:
		return "hardware rejected"
	case KindIO:
		return "io"
	case KindInvalidPointer:
		return "invalid pointer"
	case KindInvalidHandle:
		return "invalid handle"
	case KindState:
		return "invalid state"
	default:
		return "unknown"
	}
}

// Code is a numeric cause code.
type Code uint32

func (c Code) String() string {
	return fmt.Sprintf("0x%08X", uint32(c))
}

// Heap codes.
const (
	CodeHeapInvalidID      Code = 0x804F0000
	CodeHeapInvalidPointer Code = 0x804F0001
	CodeHeapInvalidArg     Code = 0x804F0002
	CodeHeapNoMemory       Code = 0x804F0003
)

// Mixer and output codes.
const (
	CodeInvalidParameter Code = 0x80420001
	CodeInvalidGrain     Code = 0x80420002
	CodeInvalidPort      Code = 0x80420003
	CodeInvalidVolume    Code = 0x80420004
	CodeInvalidVoice     Code = 0x80420010
	CodeInvalidNoise     Code = 0x80420011
	CodeInvalidPitch     Code = 0x80420012
	CodeInvalidEnvelope  Code = 0x80420013
	CodeInvalidLoop      Code = 0x80420015
	CodeNotInitialized   Code = 0x80420016
	CodeBusy             Code = 0x80420030
	CodePortRejected     Code = 0x80260001
)

// Codec, container and storage codes.
const (
	CodeCodecNoEntry      Code = 0x80600007
	CodeCodecInvalidValue Code = 0x80600009
	CodeCodecNoMemory     Code = 0x8060000A
	CodeBadHeader         Code = 0x807F0001
	CodeUnsupportedFormat Code = 0x807F0002
	CodeIOFailure         Code = 0x80010005
	CodeMemoryRejected    Code = 0x80020001
)

// Error is the structured error returned across package boundaries.
type Error struct {
	Kind   Kind
	Op     string
	Code   Code
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Code != 0 {
		b.WriteString(" (")
		b.WriteString(e.Code.String())
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches kind sentinels: a target with only Kind set matches any error of
// that kind, a target with a Code matches that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != 0 && t.Code != e.Code {
		return false
	}
	if t.Op != "" || t.Detail != "" || t.Cause != nil {
		return false
	}
	return t.Kind == KindUnknown || t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrResourceExhausted = &Error{Kind: KindResourceExhausted}
	ErrHardwareRejected  = &Error{Kind: KindHardwareRejected}
	ErrIO                = &Error{Kind: KindIO}
	ErrInvalidPointer    = &Error{Kind: KindInvalidPointer}
	ErrInvalidHandle     = &Error{Kind: KindInvalidHandle}
	ErrState             = &Error{Kind: KindState}
)

// New creates an error with a formatted detail message.
func New(kind Kind, op string, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches classification to cause. A nil cause yields nil.
func Wrap(kind Kind, op string, code Code, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Code: code, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain that has one.
func CodeOf(err error) Code {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return 0
		}
		if e.Code != 0 {
			return e.Code
		}
		err = e.Cause
	}
	return 0
}
