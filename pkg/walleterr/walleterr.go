// Package walleterr normalizes wallet provider failures into a small set of
// user-facing categories.
package walleterr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Category is a user-facing error class.
type Category string

const (
	RequestAlreadyPending Category = "request_already_pending"
	OriginBlocked         Category = "origin_blocked"
	UserRejected          Category = "user_rejected"
	Timeout               Category = "timeout"
	Unsupported           Category = "unsupported"
	Invalid               Category = "invalid"
	Unknown               Category = "unknown"
)

// Provider error codes recognized by Classify.
const (
	CodeRequestPending = -32002
	CodeInternal       = -32603
	CodeUserRejected   = 4001
	CodeActionRejected = "ACTION_REJECTED"
)

const (
	msgRequestPending = "A wallet connection request is already in progress. Please wait for your wallet to respond."
	msgOriginBlocked  = "This website is blocked by the wallet. Please allow the website in the wallet settings."
	msgUserRejected   = "Transaction was cancelled by user."
	msgTimeout        = "Connection timeout. Please ensure your wallet is unlocked and try again."
	msgGeneric        = "An error occurred while connecting to the wallet."
)

// ClassifiedError is the only error shape the wallet core hands to its callers.
type ClassifiedError struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

func (e *ClassifiedError) Error() string {
	return e.Message
}

// Is matches another ClassifiedError of the same category, so errors.Is works
// against the category sentinels below.
func (e *ClassifiedError) Is(target error) bool {
	var t *ClassifiedError
	if !errors.As(target, &t) {
		return false
	}
	return t.Category == e.Category && (t.Message == "" || t.Message == e.Message)
}

// Category sentinels for errors.Is.
var (
	ErrRequestAlreadyPending = &ClassifiedError{Category: RequestAlreadyPending}
	ErrOriginBlocked         = &ClassifiedError{Category: OriginBlocked}
	ErrUserRejected          = &ClassifiedError{Category: UserRejected}
	ErrTimeout               = &ClassifiedError{Category: Timeout}
	ErrUnsupported           = &ClassifiedError{Category: Unsupported}
	ErrInvalid               = &ClassifiedError{Category: Invalid}
	ErrUnknown               = &ClassifiedError{Category: Unknown}
)

// ProviderError is a raw provider failure with an optional numeric or string code.
type ProviderError struct {
	Code    any
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" && e.Code != nil {
		return fmt.Sprintf("provider error %v", e.Code)
	}
	return e.Message
}

// New builds a classified error directly.
func New(category Category, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Category: category, Message: fmt.Sprintf(format, args...)}
}

// NewTimeout returns the error produced when the connect handshake runs out of time.
func NewTimeout() *ClassifiedError {
	return &ClassifiedError{Category: Timeout, Message: msgTimeout}
}

// NewRequestPending returns the error for a request issued while another one is in flight.
func NewRequestPending() *ClassifiedError {
	return &ClassifiedError{Category: RequestAlreadyPending, Message: msgRequestPending}
}

// UnsupportedNetwork returns the configuration error for an unknown network id.
func UnsupportedNetwork(id string) *ClassifiedError {
	return New(Unsupported, "Unsupported network: %s", id)
}

// Classify maps a raw failure to a ClassifiedError. Rules are checked in order
// and the first match wins. Classify(nil) returns nil.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	code, hasCode := errorCode(err)
	msg := messageOf(err)
	lower := strings.ToLower(msg)

	switch {
	case hasCode && codeIs(code, CodeRequestPending),
		strings.Contains(lower, "already pending"),
		strings.Contains(lower, "request") && strings.Contains(lower, "pending"):
		return &ClassifiedError{Category: RequestAlreadyPending, Message: msgRequestPending}
	case hasCode && codeIs(code, CodeInternal),
		strings.Contains(lower, "blacklist"):
		return &ClassifiedError{Category: OriginBlocked, Message: msgOriginBlocked}
	case hasCode && (codeIs(code, CodeUserRejected) || codeIs(code, CodeActionRejected)):
		return &ClassifiedError{Category: UserRejected, Message: msgUserRejected}
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeout()
	case strings.TrimSpace(msg) != "":
		return &ClassifiedError{Category: Unknown, Message: msg}
	default:
		return &ClassifiedError{Category: Unknown, Message: msgGeneric}
	}
}

func messageOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && err == error(pe) {
		return pe.Message
	}
	return err.Error()
}

// rpcCoder matches JSON-RPC errors such as go-ethereum's rpc.Error.
type rpcCoder interface {
	ErrorCode() int
}

func errorCode(err error) (any, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Code != nil {
		return pe.Code, true
	}
	var rc rpcCoder
	if errors.As(err, &rc) {
		return rc.ErrorCode(), true
	}
	return nil, false
}

func codeIs(code any, want any) bool {
	switch c := code.(type) {
	case int:
		w, ok := want.(int)
		return ok && c == w
	case int64:
		w, ok := want.(int)
		return ok && c == int64(w)
	case float64:
		w, ok := want.(int)
		return ok && c == float64(w)
	case string:
		switch w := want.(type) {
		case string:
			return strings.EqualFold(c, w)
		case int:
			return c == fmt.Sprint(w)
		}
	}
	return false
}
