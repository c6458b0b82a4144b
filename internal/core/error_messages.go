package core

// error_messages.go maps technical errors to messages a site visitor can
// act on. Each message carries a code that support staff can look up.
//
// # Database (DB)
//
//	DB001 duplicate entry            "duplicate key", store 23505
//	DB003 referenced record missing  "foreign key", store 23503
//	DB004 backend unreachable        "connection refused", "no such host"
//	DB005 connection interrupted     "connection reset"
//	DB006 timed out                  context.DeadlineExceeded, "timeout"
//	DB007 backend busy               "deadlock"
//
// # Submission (SUB)
//
//	SUB001 submission already in progress
//	SUB002 too many submissions in flight
//	SUB003 form session expired or unknown
//	SUB004 form already submitted
//	SUB005 request cancelled
//
// # Forms (FRM)
//
//	FRM001 unknown form
//	FRM002 unknown field
//	FRM003 value of the wrong type
//	FRM004 step locked or out of range
//
// # Verification (VER)
//
//	VER001 bot verification failed
//
// # Rate limiting (RATE)
//
//	RATE001 too many requests
//
// ERR000 is the fallback; check the logs for the technical error.
//
// Sentinel errors are matched with errors.Is and store errors with
// errors.As before any substring pattern. Patterns are matched
// case-insensitively and the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/shipbroker/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgDuplicate   = UserMessage{"This entry has already been submitted", "Check your details or contact us directly", "DB001"}
	msgForeignKey  = UserMessage{"A referenced record does not exist", "Please start again", "DB003"}
	msgUnreachable = UserMessage{"Our systems are temporarily unreachable", "Please try again in a few moments", "DB004"}
	msgReset       = UserMessage{"The connection was interrupted", "Please try again", "DB005"}
	msgTimeout     = UserMessage{"The request timed out", "Please try again", "DB006"}
	msgDeadlock    = UserMessage{"Our systems are busy", "Please try again", "DB007"}
	msgPending     = UserMessage{"Your submission is already being processed", "Please wait for it to finish", "SUB001"}
	msgBusy        = UserMessage{"We are receiving a lot of submissions right now", "Please wait a moment and try again", "SUB002"}
	msgExpired     = UserMessage{"Your form session has expired", "Please start the form again", "SUB003"}
	msgSubmitted   = UserMessage{"This form has already been submitted", "Start a new form to submit again", "SUB004"}
	msgCancelled   = UserMessage{"The request was cancelled", "Please try again", "SUB005"}
	msgUnknownForm = UserMessage{"This form does not exist", "Check the link and try again", "FRM001"}
	msgUnknownFld  = UserMessage{"The form contained an unexpected field", "Reload the page and try again", "FRM002"}
	msgBadValue    = UserMessage{"A field contained a value of the wrong type", "Check your entries and try again", "FRM003"}
	msgLocked      = UserMessage{"Please complete the earlier steps first", "Go back and finish the highlighted step", "FRM004"}
	msgVerify      = UserMessage{"Security verification failed", "Please try again", "VER001"}
	msgRateLimited = UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}
)

// sentinelMessages are checked in order with errors.Is.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrSubmissionPending, msgPending},
	{ErrTooManySubmissions, msgBusy},
	{ErrFormNotFound, msgExpired},
	{ErrAlreadySubmitted, msgSubmitted},
	{ErrUnknownForm, msgUnknownForm},
	{ErrUnknownField, msgUnknownFld},
	{ErrInvalidValue, msgBadValue},
	{ErrStepLocked, msgLocked},
	{ErrVerificationFailed, msgVerify},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is the substring fallback for errors without a type.
// More specific patterns come first.
var errorPatterns = []errorPattern{
	{"duplicate key", msgDuplicate},
	{"unique constraint", msgDuplicate},
	{"foreign key", msgForeignKey},
	{"connection refused", msgUnreachable},
	{"no such host", msgUnreachable},
	{"connection reset", msgReset},
	{"timeout", msgTimeout},
	{"deadline exceeded", msgTimeout},
	{"deadlock", msgDeadlock},
	{"rate limit", msgRateLimited},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	var se *store.Error
	if errors.As(err, &se) {
		switch se.Code {
		case store.CodeUniqueViolation:
			return msgDuplicate
		case store.CodeForeignKeyViolation:
			return msgForeignKey
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// Sentence renders "Message. Action." for notifications.
func (m UserMessage) Sentence() string {
	if m.Message == "" {
		return ""
	}
	return m.Message + ". " + m.Action + "."
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with the message shown to users.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and keeps it for logging. Returns nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
