package driver

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"unicode/utf8"

	"mysql-dbdriver/internal/native"
)

// MaxErrorMessage bounds the exception message kept on a handle, in bytes.
const MaxErrorMessage = 500

var (
	// ErrBadDatasource is returned by Open before any connection attempt.
	ErrBadDatasource = errors.New("bad datasource")
	// ErrNotConnected is returned for operations on a closed handle.
	ErrNotConnected = errors.New("handle is not connected")
	// ErrAlreadyConnected is returned by Open on an open handle.
	ErrAlreadyConnected = errors.New("handle is already connected")
	// ErrWrongDriver is returned when a handle belongs to another driver.
	ErrWrongDriver = errors.New("handle belongs to another driver")
	// ErrNoRowsWaiting is returned when fetching without a pending result set.
	ErrNoRowsWaiting = errors.New("no rows waiting to fetch")
	// ErrColumnMismatch is returned when a row template and the result set disagree on arity.
	ErrColumnMismatch = errors.New("row column count does not match result set")
	// ErrNoRows is returned by Select for statements that produced no rows.
	ErrNoRows = errors.New("query did not return rows")
	// ErrInconsistentResult is returned when the client reports columns but no result set.
	ErrInconsistentResult = errors.New("inconsistent result set state")
	// ErrNative is wrapped by every *NativeError.
	ErrNative = errors.New("native client error")
)

// NativeError is a failed native call.
type NativeError struct {
	Op       string
	Code     int
	SQLState string
	Message  string
}

func (e *NativeError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("%s failed: (%d) [%s] %s", e.Op, e.Code, e.SQLState, e.Message)
	}
	return fmt.Sprintf("%s failed: (%d) %s", e.Op, e.Code, e.Message)
}

func (e *NativeError) Unwrap() error {
	return ErrNative
}

// report records a failed status on the handle and logs it. It returns
// true when st is a failure. Successful statuses leave the handle untouched.
func report(logger *slog.Logger, h *Handle, st native.Status) bool {
	if st.OK() {
		return false
	}
	msg := truncate(st.Message, MaxErrorMessage)
	logger.Error("Native client error",
		"code", st.Code,
		"sqlstate", st.SQLState,
		"message", msg,
		"datasource", h.Datasource,
	)
	h.exceptionCode = strconv.Itoa(st.Code)
	h.exceptionMsg = msg
	return true
}

func nativeError(op string, h *Handle, st native.Status) error {
	return &NativeError{Op: op, Code: st.Code, SQLState: st.SQLState, Message: h.exceptionMsg}
}

// truncate returns at most max bytes of s without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
