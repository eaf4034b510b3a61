package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// graph client errors
var (
	ErrTokenUnavailable = errors.New("graph access token unavailable")
	ErrNoTables         = errors.New("workbook has no tables; insert a table before logging")
	ErrLinkRequired     = errors.New("anyone edit link is required")
	ErrUnresolvedItem   = errors.New("could not resolve driveId/itemId from share link")
)

// Error is a non-success Graph response.
type Error struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
	Raw     []byte

	// RetryAfter is the server-requested wait, zero when absent.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("graph %s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("graph %s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// Throttled reports whether the response signals overload.
func (e *Error) Throttled() bool {
	return isThrottled(e.Status)
}

// AsError unwraps err into a *Error.
func AsError(err error) (*Error, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// newError builds an Error from a response body. Graph usually answers with
// {"error":{"code","message"}} but proxies may return plain text or HTML.
func newError(method, path string, status int, header http.Header, body []byte) *Error {
	e := &Error{
		Method:     method,
		Path:       path,
		Status:     status,
		Raw:        body,
		RetryAfter: parseRetryAfter(header.Get("Retry-After")),
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		e.Message = fmt.Sprintf("%d %s", status, http.StatusText(status))
		return e
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		e.Message = text
		return e
	}

	if env.Error != nil {
		e.Code = env.Error.Code
		e.Message = env.Error.Message
	}
	if e.Code == "" {
		e.Code = env.Code
	}
	if e.Message == "" {
		e.Message = env.Message
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return e
}

func isThrottled(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}
