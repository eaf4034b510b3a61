package dispatcher

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/blockedby/mailmerge/internal/graph"
)

// audit messages
const (
	ReasonSent             = "sent"
	ReasonInvalidRecipient = "invalid recipient"
	ReasonUnknown          = "unknown send failure"

	ReasonUnauthorized  = "unauthorized: invalid/expired token"
	ReasonForbidden     = "unauthorized: insufficient permission"
	ReasonThrottled     = "throttled: too many requests"
	ReasonInvalidToken  = "unauthorized: invalid token"
	ReasonAccessDenied  = "unauthorized: access denied"
	maxReasonMessageLen = 120
)

// FailReason turns a send error into the short reason written to the audit log.
// Status checks take priority over provider error codes.
func FailReason(err error) string {
	gerr, ok := graph.AsError(err)
	if !ok {
		return ReasonUnknown
	}

	switch gerr.Status {
	case http.StatusUnauthorized:
		return ReasonUnauthorized
	case http.StatusForbidden:
		return ReasonForbidden
	case http.StatusTooManyRequests:
		return ReasonThrottled
	}

	code := strings.ToLower(gerr.Code)
	switch {
	case strings.Contains(code, "invalidauthenticationtoken"):
		return ReasonInvalidToken
	case strings.Contains(code, "accessdenied"):
		return ReasonAccessDenied
	}

	reason := fmt.Sprintf("send failed (%d", gerr.Status)
	if gerr.Code != "" {
		reason += ", " + gerr.Code
	}
	reason += ")"
	if msg := truncate(strings.TrimSpace(gerr.Message), maxReasonMessageLen); msg != "" {
		reason += " " + msg
	}
	return reason
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
