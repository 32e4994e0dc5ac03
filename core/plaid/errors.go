package plaid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	plaidgo "github.com/plaid/plaid-go/v29/plaid"
)

// Kind classifies remote failures the sync reacts to.
type Kind int

const (
	// KindUnknown is any failure without a dedicated handling path.
	KindUnknown Kind = iota
	// KindReauth means the item needs the user to log in again.
	KindReauth
	// KindNoAccounts means the item has no accounts usable for the product.
	KindNoAccounts
)

func (k Kind) String() string {
	switch k {
	case KindReauth:
		return "reauth"
	case KindNoAccounts:
		return "no_accounts"
	default:
		return "unknown"
	}
}

// Error is a failed Plaid call. API failures carry the decoded error body;
// transport failures carry Err.
type Error struct {
	Kind           Kind   `json:"kind"`
	Status         int    `json:"status,omitempty"`
	Type           string `json:"error_type,omitempty"`
	Code           string `json:"error_code,omitempty"`
	Message        string `json:"error_message,omitempty"`
	DisplayMessage string `json:"display_message,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	Err            error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plaid: %v", e.Err)
	}
	if e.Code == "" {
		if e.Message != "" {
			return "plaid: " + e.Message
		}
		return fmt.Sprintf("plaid: http %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool {
	if e.Err != nil {
		return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
	}
	switch e.Code {
	case "RATE_LIMIT_EXCEEDED", "INTERNAL_SERVER_ERROR", "PRODUCT_NOT_READY":
		return true
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsReauth reports whether err is a Plaid error asking for a new login.
func IsReauth(err error) bool {
	return kindOf(err) == KindReauth
}

// IsNoAccounts reports whether err is a Plaid NO_ACCOUNTS error.
func IsNoAccounts(err error) bool {
	return kindOf(err) == KindNoAccounts
}

func kindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

func classify(code string) Kind {
	switch code {
	case "ITEM_LOGIN_REQUIRED":
		return KindReauth
	case "NO_ACCOUNTS":
		return KindNoAccounts
	default:
		return KindUnknown
	}
}

// apiError converts an SDK failure. Responses carrying a Plaid error body
// keep its fields; anything else without a response is a transport error.
func apiError(err error, resp *http.Response) *Error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	perr, convErr := plaidgo.ToPlaidError(err)
	if convErr != nil || perr.GetErrorCode() == "" {
		if status == 0 {
			return &Error{Err: err}
		}
		return &Error{Status: status, Message: err.Error()}
	}
	return &Error{
		Kind:           classify(perr.GetErrorCode()),
		Status:         status,
		Type:           string(perr.GetErrorType()),
		Code:           perr.GetErrorCode(),
		Message:        perr.GetErrorMessage(),
		DisplayMessage: perr.GetDisplayMessage(),
		RequestID:      perr.GetRequestId(),
	}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
