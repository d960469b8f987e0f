package twitter

import (
	"errors"
	"fmt"
	"net/http"

	gotwitter "github.com/dghubble/go-twitter/twitter"
)

var (
	// ErrAuthInvalid means the account credentials were rejected. It is fatal
	// for the account.
	ErrAuthInvalid = errors.New("twitter credentials rejected")

	// ErrRateLimited means the remote refused the call because the window is
	// exhausted.
	ErrRateLimited = errors.New("twitter rate limit exceeded")
)

// Error codes of the v1.1 API.
const (
	codeCouldNotAuthenticate = 32
	codeRateLimitExceeded    = 88
	codeInvalidToken         = 89
)

// classify maps a go-twitter error and its response onto the sentinel errors.
// Anything else is returned wrapped as a transport error.
func classify(op string, resp *http.Response, err error) error {
	if err == nil {
		return nil
	}

	var apiErr gotwitter.APIError
	if errors.As(err, &apiErr) {
		for _, d := range apiErr.Errors {
			switch d.Code {
			case codeCouldNotAuthenticate, codeInvalidToken:
				return fmt.Errorf("%s: %w: %s", op, ErrAuthInvalid, d.Message)
			case codeRateLimitExceeded:
				return fmt.Errorf("%s: %w: %s", op, ErrRateLimited, d.Message)
			}
		}
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %v", op, ErrAuthInvalid, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %v", op, ErrRateLimited, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}
