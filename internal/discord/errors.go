package discord

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Sentinel errors for classified platform failures. Callers use errors.Is
// to distinguish permanently unreachable targets from transient trouble.
var (
	// ErrNotFound means the channel, thread, or message no longer exists.
	ErrNotFound = errors.New("discord: not found")
	// ErrForbidden means the bot lost access to the target.
	ErrForbidden = errors.New("discord: forbidden")
	// ErrRateLimited means the API pushed back; the call is retryable.
	ErrRateLimited = errors.New("discord: rate limited")
)

// Permanent reports whether err can never succeed on retry.
func Permanent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}

// classify maps raw discordgo errors onto the package sentinels. Unknown
// errors (network failures, 5xx responses) pass through unchanged and are
// treated as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return errors.Join(ErrRateLimited, err)
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return errors.Join(ErrNotFound, err)
		case http.StatusForbidden:
			return errors.Join(ErrForbidden, err)
		case http.StatusTooManyRequests:
			return errors.Join(ErrRateLimited, err)
		}
	}
	return err
}
