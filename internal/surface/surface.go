// Package surface abstracts the rendering/navigation capability set the
// harvester consumes: locate elements, read text and attributes, click,
// scroll, navigate back and bounded waits.
package surface

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Surface is the capability set exposed by the live view. Implementations
// return an error when a capability cannot be exercised; callers decide
// whether that is a per-field miss, a zero-yield round or a fatal loss of
// the surface (see IsFatal).
type Surface interface {
	// Navigate loads a URL in the current view.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector matches a visible element or
	// the timeout elapses. A timeout is a soft failure and is returned as
	// context.DeadlineExceeded.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Text returns the trimmed text content of the first match, or "" when
	// nothing matches.
	Text(ctx context.Context, selector string) (string, error)
	// Attr returns the named attribute of the first match, or "" when
	// nothing matches or the attribute is unset.
	Attr(ctx context.Context, selector, name string) (string, error)
	// Attrs returns the named attribute of every match, empty values
	// dropped, in document order.
	Attrs(ctx context.Context, selector, name string) ([]string, error)
	// Click scrolls the first match into view and clicks it. It is an
	// error when nothing matches.
	Click(ctx context.Context, selector string) error
	// ScrollFeed scrolls the results container (and the window) to the
	// bottom so further entities load.
	ScrollFeed(ctx context.Context) error
	// Back navigates to the previous view.
	Back(ctx context.Context) error
}

// IsFatal reports whether err means the surface itself is gone, as opposed
// to a single capability call failing. Deadline expiry is always soft.
func IsFatal(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"target closed", "browser closed", "websocket", "chrome failed to start"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
