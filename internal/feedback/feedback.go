// Package feedback carries the user-facing plumbing every other layer leans
// on: message areas, the busy-state guard that stands in for disabling a
// submit control, debouncing, and date formatting. It holds no domain state.
package feedback

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kgcollins/parishport/internal/gateway"
	"github.com/kgcollins/parishport/internal/model"
)

const genericErrorMessage = "An unexpected error occurred. Please try again."

// Reporter writes success and error messages to one named message area.
type Reporter struct {
	w    io.Writer
	area string
}

func NewReporter(w io.Writer, area string) *Reporter {
	return &Reporter{w: w, area: area}
}

func (r *Reporter) Success(msg string) {
	fmt.Fprintf(r.w, "%s: %s\n", r.area, msg)
}

func (r *Reporter) Error(err error) {
	fmt.Fprintf(r.w, "%s: error: %s\n", r.area, ErrorMessage(err))
}

// ErrorMessage maps an error to what the user should read: the remote API's
// own message when it sent one, a local validation message verbatim, and a
// generic fallback for transport failures where no status was ever known.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var cfgErr *gateway.ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Error()
	}
	var valErr *model.ValidationError
	if errors.As(err, &valErr) {
		return valErr.Message
	}
	if errors.Is(err, model.ErrNoSession) {
		return "Please log in first"
	}
	var netErr *gateway.NetworkError
	if errors.As(err, &netErr) {
		return genericErrorMessage
	}
	return err.Error()
}

// ErrBusy means the control that triggers this action is already in flight.
var ErrBusy = errors.New("operation already in progress")

// Busy guards against double dispatch of the same user action, the way a
// submitting control is disabled while its own request is in flight. Release
// always restores the idle state, so no control stays disabled after an
// error.
type Busy struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewBusy() *Busy {
	return &Busy{held: make(map[string]bool)}
}

// Acquire marks the named control busy and returns its release func.
func (b *Busy) Acquire(control string) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.held[control] {
		return nil, ErrBusy
	}
	b.held[control] = true
	release := func() {
		b.mu.Lock()
		delete(b.held, control)
		b.mu.Unlock()
	}
	return release, nil
}

// FormatDate renders an API-supplied date for a form field (yyyy-mm-dd).
// Empty input and unparsable values pass through unchanged.
func FormatDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// Debounce returns a trigger that runs fn once the trailing edge of a burst
// of calls is d quiet.
func Debounce(d time.Duration, fn func()) func() {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, fn)
	}
}
