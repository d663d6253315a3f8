// Package dom is the narrow view of a profile page the automation needs:
// find a control, wait for it, read its text, and get told when the user
// does something interesting.
package dom

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no candidate selector matched.
var ErrNotFound = errors.New("element not found")

type Element interface {
	Click() error
	Text() (string, error)
	Value() (string, error)
	// SetValue replaces the element value and dispatches a bubbling input event.
	SetValue(v string) error
}

// Hooks are invoked from the page observer. Either func may be nil.
type Hooks struct {
	// DialogField is a CSS selector. NoteDialog fires each time it starts matching.
	DialogField string
	NoteDialog  func()
	// SendClicked fires when the user clicks an element matching SendButton
	// whose trimmed text is exactly SendText.
	SendButton  string
	SendText    string
	SendClicked func()
}

type Page interface {
	URL() string
	// Find returns the first element matching any selector, without waiting.
	Find(ctx context.Context, selectors ...string) (Element, error)
	// WaitAny polls until one of selectors matches or timeout elapses.
	WaitAny(ctx context.Context, timeout time.Duration, selectors ...string) (Element, error)
	// WaitText waits for an element matching selector whose trimmed text equals text.
	WaitText(ctx context.Context, timeout time.Duration, selector, text string) (Element, error)
	// TextOf returns the trimmed text of the first selector that matches, or "".
	TextOf(ctx context.Context, selectors ...string) string
	// Watch installs the observer until ctx is done.
	Watch(ctx context.Context, h Hooks) error
}
