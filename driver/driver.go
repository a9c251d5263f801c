// Package driver defines the Document Driver contract consumed by the
// strategy kernel and tab context manager. The core never implements a real
// browser driver; concrete drivers (a live automation backend, or the
// goquery-backed FakeDriver in this package) satisfy this small capability
// set.
package driver

import "context"

// Element is a read-only snapshot view of a node in the document tree.
// Implementations must never allow mutation of the underlying document.
type Element interface {
	TagName() string
	Text() string
	Attr(name string) (string, bool)
	Attrs() map[string]string
	ClassTokens() []string
	Visible() bool
	Interactable() bool
	// Path returns a stable structural identifier for the element's location
	// (used to populate ElementInfo.DOMPath). Implementations are free to use
	// any scheme as long as it is deterministic for a given document state.
	Path() string
	// Children returns the direct child elements, in document order.
	Children() []Element
	// Parent returns the parent element, or nil at the document root.
	Parent() Element
}

// Driver abstracts the act of evaluating structural expressions (e.g. CSS
// selectors) against a live or simulated document.
type Driver interface {
	// QueryOne returns the first element matching expr, or (nil, false) if
	// none matches.
	QueryOne(ctx context.Context, expr string) (Element, bool, error)
	// QueryAll returns every element matching expr, in document order.
	QueryAll(ctx context.Context, expr string) ([]Element, error)
	// Evaluate runs an arbitrary driver-level script and returns a JSON-decodable
	// result. Used by the Tab Context Manager to discover active tabs.
	Evaluate(ctx context.Context, script string) (any, error)
	// CurrentURL returns the document's current URL.
	CurrentURL(ctx context.Context) (string, error)
	// CurrentTitle returns the document's current title.
	CurrentTitle(ctx context.Context) (string, error)
}

// Error is returned by a Driver implementation when the document/session is
// gone or a script evaluation fails. The Resolution Engine maps this to a
// failure_reason prefixed "driver:" rather than letting it escape as a Go
// error (spec §4.1 "Failure semantics").
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "driver: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a driver-level Error for the given operation.
func NewError(op string, err error) *Error { return &Error{Op: op, Err: err} }
