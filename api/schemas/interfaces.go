package schemas

import (
	"context"
	"net/http"
)

// -- Browser Collaborator --

// ElementInfo is the JSON-friendly snapshot of a DOM node extracted by the
// driver during a scoped query.
type ElementInfo struct {
	TagName    string            `json:"tagName"`
	Attributes map[string]string `json:"attributes"`
	Text       string            `json:"text"`
}

// Attr returns the named attribute, or "" when absent.
func (e ElementInfo) Attr(name string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}

// Page is the browser-automation collaborator boundary. Implementations own a
// single isolated browser session (tab); the engine never shares one Page
// between concurrent workflow instances.
//
// All query and action methods accept a scope: a selector confining the
// operation to a sub-tree (e.g. a previously marked table row), or "" for the
// whole document. Actions resolve multi-match selectors to the first element
// in document order.
type Page interface {
	// Navigate loads a URL and waits for the document to become ready.
	// Network-level failures are reported wrapped in ErrUnreachable.
	Navigate(ctx context.Context, url string) error
	// QueryAll returns every element matching selector inside scope, in
	// document order. Zero matches is a valid result, not an error.
	QueryAll(ctx context.Context, selector, scope string) ([]ElementInfo, error)
	// Fill clears the first matching element and writes value into it.
	Fill(ctx context.Context, selector, scope, value string) error
	// Click dispatches a click on the first matching element.
	Click(ctx context.Context, selector, scope string) error
	// SelectOptionAt chooses the option at the given zero-based position of
	// the first matching select element, leaving it unchanged when the index
	// is out of range.
	SelectOptionAt(ctx context.Context, selector, scope string, index int) error
	// PressKey dispatches a key (e.g. "Enter") on the first matching element.
	PressKey(ctx context.Context, selector, scope, key string) error
	// SubmitForm requests a synthetic submit of the form enclosing scope, or
	// the first form in the document when scope is "".
	SubmitForm(ctx context.Context, scope string) error
	// BodyText returns the rendered text content of the document body.
	BodyText(ctx context.Context) (string, error)
	// MarkRowScope locates the first element whose text contains needle,
	// climbs to its smallest row-like ancestor (tr, li, [role=row]), tags it,
	// and returns a selector addressing that scope. Returns "" with a nil
	// error when no element contains the needle.
	MarkRowScope(ctx context.Context, needle string) (string, error)
	// AcceptDialogs arms automatic acceptance of JavaScript dialogs
	// (confirm/alert) for the rest of the session.
	AcceptDialogs(ctx context.Context)
	// URL reports the current document location.
	URL(ctx context.Context) (string, error)
	// Close releases the session.
	Close(ctx context.Context) error
}

// -- HTTP Collaborator --

// HTTPResponse is the flattened response shape used by the header and load
// workflows.
type HTTPResponse struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// HTTPClient is the load-generation and header-inspection collaborator. The
// core never constructs net/http plumbing directly.
type HTTPClient interface {
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*HTTPResponse, error)
}
