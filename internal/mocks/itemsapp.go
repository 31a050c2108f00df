// File: internal/mocks/itemsapp.go
package mocks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/kv9x/dowser-cli/api/schemas"
)

// FakeItemsApp is an in-memory simulation of a small items web app behind the
// Page boundary: a login page, an items page with a create form, and a row
// list with edit and delete affordances. Workflow scenario tests drive the
// real orchestrator against it.
//
// Behavior toggles model the awkward apps the workflows must tolerate:
// missing forms, creations that never render, deletions that don't stick.
type FakeItemsApp struct {
	mu sync.Mutex

	// Routes. Paths, not full URLs; Navigate strips the configured base.
	LoginPath string
	ItemsPath string

	// Toggles.
	HasLogin             bool
	RequireLogin         bool
	RejectCredentials    bool
	SuppressCreateRender bool
	FailDelete           bool
	NoEditControl        bool
	NoDeleteControl      bool
	NoSubmitButton       bool

	currentPath  string
	loggedIn     bool
	dialogsArmed bool
	closed       bool

	items   []fakeItem
	editing int // index into items, -1 when creating

	pending     map[string]string
	pendingUser string
	pendingPass string

	// Call journal for assertions.
	Selected  []int
	Submitted int
}

type fakeItem struct {
	name        string
	description string
	rendered    bool
}

var _ schemas.Page = (*FakeItemsApp)(nil)

// NewFakeItemsApp returns an app with a login page at /login and an items
// page at /items, pre-login required disabled.
func NewFakeItemsApp() *FakeItemsApp {
	return &FakeItemsApp{
		LoginPath: "/login",
		ItemsPath: "/items",
		HasLogin:  true,
		editing:   -1,
		pending:   make(map[string]string),
	}
}

// SeedItem pre-populates a rendered row.
func (f *FakeItemsApp) SeedItem(name, description string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, fakeItem{name: name, description: description, rendered: true})
}

// Items returns the current item names in insertion order.
func (f *FakeItemsApp) Items() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.items))
	for _, it := range f.items {
		names = append(names, it.name)
	}
	return names
}

// LoggedIn reports the session's authentication state.
func (f *FakeItemsApp) LoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn
}

func (f *FakeItemsApp) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("session closed")
	}
	path := url
	if i := strings.Index(url, "://"); i >= 0 {
		rest := url[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			path = rest[j:]
		} else {
			path = "/"
		}
	}
	f.currentPath = path
	f.editing = -1
	f.pending = make(map[string]string)
	return nil
}

// fakeElement is one simulated DOM node: the selectors it answers to and the
// scopes it is visible under ("" is always implied).
type fakeElement struct {
	info    schemas.ElementInfo
	aliases []string
	scope   string
}

func elem(tag string, attrs map[string]string, text, scope string, aliases ...string) fakeElement {
	return fakeElement{
		info:    schemas.ElementInfo{TagName: tag, Attributes: attrs, Text: text},
		aliases: aliases,
		scope:   scope,
	}
}

func rowScopeSel(i int) string {
	return fmt.Sprintf(`[data-row="%d"]`, i)
}

// dom rebuilds the element list from current state. Callers hold f.mu.
func (f *FakeItemsApp) dom() []fakeElement {
	els := []fakeElement{
		elem("BODY", nil, "", "", "body"),
	}

	if f.loggedIn {
		els = append(els, elem("A", map[string]string{"href": "/logout"}, "Log out", "",
			`a[href*="logout"]`))
	}

	switch f.currentPath {
	case f.LoginPath:
		if f.HasLogin && !f.loggedIn {
			els = append(els,
				elem("FORM", nil, "", "", "form"),
				elem("INPUT", map[string]string{"name": "username", "type": "text"}, "", "form",
					`input[name="username"]`, `input[name]`),
				elem("INPUT", map[string]string{"name": "password", "type": "password"}, "", "form",
					`input[name="password"]`, `input[type="password"]`, `input[name]`),
				elem("BUTTON", map[string]string{"type": "submit"}, "Sign in", "form",
					`button[type="submit"]`, `form button`),
			)
		}
	case f.ItemsPath:
		if !f.RequireLogin || f.loggedIn {
			els = append(els, f.itemsDOM()...)
		}
	}
	return els
}

func (f *FakeItemsApp) itemsDOM() []fakeElement {
	els := []fakeElement{
		elem("FORM", nil, "", "", "form"),
		elem("INPUT", map[string]string{"name": "name", "type": "text"}, "", "form",
			`input[name="name"]`, `[name="name"]`, `input[name]`),
		elem("TEXTAREA", map[string]string{"name": "description"}, "", "form",
			`textarea[name="description"]`, `[name="description"]`, `textarea[name]`, `textarea`),
		elem("INPUT", map[string]string{"name": "price", "type": "number"}, "", "form",
			`[name="price"]`, `input[name]`),
		elem("SELECT", map[string]string{"name": "category"}, "", "form",
			`[name="category"]`, `select[name]`),
		elem("INPUT", map[string]string{"name": "featured", "type": "checkbox"}, "", "form",
			`[name="featured"]`, `input[name]`),
	}
	if !f.NoSubmitButton {
		els = append(els, elem("BUTTON", map[string]string{"type": "submit"}, "Save", "form",
			`button[type="submit"]`, `form button`))
	}

	for i, it := range f.items {
		if !it.rendered {
			continue
		}
		row := rowScopeSel(i)
		if !f.NoEditControl {
			els = append(els, elem("A", map[string]string{"href": fmt.Sprintf("/items/%d/edit", i)}, "Edit", row,
				`a[href*="edit"]`))
		}
		if !f.NoDeleteControl {
			els = append(els, elem("BUTTON", map[string]string{"name": "delete"}, "Delete", row,
				`button[name*="delete"]`))
		}
	}
	return els
}

func (f *FakeItemsApp) query(selector, scope string) []fakeElement {
	parts := strings.Split(selector, ",")
	var out []fakeElement
	for _, el := range f.dom() {
		if scope != "" && el.scope != scope {
			continue
		}
		if matchesAny(el.aliases, parts) {
			out = append(out, el)
		}
	}
	return out
}

func matchesAny(aliases, parts []string) bool {
	for _, part := range parts {
		part = strings.TrimSpace(part)
		for _, alias := range aliases {
			if alias == part {
				return true
			}
		}
	}
	return false
}

func (f *FakeItemsApp) QueryAll(_ context.Context, selector, scope string) ([]schemas.ElementInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("session closed")
	}
	matched := f.query(selector, scope)
	infos := make([]schemas.ElementInfo, 0, len(matched))
	for _, el := range matched {
		infos = append(infos, el.info)
	}
	return infos, nil
}

var reNameAttr = regexp.MustCompile(`name\*?="([^"]+)"`)

func (f *FakeItemsApp) Fill(_ context.Context, selector, scope, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := f.query(selector, scope)
	if len(matched) == 0 {
		return fmt.Errorf("fill %q: no element matched", selector)
	}
	name := matched[0].info.Attr("name")
	if name == "" {
		m := reNameAttr.FindStringSubmatch(selector)
		if m != nil {
			name = m[1]
		}
	}
	switch name {
	case "username", "email":
		f.pendingUser = value
	case "password":
		f.pendingPass = value
	default:
		f.pending[name] = value
	}
	return nil
}

func (f *FakeItemsApp) Click(_ context.Context, selector, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := f.query(selector, scope)
	if len(matched) == 0 {
		return fmt.Errorf("click %q: no element matched", selector)
	}
	el := matched[0]

	switch {
	case contains(el.aliases, `button[type="submit"]`):
		f.submitLocked()
	case contains(el.aliases, `a[href*="edit"]`):
		f.editing = rowIndex(el.scope)
		if f.editing >= 0 && f.editing < len(f.items) {
			f.pending["name"] = f.items[f.editing].name
			f.pending["description"] = f.items[f.editing].description
		}
	case contains(el.aliases, `button[name*="delete"]`):
		// The delete control raises a confirm dialog; nothing happens unless
		// the session auto-accepts it.
		if f.dialogsArmed && !f.FailDelete {
			if i := rowIndex(el.scope); i >= 0 && i < len(f.items) {
				f.items = append(f.items[:i], f.items[i+1:]...)
			}
		}
	}
	return nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

var reRowIndex = regexp.MustCompile(`\[data-row="(\d+)"\]`)

func rowIndex(scope string) int {
	m := reRowIndex.FindStringSubmatch(scope)
	if m == nil {
		return -1
	}
	var i int
	fmt.Sscanf(m[1], "%d", &i)
	return i
}

func (f *FakeItemsApp) SelectOptionAt(_ context.Context, selector, scope string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.query(selector, scope)) == 0 {
		return fmt.Errorf("select %q: no element matched", selector)
	}
	f.Selected = append(f.Selected, index)
	return nil
}

func (f *FakeItemsApp) PressKey(_ context.Context, selector, scope, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.query(selector, scope)) == 0 {
		return fmt.Errorf("press %q: no element matched", selector)
	}
	if key == "Enter" {
		f.submitLocked()
	}
	return nil
}

func (f *FakeItemsApp) SubmitForm(_ context.Context, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.query("form", "")) == 0 {
		return fmt.Errorf("no form in scope %q", scope)
	}
	f.submitLocked()
	return nil
}

// submitLocked applies the pending form values. Callers hold f.mu.
func (f *FakeItemsApp) submitLocked() {
	f.Submitted++

	if f.currentPath == f.LoginPath && f.HasLogin && !f.loggedIn {
		if f.pendingUser != "" && f.pendingPass != "" && !f.RejectCredentials {
			f.loggedIn = true
		}
		f.pendingUser, f.pendingPass = "", ""
		return
	}

	if f.currentPath != f.ItemsPath {
		return
	}
	if f.editing >= 0 && f.editing < len(f.items) {
		it := &f.items[f.editing]
		if v, ok := f.pending["name"]; ok {
			it.name = v
		}
		if v, ok := f.pending["description"]; ok {
			it.description = v
		}
		f.editing = -1
	} else if len(f.pending) > 0 {
		f.items = append(f.items, fakeItem{
			name:        f.pending["name"],
			description: f.pending["description"],
			rendered:    !f.SuppressCreateRender,
		})
	}
	f.pending = make(map[string]string)
}

func (f *FakeItemsApp) BodyText(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", fmt.Errorf("session closed")
	}
	var b strings.Builder
	if f.currentPath == f.LoginPath {
		b.WriteString("Sign in\n")
	}
	if f.loggedIn {
		b.WriteString("Log out\n")
	}
	if f.currentPath == f.ItemsPath && (!f.RequireLogin || f.loggedIn) {
		for _, it := range f.items {
			if it.rendered {
				b.WriteString(it.name + " " + it.description + "\n")
			}
		}
	}
	return b.String(), nil
}

func (f *FakeItemsApp) MarkRowScope(_ context.Context, needle string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentPath != f.ItemsPath {
		return "", nil
	}
	for i, it := range f.items {
		if it.rendered && (strings.Contains(it.name, needle) || strings.Contains(it.description, needle)) {
			return rowScopeSel(i), nil
		}
	}
	return "", nil
}

func (f *FakeItemsApp) AcceptDialogs(_ context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogsArmed = true
}

func (f *FakeItemsApp) URL(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return "http://items.test" + f.currentPath, nil
}

func (f *FakeItemsApp) Close(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
