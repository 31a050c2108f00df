package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/config"
)

// targetAttr marks the element an action is about to touch; scopeAttr marks a
// row-like ancestor for scoped probing. Both are temporary bookkeeping
// attributes owned by this driver.
const (
	targetAttr = "data-dowser-target"
	scopeAttr  = "data-dowser-scope"
)

// Session is one isolated browser tab implementing the Page boundary. Actions
// resolve multi-match selectors by tagging the first match in document order
// with a unique attribute and operating on the tag, so a DOM mutation between
// resolution and action can never redirect the action to a different element.
type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     config.ProbeConfig
	logger  *zap.Logger
	onClose func()

	tagSeq      atomic.Uint64
	dialogsOnce sync.Once
	closeOnce   sync.Once
}

var _ schemas.Page = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.ProbeConfig, logger *zap.Logger) *Session {
	return &Session{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.Named("session"),
	}
}

// run executes chromedp actions on the tab context while honoring the
// caller's deadline.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(s.ctx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// eval evaluates script in the page and unmarshals the result into out (out
// may be nil to discard).
func (s *Session) eval(ctx context.Context, script string, out interface{}) error {
	var raw json.RawMessage
	err := s.run(ctx, chromedp.Evaluate(script, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal evaluation result: %w (payload: %s)", err, string(raw))
	}
	return nil
}

// jsEncode safely embeds a Go value into a script as a JS literal.
func jsEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

// Navigate loads the URL and waits for the body to exist.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	err := s.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// QueryAll snapshots every element matching selector inside scope, in
// document order.
func (s *Session) QueryAll(ctx context.Context, selector, scope string) ([]schemas.ElementInfo, error) {
	script := fmt.Sprintf(`
		(function(sel, scopeSel) {
			const root = scopeSel ? document.querySelector(scopeSel) : document;
			if (!root) return [];
			const out = [];
			for (const node of root.querySelectorAll(sel)) {
				const attrs = {};
				for (const a of node.attributes) attrs[a.name] = a.value;
				if (node.isContentEditable && !attrs['contenteditable']) attrs['contenteditable'] = 'true';
				out.push({
					tagName: node.tagName,
					attributes: attrs,
					text: (node.innerText || '').slice(0, 512),
				});
			}
			return out;
		})(%s, %s)`, jsEncode(selector), jsEncode(scope))

	var elements []schemas.ElementInfo
	if err := s.eval(ctx, script, &elements); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return elements, nil
}

// tagFirst marks the first match of selector inside scope and returns a
// selector addressing the tagged element. found=false means zero matches.
func (s *Session) tagFirst(ctx context.Context, selector, scope string) (string, bool, error) {
	id := fmt.Sprintf("t%d", s.tagSeq.Add(1))
	script := fmt.Sprintf(`
		(function(sel, scopeSel, id) {
			const root = scopeSel ? document.querySelector(scopeSel) : document;
			if (!root) return false;
			const node = root.querySelector(sel);
			if (!node) return false;
			node.setAttribute(%q, id);
			return true;
		})(%s, %s, %s)`, targetAttr, jsEncode(selector), jsEncode(scope), jsEncode(id))

	var found bool
	if err := s.eval(ctx, script, &found); err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	return fmt.Sprintf(`[%s=%q]`, targetAttr, id), true, nil
}

func (s *Session) untag(tagSel string) {
	script := fmt.Sprintf(`
		(function(sel) {
			const node = document.querySelector(sel);
			if (node) node.removeAttribute(%q);
		})(%s)`, targetAttr, jsEncode(tagSel))
	// Best effort; the tag is harmless if the page navigated away.
	_ = s.eval(s.ctx, script, nil)
}

// Fill writes value into the first matching element. Values are set through
// the native property setter so framework-controlled inputs observe the
// change, then input and change events are dispatched.
func (s *Session) Fill(ctx context.Context, selector, scope, value string) error {
	tagSel, found, err := s.tagFirst(ctx, selector, scope)
	if err != nil {
		return fmt.Errorf("fill %q: %w", selector, err)
	}
	if !found {
		return fmt.Errorf("fill %q: no element matched", selector)
	}
	defer s.untag(tagSel)

	script := fmt.Sprintf(`
		(function(sel, value) {
			const node = document.querySelector(sel);
			if (!node) return false;
			node.scrollIntoView({block: 'center'});
			node.focus();
			if (node.isContentEditable) {
				node.textContent = value;
				node.dispatchEvent(new Event('input', {bubbles: true}));
				return true;
			}
			const proto = node.tagName === 'TEXTAREA'
				? HTMLTextAreaElement.prototype
				: HTMLInputElement.prototype;
			const desc = Object.getOwnPropertyDescriptor(proto, 'value');
			if (desc && desc.set) { desc.set.call(node, value); } else { node.value = value; }
			node.dispatchEvent(new Event('input', {bubbles: true}));
			node.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		})(%s, %s)`, jsEncode(tagSel), jsEncode(value))

	var ok bool
	if err := s.eval(ctx, script, &ok); err != nil {
		return fmt.Errorf("fill %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("fill %q: tagged element vanished", selector)
	}
	return nil
}

// Click dispatches a click on the first matching element.
func (s *Session) Click(ctx context.Context, selector, scope string) error {
	tagSel, found, err := s.tagFirst(ctx, selector, scope)
	if err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	if !found {
		return fmt.Errorf("click %q: no element matched", selector)
	}
	defer s.untag(tagSel)

	// A trusted CDP click first; JS click covers elements chromedp considers
	// non-interactable (zero-size anchors, overlapped controls).
	if err := s.run(ctx, chromedp.Click(tagSel, chromedp.ByQuery)); err == nil {
		return nil
	}
	script := fmt.Sprintf(`
		(function(sel) {
			const node = document.querySelector(sel);
			if (!node) return false;
			node.scrollIntoView({block: 'center'});
			node.click();
			return true;
		})(%s)`, jsEncode(tagSel))

	var ok bool
	if err := s.eval(ctx, script, &ok); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("click %q: tagged element vanished", selector)
	}
	return nil
}

// SelectOptionAt sets the option at index on the first matching select.
// An out-of-range index leaves the control unchanged.
func (s *Session) SelectOptionAt(ctx context.Context, selector, scope string, index int) error {
	tagSel, found, err := s.tagFirst(ctx, selector, scope)
	if err != nil {
		return fmt.Errorf("select %q: %w", selector, err)
	}
	if !found {
		return fmt.Errorf("select %q: no element matched", selector)
	}
	defer s.untag(tagSel)

	script := fmt.Sprintf(`
		(function(sel, idx) {
			const node = document.querySelector(sel);
			if (!node || node.tagName !== 'SELECT') return false;
			if (idx < 0 || idx >= node.options.length) return true;
			node.selectedIndex = idx;
			node.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		})(%s, %d)`, jsEncode(tagSel), index)

	var ok bool
	if err := s.eval(ctx, script, &ok); err != nil {
		return fmt.Errorf("select %q: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("select %q: not a select element", selector)
	}
	return nil
}

// PressKey focuses the first matching element and dispatches the key.
func (s *Session) PressKey(ctx context.Context, selector, scope, key string) error {
	tagSel, found, err := s.tagFirst(ctx, selector, scope)
	if err != nil {
		return fmt.Errorf("press %q on %q: %w", key, selector, err)
	}
	if !found {
		return fmt.Errorf("press %q on %q: no element matched", key, selector)
	}
	defer s.untag(tagSel)

	err = s.run(ctx,
		chromedp.Focus(tagSel, chromedp.ByQuery),
		chromedp.KeyEvent(keyCode(key)),
	)
	if err != nil {
		return fmt.Errorf("press %q on %q: %w", key, selector, err)
	}
	return nil
}

func keyCode(key string) string {
	switch key {
	case "Enter":
		return kb.Enter
	case "Tab":
		return kb.Tab
	case "Escape":
		return kb.Escape
	default:
		return key
	}
}

// SubmitForm requests a synthetic submit of the form enclosing scope, or the
// first form in the document when scope is empty. requestSubmit runs the
// page's own validation and submit handlers, unlike the legacy submit().
func (s *Session) SubmitForm(ctx context.Context, scope string) error {
	script := fmt.Sprintf(`
		(function(scopeSel) {
			let root = scopeSel ? document.querySelector(scopeSel) : document;
			if (!root) return false;
			let form = null;
			if (root.tagName === 'FORM') {
				form = root;
			} else {
				form = root.querySelector ? root.querySelector('form') : null;
				if (!form && root.closest) form = root.closest('form');
			}
			if (!form) return false;
			if (typeof form.requestSubmit === 'function') { form.requestSubmit(); } else { form.submit(); }
			return true;
		})(%s)`, jsEncode(scope))

	var ok bool
	if err := s.eval(ctx, script, &ok); err != nil {
		return fmt.Errorf("submit form: %w", err)
	}
	if !ok {
		return fmt.Errorf("submit form: no form in scope %q", scope)
	}
	return nil
}

// BodyText returns the rendered text content of the document body.
func (s *Session) BodyText(ctx context.Context) (string, error) {
	var text string
	script := `(function() { return document.body ? document.body.innerText : ''; })()`
	if err := s.eval(ctx, script, &text); err != nil {
		return "", fmt.Errorf("body text: %w", err)
	}
	return text, nil
}

// MarkRowScope finds the first text node containing needle, climbs to its
// smallest row-like ancestor and tags it. Previous scope marks are cleared
// first so stale tags from earlier rows never leak into this probe.
func (s *Session) MarkRowScope(ctx context.Context, needle string) (string, error) {
	id := fmt.Sprintf("r%d", s.tagSeq.Add(1))
	script := fmt.Sprintf(`
		(function(needle, id) {
			const attr = %q;
			for (const old of document.querySelectorAll('[' + attr + ']')) old.removeAttribute(attr);
			if (!document.body) return '';
			const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
			let hit = null;
			while (walker.nextNode()) {
				const v = walker.currentNode.nodeValue;
				if (v && v.includes(needle)) { hit = walker.currentNode.parentElement; break; }
			}
			if (!hit) return '';
			const row = hit.closest('tr, li, [role="row"]') || hit;
			row.setAttribute(attr, id);
			return '[' + attr + '="' + id + '"]';
		})(%s, %s)`, scopeAttr, jsEncode(needle), jsEncode(id))

	var scope string
	if err := s.eval(ctx, script, &scope); err != nil {
		return "", fmt.Errorf("mark row scope: %w", err)
	}
	return scope, nil
}

// AcceptDialogs arms automatic acceptance of JavaScript dialogs for the rest
// of the session. Idempotent.
func (s *Session) AcceptDialogs(_ context.Context) {
	s.dialogsOnce.Do(func() {
		chromedp.ListenTarget(s.ctx, func(ev interface{}) {
			if _, ok := ev.(*cdppage.EventJavascriptDialogOpening); ok {
				go func() {
					if err := chromedp.Run(s.ctx, cdppage.HandleJavaScriptDialog(true)); err != nil {
						s.logger.Debug("Failed to accept dialog.", zap.Error(err))
					}
				}()
			}
		})
	})
}

// URL reports the current document location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("current location: %w", err)
	}
	return loc, nil
}

// Close releases the tab. Safe to call more than once.
func (s *Session) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}
