// Package probe implements composite selector resolution: try an ordered
// list of candidate selectors, take the first one with a match. The same
// workflow then tolerates multiple plausible markup conventions without
// app-specific knowledge in the caller.
package probe

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
)

// Prober resolves SelectorSets against the live DOM through the Page
// collaborator. Queries are read-only; absence is a valid outcome, never an
// error.
type Prober struct {
	page   schemas.Page
	logger *zap.Logger
}

// New creates a Prober bound to one browser session.
func New(page schemas.Page, logger *zap.Logger) *Prober {
	return &Prober{
		page:   page,
		logger: logger.Named("probe"),
	}
}

// Probe tries each candidate of set in order within scope and returns on the
// first candidate with at least one match. When every candidate yields zero
// matches it returns found=false with no matched selector.
//
// The only error it returns is a query-mechanism failure (page unreachable or
// session dead), wrapped in schemas.ErrUnreachable: fatal to the enclosing
// workflow, unlike absence.
func (p *Prober) Probe(ctx context.Context, set schemas.SelectorSet, scope string) (schemas.ProbeResult, error) {
	if len(set.Candidates) == 0 {
		return schemas.ProbeResult{}, fmt.Errorf("selector set %q is empty", set.Name)
	}

	for _, candidate := range set.Candidates {
		elements, err := p.page.QueryAll(ctx, candidate, scope)
		if err != nil {
			if ctx.Err() != nil {
				return schemas.ProbeResult{}, fmt.Errorf("%w: probe %q: %v", schemas.ErrUnreachable, set.Name, ctx.Err())
			}
			return schemas.ProbeResult{}, fmt.Errorf("%w: probe %q via %q: %v", schemas.ErrUnreachable, set.Name, candidate, err)
		}
		if len(elements) > 0 {
			p.logger.Debug("Selector candidate matched.",
				zap.String("set", set.Name),
				zap.String("selector", candidate),
				zap.Int("matches", len(elements)))
			return schemas.ProbeResult{
				Found:           true,
				MatchedSelector: candidate,
				MatchCount:      len(elements),
				Elements:        elements,
			}, nil
		}
	}

	p.logger.Debug("No selector candidate matched.", zap.String("set", set.Name))
	return schemas.ProbeResult{Found: false, MatchCount: 0}, nil
}

// RowScope confines subsequent probes to the smallest row-like ancestor
// (table row or list item) of the first element whose text contains needle.
// Row-scoped controls are never resolved globally, so an unrelated row that
// happens to share a button label is never acted on.
//
// Returns ("", false, nil) when no element contains the needle.
func (p *Prober) RowScope(ctx context.Context, needle string) (string, bool, error) {
	scope, err := p.page.MarkRowScope(ctx, needle)
	if err != nil {
		return "", false, fmt.Errorf("%w: row scope for %q: %v", schemas.ErrUnreachable, needle, err)
	}
	if scope == "" {
		return "", false, nil
	}
	return scope, true, nil
}

// TextVisible reports whether needle occurs in the rendered body text. Used
// by the create/update confirmation oracles.
func (p *Prober) TextVisible(ctx context.Context, needle string) (bool, error) {
	body, err := p.page.BodyText(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: body text: %v", schemas.ErrUnreachable, err)
	}
	return strings.Contains(body, needle), nil
}

// DescribeField derives a FieldDescriptor from a discovered element snapshot.
// Derived fresh per element; the result must not be cached across DOM
// mutations.
func DescribeField(el schemas.ElementInfo) schemas.FieldDescriptor {
	tag := strings.ToUpper(el.TagName)
	rawType := strings.ToLower(el.Attr("type"))

	var kind schemas.TagKind
	switch {
	case tag == "TEXTAREA":
		kind = schemas.TagTextArea
	case tag == "SELECT":
		kind = schemas.TagSelect
	case el.Attr("contenteditable") == "true":
		kind = schemas.TagContentEditable
	default:
		kind = schemas.TagTextInput
	}

	return schemas.FieldDescriptor{
		TagKind:  kind,
		RawName:  el.Attr("name"),
		RawType:  rawType,
		IsSecret: rawType == "password",
	}
}
