// Package interact performs single UI actions against targets resolved by
// the probe. Absence of a target degrades an action to a no-op outcome
// instead of an error; only transport-level failures propagate.
package interact

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/classify"
	"github.com/kv9x/dowser-cli/internal/config"
	"github.com/kv9x/dowser-cli/internal/probe"
)

// submitControls is the explicit first tier of the submit fallback chain.
var submitControls = schemas.MustSelectorSet("submit_control",
	`button[type="submit"]`,
	`input[type="submit"]`,
	`form button`,
)

// filledTarget remembers the last field the executor wrote to, the anchor for
// the Enter-keypress submit fallback.
type filledTarget struct {
	selector string
	scope    string
	valid    bool
}

// Executor performs fill, click, waitFor and submit actions on one page.
// It re-probes the target before every action; descriptors are never reused
// across DOM mutations.
type Executor struct {
	page       schemas.Page
	prober     *probe.Prober
	classifier *classify.Classifier
	cfg        config.ProbeConfig
	logger     *zap.Logger

	lastFilled filledTarget
}

// New creates an Executor bound to one browser session.
func New(page schemas.Page, prober *probe.Prober, classifier *classify.Classifier, cfg config.ProbeConfig, logger *zap.Logger) *Executor {
	return &Executor{
		page:       page,
		prober:     prober,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger.Named("interact"),
	}
}

// Execute dispatches a single workflow step. UI absence surfaces as a skipped
// outcome; the returned error is reserved for fatal conditions (unreachable
// page, violated postconditions).
func (e *Executor) Execute(ctx context.Context, step schemas.WorkflowStep, scope string) (schemas.StepOutcome, error) {
	switch step.Action {
	case schemas.ActionNavigate:
		return e.Navigate(ctx, step.URL)
	case schemas.ActionProbe:
		return e.probeOnly(ctx, step.Target, scope)
	case schemas.ActionFill:
		return e.Fill(ctx, step.Target, scope, step.Value)
	case schemas.ActionClick:
		return e.Click(ctx, step.Target, scope)
	case schemas.ActionWaitFor:
		return e.WaitFor(ctx, step.Target, scope, step.WantPresent, step.Timeout)
	case schemas.ActionSubmit:
		return e.Submit(ctx, scope)
	case schemas.ActionAssert:
		return e.Assert(ctx, step.Target, scope, step.WantPresent, step.Timeout)
	default:
		return schemas.StepOutcome{}, fmt.Errorf("unknown step action %q", step.Action)
	}
}

// Navigate loads a URL. Network-level failure here is the one UI-independent
// fatal condition: it aborts the enclosing workflow.
func (e *Executor) Navigate(ctx context.Context, url string) (schemas.StepOutcome, error) {
	navCtx, cancel := context.WithTimeout(ctx, e.cfg.NavigationTimeout)
	defer cancel()

	if err := e.page.Navigate(navCtx, url); err != nil {
		return schemas.StepOutcome{Status: schemas.StepFailed, Note: "navigation failed"},
			fmt.Errorf("%w: navigate %s: %v", schemas.ErrUnreachable, url, err)
	}
	e.lastFilled = filledTarget{}
	return schemas.StepOutcome{Status: schemas.StepDone, Value: url}, nil
}

func (e *Executor) probeOnly(ctx context.Context, target schemas.SelectorSet, scope string) (schemas.StepOutcome, error) {
	res, err := e.prober.Probe(ctx, target, scope)
	if err != nil {
		return schemas.StepOutcome{Status: schemas.StepFailed}, err
	}
	if !res.Found {
		return schemas.StepOutcome{Status: schemas.StepSkipped, Note: "target absent"}, nil
	}
	return schemas.StepOutcome{Status: schemas.StepDone, MatchedSelector: res.MatchedSelector}, nil
}

// Fill resolves the target, classifies the first matched field and writes a
// synthetic value into it. An absent target is a skipped outcome, not an
// error. When value is non-empty it overrides synthesis, except for
// secret-role fields, which only ever receive the configured test credential.
func (e *Executor) Fill(ctx context.Context, target schemas.SelectorSet, scope, value string) (schemas.StepOutcome, error) {
	res, err := e.prober.Probe(ctx, target, scope)
	if err != nil {
		return schemas.StepOutcome{Status: schemas.StepFailed}, err
	}
	if !res.Found {
		return schemas.StepOutcome{Status: schemas.StepSkipped, Note: "fill target absent"}, nil
	}

	fd := probe.DescribeField(res.First())
	cls := e.classifier.Classify(fd)

	switch cls.Role {
	case schemas.RoleSkip:
		return schemas.StepOutcome{
			Status:          schemas.StepSkipped,
			MatchedSelector: res.MatchedSelector,
			Note:            "field left at default state",
		}, nil

	case schemas.RoleFreeChoice:
		if err := e.page.SelectOptionAt(ctx, res.MatchedSelector, scope, cls.SelectIndex); err != nil {
			return schemas.StepOutcome{Status: schemas.StepFailed}, fmt.Errorf("%w: select option: %v", schemas.ErrUnreachable, err)
		}
		return schemas.StepOutcome{Status: schemas.StepDone, MatchedSelector: res.MatchedSelector, Note: "option selected"}, nil
	}

	// Secret status follows the classified role, not the raw input type: a
	// password-named field rendered as type="text" still carries a credential.
	secret := cls.Role == schemas.RoleCredentialPassword

	fillValue := cls.Value
	if value != "" && !secret {
		fillValue = value
	}

	if err := e.page.Fill(ctx, res.MatchedSelector, scope, fillValue); err != nil {
		return schemas.StepOutcome{Status: schemas.StepFailed}, fmt.Errorf("%w: fill %q: %v", schemas.ErrUnreachable, res.MatchedSelector, err)
	}
	e.lastFilled = filledTarget{selector: res.MatchedSelector, scope: scope, valid: true}

	outcome := schemas.StepOutcome{
		Status:          schemas.StepDone,
		MatchedSelector: res.MatchedSelector,
		Value:           fillValue,
	}
	if secret {
		// Evidence must stay safe to store and display.
		outcome.Value = "[redacted credential]"
	}
	return outcome, nil
}

// Click acts on the first match in document order, the deterministic
// tie-break when a selector matches several elements.
func (e *Executor) Click(ctx context.Context, target schemas.SelectorSet, scope string) (schemas.StepOutcome, error) {
	res, err := e.prober.Probe(ctx, target, scope)
	if err != nil {
		return schemas.StepOutcome{Status: schemas.StepFailed}, err
	}
	if !res.Found {
		return schemas.StepOutcome{Status: schemas.StepSkipped, Note: "click target absent"}, nil
	}
	if err := e.page.Click(ctx, res.MatchedSelector, scope); err != nil {
		return schemas.StepOutcome{Status: schemas.StepFailed}, fmt.Errorf("%w: click %q: %v", schemas.ErrUnreachable, res.MatchedSelector, err)
	}
	return schemas.StepOutcome{Status: schemas.StepDone, MatchedSelector: res.MatchedSelector}, nil
}

// WaitFor blocks until the target's existence matches wantPresent or the
// bounded timeout elapses. Timeout is not fatal: the condition is assumed
// unmet and the workflow continues with reduced confidence.
func (e *Executor) WaitFor(ctx context.Context, target schemas.SelectorSet, scope string, wantPresent bool, timeout time.Duration) (schemas.StepOutcome, error) {
	if timeout <= 0 {
		timeout = e.cfg.WaitForTimeout
	}
	met, res, err := e.pollUntil(ctx, target, scope, wantPresent, timeout)
	if err != nil {
		return schemas.StepOutcome{Status: schemas.StepFailed}, err
	}
	if !met {
		return schemas.StepOutcome{
			Status: schemas.StepDegraded,
			Note:   fmt.Sprintf("condition assumed unmet after %s", timeout),
		}, nil
	}
	return schemas.StepOutcome{Status: schemas.StepDone, MatchedSelector: res.MatchedSelector}, nil
}

// Assert is WaitFor with hard failure semantics: the post-condition probe
// contradicting the action just taken is a functional failure, distinct from
// a skip.
func (e *Executor) Assert(ctx context.Context, target schemas.SelectorSet, scope string, wantPresent bool, timeout time.Duration) (schemas.StepOutcome, error) {
	if timeout <= 0 {
		timeout = e.cfg.WaitForTimeout
	}
	met, res, err := e.pollUntil(ctx, target, scope, wantPresent, timeout)
	if err != nil {
		return schemas.StepOutcome{Status: schemas.StepFailed}, err
	}
	if !met {
		want := "present"
		if !wantPresent {
			want = "absent"
		}
		return schemas.StepOutcome{Status: schemas.StepFailed, Note: "assertion unmet"},
			fmt.Errorf("%w: %q not %s within %s", schemas.ErrPostconditionViolated, target.Name, want, timeout)
	}
	return schemas.StepOutcome{Status: schemas.StepDone, MatchedSelector: res.MatchedSelector}, nil
}

// pollUntil re-probes the target until its presence matches want or the
// timeout elapses. The first probe happens immediately so already-satisfied
// conditions return without sleeping.
func (e *Executor) pollUntil(ctx context.Context, target schemas.SelectorSet, scope string, want bool, timeout time.Duration) (bool, schemas.ProbeResult, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		res, err := e.prober.Probe(ctx, target, scope)
		if err != nil {
			return false, schemas.ProbeResult{}, err
		}
		if res.Found == want {
			return true, res, nil
		}

		select {
		case <-ctx.Done():
			return false, schemas.ProbeResult{}, fmt.Errorf("%w: wait interrupted: %w", schemas.ErrUnreachable, ctx.Err())
		case <-deadline.C:
			return false, schemas.ProbeResult{}, nil
		case <-ticker.C:
		}
	}
}

// Submit fires the enclosing form using a three-tier fallback chain, first
// success wins: an explicit submit control, then a synthetic form submit,
// then an Enter keypress on the last-filled field.
func (e *Executor) Submit(ctx context.Context, scope string) (schemas.StepOutcome, error) {
	// Tier 1: explicit submit control.
	res, err := e.prober.Probe(ctx, submitControls, scope)
	if err != nil {
		return schemas.StepOutcome{Status: schemas.StepFailed}, err
	}
	if res.Found {
		if clickErr := e.page.Click(ctx, res.MatchedSelector, scope); clickErr == nil {
			return schemas.StepOutcome{Status: schemas.StepDone, MatchedSelector: res.MatchedSelector, Note: "explicit submit control"}, nil
		}
		e.logger.Debug("Explicit submit control click failed, falling back.", zap.String("selector", res.MatchedSelector))
	}

	// Tier 2: synthetic form submit.
	if submitErr := e.page.SubmitForm(ctx, scope); submitErr == nil {
		return schemas.StepOutcome{Status: schemas.StepDone, Note: "synthetic form submit"}, nil
	}

	// Tier 3: Enter on the last-filled field.
	if e.lastFilled.valid {
		if keyErr := e.page.PressKey(ctx, e.lastFilled.selector, e.lastFilled.scope, "Enter"); keyErr == nil {
			return schemas.StepOutcome{Status: schemas.StepDone, MatchedSelector: e.lastFilled.selector, Note: "enter keypress submit"}, nil
		}
	}

	return schemas.StepOutcome{Status: schemas.StepSkipped, Note: "no submit path succeeded"}, nil
}
