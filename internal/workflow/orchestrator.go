// Package workflow chains probe, classify and interact calls into named
// workflows (route-visit, login, create/update/delete item) and owns the
// skip/continue decision at each step boundary. Workflows degrade gracefully:
// a missing affordance skips work, it never fails it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/classify"
	"github.com/kv9x/dowser-cli/internal/config"
	"github.com/kv9x/dowser-cli/internal/interact"
	"github.com/kv9x/dowser-cli/internal/probe"
	"github.com/kv9x/dowser-cli/internal/recorder"
)

// State is the orchestrator's position in the workflow state machine.
type State string

const (
	StateIdle          State = "Idle"
	StateRouteLoaded   State = "RouteLoaded"
	StateAuthChecked   State = "AuthChecked"
	StateFormSubmitted State = "FormSubmitted"
	StateVerified      State = "Verified"
	StateTerminal      State = "Terminal"
)

// UpdatedDescription is the literal written into description fields during
// the update workflow and asserted afterwards.
const UpdatedDescription = "Updated by E2E"

// Orchestrator drives one isolated browser session through the workflow
// catalogue. All steps within a workflow execute strictly sequentially; each
// step's preconditions depend on the DOM state left by the previous one.
type Orchestrator struct {
	cfg        *config.Config
	page       schemas.Page
	prober     *probe.Prober
	classifier *classify.Classifier
	exec       *interact.Executor
	rec        *recorder.Recorder
	logger     *zap.Logger
}

// New wires an Orchestrator around one Page. All tunables arrive through the
// configuration object; the orchestrator never reads ambient state.
func New(cfg *config.Config, page schemas.Page, rec *recorder.Recorder, logger *zap.Logger) *Orchestrator {
	prober := probe.New(page, logger)
	classifier := classify.New(cfg.Target)
	return &Orchestrator{
		cfg:        cfg,
		page:       page,
		prober:     prober,
		classifier: classifier,
		exec:       interact.New(page, prober, classifier, cfg.Probe, logger),
		rec:        rec,
		logger:     logger.Named("workflow"),
	}
}

// run tracks the bookkeeping of one workflow invocation.
type run struct {
	id       string
	name     string
	route    string
	started  time.Time
	state    State
	evidence map[int]schemas.StepOutcome
	extra    map[string]interface{}
	nextIdx  int
}

func (o *Orchestrator) begin(name, route string) *run {
	return &run{
		id:       uuid.NewString(),
		name:     name,
		route:    route,
		started:  time.Now(),
		state:    StateIdle,
		evidence: make(map[int]schemas.StepOutcome),
		extra:    make(map[string]interface{}),
	}
}

// observe stores one step outcome under the next step index.
func (r *run) observe(out schemas.StepOutcome) {
	r.evidence[r.nextIdx] = out
	r.nextIdx++
}

func (r *run) note(note string) {
	r.observe(schemas.StepOutcome{Status: schemas.StepDone, Note: note})
}

// terminal closes the run, records it, and returns the immutable result.
func (o *Orchestrator) terminal(r *run, status schemas.WorkflowStatus, reason string) schemas.WorkflowResult {
	r.state = StateTerminal
	result := schemas.WorkflowResult{
		Workflow: r.name,
		Route:    r.route,
		Status:   status,
		Reason:   reason,
		Evidence: r.evidence,
		Started:  r.started,
		Duration: time.Since(r.started),
		Extra:    r.extra,
	}
	o.rec.Record(result)
	return result
}

// expired performs the cooperative deadline check that precedes every step.
// A workflow past its deadline transitions to Terminal(failed) without
// leaving an action half-applied and unrecorded.
func (r *run) expired(ctx context.Context) bool {
	return ctx.Err() != nil
}

func (o *Orchestrator) deadlineResult(r *run) schemas.WorkflowResult {
	return o.terminal(r, schemas.WorkflowFailed, schemas.ErrDeadlineExceeded.Error())
}

// perform executes one declared step through the executor and applies the
// step's OnMissing policy at the boundary. halt reports that the workflow
// must terminate: with a nil error the policy was skip-workflow and the
// caller owns the skip reason, otherwise the error carries the verdict.
func (o *Orchestrator) perform(ctx context.Context, r *run, st schemas.WorkflowStep, scope string) (out schemas.StepOutcome, halt bool, err error) {
	if r.expired(ctx) {
		return schemas.StepOutcome{}, true, schemas.ErrDeadlineExceeded
	}
	out, err = o.exec.Execute(ctx, st, scope)
	r.observe(out)
	if err != nil {
		return out, true, err
	}
	if out.Status != schemas.StepSkipped {
		return out, false, nil
	}
	switch st.OnMissing {
	case schemas.MissingSkipWorkflow:
		return out, true, nil
	case schemas.MissingFail:
		return out, true, fmt.Errorf("%w: required %s target %q absent",
			schemas.ErrPostconditionViolated, st.Action, st.Target.Name)
	default:
		return out, false, nil
	}
}

// failure maps an error to the terminal failed verdict with the taxonomy kind
// in the reason string.
func (o *Orchestrator) failure(r *run, err error) schemas.WorkflowResult {
	reason := err.Error()
	switch {
	case errors.Is(err, schemas.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		// A deadline expiring mid-step must surface as the deadline verdict,
		// not as whatever probe happened to be interrupted.
		reason = schemas.ErrDeadlineExceeded.Error()
	case errors.Is(err, schemas.ErrPostconditionViolated):
		reason = "postcondition violated: " + trimErr(err)
	case errors.Is(err, schemas.ErrUnreachable):
		reason = "unreachable: " + trimErr(err)
	}
	return o.terminal(r, schemas.WorkflowFailed, reason)
}

func trimErr(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

// -- Route Visit --

// RunRouteVisit navigates to a route and verifies the document rendered.
func (o *Orchestrator) RunRouteVisit(ctx context.Context, route string) schemas.WorkflowResult {
	r := o.begin(WorkflowRouteVisit, route)
	log := o.logger.With(zap.String("workflow", r.name), zap.String("route", route), zap.String("run_id", r.id))

	_, _, err := o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionNavigate,
		URL:       o.cfg.RouteURL(route),
		OnMissing: schemas.MissingFail,
	}, "")
	if err != nil {
		return o.failure(r, err)
	}
	r.state = StateRouteLoaded

	_, _, err = o.perform(ctx, r, schemas.WorkflowStep{
		Action:      schemas.ActionWaitFor,
		Target:      bodyReady,
		WantPresent: true,
		OnMissing:   schemas.MissingSkipStep,
	}, "")
	if err != nil {
		return o.failure(r, err)
	}

	if finalURL, urlErr := o.page.URL(ctx); urlErr == nil {
		r.extra["final_url"] = finalURL
	}
	log.Debug("Route visit completed.")
	return o.terminal(r, schemas.WorkflowPassed, "route loaded")
}

// -- Login --

// RunLogin probes the route for a credential pair and attempts to
// authenticate. "Login attempted but no logout indicator found" is preserved
// as a non-fatal, degraded-confidence pass; many apps render no visible
// signal.
func (o *Orchestrator) RunLogin(ctx context.Context, route string) schemas.WorkflowResult {
	r := o.begin(WorkflowLogin, route)

	_, _, err := o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionNavigate,
		URL:       o.cfg.RouteURL(route),
		OnMissing: schemas.MissingFail,
	}, "")
	if err != nil {
		return o.failure(r, err)
	}
	r.state = StateRouteLoaded

	attempted, confirmed, err := o.attemptLogin(ctx, r)
	if err != nil {
		return o.failure(r, err)
	}
	if !attempted {
		return o.terminal(r, schemas.WorkflowSkipped, "no login form found")
	}
	r.state = StateAuthChecked

	if confirmed {
		return o.terminal(r, schemas.WorkflowPassed, "authenticated")
	}
	return o.terminal(r, schemas.WorkflowPassed, "login attempted, unconfirmed")
}

// attemptLogin fills and submits the credential pair when both fields are
// present. Returns attempted=false when either field is absent.
func (o *Orchestrator) attemptLogin(ctx context.Context, r *run) (attempted, confirmed bool, err error) {
	userRes, err := o.prober.Probe(ctx, usernameField, "")
	if err != nil {
		return false, false, err
	}
	passRes, err := o.prober.Probe(ctx, passwordField, "")
	if err != nil {
		return false, false, err
	}
	if !userRes.Found || !passRes.Found {
		return false, false, nil
	}

	// Both fields were just probed; absence now means the DOM changed under
	// us, which the fail policy turns into a postcondition verdict. The
	// classifier supplies the configured test credentials.
	_, _, err = o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionFill,
		Target:    usernameField,
		OnMissing: schemas.MissingFail,
	}, "")
	if err != nil {
		return true, false, err
	}
	_, _, err = o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionFill,
		Target:    passwordField,
		OnMissing: schemas.MissingFail,
	}, "")
	if err != nil {
		return true, false, err
	}

	_, _, err = o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionSubmit,
		OnMissing: schemas.MissingSkipStep,
	}, "")
	if err != nil {
		return true, false, err
	}

	// Post-login marker. Absence advances anyway with reduced confidence.
	out, _, err := o.perform(ctx, r, schemas.WorkflowStep{
		Action:      schemas.ActionWaitFor,
		Target:      logoutMarker,
		WantPresent: true,
		OnMissing:   schemas.MissingSkipStep,
	}, "")
	if err != nil {
		return true, false, err
	}
	if out.Status == schemas.StepDone {
		r.note("authenticated")
		return true, true, nil
	}
	r.note("login attempted, unconfirmed")
	return true, false, nil
}

// -- CRUD --

// RunCRUD exercises create, update and delete against one route as three
// separately recorded workflows sharing page state. Update and delete are
// conditionally reachable: each depends on the previous phase completing and
// on its row-scoped control existing.
func (o *Orchestrator) RunCRUD(ctx context.Context, route string) []schemas.WorkflowResult {
	results := make([]schemas.WorkflowResult, 0, 3)

	createRes, createdName := o.runCreate(ctx, route)
	results = append(results, createRes)

	if createRes.Status != schemas.WorkflowPassed || createdName == "" {
		reason := "create not completed"
		if createRes.Status == schemas.WorkflowSkipped {
			reason = "create skipped: " + createRes.Reason
		}
		results = append(results,
			o.terminal(o.begin(WorkflowUpdateItem, route), schemas.WorkflowSkipped, reason),
			o.terminal(o.begin(WorkflowDeleteItem, route), schemas.WorkflowSkipped, reason),
		)
		return results
	}

	updateRes, activeName := o.runUpdate(ctx, route, createdName)
	results = append(results, updateRes)
	if updateRes.Status == schemas.WorkflowFailed {
		// App state is unknown after a failed update; deleting would act on
		// an unverified row.
		results = append(results,
			o.terminal(o.begin(WorkflowDeleteItem, route), schemas.WorkflowSkipped, "update left app state unverified"))
		return results
	}

	results = append(results, o.runDelete(ctx, route, activeName))
	return results
}

// runCreate walks the route's form: classify and fill every named,
// non-checkbox/radio field, submit via the fallback chain, then verify the
// synthesized unique value appears in page text (the create-confirmation
// oracle).
func (o *Orchestrator) runCreate(ctx context.Context, route string) (schemas.WorkflowResult, string) {
	r := o.begin(WorkflowCreateItem, route)
	log := o.logger.With(zap.String("workflow", r.name), zap.String("route", route), zap.String("run_id", r.id))

	_, _, err := o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionNavigate,
		URL:       o.cfg.RouteURL(route),
		OnMissing: schemas.MissingFail,
	}, "")
	if err != nil {
		return o.failure(r, err), ""
	}
	r.state = StateRouteLoaded

	// Optional auth gate: when the route presents a credential pair, log in
	// first so the CRUD form behind it becomes reachable.
	attempted, _, err := o.attemptLogin(ctx, r)
	if err != nil {
		return o.failure(r, err), ""
	}
	if attempted {
		r.state = StateAuthChecked
	}

	formOut, halt, err := o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionProbe,
		Target:    anyForm,
		OnMissing: schemas.MissingSkipWorkflow,
	}, "")
	if err != nil {
		return o.failure(r, err), ""
	}
	if halt {
		return o.terminal(r, schemas.WorkflowSkipped, "no form on this route"), ""
	}
	formScope := formOut.MatchedSelector

	fields, err := o.page.QueryAll(ctx, formFieldsQuery, formScope)
	if err != nil {
		return o.failure(r, fmt.Errorf("%w: field discovery: %v", schemas.ErrUnreachable, err)), ""
	}
	if len(fields) == 0 {
		return o.terminal(r, schemas.WorkflowSkipped, "form has no fillable fields"), ""
	}

	carrier := chooseTokenCarrier(fields, o.classifier)
	createdName := ""

	for i, el := range fields {
		value := ""
		if i == carrier {
			createdName = classify.UniqueToken("Item")
			value = createdName
		}
		// A field that vanished between discovery and fill is skipped, not
		// fatal; the rest of the form is still worth submitting.
		_, _, err := o.perform(ctx, r, schemas.WorkflowStep{
			Action:    schemas.ActionFill,
			Target:    fieldTarget(el),
			Value:     value,
			OnMissing: schemas.MissingSkipStep,
		}, formScope)
		if err != nil {
			return o.failure(r, err), ""
		}
	}

	_, halt, err = o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionSubmit,
		OnMissing: schemas.MissingSkipWorkflow,
	}, formScope)
	if err != nil {
		return o.failure(r, err), ""
	}
	if halt {
		return o.terminal(r, schemas.WorkflowSkipped, "no submit affordance on form"), ""
	}
	r.state = StateFormSubmitted

	if createdName == "" {
		// Without a token carrier there is no presence oracle; the submit
		// itself is all that can be verified.
		return o.terminal(r, schemas.WorkflowPassed, "form submitted, creation unverified"), ""
	}

	visible, err := o.waitText(ctx, createdName, true, o.cfg.Probe.WaitForTimeout)
	if err != nil {
		return o.failure(r, err), ""
	}
	if !visible {
		return o.failure(r, fmt.Errorf("%w: created value %q never appeared", schemas.ErrPostconditionViolated, createdName)), ""
	}
	r.state = StateVerified
	r.extra["created_name"] = createdName
	log.Debug("Create verified.", zap.String("created", createdName))

	return o.terminal(r, schemas.WorkflowPassed, "created item visible"), createdName
}

// runUpdate edits the row created earlier. Reachable only when an edit
// control exists inside the same row-like context as the created value.
// Returns the name that is live after the workflow (the new token when the
// rename stuck, the original otherwise).
func (o *Orchestrator) runUpdate(ctx context.Context, route, original string) (schemas.WorkflowResult, string) {
	r := o.begin(WorkflowUpdateItem, route)

	if r.expired(ctx) {
		return o.deadlineResult(r), original
	}

	scope, found, err := o.prober.RowScope(ctx, original)
	if err != nil {
		return o.failure(r, err), original
	}
	if !found {
		return o.terminal(r, schemas.WorkflowSkipped, "no row context located"), original
	}

	_, halt, err := o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionClick,
		Target:    editControl,
		OnMissing: schemas.MissingSkipWorkflow,
	}, scope)
	if err != nil {
		return o.failure(r, err), original
	}
	if halt {
		return o.terminal(r, schemas.WorkflowSkipped, "no edit control located"), original
	}

	// The edit affordance may reveal an inline form or navigate to an edit
	// page; either way the fields are re-probed globally.
	newName := classify.UniqueToken("Item")
	nameOut, _, err := o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionFill,
		Target:    nameTarget,
		Value:     newName,
		OnMissing: schemas.MissingSkipStep,
	}, "")
	if err != nil {
		return o.failure(r, err), original
	}
	renamed := nameOut.Status == schemas.StepDone

	descOut, _, err := o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionFill,
		Target:    descriptionTarget,
		Value:     UpdatedDescription,
		OnMissing: schemas.MissingSkipStep,
	}, "")
	if err != nil {
		return o.failure(r, err), original
	}

	if !renamed && descOut.Status != schemas.StepDone {
		return o.terminal(r, schemas.WorkflowSkipped, "no editable fields located"), original
	}

	_, _, err = o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionSubmit,
		OnMissing: schemas.MissingSkipStep,
	}, "")
	if err != nil {
		return o.failure(r, err), original
	}
	r.state = StateFormSubmitted

	if renamed {
		visible, err := o.waitText(ctx, newName, true, o.cfg.Probe.WaitForTimeout)
		if err != nil {
			return o.failure(r, err), original
		}
		if !visible {
			return o.failure(r, fmt.Errorf("%w: updated value %q never appeared", schemas.ErrPostconditionViolated, newName)), original
		}
		gone, err := o.waitText(ctx, original, false, o.cfg.Probe.WaitForTimeout)
		if err != nil {
			return o.failure(r, err), newName
		}
		if !gone {
			return o.failure(r, fmt.Errorf("%w: original value %q still present after update", schemas.ErrPostconditionViolated, original)), newName
		}
	}

	if descOut.Status == schemas.StepDone {
		visible, err := o.waitText(ctx, UpdatedDescription, true, o.cfg.Probe.WaitForTimeout)
		if err != nil {
			return o.failure(r, err), activeName(renamed, newName, original)
		}
		if !visible {
			r.note("updated description not visible, reduced confidence")
		}
	}
	r.state = StateVerified

	final := activeName(renamed, newName, original)
	r.extra["active_name"] = final
	return o.terminal(r, schemas.WorkflowPassed, "update verified"), final
}

func activeName(renamed bool, newName, original string) string {
	if renamed {
		return newName
	}
	return original
}

// runDelete removes the row and verifies the value detaches from the page
// within the bounded wait.
func (o *Orchestrator) runDelete(ctx context.Context, route, current string) schemas.WorkflowResult {
	r := o.begin(WorkflowDeleteItem, route)

	if r.expired(ctx) {
		return o.deadlineResult(r)
	}

	scope, found, err := o.prober.RowScope(ctx, current)
	if err != nil {
		return o.failure(r, err)
	}
	if !found {
		return o.terminal(r, schemas.WorkflowSkipped, "no row context located")
	}

	// Delete affordances commonly raise a confirm() dialog.
	o.page.AcceptDialogs(ctx)

	_, halt, err := o.perform(ctx, r, schemas.WorkflowStep{
		Action:    schemas.ActionClick,
		Target:    deleteControl,
		OnMissing: schemas.MissingSkipWorkflow,
	}, scope)
	if err != nil {
		return o.failure(r, err)
	}
	if halt {
		return o.terminal(r, schemas.WorkflowSkipped, "no delete control located")
	}

	gone, err := o.waitText(ctx, current, false, o.cfg.Probe.WaitForTimeout)
	if err != nil {
		return o.failure(r, err)
	}
	if !gone {
		return o.failure(r, fmt.Errorf("%w: deleted value %q still present", schemas.ErrPostconditionViolated, current))
	}
	r.extra["deleted_name"] = current
	return o.terminal(r, schemas.WorkflowPassed, "delete verified")
}

// waitText polls the rendered body text until needle presence matches want or
// the bounded timeout elapses.
func (o *Orchestrator) waitText(ctx context.Context, needle string, want bool, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(o.cfg.Probe.PollInterval)
	defer ticker.Stop()

	for {
		visible, err := o.prober.TextVisible(ctx, needle)
		if err != nil {
			return false, err
		}
		if visible == want {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, fmt.Errorf("%w: text wait interrupted: %w", schemas.ErrUnreachable, ctx.Err())
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
		}
	}
}

// chooseTokenCarrier picks the field that will carry the unique synthetic
// token: a field literally named "name" wins, else the first free-text
// field. Returns -1 when no field qualifies.
func chooseTokenCarrier(fields []schemas.ElementInfo, classifier *classify.Classifier) int {
	first := -1
	for i, el := range fields {
		fd := probe.DescribeField(el)
		cls := classifier.Classify(fd)
		if cls.Role != schemas.RoleFreeText {
			continue
		}
		if strings.EqualFold(fd.RawName, "name") {
			return i
		}
		if first == -1 {
			first = i
		}
	}
	return first
}
