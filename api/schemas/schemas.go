// Package schemas holds the shared data model and the collaborator interfaces.
// Core packages (probe, classify, interact, workflow) depend only on these
// contracts, never on a concrete browser or HTTP implementation.
package schemas

import (
	"fmt"
	"time"
)

// -- Selector Resolution Schemas --

// SelectorSet is an ordered sequence of alternative CSS selectors that locate
// the same logical element. Candidates are tried in order; the first one with
// at least one match wins. Order is significant and preserved.
type SelectorSet struct {
	// Name describes the affordance the set locates (e.g. "login_username").
	Name       string   `json:"name"`
	Candidates []string `json:"candidates"`
}

// NewSelectorSet builds a SelectorSet, rejecting empty candidate lists.
// An empty set is a programming error, not an absent affordance.
func NewSelectorSet(name string, candidates ...string) (SelectorSet, error) {
	if len(candidates) == 0 {
		return SelectorSet{}, fmt.Errorf("selector set %q has no candidates", name)
	}
	return SelectorSet{Name: name, Candidates: candidates}, nil
}

// MustSelectorSet is the panic-on-error variant used for the static workflow
// templates, which are validated by tests.
func MustSelectorSet(name string, candidates ...string) SelectorSet {
	set, err := NewSelectorSet(name, candidates...)
	if err != nil {
		panic(err)
	}
	return set
}

// ProbeResult is the outcome of resolving one SelectorSet against the live
// DOM. Created fresh per probe call and never mutated.
type ProbeResult struct {
	Found           bool          `json:"found"`
	MatchedSelector string        `json:"matched_selector,omitempty"`
	MatchCount      int           `json:"match_count"`
	Elements        []ElementInfo `json:"-"`
}

// First returns the first matched element in document order. Callers must
// check Found before use.
func (r ProbeResult) First() ElementInfo {
	if len(r.Elements) == 0 {
		return ElementInfo{}
	}
	return r.Elements[0]
}

// -- Field Classification Schemas --

// TagKind is the closed enumeration of input-like element shapes the
// classifier understands.
type TagKind string

const (
	TagTextInput       TagKind = "text-input"
	TagTextArea        TagKind = "textarea"
	TagSelect          TagKind = "select"
	TagContentEditable TagKind = "contenteditable"
)

// FieldDescriptor captures the attributes of a discovered input-like element.
// It is derived once per discovered element and deliberately not cached across
// DOM mutations; callers re-probe before every interaction that depends on
// freshness.
type FieldDescriptor struct {
	TagKind  TagKind `json:"tag_kind"`
	RawName  string  `json:"raw_name,omitempty"`
	RawType  string  `json:"raw_type,omitempty"`
	IsSecret bool    `json:"is_secret"`
}

// FieldRole is the semantic role assigned to a field by the classifier.
type FieldRole string

const (
	RoleCredentialUsername FieldRole = "credential-username"
	RoleCredentialPassword FieldRole = "credential-password"
	RoleFreeText           FieldRole = "free-text"
	RoleFreeChoice         FieldRole = "free-choice"
	RoleNumeric            FieldRole = "numeric"
	RoleSkip               FieldRole = "skip"
)

// -- Workflow Schemas --

// StepAction is the kind of a single workflow step.
type StepAction string

const (
	ActionNavigate StepAction = "navigate"
	ActionProbe    StepAction = "probe"
	ActionFill     StepAction = "fill"
	ActionClick    StepAction = "click"
	ActionWaitFor  StepAction = "waitFor"
	ActionAssert   StepAction = "assert"
	ActionSubmit   StepAction = "submit"
)

// MissingPolicy declares how a workflow degrades when a step's target
// affordance is absent. Making the degradation an explicit, testable contract
// replaces ad hoc try/continue control flow.
type MissingPolicy string

const (
	MissingSkipStep     MissingPolicy = "skip-step"
	MissingSkipWorkflow MissingPolicy = "skip-workflow"
	MissingFail         MissingPolicy = "fail"
)

// WorkflowStep is one immutable action in a workflow sequence.
type WorkflowStep struct {
	Action    StepAction    `json:"action"`
	Target    SelectorSet   `json:"target"`
	Value     string        `json:"value,omitempty"`
	URL       string        `json:"url,omitempty"`
	OnMissing MissingPolicy `json:"on_missing"`
	// WantPresent selects the waitFor direction: true waits for the target to
	// appear, false waits for it to detach.
	WantPresent bool          `json:"want_present,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// StepStatus describes the terminal state of a single executed step.
type StepStatus string

const (
	StepDone     StepStatus = "done"
	StepSkipped  StepStatus = "skipped"
	StepDegraded StepStatus = "degraded"
	StepFailed   StepStatus = "failed"
)

// StepOutcome is the evidence-bearing result of executing one step.
type StepOutcome struct {
	Status          StepStatus `json:"status"`
	MatchedSelector string     `json:"matched_selector,omitempty"`
	Value           string     `json:"value,omitempty"`
	Note            string     `json:"note,omitempty"`
}

// WorkflowStatus is the terminal verdict of a whole workflow.
type WorkflowStatus string

const (
	WorkflowPassed  WorkflowStatus = "passed"
	WorkflowSkipped WorkflowStatus = "skipped"
	WorkflowFailed  WorkflowStatus = "failed"
)

// WorkflowResult is created once at workflow end, owned by the recorder and
// never mutated after creation.
type WorkflowResult struct {
	Workflow string                 `json:"workflow"`
	Route    string                 `json:"route"`
	Status   WorkflowStatus         `json:"status"`
	Reason   string                 `json:"reason,omitempty"`
	Evidence map[int]StepOutcome    `json:"evidence,omitempty"`
	Started  time.Time              `json:"started"`
	Duration time.Duration          `json:"duration"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}
