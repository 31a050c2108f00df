// Package classify assigns semantic roles to discovered form fields and
// chooses safe synthetic values for them. The classifier is a pure function
// over explicit attributes: the DOM's duck-typed shape is resolved once into
// a FieldDescriptor, then matched against a small closed set of roles.
package classify

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/config"
)

// Fixed safe defaults used when no test credentials are configured. Never
// real credentials, safe to store and display.
const (
	DefaultUsername = "qa.dowser@example.com"
	DefaultPassword = "DowserTest123!"
)

// SelectSecondOption marks the free-choice rule: pick the option at the
// second position if one exists, else leave the select unchanged.
const SelectSecondOption = 1

var (
	rePassword = regexp.MustCompile(`(?i)password`)
	reUsername = regexp.MustCompile(`(?i)username|email`)
	reNumeric  = regexp.MustCompile(`(?i)price|quantity|amount|count`)
)

// Classification is the classifier's verdict for one field.
type Classification struct {
	Role  schemas.FieldRole
	Value string
	// SelectIndex is the zero-based option position for free-choice fields.
	SelectIndex int
}

// Classifier holds the configured credentials and per-field defaults. It has
// no other state; Classify is deterministic for a given descriptor.
type Classifier struct {
	creds    config.CredentialsConfig
	defaults map[string]string
}

// New builds a Classifier from the target configuration. Field default keys
// are matched case-insensitively.
func New(target config.TargetConfig) *Classifier {
	defaults := make(map[string]string, len(target.ItemDefaults))
	for k, v := range target.ItemDefaults {
		defaults[strings.ToLower(k)] = v
	}
	return &Classifier{creds: target.Credentials, defaults: defaults}
}

// Classify applies the precedence rules and returns the field's role and a
// synthetic value that is safe to type into it.
//
// Checkbox and radio inputs are excluded from synthesis (left at their
// default checked state): toggling them has ambiguous semantic effect without
// app knowledge. Hidden and button-like inputs are skipped too.
func (c *Classifier) Classify(fd schemas.FieldDescriptor) Classification {
	name := strings.TrimSpace(fd.RawName)

	switch fd.RawType {
	case "checkbox", "radio", "hidden", "submit", "button", "reset", "image", "file":
		return Classification{Role: schemas.RoleSkip}
	}

	// (1) Secret fields always receive the configured credential or the fixed
	// safe default; generic test literals never leak into them.
	if fd.RawType == "password" || rePassword.MatchString(name) {
		return Classification{Role: schemas.RoleCredentialPassword, Value: c.password()}
	}

	// (2) Identity fields.
	if fd.RawType == "email" || reUsername.MatchString(name) {
		return Classification{Role: schemas.RoleCredentialUsername, Value: c.username()}
	}

	// (3) Selects: take the second option when one exists, else leave the
	// control unchanged. The executor interprets SelectIndex.
	if fd.TagKind == schemas.TagSelect {
		return Classification{Role: schemas.RoleFreeChoice, SelectIndex: SelectSecondOption}
	}

	// (4) Contenteditable regions: synthesize from the field name or fall
	// back to a generic literal.
	if fd.TagKind == schemas.TagContentEditable {
		if name == "" {
			return Classification{Role: schemas.RoleFreeText, Value: "Dowser rich text content"}
		}
		return Classification{Role: schemas.RoleFreeText, Value: textValue(name)}
	}

	// Configured item defaults win over synthesis for known fields.
	if v, ok := c.defaults[strings.ToLower(name)]; ok {
		role := schemas.RoleFreeText
		if fd.RawType == "number" || reNumeric.MatchString(name) {
			role = schemas.RoleNumeric
		}
		return Classification{Role: role, Value: v}
	}

	if fd.RawType == "number" || reNumeric.MatchString(name) {
		return Classification{Role: schemas.RoleNumeric, Value: "7"}
	}

	// (5) Default: a deterministic literal derived from the field name, so
	// repeated runs are reproducible and greppable.
	return Classification{Role: schemas.RoleFreeText, Value: textValue(name)}
}

func (c *Classifier) username() string {
	if c.creds.Username != "" {
		return c.creds.Username
	}
	return DefaultUsername
}

func (c *Classifier) password() string {
	if c.creds.Password != "" {
		return c.creds.Password
	}
	return DefaultPassword
}

func textValue(name string) string {
	if name == "" {
		return "Test_field"
	}
	return "Test_" + name
}

// tokenSeq makes tokens minted in the same nanosecond still distinct.
var tokenSeq atomic.Uint64

// UniqueToken mints a synthetic value that is mutually distinguishable from
// every other token this process has produced: two create runs can never
// satisfy each other's presence checks. The embedded counter is monotonic.
func UniqueToken(prefix string) string {
	if prefix == "" {
		prefix = "Item"
	}
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixMilli(), tokenSeq.Add(1))
}
