package workflow

import (
	"fmt"

	"github.com/kv9x/dowser-cli/api/schemas"
)

// Workflow names as they appear in recorded results.
const (
	WorkflowRouteVisit = "route-visit"
	WorkflowLogin      = "login"
	WorkflowCreateItem = "create-item"
	WorkflowUpdateItem = "update-item"
	WorkflowDeleteItem = "delete-item"
)

// Static selector templates. Each SelectorSet carries the plausible markup
// conventions observed in the wild for one affordance; candidates are tried
// in order and the first hit wins, so the workflows never need app-specific
// knowledge.
var (
	bodyReady = schemas.MustSelectorSet("body", "body")

	anyForm = schemas.MustSelectorSet("form", "form")

	usernameField = schemas.MustSelectorSet("login_username",
		`input[name="username"]`,
		`input#username`,
		`input[name="email"]`,
		`input[type="email"]`,
		`input#email`,
		`input[type="text"][name*="user"]`,
	)

	passwordField = schemas.MustSelectorSet("login_password",
		`input[name="password"]`,
		`input#password`,
		`input[type="password"]`,
	)

	// Post-login marker: many apps render no visible signal, so its absence
	// is a degraded-confidence outcome rather than a failure.
	logoutMarker = schemas.MustSelectorSet("logout_marker",
		`a[href*="logout"]`,
		`button[name*="logout"]`,
		`#logout`,
		`a[href*="signout"]`,
		`[aria-label*="Log out"]`,
		`form[action*="logout"] button`,
	)

	editControl = schemas.MustSelectorSet("edit_control",
		`a[href*="edit"]`,
		`button[name*="edit"]`,
		`button.edit`,
		`.edit-btn`,
		`[aria-label*="Edit"]`,
		`input[type="submit"][value*="Edit"]`,
	)

	deleteControl = schemas.MustSelectorSet("delete_control",
		`button[name*="delete"]`,
		`button.delete`,
		`.delete-btn`,
		`a[href*="delete"]`,
		`[aria-label*="Delete"]`,
		`form[action*="delete"] button`,
		`input[type="submit"][value*="Delete"]`,
	)
)

// formFieldsQuery discovers the named, fillable controls of a form. Checkbox
// and radio inputs still appear here; the classifier assigns them the skip
// role so they stay at their default checked state.
const formFieldsQuery = `input[name], textarea[name], select[name], [contenteditable="true"]`

// fieldTarget builds the per-field SelectorSet used to re-resolve a
// discovered field immediately before acting on it.
func fieldTarget(el schemas.ElementInfo) schemas.SelectorSet {
	name := el.Attr("name")
	if name == "" {
		// Unnamed contenteditable regions are re-located by shape.
		return schemas.MustSelectorSet("field_contenteditable", `[contenteditable="true"]`)
	}
	return schemas.MustSelectorSet(
		"field_"+name,
		fmt.Sprintf(`[name=%q]`, name),
	)
}

// descriptionTarget locates the description field during update.
var descriptionTarget = schemas.MustSelectorSet("field_description",
	`textarea[name="description"]`,
	`input[name="description"]`,
	`[name="description"]`,
	`textarea`,
)

// nameTarget locates the item name field during update.
var nameTarget = schemas.MustSelectorSet("field_name",
	`input[name="name"]`,
	`input#name`,
	`[name="name"]`,
)
