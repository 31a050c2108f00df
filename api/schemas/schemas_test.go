package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectorSet(t *testing.T) {
	set, err := NewSelectorSet("login", `input[name="username"]`, `input#username`)
	require.NoError(t, err)
	assert.Equal(t, "login", set.Name)
	// Candidate order is significant and preserved.
	assert.Equal(t, []string{`input[name="username"]`, `input#username`}, set.Candidates)
}

func TestNewSelectorSetRejectsEmpty(t *testing.T) {
	_, err := NewSelectorSet("empty")
	require.Error(t, err)

	assert.Panics(t, func() { MustSelectorSet("empty") })
}

func TestProbeResultFirst(t *testing.T) {
	assert.Equal(t, ElementInfo{}, ProbeResult{}.First())

	res := ProbeResult{
		Found:    true,
		Elements: []ElementInfo{{TagName: "INPUT"}, {TagName: "SELECT"}},
	}
	assert.Equal(t, "INPUT", res.First().TagName)
}

func TestElementInfoAttr(t *testing.T) {
	el := ElementInfo{Attributes: map[string]string{"type": "password"}}
	assert.Equal(t, "password", el.Attr("type"))
	assert.Equal(t, "", el.Attr("name"))
	assert.Equal(t, "", ElementInfo{}.Attr("type"))
}
