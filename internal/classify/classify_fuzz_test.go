//go:build go1.18
// +build go1.18

package classify_test

import (
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"

	"github.com/kv9x/dowser-cli/api/schemas"
	"github.com/kv9x/dowser-cli/internal/classify"
	"github.com/kv9x/dowser-cli/internal/config"
)

// FuzzClassify checks the two safety properties over arbitrary descriptors:
// classification never panics, and secret fields never receive a generic
// synthesized literal.
func FuzzClassify(f *testing.F) {
	c := classify.New(config.TargetConfig{})

	f.Add([]byte("password"))
	f.Add([]byte{0x00, 0xff, 0x10})
	f.Fuzz(func(t *testing.T, data []byte) {
		fz := fuzz.NewConsumer(data)
		var fd schemas.FieldDescriptor
		if err := fz.GenerateStruct(&fd); err != nil {
			return
		}

		got := c.Classify(fd)

		if fd.RawType == "password" {
			if got.Role != schemas.RoleCredentialPassword {
				t.Fatalf("password-typed field classified as %q", got.Role)
			}
			if strings.HasPrefix(got.Value, "Test_") {
				t.Fatalf("generic literal %q leaked into a secret field", got.Value)
			}
		}
		if got.Role == schemas.RoleSkip && got.Value != "" {
			t.Fatalf("skip role carries value %q", got.Value)
		}
	})
}
