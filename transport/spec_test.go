package transport_test

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/riotkit-org/br-backup-controller/transport"
)

func TestSpec_GetFallsBackWhenAbsentOrEmpty(t *testing.T) {
	assert := NewWithT(t)

	spec := transport.Spec{"shell": "", "container": "web"}

	assert.Expect(spec.Get("shell", "/bin/sh")).To(Equal("/bin/sh"))
	assert.Expect(spec.Get("container", "")).To(Equal("web"))
	assert.Expect(spec.Get("missing", "default")).To(Equal("default"))
}

func TestSpec_GetIntRejectsNonInteger(t *testing.T) {
	assert := NewWithT(t)

	spec := transport.Spec{"timeout": "soon"}

	_, err := spec.GetInt("timeout", 10)
	assert.Expect(err).To(MatchError(transport.ErrConfigurationError))
}

func TestSpec_GetBoolDefaultsWhenAbsent(t *testing.T) {
	assert := NewWithT(t)

	spec := transport.Spec{}

	value, err := spec.GetBool("scaleDown", false)
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(value).To(BeFalse())
}

func TestSpec_RequireKeysReportsFirstMissing(t *testing.T) {
	assert := NewWithT(t)

	spec := transport.Spec{"container": "web"}

	err := spec.RequireKeys("container", "shell")
	assert.Expect(err).To(HaveOccurred())
	assert.Expect(errors.Is(err, transport.ErrConfigurationError)).To(BeTrue())
}

func TestValidateOptions_WrapsConfigurationError(t *testing.T) {
	assert := NewWithT(t)

	type options struct {
		Container string `validate:"required"`
	}

	err := transport.ValidateOptions(options{})
	assert.Expect(errors.Is(err, transport.ErrConfigurationError)).To(BeTrue())
}
