package transport_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/faketransport"
)

func TestScoped_RunsPrepareFnRelease(t *testing.T) {
	assert := NewWithT(t)

	fake := &faketransport.Transport{}

	err := transport.Scoped(context.Background(), fake, nil, faketransport.NewDefinition(), func(transport.Transport) error {
		return nil
	})

	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(fake.Calls).To(Equal([]string{"prepare", "release"}))
}

func TestScoped_PrepareFailureSkipsFnButStillReleases(t *testing.T) {
	assert := NewWithT(t)

	prepareErr := errors.New("no capacity")
	fake := &faketransport.Transport{PrepareErr: prepareErr}

	err := transport.Scoped(context.Background(), fake, nil, faketransport.NewDefinition(), func(transport.Transport) error {
		t.Fatal("fn must not run when PrepareEnvironment fails")

		return nil
	})

	assert.Expect(err).To(MatchError(prepareErr))
	assert.Expect(fake.Calls).To(Equal([]string{"prepare", "release"}))
}

func TestScoped_ReleaseErrorSurfacesOnlyWhenFnSucceeded(t *testing.T) {
	assert := NewWithT(t)

	releaseErr := errors.New("cleanup failed")
	fake := &faketransport.Transport{ReleaseErr: releaseErr}

	err := transport.Scoped(context.Background(), fake, nil, faketransport.NewDefinition(), func(transport.Transport) error {
		return nil
	})

	assert.Expect(err).To(MatchError(releaseErr))
}

func TestScoped_FnErrorIsNotMaskedByReleaseError(t *testing.T) {
	assert := NewWithT(t)

	fnErr := errors.New("schedule failed")
	fake := &faketransport.Transport{ReleaseErr: errors.New("cleanup also failed")}

	err := transport.Scoped(context.Background(), fake, nil, faketransport.NewDefinition(), func(transport.Transport) error {
		return fnErr
	})

	assert.Expect(err).To(MatchError(fnErr))
}

func TestScoped_ReleaseRunsEvenWhenFnPanics(t *testing.T) {
	assert := NewWithT(t)

	fake := &faketransport.Transport{}

	assert.Expect(func() {
		_ = transport.Scoped(context.Background(), fake, nil, faketransport.NewDefinition(), func(transport.Transport) error {
			panic("boom")
		})
	}).To(Panic())

	assert.Expect(fake.Calls).To(Equal([]string{"prepare", "release"}))
}

func TestRegistry_AddGetEach(t *testing.T) {
	assert := NewWithT(t)

	name := "transport-test-registry-fixture"

	transport.Add(name, func(transport.Spec, *slog.Logger) (transport.Transport, error) {
		return nil, nil
	})

	_, ok := transport.Get(name)
	assert.Expect(ok).To(BeTrue())

	_, ok = transport.Get("does-not-exist")
	assert.Expect(ok).To(BeFalse())

	found := false
	transport.Each(func(n string, _ transport.InitFunc) {
		if n == name {
			found = true
		}
	})
	assert.Expect(found).To(BeTrue())
}
