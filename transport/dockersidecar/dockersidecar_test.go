package dockersidecar

import (
	"context"
	"log/slog"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/riotkit-org/br-backup-controller/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNew_RequiresOrigContainerAndImage(t *testing.T) {
	assert := NewWithT(t)

	_, err := New(transport.Spec{}, discardLogger())
	assert.Expect(err).To(MatchError(transport.ErrConfigurationError))
}

func TestName(t *testing.T) {
	assert := NewWithT(t)

	target := &Transport{origContainer: "web"}
	assert.Expect(target.Name()).To(Equal("docker-sidecar"))
}

func TestRelease_NoOpWhenNoSidecarCreated(t *testing.T) {
	assert := NewWithT(t)

	target := &Transport{}
	assert.Expect(target.Release(context.Background())).NotTo(HaveOccurred())
}
