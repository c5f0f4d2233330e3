package local_test

import (
	"context"
	"log/slog"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/faketransport"
	"github.com/riotkit-org/br-backup-controller/transport/local"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestNew_EmptyShellFallsBackToDefault(t *testing.T) {
	assert := NewWithT(t)

	_, err := local.New(transport.Spec{"shell": ""}, discardLogger())
	assert.Expect(err).NotTo(HaveOccurred())
}

func TestSchedule_RunsArgvThroughShell(t *testing.T) {
	assert := NewWithT(t)

	original := transport.AssembleCommand
	defer func() { transport.AssembleCommand = original }()

	transport.AssembleCommand = func(string, transport.BackupDefinition, bool, string, string, string, string) []string {
		return []string{"echo", "hello from local transport"}
	}

	target, err := local.New(transport.Spec{"shell": "/bin/sh"}, discardLogger())
	assert.Expect(err).NotTo(HaveOccurred())

	session, err := target.Schedule(context.Background(), "backup-maker", faketransport.NewDefinition(), true, "")
	assert.Expect(err).NotTo(HaveOccurred())

	output, err := session.Read(context.Background())
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(output).To(ContainSubstring("hello from local transport"))
	assert.Expect(session.Succeeded()).To(BeTrue())
}

func TestSchedule_NonZeroExitIsNotSucceeded(t *testing.T) {
	assert := NewWithT(t)

	original := transport.AssembleCommand
	defer func() { transport.AssembleCommand = original }()

	transport.AssembleCommand = func(string, transport.BackupDefinition, bool, string, string, string, string) []string {
		return []string{"sh", "-c", "exit 7"}
	}

	target, err := local.New(transport.Spec{"shell": "/bin/sh"}, discardLogger())
	assert.Expect(err).NotTo(HaveOccurred())

	session, err := target.Schedule(context.Background(), "backup-maker", faketransport.NewDefinition(), true, "")
	assert.Expect(err).NotTo(HaveOccurred())

	_, err = session.Read(context.Background())
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(session.Succeeded()).To(BeFalse())
}
