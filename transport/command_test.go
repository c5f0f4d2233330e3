package transport_test

import (
	"testing"

	. "github.com/onsi/gomega"

	"github.com/riotkit-org/br-backup-controller/transport"
	"github.com/riotkit-org/br-backup-controller/transport/faketransport"
)

func TestDefaultAssembleCommand_Backup(t *testing.T) {
	assert := NewWithT(t)

	definition := faketransport.NewDefinition()
	definition.Meta = map[string]string{"b": "2", "a": "1"}

	argv := transport.DefaultAssembleCommand("backup-maker", definition, true, "", "/opt/br/bin", "/tmp/.gpg.pub", "/tmp/.gpg.key")

	assert.Expect(argv).To(Equal([]string{
		"/opt/br/bin/br-backup-maker", "backup-maker", "backup",
		"--collection-id=1111-2222-3333-4444",
		"--public-key=/tmp/.gpg.pub",
		"--private-key=/tmp/.gpg.key",
		"--meta=a=1",
		"--meta=b=2",
	}))
}

func TestDefaultAssembleCommand_RestoreWithVersion(t *testing.T) {
	assert := NewWithT(t)

	definition := faketransport.NewDefinition()
	definition.Enc = nil

	argv := transport.DefaultAssembleCommand("backup-maker", definition, false, "v5", "/opt/br/bin", "", "")

	assert.Expect(argv).To(Equal([]string{
		"/opt/br/bin/br-backup-maker", "backup-maker", "restore", "--version=v5",
		"--collection-id=1111-2222-3333-4444",
	}))
}

func TestAssembleCommand_IsSubstitutable(t *testing.T) {
	assert := NewWithT(t)

	original := transport.AssembleCommand
	defer func() { transport.AssembleCommand = original }()

	called := false
	transport.AssembleCommand = func(string, transport.BackupDefinition, bool, string, string, string, string) []string {
		called = true

		return []string{"--mocked--"}
	}

	transport.AssembleCommand("x", faketransport.NewDefinition(), true, "", "", "", "")

	assert.Expect(called).To(BeTrue())
}
