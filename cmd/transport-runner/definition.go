package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/riotkit-org/br-backup-controller/transport"
)

// fileDefinition is the on-disk yaml shape accepted by the --definition
// flag: just enough of a BackupDefinition to drive a transport end-to-end
// (collection identity, optional encryption key paths, free-form metadata),
// mirroring the external, narrow BackupDefinition contract described in
// spec.md §3.
type fileDefinition struct {
	Collection string            `yaml:"collectionId"`
	PublicKey  string            `yaml:"publicKeyPath"`
	PrivateKey string            `yaml:"privateKeyPath"`
	Meta       map[string]string `yaml:"meta"`
}

type fileEncryption struct {
	public  string
	private string
}

func (e fileEncryption) PublicKeyPath() string  { return e.public }
func (e fileEncryption) PrivateKeyPath() string { return e.private }

func (d *fileDefinition) CollectionID() string { return d.Collection }

func (d *fileDefinition) Encryption() transport.Encryption {
	if d.PublicKey == "" && d.PrivateKey == "" {
		return nil
	}

	return fileEncryption{public: d.PublicKey, private: d.PrivateKey}
}

func (d *fileDefinition) Metadata() map[string]string { return d.Meta }

var _ transport.BackupDefinition = (*fileDefinition)(nil)

func loadDefinition(path string) (transport.BackupDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition file %q: %w", path, err)
	}

	definition := &fileDefinition{}

	if err := yaml.Unmarshal(raw, definition); err != nil {
		return nil, fmt.Errorf("parsing definition file %q: %w", path, err)
	}

	if definition.Collection == "" {
		return nil, fmt.Errorf("definition file %q is missing collectionId", path)
	}

	return definition, nil
}
