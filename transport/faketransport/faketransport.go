// Package faketransport provides in-memory test doubles for
// transport.BackupDefinition, transport.Encryption, and transport.Transport,
// grounded on bahub/testing.py's run_transport/create_example_fs_definition
// helpers, in the style of the teacher's testhelpers package.
package faketransport

import (
	"context"
	"strings"

	"github.com/riotkit-org/br-backup-controller/transport"
)

// NewSession builds a real transport.StreamSession over fixed stdout content
// and a fixed outcome, letting tests exercise Watch/Read without standing up
// a transport.
func NewSession(stdout string, succeeded bool) transport.ExecSession {
	return transport.NewStreamSession(strings.NewReader(stdout), nil, func() transport.Result {
		return transport.Result{Succeeded: succeeded}
	}, nil)
}

// Encryption is a fixed-value transport.Encryption double.
type Encryption struct {
	Public  string
	Private string
}

func (e Encryption) PublicKeyPath() string  { return e.Public }
func (e Encryption) PrivateKeyPath() string { return e.Private }

// Definition is an in-memory transport.BackupDefinition double, grounded on
// create_example_fs_definition's collection_id/encryption/meta fixture.
type Definition struct {
	Collection string
	Enc        *Encryption
	Meta       map[string]string
}

// NewDefinition mirrors create_example_fs_definition's example fixture:
// a fixed collection id and a private-key-only encryption identity.
func NewDefinition() *Definition {
	return &Definition{
		Collection: "1111-2222-3333-4444",
		Enc:        &Encryption{Private: "test/env/config_factory_test/gpg-key.asc"},
		Meta:       map[string]string{},
	}
}

func (d *Definition) CollectionID() string { return d.Collection }

func (d *Definition) Encryption() transport.Encryption {
	if d.Enc == nil {
		return nil
	}

	return *d.Enc
}

func (d *Definition) Metadata() map[string]string { return d.Meta }

var _ transport.BackupDefinition = (*Definition)(nil)

// Transport is a scriptable transport.Transport double: each lifecycle
// method appends its name to Calls and returns whatever the corresponding
// *Err field holds, so tests can assert ordering and failure propagation
// the way run_transport exercises a real transport end-to-end.
type Transport struct {
	Calls []string

	PrepareErr  error
	ScheduleErr error
	ReleaseErr  error

	Session transport.ExecSession
}

func (t *Transport) Name() string { return "fake" }

func (t *Transport) PrepareEnvironment(_ context.Context, _ []transport.RequiredBinary, _ transport.BackupDefinition) error {
	t.Calls = append(t.Calls, "prepare")

	return t.PrepareErr
}

func (t *Transport) Schedule(
	_ context.Context, _ string, _ transport.BackupDefinition, _ bool, _ string,
) (transport.ExecSession, error) {
	t.Calls = append(t.Calls, "schedule")

	if t.ScheduleErr != nil {
		return nil, t.ScheduleErr
	}

	return t.Session, nil
}

func (t *Transport) Release(_ context.Context) error {
	t.Calls = append(t.Calls, "release")

	return t.ReleaseErr
}

var _ transport.Transport = (*Transport)(nil)

// Run mirrors bahub/testing.py's run_transport: scopes the transport
// (prepare → schedule → release), assembling a mocked command the same way
// the Python helper hardcodes command="--mocked--", is_backup=True,
// version="", then hands the resulting session to wait.
func Run(ctx context.Context, t transport.Transport, definition transport.BackupDefinition, wait func(transport.ExecSession) error) error {
	return transport.Scoped(ctx, t, nil, definition, func(scoped transport.Transport) error {
		session, err := scoped.Schedule(ctx, "--mocked--", definition, true, "")
		if err != nil {
			return err
		}

		return wait(session)
	})
}
