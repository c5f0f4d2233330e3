package transport

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (§7). Callers use errors.Is/errors.As to classify a
// failure without depending on a concrete transport implementation, mirroring
// the teacher's orchestra.ErrContainerNotFound / docker.ErrContainerNotFound
// sentinel style rather than a Python-style exception hierarchy.
var (
	// ErrConfigurationError is raised during construction when a
	// TransportSpec is missing a required key or carries an invalid value.
	ErrConfigurationError = errors.New("configuration error")

	// ErrContainerNotFound is raised by the docker-exec transport's
	// pre-flight when the named container does not exist.
	ErrContainerNotFound = errors.New("container not found")

	// ErrBufferingError indicates an output stream terminated earlier than
	// expected while watching or reading an exec session.
	ErrBufferingError = errors.New("buffering error")

	// ErrBackupProcessError indicates the backup-maker binary itself
	// reported failure while taking a backup.
	ErrBackupProcessError = errors.New("backup process error")

	// ErrBackupRestoreError indicates the backup-maker binary itself
	// reported failure while restoring a backup.
	ErrBackupRestoreError = errors.New("backup restore error")
)

// ContainerNotRunningError is raised when a docker-exec target container
// exists but is not in the running state.
type ContainerNotRunningError struct {
	Status string
}

func (e *ContainerNotRunningError) Error() string {
	return fmt.Sprintf("container not running (status: %s)", e.Status)
}

// PodNotFoundError is raised when no pod matches a selector in a namespace.
type PodNotFoundError struct {
	Selector  string
	Namespace string
}

func (e *PodNotFoundError) Error() string {
	return fmt.Sprintf("pod not found (selector: %q, namespace: %q)", e.Selector, e.Namespace)
}

// PodReadinessTimeoutError is raised when a pod does not become ready within
// the configured timeout.
type PodReadinessTimeoutError struct {
	Name      string
	Namespace string
}

func (e *PodReadinessTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for pod readiness (pod: %q, namespace: %q)", e.Name, e.Namespace)
}

// PodCreationConflictError is raised when creating the sidecar pod fails
// because a pod of that name already exists.
type PodCreationConflictError struct {
	Name string
}

func (e *PodCreationConflictError) Error() string {
	return fmt.Sprintf("pod already exists: %q", e.Name)
}

// ContainerCreationConflictError is raised when creating the sidecar
// container fails because a container of that name already exists, usually
// left behind by a previous run that did not reach Release.
type ContainerCreationConflictError struct {
	Name string
}

func (e *ContainerCreationConflictError) Error() string {
	return fmt.Sprintf("container already exists: %q", e.Name)
}

// CannotScaleError is raised when a workload controller cannot be scaled to
// the desired replica count, or the scale is never observed within the
// allotted wait.
type CannotScaleError struct {
	Name      string
	Namespace string
	Desired   int32
}

func (e *CannotScaleError) Error() string {
	return fmt.Sprintf("cannot scale %q (namespace: %q) to %d replicas", e.Name, e.Namespace, e.Desired)
}

// ExecError is raised when a remote command (executed through a Filesystem
// or a Transport's Schedule) fails: either a non-zero exit code, or — for
// the sentinel-wrapped remote filesystem operations (§4.1) — a missing
// success sentinel. Output carries everything captured from the command so
// the caller can log it at debug level.
type ExecError struct {
	Output string
}

func (e *ExecError) Error() string {
	return "remote command failed: " + e.Output
}
