package k8ssidecar

import (
	"context"
	"fmt"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/riotkit-org/br-backup-controller/transport"
)

const originalPodLabel = "riotkit.org/original-pod"

// createBackupPod creates the temporary sidecar pod named
// "<originalPodName><podSuffix>", mounting the inherited volumes, grounded
// on _create_pod/_create_backup_pod_definition. A creation conflict (pod
// already exists/terminating) surfaces as PodCreationConflictError; other
// API errors propagate as-is.
func (t *Transport) createBackupPod(ctx context.Context, originalPodName string, volumes []corev1.Volume, mounts []corev1.VolumeMount) error {
	t.logger.Info("sidecar.pod.create", "name", t.temporaryPodName)

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      t.temporaryPodName,
			Namespace: t.namespace,
			Labels: map[string]string{
				originalPodLabel: originalPodName,
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:         t.temporaryPodName,
					Image:        t.image,
					Command:      []string{"/bin/sh"},
					Args:         []string{"-c", "sleep " + strconv.Itoa(t.timeoutSeconds)},
					VolumeMounts: mounts,
				},
			},
			Volumes: volumes,
		},
	}

	_, err := t.clientset.CoreV1().Pods(t.namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsConflict(err) || apierrors.IsAlreadyExists(err) {
			return &transport.PodCreationConflictError{Name: t.temporaryPodName}
		}

		return fmt.Errorf("creating sidecar pod %q: %w", t.temporaryPodName, err)
	}

	return nil
}
