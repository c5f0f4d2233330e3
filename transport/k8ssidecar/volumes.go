package k8ssidecar

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// copyVolumesSpecFromPod reads the original pod's volumes and the union of
// its containers' volumeMounts, deduplicated by mountPath (first wins),
// grounded on _copy_volumes_specification_from_existing_pod.
//
// The Python source builds an `_already_added_mounts` list to skip
// duplicates but never appends to it, so the check never fires and
// overlapping mounts silently double up; this port actually populates the
// dedup set (the fix spec.md §9 requires) using lo.UniqBy, warning once per
// duplicate mountPath the way the original intended to.
func (t *Transport) copyVolumesSpecFromPod(ctx context.Context, podName string) ([]corev1.Volume, []corev1.VolumeMount, error) {
	pod, err := t.clientset.CoreV1().Pods(t.namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("reading pod %q for volume inheritance: %w", podName, err)
	}

	var allMounts []corev1.VolumeMount

	for _, container := range pod.Spec.Containers {
		for _, mount := range container.VolumeMounts {
			allMounts = append(allMounts, mount)
		}
	}

	mounts := lo.UniqBy(allMounts, func(m corev1.VolumeMount) string { return m.MountPath })

	if len(mounts) < len(allMounts) {
		counts := map[string]int{}
		for _, mount := range allMounts {
			counts[mount.MountPath]++
		}

		for path, count := range counts {
			if count > 1 {
				t.logger.Warn("volume.mount.duplicate", "mountPath", path, "occurrences", count)
			}
		}
	}

	return pod.Spec.Volumes, mounts, nil
}
