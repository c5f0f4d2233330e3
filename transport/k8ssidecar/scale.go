package k8ssidecar

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/riotkit-org/br-backup-controller/transport"
)

// scalePodOwner walks the original pod's ownerReferences and scales down
// every Deployment it finds, recursing through ReplicaSets along the way,
// grounded on _scale_pod_owner/_scale_by_owner_references.
func (t *Transport) scalePodOwner(ctx context.Context, podName string) error {
	pod, err := t.clientset.CoreV1().Pods(t.namespace).Get(ctx, podName, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("reading pod %q for owner scan: %w", podName, err)
	}

	owners := pod.OwnerReferences
	if len(owners) == 0 {
		t.logger.Warn("pod.owner.none", "pod", podName)

		return nil
	}

	return t.scaleByOwnerReferences(ctx, owners)
}

func (t *Transport) scaleByOwnerReferences(ctx context.Context, owners []metav1.OwnerReference) error {
	for _, owner := range owners {
		switch owner.Kind {
		case "ReplicaSet":
			rs, err := t.clientset.AppsV1().ReplicaSets(t.namespace).Get(ctx, owner.Name, metav1.GetOptions{})
			if err != nil {
				return fmt.Errorf("reading replicaset %q: %w", owner.Name, err)
			}

			if err := t.scaleByOwnerReferences(ctx, rs.OwnerReferences); err != nil {
				return err
			}

		case "Deployment":
			if err := t.scaleDownDeployment(ctx, owner.Name); err != nil {
				return err
			}

		default:
			t.logger.Warn("pod.owner.unsupported", "kind", owner.Kind, "name", owner.Name)
		}
	}

	return nil
}

func (t *Transport) scaleDownDeployment(ctx context.Context, name string) error {
	deployment, err := t.clientset.AppsV1().Deployments(t.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("reading deployment %q: %w", name, err)
	}

	var currentReplicas int32
	if deployment.Spec.Replicas != nil {
		currentReplicas = *deployment.Spec.Replicas
	}

	t.replicasToScale = append(t.replicasToScale, ReplicaToScale{
		Kind:      "Deployment",
		Name:      name,
		Namespace: t.namespace,
		Replicas:  currentReplicas,
	})

	return t.scaleDeployment(ctx, name, 0)
}

// scaleDeployment issues the scale and waits (up to scaleWaitTimeout, with
// 1s ticks) for the Deployment to report the desired replica count, mirroring
// _scale's range(0, 3600) poll loop.
func (t *Transport) scaleDeployment(ctx context.Context, name string, replicas int32) error {
	t.logger.Info("deployment.scale", "name", name, "namespace", t.namespace, "replicas", replicas)

	scale, err := t.clientset.AppsV1().Deployments(t.namespace).GetScale(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("reading scale for deployment %q: %w", name, err)
	}

	scale.Spec.Replicas = replicas

	if _, err := t.clientset.AppsV1().Deployments(t.namespace).UpdateScale(ctx, name, scale, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("scaling deployment %q to %d: %w", name, replicas, err)
	}

	deadline := time.Now().Add(t.scaleWaitTimeout)

	for time.Now().Before(deadline) {
		current, err := t.clientset.AppsV1().Deployments(t.namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("reading deployment %q: %w", name, err)
		}

		var currentReplicas int32
		if current.Spec.Replicas != nil {
			currentReplicas = *current.Spec.Replicas
		}

		if currentReplicas == replicas {
			t.logger.Info("deployment.scale.applied", "name", name, "replicas", replicas)

			return nil
		}

		t.logger.Debug("deployment.scale.waiting", "name", name, "want", replicas, "current", currentReplicas)

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for deployment %q to scale: %w", name, ctx.Err())
		case <-time.After(time.Second):
		}
	}

	return &transport.CannotScaleError{Name: name, Namespace: t.namespace, Desired: replicas}
}

// scaleBack restores every recorded controller to its original replica
// count (§4.8 release step 2). It scales every entry even if one fails,
// returning the first error encountered.
func (t *Transport) scaleBack(ctx context.Context) error {
	var firstErr error

	for _, entry := range t.replicasToScale {
		if err := t.scaleDeployment(ctx, entry.Name, entry.Replicas); err != nil {
			t.logger.Error("deployment.scale.restore.failed", "name", entry.Name, "error", err)

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	t.replicasToScale = nil

	return firstErr
}
