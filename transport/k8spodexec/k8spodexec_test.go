package k8spodexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	executil "k8s.io/client-go/util/exec"

	"github.com/riotkit-org/br-backup-controller/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestTransport(clientset *fake.Clientset, timeout time.Duration) *Transport {
	return &Transport{
		Logger:    discardLogger(),
		Clientset: clientset,
		Namespace: "prod",
		Selector:  "app=web",
		Timeout:   timeout,
	}
}

func readyPod(name string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "prod", Labels: map[string]string{"app": "web"}},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{State: corev1.ContainerState{Running: &corev1.ContainerStateRunning{}}},
			},
		},
	}
}

func TestFindPodName_ReturnsFirstMatch(t *testing.T) {
	assert := NewWithT(t)

	clientset := fake.NewSimpleClientset(readyPod("web-0"))
	target := newTestTransport(clientset, time.Second)

	name, err := target.FindPodName(context.Background(), "app=web", "prod")
	assert.Expect(err).NotTo(HaveOccurred())
	assert.Expect(name).To(Equal("web-0"))
}

func TestFindPodName_NotFoundReturnsTypedError(t *testing.T) {
	assert := NewWithT(t)

	clientset := fake.NewSimpleClientset()
	target := newTestTransport(clientset, time.Second)

	_, err := target.FindPodName(context.Background(), "app=web", "prod")
	assert.Expect(err).To(HaveOccurred())

	var notFound *transport.PodNotFoundError
	assert.Expect(errors.As(err, &notFound)).To(BeTrue())
	assert.Expect(notFound.Selector).To(Equal("app=web"))
	assert.Expect(notFound.Namespace).To(Equal("prod"))
}

func TestWaitForPodReady_SucceedsWhenPhaseAndContainersReady(t *testing.T) {
	assert := NewWithT(t)

	clientset := fake.NewSimpleClientset(readyPod("web-0"))
	target := newTestTransport(clientset, time.Second)

	err := target.WaitForPodReady(context.Background(), "web-0", "prod")
	assert.Expect(err).NotTo(HaveOccurred())
}

func TestWaitForPodReady_TimesOutReturnsTypedError(t *testing.T) {
	assert := NewWithT(t)

	pending := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web-0", Namespace: "prod"},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	}

	clientset := fake.NewSimpleClientset(pending)
	target := newTestTransport(clientset, time.Nanosecond)

	err := target.WaitForPodReady(context.Background(), "web-0", "prod")
	assert.Expect(err).To(HaveOccurred())

	var timeout *transport.PodReadinessTimeoutError
	assert.Expect(errors.As(err, &timeout)).To(BeTrue())
	assert.Expect(timeout.Name).To(Equal("web-0"))
}

func TestIsPhaseReady(t *testing.T) {
	assert := NewWithT(t)

	assert.Expect(isPhaseReady(corev1.PodRunning)).To(BeTrue())
	assert.Expect(isPhaseReady(corev1.PodPending)).To(BeFalse())
	assert.Expect(isPhaseReady(corev1.PodFailed)).To(BeFalse())
}

func TestRelease_SkipsCleanupWhenPodIsGone(t *testing.T) {
	assert := NewWithT(t)

	target := newTestTransport(fake.NewSimpleClientset(), time.Second)
	assert.Expect(target.Release(context.Background())).NotTo(HaveOccurred())
}

func TestRelease_NeverFailsEvenWhenKeyCleanupFails(t *testing.T) {
	assert := NewWithT(t)

	clientset := fake.NewSimpleClientset(readyPod("web-0"))
	target := newTestTransport(clientset, time.Second)

	// The fake clientset cannot actually serve the exec subresource, so the
	// best-effort key deletion fails; Release must still report success.
	assert.Expect(target.Release(context.Background())).NotTo(HaveOccurred())
}

func TestName(t *testing.T) {
	assert := NewWithT(t)

	target := newTestTransport(fake.NewSimpleClientset(), time.Second)
	assert.Expect(target.Name()).To(Equal("k8s-pod-exec"))
}

func TestChannelSucceeded(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is success", err: nil, want: true},
		{name: "zero exit code is success", err: executil.CodeExitError{Code: 0}, want: true},
		{name: "non-zero exit code is failure", err: executil.CodeExitError{Code: 7}, want: false},
		{
			name: "wrapped exit code is still classified",
			err:  fmt.Errorf("stream closed: %w", executil.CodeExitError{Code: 3}),
			want: false,
		},
		{name: "cause without a reason is failure", err: errors.New("channel closed unexpectedly"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert := NewWithT(t)

			assert.Expect(channelSucceeded(tc.err)).To(Equal(tc.want))
		})
	}
}
