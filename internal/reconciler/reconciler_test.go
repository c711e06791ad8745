package reconciler_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"

	whistlerv1 "github.com/marma/whistler/internal/apis/whistlerv1"
	"github.com/marma/whistler/internal/instancestore"
	"github.com/marma/whistler/internal/reconciler"
)

var _ = Describe("InstanceReconciler", func() {
	const ns = "whistler-user-alice"

	req := func(name string) ctrl.Request {
		return ctrl.Request{NamespacedName: types.NamespacedName{Name: name, Namespace: ns}}
	}

	It("defers reconciliation when the referenced template is missing", func() {
		inst := &whistlerv1.WhistlerInstance{
			ObjectMeta: metav1.ObjectMeta{Name: "alice-dev1", Namespace: ns},
			Spec:       whistlerv1.InstanceSpec{Owner: "alice", TemplateRef: "alice-small"},
		}
		c := newFakeClient(inst)
		r := &reconciler.InstanceReconciler{Client: c}

		result, err := r.Reconcile(context.Background(), req("alice-dev1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(Equal(10 * time.Second))
	})

	It("ignores an instance that no longer exists", func() {
		c := newFakeClient()
		r := &reconciler.InstanceReconciler{Client: c}

		result, err := r.Reconcile(context.Background(), req("ghost"))
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(ctrl.Result{}))
	})

	It("materializes namespace, isolation policy, pvc and pod for a valid instance", func() {
		tmpl := &whistlerv1.WhistlerTemplate{
			ObjectMeta: metav1.ObjectMeta{Name: "alice-small", Namespace: ns},
			Spec: whistlerv1.TemplateSpec{
				Owner: "alice",
				Image: "ubuntu:22.04",
				Resources: whistlerv1.TemplateResources{
					CPU:    "500m",
					Memory: "512Mi",
				},
			},
		}
		inst := &whistlerv1.WhistlerInstance{
			ObjectMeta: metav1.ObjectMeta{Name: "alice-dev1", Namespace: ns},
			Spec:       whistlerv1.InstanceSpec{Owner: "alice", TemplateRef: "alice-small", Preemptible: true},
		}
		c := newFakeClient(tmpl, inst)
		r := &reconciler.InstanceReconciler{Client: c}

		_, err := r.Reconcile(context.Background(), req("alice-dev1"))
		Expect(err).NotTo(HaveOccurred())

		var namespace corev1.Namespace
		Expect(c.Get(context.Background(), types.NamespacedName{Name: ns}, &namespace)).To(Succeed())
		Expect(namespace.Labels).To(HaveKeyWithValue("whistler.io/user", "alice"))

		var policy networkingv1.NetworkPolicy
		Expect(c.Get(context.Background(), types.NamespacedName{Name: instancestore.IsolatePolicyName, Namespace: ns}, &policy)).To(Succeed())
		Expect(policy.Spec.Ingress).To(BeEmpty())
		Expect(policy.Spec.PolicyTypes).To(ConsistOf(networkingv1.PolicyTypeIngress))

		var pvc corev1.PersistentVolumeClaim
		Expect(c.Get(context.Background(), types.NamespacedName{Name: instancestore.PVCName("alice"), Namespace: ns}, &pvc)).To(Succeed())
		Expect(pvc.Spec.AccessModes).To(ConsistOf(corev1.ReadWriteOnce))

		var pod corev1.Pod
		Expect(c.Get(context.Background(), types.NamespacedName{Name: "alice-dev1", Namespace: ns}, &pod)).To(Succeed())
		Expect(pod.Labels).To(HaveKeyWithValue("instance", "alice-dev1"))
		Expect(pod.Labels).To(HaveKeyWithValue("user", "alice"))
		Expect(pod.Spec.Containers[0].Image).To(Equal("ubuntu:22.04"))
		Expect(pod.Spec.Containers[0].Command).To(Equal([]string{"sleep", "3600"}))
		Expect(pod.Spec.Hostname).To(Equal("dev1"))
		Expect(pod.Spec.PriorityClassName).To(Equal(reconciler.PreemptiblePriorityClass))
		Expect(pod.OwnerReferences).To(HaveLen(1))
		Expect(pod.OwnerReferences[0].Name).To(Equal("alice-dev1"))
	})

	It("defers reconciliation when the existing pod is still terminating", func() {
		tmpl := &whistlerv1.WhistlerTemplate{
			ObjectMeta: metav1.ObjectMeta{Name: "alice-small", Namespace: ns},
			Spec:       whistlerv1.TemplateSpec{Owner: "alice", Image: "ubuntu:22.04"},
		}
		inst := &whistlerv1.WhistlerInstance{
			ObjectMeta: metav1.ObjectMeta{Name: "alice-dev3", Namespace: ns},
			Spec:       whistlerv1.InstanceSpec{Owner: "alice", TemplateRef: "alice-small"},
		}
		now := metav1.Now()
		terminatingPod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:              "alice-dev3",
				Namespace:         ns,
				DeletionTimestamp: &now,
				Finalizers:        []string{"whistler.io/test-hold"},
			},
		}
		c := newFakeClient(tmpl, inst, terminatingPod)
		r := &reconciler.InstanceReconciler{Client: c}

		result, err := r.Reconcile(context.Background(), req("alice-dev3"))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(Equal(2 * time.Second))
	})

	It("is idempotent across repeated reconciliations", func() {
		tmpl := &whistlerv1.WhistlerTemplate{
			ObjectMeta: metav1.ObjectMeta{Name: "alice-small", Namespace: ns},
			Spec:       whistlerv1.TemplateSpec{Owner: "alice", Image: "ubuntu:22.04"},
		}
		inst := &whistlerv1.WhistlerInstance{
			ObjectMeta: metav1.ObjectMeta{Name: "alice-dev2", Namespace: ns},
			Spec:       whistlerv1.InstanceSpec{Owner: "alice", TemplateRef: "alice-small"},
		}
		c := newFakeClient(tmpl, inst)
		r := &reconciler.InstanceReconciler{Client: c}

		_, err := r.Reconcile(context.Background(), req("alice-dev2"))
		Expect(err).NotTo(HaveOccurred())
		_, err = r.Reconcile(context.Background(), req("alice-dev2"))
		Expect(err).NotTo(HaveOccurred())
	})
})
