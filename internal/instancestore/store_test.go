package instancestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	whistlerv1 "github.com/marma/whistler/internal/apis/whistlerv1"
	"github.com/marma/whistler/internal/model"
)

func newFakeClient(objs ...client.Object) client.Client {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	_ = whistlerv1.AddToScheme(scheme)
	return fake.NewClientBuilder().WithScheme(scheme).WithObjects(objs...).Build()
}

func TestListTemplatesUnionsSystemAndUserSourcesSystemFirst(t *testing.T) {
	sys := &whistlerv1.WhistlerTemplate{
		ObjectMeta: metav1.ObjectMeta{Name: "small", Namespace: DefaultSystemNamespace},
		Spec:       whistlerv1.TemplateSpec{Owner: "system", Image: "ubuntu:22.04"},
	}
	user := &whistlerv1.WhistlerTemplate{
		ObjectMeta: metav1.ObjectMeta{Name: "alice-custom", Namespace: "whistler-user-alice"},
		Spec:       whistlerv1.TemplateSpec{Owner: "alice", Image: "alice/custom:latest"},
	}
	c := newFakeClient(sys, user)
	s := New(c, DefaultSystemNamespace)

	templates, err := s.ListTemplates(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "system", templates[0].Source)
	assert.Equal(t, model.ShortName("small"), templates[0].Name)
	assert.Equal(t, "user", templates[1].Source)
	assert.Equal(t, model.ShortName("custom"), templates[1].Name)
}

func TestListInstancesJoinsPodStatusByLabel(t *testing.T) {
	inst := &whistlerv1.WhistlerInstance{
		ObjectMeta: metav1.ObjectMeta{Name: "alice-dev1", Namespace: "whistler-user-alice"},
		Spec:       whistlerv1.InstanceSpec{Owner: "alice", TemplateRef: "alice-small"},
	}
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "alice-dev1",
			Namespace: "whistler-user-alice",
			Labels:    map[string]string{"instance": "alice-dev1", "user": "alice"},
		},
		Status: corev1.PodStatus{Phase: corev1.PodRunning, PodIP: "10.0.0.5"},
	}
	c := newFakeClient(inst, pod)
	s := New(c, DefaultSystemNamespace)

	instances, err := s.ListInstances(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, model.StatusRunning, instances[0].Status)
	assert.Equal(t, "10.0.0.5", instances[0].PodIP)
	assert.Equal(t, model.ShortName("dev1"), instances[0].Name)
}

func TestListInstancesReportsStoppedWhenPodAbsent(t *testing.T) {
	inst := &whistlerv1.WhistlerInstance{
		ObjectMeta: metav1.ObjectMeta{Name: "alice-dev2", Namespace: "whistler-user-alice"},
		Spec:       whistlerv1.InstanceSpec{Owner: "alice", TemplateRef: "alice-small"},
	}
	c := newFakeClient(inst)
	s := New(c, DefaultSystemNamespace)

	instances, err := s.ListInstances(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, model.StatusStopped, instances[0].Status)
}

func TestCreateInstanceEnsuresNamespaceAndPolicy(t *testing.T) {
	c := newFakeClient()
	s := New(c, DefaultSystemNamespace)

	err := s.CreateInstance(context.Background(), "bob", "bob-small", "work", false)
	require.NoError(t, err)

	var ns corev1.Namespace
	require.NoError(t, c.Get(context.Background(), client.ObjectKey{Name: "whistler-user-bob"}, &ns))

	var policy networkingv1.NetworkPolicy
	require.NoError(t, c.Get(context.Background(), client.ObjectKey{Namespace: "whistler-user-bob", Name: IsolatePolicyName}, &policy))
	assert.Empty(t, policy.Spec.Ingress)

	var inst whistlerv1.WhistlerInstance
	require.NoError(t, c.Get(context.Background(), client.ObjectKey{Namespace: "whistler-user-bob", Name: "bob-work"}, &inst))
	assert.Equal(t, "bob-small", inst.Spec.TemplateRef)
}

func TestDeleteInstanceIsIdempotent(t *testing.T) {
	c := newFakeClient()
	s := New(c, DefaultSystemNamespace)

	err := s.DeleteInstance(context.Background(), "bob", "work")
	assert.NoError(t, err)
}

func TestPatchInstanceAnnotationSetsKey(t *testing.T) {
	inst := &whistlerv1.WhistlerInstance{
		ObjectMeta: metav1.ObjectMeta{Name: "bob-work", Namespace: "whistler-user-bob"},
		Spec:       whistlerv1.InstanceSpec{Owner: "bob", TemplateRef: "bob-small"},
	}
	c := newFakeClient(inst)
	s := New(c, DefaultSystemNamespace)

	require.NoError(t, s.PatchInstanceAnnotation(context.Background(), "bob", "work", "whistler.io/last-connect", "12345"))

	var updated whistlerv1.WhistlerInstance
	require.NoError(t, c.Get(context.Background(), client.ObjectKey{Namespace: "whistler-user-bob", Name: "bob-work"}, &updated))
	assert.Equal(t, "12345", updated.Annotations["whistler.io/last-connect"])
}
