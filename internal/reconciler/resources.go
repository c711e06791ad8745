package reconciler

import (
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	whistlerv1 "github.com/marma/whistler/internal/apis/whistlerv1"
	"github.com/marma/whistler/internal/instancestore"
	"github.com/marma/whistler/internal/model"
)

// PreemptiblePriorityClass is the PriorityClass instances declared
// preemptible are scheduled against.
const PreemptiblePriorityClass = "whistler-preemptible"

// namespaceFor builds the Namespace object a user's instances live in.
func namespaceFor(owner string) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: instancestore.PerUserNamespace(model.Owner(owner)),
			Labels: map[string]string{
				"whistler.io/user":    owner,
				"whistler.io/managed": "true",
			},
		},
	}
}

// isolationPolicyFor builds the deny-all-ingress NetworkPolicy every
// per-user namespace carries. An empty PodSelector selects every pod in
// the namespace; an empty Ingress rule list admits nothing.
func isolationPolicyFor(ns string) *networkingv1.NetworkPolicy {
	return &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{Name: instancestore.IsolatePolicyName, Namespace: ns},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{},
			PolicyTypes: []networkingv1.PolicyType{networkingv1.PolicyTypeIngress},
			Ingress:     []networkingv1.NetworkPolicyIngressRule{},
		},
	}
}

// userPVCFor builds the single ReadWriteOnce PVC a user's instances
// share. It is never deleted by the Reconciler.
func userPVCFor(owner, ns string) *corev1.PersistentVolumeClaim {
	return &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      instancestore.PVCName(model.Owner(owner)),
			Namespace: ns,
			Labels:    map[string]string{"app": "whistler", "user": owner},
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: resource.MustParse("10Gi"),
				},
			},
		},
	}
}

// podFor constructs the placeholder pod backing one Instance. The
// container runs "sleep 3600" — the actual interactive workload is
// attached out-of-band via exec, so the container process itself only
// needs to stay alive.
func podFor(inst *whistlerv1.WhistlerInstance, tmpl *whistlerv1.WhistlerTemplate, ns string) *corev1.Pod {
	owner := inst.Spec.Owner
	shortName := inst.Name
	if len(owner)+1 < len(inst.Name) && inst.Name[:len(owner)+1] == owner+"-" {
		shortName = inst.Name[len(owner)+1:]
	}

	resources := corev1.ResourceRequirements{
		Requests: corev1.ResourceList{},
		Limits:   corev1.ResourceList{},
	}
	if tmpl.Spec.Resources.CPU != "" {
		q := resource.MustParse(tmpl.Spec.Resources.CPU)
		resources.Requests[corev1.ResourceCPU] = q
		resources.Limits[corev1.ResourceCPU] = q
	}
	if tmpl.Spec.Resources.Memory != "" {
		q := resource.MustParse(tmpl.Spec.Resources.Memory)
		resources.Requests[corev1.ResourceMemory] = q
		resources.Limits[corev1.ResourceMemory] = q
	}
	if tmpl.Spec.Resources.GPU != "" {
		resources.Limits[corev1.ResourceName("nvidia.com/gpu")] = resource.MustParse(tmpl.Spec.Resources.GPU)
	}

	podSpec := corev1.PodSpec{
		Hostname:     shortName,
		NodeSelector: tmpl.Spec.NodeSelector,
		Containers: []corev1.Container{
			{
				Name:      "main",
				Image:     tmpl.Spec.Image,
				Command:   []string{"sleep", "3600"},
				Resources: resources,
				VolumeMounts: []corev1.VolumeMount{
					{Name: "data", MountPath: "/data"},
				},
			},
		},
		Volumes: []corev1.Volume{
			{
				Name: "data",
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
						ClaimName: instancestore.PVCName(model.Owner(owner)),
					},
				},
			},
		},
	}
	if inst.Spec.Preemptible {
		podSpec.PriorityClassName = PreemptiblePriorityClass
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      inst.Name,
			Namespace: ns,
			Labels: map[string]string{
				"app":      "instance-app",
				"instance": inst.Name,
				"user":     owner,
			},
			OwnerReferences: []metav1.OwnerReference{
				*metav1.NewControllerRef(inst, whistlerv1.GroupVersion.WithKind("WhistlerInstance")),
			},
		},
		Spec: podSpec,
	}
}
