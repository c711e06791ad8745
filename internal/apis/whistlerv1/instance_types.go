package whistlerv1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// InstanceSpec is a declarative request for one running sandbox pod.
type InstanceSpec struct {
	// Owner is the username this instance's namespace and pod belong to.
	// +kubebuilder:validation:Required
	Owner string `json:"owner"`

	// TemplateRef is the fullName of the Template to instantiate.
	// +kubebuilder:validation:Required
	TemplateRef string `json:"templateRef"`

	// Preemptible marks the pod for the whistler-preemptible priority class.
	// +optional
	Preemptible bool `json:"preemptible,omitempty"`
}

// InstanceStatus is intentionally near-empty: pod state is never cached
// on the CR, it is re-derived by InstanceStore on every read by joining
// against the live pod (spec.md §4.3 - InstanceStore owns no durable
// state). The one field kept here is informational only.
type InstanceStatus struct {
	// +optional
	LastReconciledGeneration int64 `json:"lastReconciledGeneration,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:shortName=wi
// +kubebuilder:printcolumn:name="Owner",type=string,JSONPath=`.spec.owner`
// +kubebuilder:printcolumn:name="Template",type=string,JSONPath=`.spec.templateRef`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// WhistlerInstance is the Schema for the whistlerinstances API.
type WhistlerInstance struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   InstanceSpec   `json:"spec,omitempty"`
	Status InstanceStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// WhistlerInstanceList contains a list of WhistlerInstance.
type WhistlerInstanceList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []WhistlerInstance `json:"items"`
}

func init() {
	SchemeBuilder.Register(&WhistlerInstance{}, &WhistlerInstanceList{})
}

// LastConnectAnnotation is patched onto an Instance to nudge the
// Reconciler when a gateway session finds the pod missing or not yet
// running, per spec.md §4.2.
const LastConnectAnnotation = "whistler.io/last-connect"
