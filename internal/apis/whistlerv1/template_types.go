package whistlerv1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// TemplateResources mirrors the optional cpu/memory/gpu knobs of a
// WhistlerTemplate. Unlike a corev1.ResourceRequirements this is a plain
// string triple: the reconciler is the only place that turns it into
// Kubernetes resource quantities, so invalid values surface there.
type TemplateResources struct {
	// +optional
	CPU string `json:"cpu,omitempty"`
	// +optional
	Memory string `json:"memory,omitempty"`
	// +optional
	GPU string `json:"gpu,omitempty"`
}

// TemplateSpec defines a blueprint instances reference.
type TemplateSpec struct {
	// Owner is "system" for shared templates, or a username for a
	// user-private template.
	// +kubebuilder:validation:Required
	Owner string `json:"owner"`

	// Image is the container image run for instances of this template.
	// +kubebuilder:validation:Required
	Image string `json:"image"`

	// +optional
	Resources TemplateResources `json:"resources,omitempty"`

	// +optional
	NodeSelector map[string]string `json:"nodeSelector,omitempty"`

	// PersonalMountPath is advisory only; the reconciled pod always
	// mounts the per-user volume at /data (see SPEC_FULL.md Open Question
	// decision 1).
	// +optional
	PersonalMountPath string `json:"personalMountPath,omitempty"`

	// Volumes maps a volume name to its declared mount path.
	// +optional
	Volumes map[string]string `json:"volumes,omitempty"`

	// +optional
	Description string `json:"description,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:resource:shortName=wt
// +kubebuilder:printcolumn:name="Owner",type=string,JSONPath=`.spec.owner`
// +kubebuilder:printcolumn:name="Image",type=string,JSONPath=`.spec.image`

// WhistlerTemplate is the Schema for the whistlertemplates API.
type WhistlerTemplate struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec TemplateSpec `json:"spec,omitempty"`
}

// +kubebuilder:object:root=true

// WhistlerTemplateList contains a list of WhistlerTemplate.
type WhistlerTemplateList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []WhistlerTemplate `json:"items"`
}

func init() {
	SchemeBuilder.Register(&WhistlerTemplate{}, &WhistlerTemplateList{})
}
