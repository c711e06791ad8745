// Package whistlerv1 contains API Schema definitions for the whistler.io
// v1 API group.
// +kubebuilder:object:generate=true
// +groupName=whistler.io
package whistlerv1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

var (
	// GroupVersion is the group version used to register these objects.
	// IMPORTANT: must match the CRD manifests (whistler.io/v1).
	GroupVersion = schema.GroupVersion{Group: "whistler.io", Version: "v1"}

	// SchemeBuilder is used to add Go types to the GroupVersionKind scheme.
	SchemeBuilder = &scheme.Builder{GroupVersion: GroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)
