package whistlerv1

import (
	runtime "k8s.io/apimachinery/pkg/runtime"
)

// These DeepCopy methods are hand-written rather than produced by
// controller-gen: this exercise never invokes the Go toolchain (and so
// never runs `controller-gen object:headerFile=...`). They follow the
// exact shape controller-gen emits so swapping in a generated
// zz_generated.deepcopy.go later is a no-op.

func (in *TemplateResources) DeepCopyInto(out *TemplateResources) {
	*out = *in
}

func (in *TemplateResources) DeepCopy() *TemplateResources {
	if in == nil {
		return nil
	}
	out := new(TemplateResources)
	in.DeepCopyInto(out)
	return out
}

func (in *TemplateSpec) DeepCopyInto(out *TemplateSpec) {
	*out = *in
	out.Resources = in.Resources
	if in.NodeSelector != nil {
		out.NodeSelector = make(map[string]string, len(in.NodeSelector))
		for k, v := range in.NodeSelector {
			out.NodeSelector[k] = v
		}
	}
	if in.Volumes != nil {
		out.Volumes = make(map[string]string, len(in.Volumes))
		for k, v := range in.Volumes {
			out.Volumes[k] = v
		}
	}
}

func (in *TemplateSpec) DeepCopy() *TemplateSpec {
	if in == nil {
		return nil
	}
	out := new(TemplateSpec)
	in.DeepCopyInto(out)
	return out
}

func (in *WhistlerTemplate) DeepCopyInto(out *WhistlerTemplate) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
}

func (in *WhistlerTemplate) DeepCopy() *WhistlerTemplate {
	if in == nil {
		return nil
	}
	out := new(WhistlerTemplate)
	in.DeepCopyInto(out)
	return out
}

func (in *WhistlerTemplate) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func (in *WhistlerTemplateList) DeepCopyInto(out *WhistlerTemplateList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]WhistlerTemplate, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *WhistlerTemplateList) DeepCopy() *WhistlerTemplateList {
	if in == nil {
		return nil
	}
	out := new(WhistlerTemplateList)
	in.DeepCopyInto(out)
	return out
}

func (in *WhistlerTemplateList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func (in *InstanceSpec) DeepCopyInto(out *InstanceSpec) {
	*out = *in
}

func (in *InstanceSpec) DeepCopy() *InstanceSpec {
	if in == nil {
		return nil
	}
	out := new(InstanceSpec)
	in.DeepCopyInto(out)
	return out
}

func (in *InstanceStatus) DeepCopyInto(out *InstanceStatus) {
	*out = *in
}

func (in *InstanceStatus) DeepCopy() *InstanceStatus {
	if in == nil {
		return nil
	}
	out := new(InstanceStatus)
	in.DeepCopyInto(out)
	return out
}

func (in *WhistlerInstance) DeepCopyInto(out *WhistlerInstance) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	out.Status = in.Status
}

func (in *WhistlerInstance) DeepCopy() *WhistlerInstance {
	if in == nil {
		return nil
	}
	out := new(WhistlerInstance)
	in.DeepCopyInto(out)
	return out
}

func (in *WhistlerInstance) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func (in *WhistlerInstanceList) DeepCopyInto(out *WhistlerInstanceList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]WhistlerInstance, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *WhistlerInstanceList) DeepCopy() *WhistlerInstanceList {
	if in == nil {
		return nil
	}
	out := new(WhistlerInstanceList)
	in.DeepCopyInto(out)
	return out
}

func (in *WhistlerInstanceList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
