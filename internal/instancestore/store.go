// Package instancestore is the typed facade spec.md §4.3 describes:
// InstanceStore owns no durable state of its own. It is grounded on the
// teacher's api/internal/k8s/client.go (a typed wrapper the teacher
// stands up over a dynamic client for its Session/Template CRDs), but
// since Whistler's InstanceStore lives in the same process as a
// controller-runtime manager (spec.md §5: "Reconciler runs in the same
// process as a separately-driven controller loop"), it reuses that
// manager's typed sigs.k8s.io/controller-runtime/pkg/client.Client
// instead of standing up a second, separate dynamic client — the same
// CRUD operations the teacher's Client exposes (CreateSession,
// ListSessionsByUser, UpdateSessionState, ...), just typed against
// WhistlerInstance/WhistlerTemplate and joined against live pods the way
// KubeConfigManager.get_user_instances joins pods in
// original_source/whistler/config.py.
package instancestore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	whistlerv1 "github.com/marma/whistler/internal/apis/whistlerv1"
	"github.com/marma/whistler/internal/logger"
	"github.com/marma/whistler/internal/model"
)

// InstanceStore is the typed facade every gateway component uses to read
// and write Instance/Template declarations and to resolve an instance's
// live pod state.
type InstanceStore interface {
	ListTemplates(ctx context.Context, owner model.Owner) ([]model.Template, error)
	ListInstances(ctx context.Context, owner model.Owner) ([]model.Instance, error)
	GetInstance(ctx context.Context, owner model.Owner, short model.ShortName) (model.Instance, bool, error)
	CreateInstance(ctx context.Context, owner model.Owner, templateRef model.FullName, short model.ShortName, preemptible bool) error
	SaveTemplate(ctx context.Context, owner model.Owner, tmpl model.Template) error
	DeleteInstance(ctx context.Context, owner model.Owner, short model.ShortName) error
	PatchInstanceAnnotation(ctx context.Context, owner model.Owner, short model.ShortName, key, value string) error
}

// DefaultSystemNamespace is where owner=="system" templates live when
// no POD_NAMESPACE/service-account namespace resolution overrides it.
const DefaultSystemNamespace = "whistler"

// IsolatePolicyName is the deny-all-ingress NetworkPolicy every per-user
// namespace carries.
const IsolatePolicyName = "isolate-user-pods"

// PerUserNamespace derives the isolated namespace for one user.
func PerUserNamespace(owner model.Owner) string {
	return fmt.Sprintf("whistler-user-%s", owner)
}

// PVCName derives the name of a user's single persistent volume claim.
func PVCName(owner model.Owner) string {
	return fmt.Sprintf("whistler-data-%s", owner)
}

type store struct {
	c        client.Client
	systemNS string
}

// New builds an InstanceStore over an already-configured
// controller-runtime client (shared with the Reconciler's manager).
// systemNamespace is where owner=="system" templates live; pass
// DefaultSystemNamespace if the caller has no override to resolve.
func New(c client.Client, systemNamespace string) InstanceStore {
	return &store{c: c, systemNS: systemNamespace}
}

// ListTemplates returns the union of system templates and the owner's
// own templates, system-first, per spec.md §4.3.
func (s *store) ListTemplates(ctx context.Context, owner model.Owner) ([]model.Template, error) {
	var out []model.Template

	var sysList whistlerv1.WhistlerTemplateList
	if err := s.c.List(ctx, &sysList, client.InNamespace(s.systemNS)); err != nil {
		if !apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("listing system templates: %w", err)
		}
	}
	for _, t := range sysList.Items {
		out = append(out, toModelTemplate(&t, "system"))
	}

	ns := PerUserNamespace(owner)
	var userList whistlerv1.WhistlerTemplateList
	if err := s.c.List(ctx, &userList, client.InNamespace(ns)); err != nil {
		if !apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("listing user templates for %s: %w", owner, err)
		}
	}
	for _, t := range userList.Items {
		if t.Spec.Owner != string(owner) && t.Spec.Owner != string(model.SystemOwner) {
			continue
		}
		out = append(out, toModelTemplate(&t, "user"))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Source == "system" && out[j].Source != "system"
	})
	return out, nil
}

func toModelTemplate(t *whistlerv1.WhistlerTemplate, source string) model.Template {
	owner := model.Owner(t.Spec.Owner)
	short := model.ShortName(t.Name)
	// User-template display names strip the "{owner}-" prefix, per
	// spec.md §4.3; system templates keep their CR name verbatim.
	if source == "user" && strings.HasPrefix(t.Name, string(owner)+"-") {
		short = model.ShortName(strings.TrimPrefix(t.Name, string(owner)+"-"))
	}
	return model.Template{
		Name:              short,
		FullName:          model.FullName(t.Name),
		Owner:             owner,
		Image:             t.Spec.Image,
		Resources:         model.Resources{CPU: t.Spec.Resources.CPU, Memory: t.Spec.Resources.Memory, GPU: t.Spec.Resources.GPU},
		NodeSelector:      t.Spec.NodeSelector,
		PersonalMountPath: t.Spec.PersonalMountPath,
		Volumes:           t.Spec.Volumes,
		Description:       t.Spec.Description,
		Source:            source,
	}
}

// ListInstances enriches every Instance declaration in the owner's
// namespace with its live pod state, joined by the "instance" pod label,
// per spec.md §4.3.
func (s *store) ListInstances(ctx context.Context, owner model.Owner) ([]model.Instance, error) {
	ns := PerUserNamespace(owner)

	var crList whistlerv1.WhistlerInstanceList
	if err := s.c.List(ctx, &crList, client.InNamespace(ns)); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing instances for %s: %w", owner, err)
	}

	var pods corev1.PodList
	if err := s.c.List(ctx, &pods, client.InNamespace(ns), client.MatchingLabels{"user": string(owner)}); err != nil {
		if !apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("listing pods for %s: %w", owner, err)
		}
	}
	podByInstance := make(map[string]*corev1.Pod, len(pods.Items))
	for i := range pods.Items {
		p := &pods.Items[i]
		if name, ok := p.Labels["instance"]; ok {
			podByInstance[name] = p
		}
	}

	out := make([]model.Instance, 0, len(crList.Items))
	for _, cr := range crList.Items {
		out = append(out, joinInstance(&cr, podByInstance[cr.Name]))
	}
	return out, nil
}

func joinInstance(cr *whistlerv1.WhistlerInstance, pod *corev1.Pod) model.Instance {
	short := model.ShortName(cr.Name)
	owner := model.Owner(cr.Spec.Owner)
	if strings.HasPrefix(cr.Name, string(owner)+"-") {
		short = model.ShortName(strings.TrimPrefix(cr.Name, string(owner)+"-"))
	}

	inst := model.Instance{
		Name:            short,
		FullName:        model.FullName(cr.Name),
		Owner:           owner,
		TemplateRef:     model.FullName(cr.Spec.TemplateRef),
		Preemptible:     cr.Spec.Preemptible,
		Status:          model.StatusStopped,
		ResourceVersion: cr.ResourceVersion,
	}

	if pod == nil {
		return inst
	}

	inst.PodName = pod.Name
	inst.PodIP = pod.Status.PodIP
	if pod.DeletionTimestamp != nil {
		inst.Status = model.StatusTerminating
	} else {
		switch pod.Status.Phase {
		case corev1.PodRunning:
			inst.Status = model.StatusRunning
		case corev1.PodPending:
			inst.Status = model.StatusPending
		case corev1.PodFailed:
			inst.Status = model.StatusFailed
		default:
			inst.Status = model.StatusUnknown
		}
	}

	if len(pod.Spec.Containers) > 0 {
		for _, m := range pod.Spec.Containers[0].VolumeMounts {
			if strings.HasPrefix(m.MountPath, "/var/run/secrets") {
				continue
			}
			inst.Mounts = append(inst.Mounts, model.VolumeMount{Name: m.Name, MountPath: m.MountPath})
		}
	}
	return inst
}

// GetInstance is a convenience wrapper over ListInstances; InstanceStore
// performs no caching, so this costs one round-trip the same as List.
func (s *store) GetInstance(ctx context.Context, owner model.Owner, short model.ShortName) (model.Instance, bool, error) {
	all, err := s.ListInstances(ctx, owner)
	if err != nil {
		return model.Instance{}, false, err
	}
	for _, i := range all {
		if i.Name == short {
			return i, true, nil
		}
	}
	return model.Instance{}, false, nil
}

// CreateInstance ensures the owner's namespace exists (the Reconciler
// also does this on its own reconcile pass, but creating it here avoids
// a race where the instance write lands before the namespace does) and
// writes the Instance declaration. A creation conflict (already exists)
// is reported as failure; the caller decides what to do with that,
// per spec.md §4.3.
func (s *store) CreateInstance(ctx context.Context, owner model.Owner, templateRef model.FullName, short model.ShortName, preemptible bool) error {
	ns := PerUserNamespace(owner)
	if err := s.ensureNamespace(ctx, owner); err != nil {
		return fmt.Errorf("ensuring namespace for %s: %w", owner, err)
	}

	full := model.MakeFullName(owner, short)
	cr := &whistlerv1.WhistlerInstance{
		ObjectMeta: metav1.ObjectMeta{
			Name:      string(full),
			Namespace: ns,
		},
		Spec: whistlerv1.InstanceSpec{
			Owner:       string(owner),
			TemplateRef: string(templateRef),
			Preemptible: preemptible,
		},
	}
	if err := s.c.Create(ctx, cr); err != nil {
		logger.Instance().Error().Err(err).Str("instance", string(full)).Msg("create instance failed")
		return err
	}
	return nil
}

// ensureNamespace is a minimal, best-effort version of the prerequisite
// the Reconciler guarantees on every reconcile pass (see
// internal/reconciler). It exists here only to avoid create-before-the-
// namespace-exists races on the very first instance a user ever creates;
// spec.md §4.3 calls this "ensures the owner namespace and policy exist"
// as part of createInstance itself, so the isolation NetworkPolicy is
// ensured alongside it.
func (s *store) ensureNamespace(ctx context.Context, owner model.Owner) error {
	ns := PerUserNamespace(owner)
	var existing corev1.Namespace
	err := s.c.Get(ctx, client.ObjectKey{Name: ns}, &existing)
	if err != nil {
		if !apierrors.IsNotFound(err) {
			return err
		}
		newNs := &corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{
				Name: ns,
				Labels: map[string]string{
					"whistler.io/user":    string(owner),
					"whistler.io/managed": "true",
				},
			},
		}
		if err := s.c.Create(ctx, newNs); err != nil && !apierrors.IsAlreadyExists(err) {
			return err
		}
	}
	return s.ensureIsolationPolicy(ctx, ns)
}

func (s *store) ensureIsolationPolicy(ctx context.Context, ns string) error {
	var existing networkingv1.NetworkPolicy
	err := s.c.Get(ctx, client.ObjectKey{Namespace: ns, Name: IsolatePolicyName}, &existing)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return err
	}
	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: metav1.ObjectMeta{Name: IsolatePolicyName, Namespace: ns},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{},
			PolicyTypes: []networkingv1.PolicyType{networkingv1.PolicyTypeIngress},
			Ingress:     []networkingv1.NetworkPolicyIngressRule{},
		},
	}
	if err := s.c.Create(ctx, policy); err != nil && !apierrors.IsAlreadyExists(err) {
		return err
	}
	return nil
}

// SaveTemplate writes to the owner's namespace, replacing an existing
// template using its stored resourceVersion to guard against lost
// updates, or creating one if absent, per spec.md §4.3.
func (s *store) SaveTemplate(ctx context.Context, owner model.Owner, tmpl model.Template) error {
	ns := PerUserNamespace(owner)
	full := model.MakeFullName(owner, tmpl.Name)

	var existing whistlerv1.WhistlerTemplate
	err := s.c.Get(ctx, client.ObjectKey{Namespace: ns, Name: string(full)}, &existing)
	spec := whistlerv1.TemplateSpec{
		Owner:             string(owner),
		Image:             tmpl.Image,
		Resources:         whistlerv1.TemplateResources(tmpl.Resources),
		NodeSelector:      tmpl.NodeSelector,
		PersonalMountPath: tmpl.PersonalMountPath,
		Volumes:           tmpl.Volumes,
		Description:       tmpl.Description,
	}

	if err == nil {
		existing.Spec = spec
		return s.c.Update(ctx, &existing)
	}
	if !apierrors.IsNotFound(err) {
		return err
	}

	cr := &whistlerv1.WhistlerTemplate{
		ObjectMeta: metav1.ObjectMeta{Name: string(full), Namespace: ns},
		Spec:       spec,
	}
	return s.c.Create(ctx, cr)
}

// DeleteInstance deletes the Instance declaration; the Reconciler's
// parent link cascades the deletion to the child pod, per spec.md §4.3.
func (s *store) DeleteInstance(ctx context.Context, owner model.Owner, short model.ShortName) error {
	ns := PerUserNamespace(owner)
	full := model.MakeFullName(owner, short)
	cr := &whistlerv1.WhistlerInstance{ObjectMeta: metav1.ObjectMeta{Name: string(full), Namespace: ns}}
	if err := s.c.Delete(ctx, cr); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// PatchInstanceAnnotation nudges the Reconciler without changing the
// Instance's semantic spec, per spec.md §4.2/§4.3.
func (s *store) PatchInstanceAnnotation(ctx context.Context, owner model.Owner, short model.ShortName, key, value string) error {
	ns := PerUserNamespace(owner)
	full := model.MakeFullName(owner, short)
	cr := &whistlerv1.WhistlerInstance{ObjectMeta: metav1.ObjectMeta{Name: string(full), Namespace: ns}}
	if err := s.c.Get(ctx, client.ObjectKey{Namespace: ns, Name: string(full)}, cr); err != nil {
		return err
	}
	patch := client.MergeFrom(cr.DeepCopy())
	if cr.Annotations == nil {
		cr.Annotations = map[string]string{}
	}
	cr.Annotations[key] = value
	return s.c.Patch(ctx, cr, patch)
}

// NowUnixString is a small helper used by SessionCoordinator to format
// the last-connect nudge annotation the way the Python original did
// (str(time.time())), just without the fractional seconds.
func NowUnixString(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
