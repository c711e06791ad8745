// Package reconciler implements the controller-runtime reconciliation
// loop for WhistlerInstance resources — the Go equivalent of the kopf
// handlers in original_source/whistler/operator.py, restructured into
// the Reconcile-method shape the teacher's SessionReconciler uses in
// k8s-controller/controllers/session_controller.go.
//
// RECONCILIATION LOOP:
//
//	fetch Instance -> resolve Template -> ensure namespace + isolation
//	policy -> ensure per-user PVC -> ensure child pod -> done
//
// Every step after "fetch Instance" is idempotent: get-then-create, not
// get-then-fail-if-exists. A missing Instance (already deleted) is not
// an error — the owner reference on the pod means Kubernetes garbage
// collection has already started tearing it down.
package reconciler

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	whistlerv1 "github.com/marma/whistler/internal/apis/whistlerv1"
	"github.com/marma/whistler/internal/instancestore"
	"github.com/marma/whistler/internal/metrics"
	"github.com/marma/whistler/internal/model"
	"github.com/marma/whistler/internal/werr"
)

// templateResolveDelay is how long to wait before retrying an Instance
// whose Template hasn't appeared yet — the Template CR and the Instance
// CR are often applied in the same batch, so a short backoff usually
// resolves it without operator intervention.
const templateResolveDelay = 10 * time.Second

// podConflictRetryDelay covers the window where an old pod by the same
// name is still Terminating when the reconciler tries to create its
// replacement.
const podConflictRetryDelay = 2 * time.Second

// InstanceReconciler reconciles WhistlerInstance objects.
type InstanceReconciler struct {
	client.Client
	Scheme *runtime.Scheme
}

// +kubebuilder:rbac:groups=whistler.io,resources=whistlerinstances,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=whistler.io,resources=whistlerinstances/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=whistler.io,resources=whistlertemplates,verbs=get;list;watch
// +kubebuilder:rbac:groups="",resources=namespaces,verbs=get;list;watch;create
// +kubebuilder:rbac:groups="",resources=persistentvolumeclaims,verbs=get;list;watch;create
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch;create;delete
// +kubebuilder:rbac:groups=networking.k8s.io,resources=networkpolicies,verbs=get;list;watch;create

// Reconcile drives one WhistlerInstance towards having a namespace,
// isolation policy, PVC, and pod that match its declaration. Create,
// update, and operator-restart ("resume") events all land here the same
// way controller-runtime always does a full Get-and-compare; there is no
// separate resume path, unlike the kopf original which distinguished
// on_resume from on_create.
func (r *InstanceReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx)
	start := time.Now()
	defer func() {
		metrics.ObserveReconciliationDuration(req.Namespace, time.Since(start).Seconds())
	}()

	var inst whistlerv1.WhistlerInstance
	if err := r.Get(ctx, req.NamespacedName, &inst); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		metrics.RecordReconciliation(req.Namespace, "error")
		return ctrl.Result{}, err
	}

	result, err := r.reconcileInstance(ctx, &inst)
	if err != nil {
		if delay, ok := werr.AsTransient(err); ok {
			logger.V(1).Info("reconciliation deferred", "instance", inst.Name, "delay", delay, "reason", err)
			metrics.RecordReconciliation(req.Namespace, "retry")
			return ctrl.Result{RequeueAfter: delay}, nil
		}
		logger.Error(err, "reconciliation failed", "instance", inst.Name)
		metrics.RecordReconciliation(req.Namespace, "error")
		return ctrl.Result{}, err
	}

	metrics.RecordReconciliation(req.Namespace, "success")
	return result, nil
}

func (r *InstanceReconciler) reconcileInstance(ctx context.Context, inst *whistlerv1.WhistlerInstance) (ctrl.Result, error) {
	tmpl, err := r.resolveTemplate(ctx, inst)
	if err != nil {
		return ctrl.Result{}, err
	}

	owner := inst.Spec.Owner
	ns := instancestore.PerUserNamespace(model.Owner(owner))

	if err := r.ensureNamespace(ctx, owner, ns); err != nil {
		return ctrl.Result{}, werr.Permanent(fmt.Errorf("ensuring namespace %s: %w", ns, err))
	}
	if err := r.ensureIsolationPolicy(ctx, ns); err != nil {
		return ctrl.Result{}, werr.Permanent(fmt.Errorf("ensuring isolation policy in %s: %w", ns, err))
	}
	if err := r.ensureUserPVC(ctx, owner, ns); err != nil {
		return ctrl.Result{}, werr.Permanent(fmt.Errorf("ensuring pvc in %s: %w", ns, err))
	}
	if err := r.ensurePod(ctx, inst, tmpl, ns); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{}, nil
}

// resolveTemplate fetches the Template the Instance references. A
// missing Template is transient: the Instance and Template are
// frequently created in the same apply batch and the Template event may
// simply not have landed yet.
func (r *InstanceReconciler) resolveTemplate(ctx context.Context, inst *whistlerv1.WhistlerInstance) (*whistlerv1.WhistlerTemplate, error) {
	var tmpl whistlerv1.WhistlerTemplate
	key := types.NamespacedName{Name: inst.Spec.TemplateRef, Namespace: inst.Namespace}
	if err := r.Get(ctx, key, &tmpl); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, werr.Transient(fmt.Errorf("template %s not found", inst.Spec.TemplateRef), templateResolveDelay)
		}
		return nil, werr.Permanent(fmt.Errorf("getting template %s: %w", inst.Spec.TemplateRef, err))
	}
	return &tmpl, nil
}

func (r *InstanceReconciler) ensureNamespace(ctx context.Context, owner, ns string) error {
	var existing corev1.Namespace
	err := r.Get(ctx, types.NamespacedName{Name: ns}, &existing)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return err
	}
	if err := r.Create(ctx, namespaceFor(owner)); err != nil && !apierrors.IsAlreadyExists(err) {
		return err
	}
	return nil
}

func (r *InstanceReconciler) ensureIsolationPolicy(ctx context.Context, ns string) error {
	var existing networkingv1.NetworkPolicy
	err := r.Get(ctx, types.NamespacedName{Name: instancestore.IsolatePolicyName, Namespace: ns}, &existing)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return err
	}
	if err := r.Create(ctx, isolationPolicyFor(ns)); err != nil && !apierrors.IsAlreadyExists(err) {
		return err
	}
	return nil
}

// ensureUserPVC is idempotent: a pre-existing claim from an earlier
// instance for the same user is accepted as-is, never resized or
// recreated.
func (r *InstanceReconciler) ensureUserPVC(ctx context.Context, owner, ns string) error {
	var existing corev1.PersistentVolumeClaim
	err := r.Get(ctx, types.NamespacedName{Name: instancestore.PVCName(model.Owner(owner)), Namespace: ns}, &existing)
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return err
	}
	if err := r.Create(ctx, userPVCFor(owner, ns)); err != nil && !apierrors.IsAlreadyExists(err) {
		return err
	}
	return nil
}

// ensurePod creates the Instance's pod if absent. A creation conflict
// while the previous pod is still terminating is treated as transient
// — the next reconcile, a couple seconds later, will find it gone.
func (r *InstanceReconciler) ensurePod(ctx context.Context, inst *whistlerv1.WhistlerInstance, tmpl *whistlerv1.WhistlerTemplate, ns string) error {
	var existing corev1.Pod
	err := r.Get(ctx, types.NamespacedName{Name: inst.Name, Namespace: ns}, &existing)
	if err == nil {
		if existing.DeletionTimestamp != nil {
			return werr.Transient(fmt.Errorf("pod %s still terminating", inst.Name), podConflictRetryDelay)
		}
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return werr.Permanent(err)
	}

	pod := podFor(inst, tmpl, ns)
	if err := r.Create(ctx, pod); err != nil {
		if apierrors.IsAlreadyExists(err) || apierrors.IsConflict(err) {
			return werr.Transient(fmt.Errorf("pod %s still settling: %w", inst.Name, err), podConflictRetryDelay)
		}
		return werr.Permanent(err)
	}
	return nil
}

// SetupWithManager registers the reconciler with the manager, watching
// WhistlerInstance and the pods it owns.
func (r *InstanceReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&whistlerv1.WhistlerInstance{}).
		Owns(&corev1.Pod{}).
		Complete(r)
}
