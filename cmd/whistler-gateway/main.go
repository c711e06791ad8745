// Command whistler-gateway is the single-process entry point that runs
// both halves of the system in one binary, per spec.md §5: the SSH
// Gateway and the controller-runtime-driven Reconciler share one
// Kubernetes client. Grounded on controller/cmd/main.go's manager setup
// (scheme registration, ctrl.NewManager, zap-backed logger bridging),
// adapted to also start the SSH listener goroutine alongside the
// manager instead of only running reconcilers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"

	whistlerv1 "github.com/marma/whistler/internal/apis/whistlerv1"
	"github.com/marma/whistler/internal/config"
	"github.com/marma/whistler/internal/exectransport"
	"github.com/marma/whistler/internal/gateway"
	"github.com/marma/whistler/internal/instancestore"
	"github.com/marma/whistler/internal/logger"
	"github.com/marma/whistler/internal/reconciler"
	"github.com/marma/whistler/internal/session"
)

func main() {
	var kubeconfig string
	var inCluster bool
	var addr string
	var hostKeyPath string
	var usersPath string
	var staticSocatPath string

	flag.StringVar(&kubeconfig, "kubeconfig", "", "path to a kubeconfig file (out-of-cluster)")
	flag.BoolVar(&inCluster, "in-cluster", false, "use the pod's service account instead of --kubeconfig")
	flag.StringVar(&addr, "addr", "0.0.0.0:8022", "address the SSH gateway listens on")
	flag.StringVar(&hostKeyPath, "host-key", "ssh_host_key", "path to the persisted SSH host key")
	flag.StringVar(&usersPath, "users", "/etc/whistler/users.yaml", "path to the user directory file")
	flag.StringVar(&staticSocatPath, "static-socat", "/etc/whistler/socat-static", "path to the bundled static socat binary")

	opts := crzap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(crzap.New(crzap.UseFlagOptions(&opts)))
	logger.Initialize("info", false)
	setupLog := logger.Gateway()

	restConfig, err := resolveConfig(kubeconfig, inCluster)
	if err != nil {
		setupLog.Error().Err(err).Msg("resolving cluster config")
		os.Exit(1)
	}

	runtimeScheme := ctrlScheme()

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{Scheme: runtimeScheme})
	if err != nil {
		setupLog.Error().Err(err).Msg("starting manager")
		os.Exit(1)
	}

	if err := (&reconciler.InstanceReconciler{Client: mgr.GetClient(), Scheme: mgr.GetScheme()}).SetupWithManager(mgr); err != nil {
		setupLog.Error().Err(err).Msg("wiring reconciler")
		os.Exit(1)
	}
	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error().Err(err).Msg("wiring health check")
		os.Exit(1)
	}

	users, err := config.LoadUserDirectory(usersPath)
	if err != nil {
		setupLog.Error().Err(err).Msg("loading user directory")
		os.Exit(1)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		setupLog.Error().Err(err).Msg("building clientset")
		os.Exit(1)
	}

	store := instancestore.New(mgr.GetClient(), resolveSystemNamespace())
	newExec := func(namespace string) exectransport.ExecTransport {
		return exectransport.New(clientset, restConfig, namespace)
	}

	coord := &session.Coordinator{
		Store:           store,
		NewExec:         newExec,
		StaticSocatPath: staticSocatPath,
	}
	gw := gateway.New(addr, hostKeyPath, users, store, newExec, coord)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		if err := mgr.Start(ctx); err != nil {
			errCh <- fmt.Errorf("manager: %w", err)
		}
	}()
	go func() {
		if err := gw.ListenAndServe(ctx); err != nil {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		setupLog.Error().Err(err).Msg("component exited")
		stop()
		os.Exit(1)
	}
}

// resolveSystemNamespace follows spec.md's three-tier precedence for the
// namespace owner=="system" templates live in: POD_NAMESPACE overrides,
// then the projected service-account namespace file, then the default.
// Mirrors detectNamespace in
// _examples/otterscale-otterscale-agent/internal/leader/election.go.
func resolveSystemNamespace() string {
	if ns := strings.TrimSpace(os.Getenv("POD_NAMESPACE")); ns != "" {
		return ns
	}
	if b, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		if ns := strings.TrimSpace(string(b)); ns != "" {
			return ns
		}
	}
	return instancestore.DefaultSystemNamespace
}

func resolveConfig(kubeconfig string, inCluster bool) (*rest.Config, error) {
	if inCluster {
		return rest.InClusterConfig()
	}
	if kubeconfig == "" {
		if home, err := os.UserHomeDir(); err == nil {
			kubeconfig = home + "/.kube/config"
		}
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}

func ctrlScheme() *runtime.Scheme {
	s := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(s))
	utilruntime.Must(corev1.AddToScheme(s))
	utilruntime.Must(networkingv1.AddToScheme(s))
	utilruntime.Must(whistlerv1.AddToScheme(s))
	return s
}
