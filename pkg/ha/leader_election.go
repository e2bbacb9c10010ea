package ha

import (
	"context"
	"log/slog"
	"sync/atomic"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
)

// LeaderElector runs a function only while this replica holds the Lease.
type LeaderElector struct {
	cfg    Config
	client kubernetes.Interface
	logger *slog.Logger
	leader atomic.Bool
}

// NewLeaderElector creates a LeaderElector. client may be nil when leader
// election is disabled.
func NewLeaderElector(cfg Config, client kubernetes.Interface, logger *slog.Logger) *LeaderElector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderElector{cfg: cfg, client: client, logger: logger}
}

// IsLeader reports whether this replica currently leads.
func (le *LeaderElector) IsLeader() bool {
	return le.leader.Load()
}

// Run blocks until ctx ends, calling lead each time leadership is gained.
// The context passed to lead is cancelled when leadership is lost. Without
// election, lead runs immediately with ctx.
func (le *LeaderElector) Run(ctx context.Context, lead func(ctx context.Context)) {
	if !le.cfg.LeaderElection || le.client == nil {
		le.logger.Info("leader election disabled, running as leader", "identity", le.cfg.Identity)
		le.leader.Store(true)
		defer le.leader.Store(false)
		lead(ctx)
		<-ctx.Done()
		return
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{Name: le.cfg.LeaseName, Namespace: le.cfg.LeaseNamespace},
		Client:    le.client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: le.cfg.Identity,
		},
	}
	le.logger.Info("starting leader election",
		"identity", le.cfg.Identity,
		"lease", le.cfg.LeaseNamespace+"/"+le.cfg.LeaseName,
		"leaseDuration", le.cfg.LeaseDuration,
	)

	leaderelection.RunOrDie(ctx, leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   le.cfg.LeaseDuration,
		RenewDeadline:   le.cfg.RenewDeadline,
		RetryPeriod:     le.cfg.RetryPeriod,
		ReleaseOnCancel: true,
		Name:            le.cfg.LeaseName,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(ctx context.Context) {
				le.leader.Store(true)
				le.logger.Info("acquired leadership", "identity", le.cfg.Identity)
				lead(ctx)
			},
			OnStoppedLeading: func() {
				le.leader.Store(false)
				le.logger.Info("released leadership", "identity", le.cfg.Identity)
			},
			OnNewLeader: func(id string) {
				if id != le.cfg.Identity {
					le.logger.Info("following leader", "leader", id)
				}
			},
		},
	})
}
