package respawn

import (
	"context"

	"github.com/marek-obuchowicz/senza/cloud"
	"github.com/marek-obuchowicz/senza/rollback"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultSuspendedProcesses returns the scaling processes suspended for the
// duration of a run: the reflexes that would otherwise fight the manual
// capacity changes.
func DefaultSuspendedProcesses() []string {
	return []string{"AZRebalance", "AlarmNotification", "ScheduledActions"}
}

// DefaultRunningStates returns the lifecycle states in which an instance
// counts as a group member for classification.
func DefaultRunningStates() []cloud.LifecycleState {
	return []cloud.LifecycleState{
		cloud.LifecyclePending,
		cloud.LifecycleInService,
		cloud.LifecycleRebooting,
	}
}

// Config configures a Respawner.
type Config struct {
	// Provider talks to the cloud on behalf of the run.
	Provider cloud.Provider
	// GroupName names the auto scaling group to converge.
	GroupName string
	// InPlace replaces instances without a temporary spare capacity slot.
	InPlace bool
	// ScaleOutPolicy paces the wait for the group to become healthy.
	ScaleOutPolicy RetryPolicy
	// TerminatePolicy paces the wait for a terminated instance to drain.
	TerminatePolicy RetryPolicy
	// SuspendedProcesses lists the scaling processes suspended for the run.
	SuspendedProcesses []string
	// RunningStates lists the lifecycle states eligible for classification.
	RunningStates []cloud.LifecycleState
	// Observer is notified on every unsatisfied poll attempt.
	Observer Observer
	// SkipCleanup leaves the group suspended and expanded when a run fails
	// partway through, reproducing the historical behavior.
	SkipCleanup bool
	// FieldLogger is the logger for the run.
	log.FieldLogger
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Provider == nil {
		return errors.New("missing Provider")
	}
	if c.GroupName == "" {
		return errors.New("missing GroupName")
	}
	if c.ScaleOutPolicy == (RetryPolicy{}) {
		c.ScaleOutPolicy = RetryPolicy{Interval: DefaultScaleOutInterval}
	}
	if c.TerminatePolicy == (RetryPolicy{}) {
		c.TerminatePolicy = RetryPolicy{Interval: DefaultTerminateInterval}
	}
	if len(c.SuspendedProcesses) == 0 {
		c.SuspendedProcesses = DefaultSuspendedProcesses()
	}
	if len(c.RunningStates) == 0 {
		c.RunningStates = DefaultRunningStates()
	}
	if c.Observer == nil {
		c.Observer = NopObserver()
	}
	if c.FieldLogger == nil {
		c.FieldLogger = log.WithField("asg", c.GroupName)
	}
	return nil
}

// Respawner performs one rolling replacement run against a single group.
// Runs are strictly sequential; concurrent runs against the same group are
// not guarded against and race on the group's capacity settings.
type Respawner struct {
	Config
}

// New returns a Respawner for the given configuration.
func New(config Config) (*Respawner, error) {
	if err := config.CheckAndSetDefaults(); err != nil {
		return nil, err
	}
	return &Respawner{Config: config}, nil
}

// Run replaces every stale instance of the configured group. It returns nil
// once all instances run the group's current launch configuration, without
// touching the group when there was nothing to replace.
func (r *Respawner) Run(ctx context.Context) error {
	group, err := r.Provider.DescribeGroup(ctx, r.GroupName)
	if err != nil {
		return err
	}
	work := Classify(group, group.LaunchConfigurationName, r.RunningStates)
	r.Infof("%d/%d instances need to be updated in %s.", len(work.Stale), len(work.Stale)+len(work.OK), r.GroupName)
	if len(work.Stale) == 0 {
		r.Info("Nothing to do.")
		return nil
	}
	return r.respawn(ctx, group, work.Stale)
}

// respawn drives the suspend, scale out, terminate, restore, resume sequence
// over the stale work queue. group is the snapshot the queue was derived
// from; its capacity bounds are the ones restored at the end.
func (r *Respawner) respawn(ctx context.Context, group *cloud.Group, stale []string) (err error) {
	cleanup := rollback.New()
	if !r.SkipCleanup {
		defer func() {
			if err == nil {
				return
			}
			if cleanupErr := cleanup.Run(); cleanupErr != nil {
				r.Warnf("Cleanup after failed run did not complete: %v.", cleanupErr)
			}
		}()
	}

	r.Infof("Suspending scaling processes for %s.", r.GroupName)
	if err := r.Provider.SuspendProcesses(ctx, r.GroupName, r.SuspendedProcesses); err != nil {
		return err
	}
	cleanup.AddStep(rollback.Step{
		Name: "resume scaling processes",
		Fn: func() error {
			// ctx may be the reason the run failed; cleanup still has to try.
			return r.Provider.ResumeProcesses(context.Background(), r.GroupName)
		},
	})

	extra := int64(1)
	if r.InPlace {
		extra = 0
	}
	min, max, desired := group.MinSize+extra, group.MaxSize+extra, group.DesiredCapacity+extra
	cleanup.AddStep(rollback.Step{
		Name: "restore original capacity",
		Fn: func() error {
			return r.Provider.UpdateGroupCapacity(context.Background(), r.GroupName,
				group.MinSize, group.MaxSize, group.DesiredCapacity)
		},
	})

	for len(stale) > 0 {
		fresh, err := ScaleOut(ctx, r.Provider, r.GroupName, min, max, desired,
			r.ScaleOutPolicy, r.Observer, r.FieldLogger)
		if err != nil {
			return err
		}
		if err := TerminateInstance(ctx, r.Provider, fresh, stale[0],
			r.TerminatePolicy, r.Observer, r.FieldLogger); err != nil {
			return err
		}
		stale = stale[1:]
	}

	r.Infof("Resetting %s to original capacity %d-%d-%d.",
		r.GroupName, group.MinSize, group.DesiredCapacity, group.MaxSize)
	if err := r.Provider.UpdateGroupCapacity(ctx, r.GroupName,
		group.MinSize, group.MaxSize, group.DesiredCapacity); err != nil {
		return err
	}
	r.Infof("Resuming scaling processes for %s.", r.GroupName)
	if err := r.Provider.ResumeProcesses(ctx, r.GroupName); err != nil {
		return err
	}
	cleanup.Clear()
	return nil
}
