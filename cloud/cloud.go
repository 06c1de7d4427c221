// Package cloud defines the capability surface a respawn run needs from a
// cloud platform, together with the provider-agnostic view of an auto
// scaling group.
package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// LifecycleState is the state a group reports for one of its members.
type LifecycleState string

// Lifecycle states reported for auto scaling group members.
const (
	LifecyclePending     LifecycleState = "Pending"
	LifecycleInService   LifecycleState = "InService"
	LifecycleRebooting   LifecycleState = "Rebooting"
	LifecycleTerminating LifecycleState = "Terminating"
	LifecycleTerminated  LifecycleState = "Terminated"
)

// HealthInService is the load balancer health state of an instance that is
// accepting traffic.
const HealthInService = "InService"

// Instance is a single member of an auto scaling group.
type Instance struct {
	// ID is the provider-assigned instance identifier.
	ID string
	// LifecycleState is the state the group reports for this member.
	LifecycleState LifecycleState
	// LaunchConfigurationName is the configuration the instance was started
	// from. Empty when the configuration has been deleted upstream.
	LaunchConfigurationName string
}

// Group is a point-in-time snapshot of an auto scaling group. Snapshots are
// read fresh from the provider on every describe call and never cached.
type Group struct {
	Name                    string
	MinSize                 int64
	MaxSize                 int64
	DesiredCapacity         int64
	LaunchConfigurationName string
	LoadBalancerNames       []string
	Instances               []Instance
}

// InstanceHealth is one entry of a load balancer health report.
type InstanceHealth struct {
	InstanceID string
	State      string
}

// InstanceDetail carries additional per-instance information used for
// reporting only.
type InstanceDetail struct {
	ID             string
	PrivateDNSName string
	InstanceType   string
	State          string
	LaunchTime     time.Time
}

// Provider is the abstract capability surface of the cloud platform a
// respawn run acts on.
type Provider interface {
	// DescribeGroup returns a fresh snapshot of the named group. It returns
	// *NotFoundError when the provider reports no matching group and never
	// retries internally.
	DescribeGroup(ctx context.Context, name string) (*Group, error)
	// UpdateGroupCapacity issues a single capacity update carrying all three
	// new bounds.
	UpdateGroupCapacity(ctx context.Context, name string, min, max, desired int64) error
	// TerminateInstance destroys one instance. decrementDesired controls
	// whether the provider also lowers the group's desired capacity.
	TerminateInstance(ctx context.Context, instanceID string, decrementDesired bool) error
	// SuspendProcesses pauses the named scaling processes of the group.
	SuspendProcesses(ctx context.Context, name string, processes []string) error
	// ResumeProcesses re-enables every suspended scaling process of the group.
	ResumeProcesses(ctx context.Context, name string) error
	// LoadBalancerInstanceHealth reports per-instance health as seen by a
	// single load balancer.
	LoadBalancerInstanceHealth(ctx context.Context, lbName string) ([]InstanceHealth, error)
}

// NotFoundError is returned when the provider knows no group by the
// requested name.
type NotFoundError struct {
	Group string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("auto scaling group %s not found", e.Group)
}

// IsNotFound returns true if err was caused by a lookup of a missing group.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}
