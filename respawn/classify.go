package respawn

import (
	"sort"

	"github.com/marek-obuchowicz/senza/cloud"
)

// Classification partitions the running instances of one group snapshot by
// launch configuration. Both slices are sorted ascending; Stale doubles as
// the work queue a run consumes front to back.
type Classification struct {
	// Stale lists instances whose launch configuration name is missing or
	// differs from the group's.
	Stale []string
	// OK lists instances already on the group's launch configuration.
	OK []string
}

// Classify decides which instances must be replaced for the group to
// converge on launchConfig. Instances whose lifecycle state is outside
// runningStates are ignored entirely. An instance without a launch
// configuration name (its configuration was deleted upstream) is always
// stale. Pure function: no I/O, no mutation of the snapshot.
func Classify(group *cloud.Group, launchConfig string, runningStates []cloud.LifecycleState) Classification {
	running := make(map[cloud.LifecycleState]struct{}, len(runningStates))
	for _, state := range runningStates {
		running[state] = struct{}{}
	}
	var c Classification
	for _, instance := range group.Instances {
		if _, ok := running[instance.LifecycleState]; !ok {
			continue
		}
		if instance.LaunchConfigurationName == "" || instance.LaunchConfigurationName != launchConfig {
			c.Stale = append(c.Stale, instance.ID)
		} else {
			c.OK = append(c.OK, instance.ID)
		}
	}
	sort.Strings(c.Stale)
	sort.Strings(c.OK)
	return c
}
