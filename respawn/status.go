package respawn

import (
	"context"
	"sort"

	"github.com/marek-obuchowicz/senza/cloud"
)

// InstanceDescriber supplies per-instance details for status reports. The
// AWS provider implements it on top of EC2.
type InstanceDescriber interface {
	DescribeInstanceDetails(ctx context.Context, instanceIDs []string) (map[string]cloud.InstanceDetail, error)
}

// Row describes one running instance in a status report.
type Row struct {
	InstanceID              string
	LaunchConfigurationName string
	LifecycleState          cloud.LifecycleState
	// Stale marks instances a run would replace.
	Stale bool
	// Detail carries instance details when a describer was available and
	// knew the instance.
	Detail *cloud.InstanceDetail
}

// Report previews what a run against a group would do.
type Report struct {
	Group *cloud.Group
	// Rows holds one entry per running instance, sorted by instance ID.
	Rows []Row
	// StaleCount is the number of instances a run would replace.
	StaleCount int
}

// Inspect classifies the group and assembles a status report without any
// provider mutation. describer may be nil; the report then carries no
// instance details. Empty runningStates means the defaults.
func Inspect(ctx context.Context, provider cloud.Provider, describer InstanceDescriber, groupName string, runningStates []cloud.LifecycleState) (*Report, error) {
	if len(runningStates) == 0 {
		runningStates = DefaultRunningStates()
	}
	group, err := provider.DescribeGroup(ctx, groupName)
	if err != nil {
		return nil, err
	}
	classification := Classify(group, group.LaunchConfigurationName, runningStates)

	staleSet := make(map[string]struct{}, len(classification.Stale))
	for _, id := range classification.Stale {
		staleSet[id] = struct{}{}
	}
	byID := make(map[string]cloud.Instance, len(group.Instances))
	for _, instance := range group.Instances {
		byID[instance.ID] = instance
	}

	ids := append(append([]string{}, classification.Stale...), classification.OK...)
	sort.Strings(ids)

	var details map[string]cloud.InstanceDetail
	if describer != nil && len(ids) > 0 {
		details, err = describer.DescribeInstanceDetails(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	report := &Report{Group: group, StaleCount: len(classification.Stale)}
	for _, id := range ids {
		instance := byID[id]
		row := Row{
			InstanceID:              id,
			LaunchConfigurationName: instance.LaunchConfigurationName,
			LifecycleState:          instance.LifecycleState,
		}
		_, row.Stale = staleSet[id]
		if detail, ok := details[id]; ok {
			detail := detail
			row.Detail = &detail
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}
