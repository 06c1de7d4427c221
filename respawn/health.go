package respawn

import (
	"context"

	"github.com/marek-obuchowicz/senza/cloud"
)

// InService reports the set of instance IDs currently considered healthy.
//
// When the group has load balancers attached, an instance is healthy if any
// balancer reports it InService; balancers are queried one by one and their
// reports unioned. A group without balancers has no external health signal,
// so the group is re-fetched and the InService lifecycle state serves as a
// weaker proxy. The result is computed fresh on every call.
func InService(ctx context.Context, provider cloud.Provider, group *cloud.Group) (map[string]struct{}, error) {
	healthy := make(map[string]struct{})
	if len(group.LoadBalancerNames) > 0 {
		for _, name := range group.LoadBalancerNames {
			states, err := provider.LoadBalancerInstanceHealth(ctx, name)
			if err != nil {
				return nil, err
			}
			for _, state := range states {
				if state.State == cloud.HealthInService {
					healthy[state.InstanceID] = struct{}{}
				}
			}
		}
		return healthy, nil
	}
	fresh, err := provider.DescribeGroup(ctx, group.Name)
	if err != nil {
		return nil, err
	}
	for _, instance := range fresh.Instances {
		if instance.LifecycleState == cloud.LifecycleInService {
			healthy[instance.ID] = struct{}{}
		}
	}
	return healthy, nil
}
