package respawn

import (
	"context"

	"github.com/marek-obuchowicz/senza/cloud"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ScaleOut applies the given capacity bounds to the group and blocks until
// the provider reports at least desired healthy instances. It returns the
// group snapshot taken on the poll that satisfied the wait.
//
// The wait is unbounded unless the policy carries MaxAttempts or ctx carries
// a deadline; a group that never converges blocks forever otherwise.
func ScaleOut(ctx context.Context, provider cloud.Provider, name string, min, max, desired int64, policy RetryPolicy, observer Observer, logger log.FieldLogger) (*cloud.Group, error) {
	logger.Infof("Scaling out %s to %d-%d-%d.", name, min, desired, max)
	if err := provider.UpdateGroupCapacity(ctx, name, min, max, desired); err != nil {
		return nil, err
	}
	var satisfied *cloud.Group
	attempt := 0
	err := pollUntil(ctx, policy, func() error {
		group, err := provider.DescribeGroup(ctx, name)
		if err != nil {
			return &backoff.PermanentError{Err: err}
		}
		healthy, err := InService(ctx, provider, group)
		if err != nil {
			return &backoff.PermanentError{Err: err}
		}
		if int64(len(healthy)) < desired {
			return errors.Errorf("%d/%d instances in service", len(healthy), desired)
		}
		satisfied = group
		return nil
	}, func(err error) {
		attempt++
		logger.Debugf("Still waiting for %s to scale out: %v (attempt %d).", name, err, attempt)
		observer.OnPoll(OperationScaleOut, attempt)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "asg:%s scale out did not converge", name)
	}
	return satisfied, nil
}
