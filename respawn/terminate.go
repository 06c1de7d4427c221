package respawn

import (
	"context"

	"github.com/marek-obuchowicz/senza/cloud"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TerminateInstance destroys one group instance and blocks until the health
// oracle no longer counts it. The provider is told not to decrement desired
// capacity: bookkeeping stays with the caller, which rebalances on the next
// scale-out or restore.
func TerminateInstance(ctx context.Context, provider cloud.Provider, group *cloud.Group, instanceID string, policy RetryPolicy, observer Observer, logger log.FieldLogger) error {
	logger.Infof("Terminating old instance %s.", instanceID)
	if err := provider.TerminateInstance(ctx, instanceID, false); err != nil {
		return err
	}
	attempt := 0
	err := pollUntil(ctx, policy, func() error {
		healthy, err := InService(ctx, provider, group)
		if err != nil {
			return &backoff.PermanentError{Err: err}
		}
		if _, ok := healthy[instanceID]; ok {
			return errors.Errorf("instance %s still in service", instanceID)
		}
		return nil
	}, func(err error) {
		attempt++
		logger.Debugf("Still draining %s: %v (attempt %d).", instanceID, err, attempt)
		observer.OnPoll(OperationTerminate, attempt)
	})
	return errors.Wrapf(err, "asg:%s instance %s did not leave service", group.Name, instanceID)
}
