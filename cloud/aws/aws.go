// Package aws implements the cloud.Provider capability surface on top of the
// AWS Auto Scaling, Elastic Load Balancing and EC2 APIs.
package aws

import (
	"context"

	"github.com/marek-obuchowicz/senza/cloud"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/autoscaling/autoscalingiface"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/elb"
	"github.com/aws/aws-sdk-go/service/elb/elbiface"
	"github.com/pkg/errors"
)

// Clients bundles the AWS service clients behind the cloud.Provider boundary.
type Clients struct {
	autoScaling autoscalingiface.AutoScalingAPI
	elb         elbiface.ELBAPI
	ec2         ec2iface.EC2API
}

// New returns Clients backed by real AWS service endpoints.
func New(configProvider client.ConfigProvider) *Clients {
	return &Clients{
		autoScaling: autoscaling.New(configProvider),
		elb:         elb.New(configProvider),
		ec2:         ec2.New(configProvider),
	}
}

// DescribeGroup returns a fresh snapshot of the named auto scaling group.
func (c *Clients) DescribeGroup(ctx context.Context, name string) (*cloud.Group, error) {
	output, err := c.autoScaling.DescribeAutoScalingGroupsWithContext(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: aws.StringSlice([]string{name}),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "asg:%s failed to describe auto scaling group", name)
	}
	if len(output.AutoScalingGroups) == 0 {
		return nil, &cloud.NotFoundError{Group: name}
	}
	return convertGroup(output.AutoScalingGroups[0]), nil
}

// UpdateGroupCapacity issues a single capacity update with the three new bounds.
func (c *Clients) UpdateGroupCapacity(ctx context.Context, name string, min, max, desired int64) error {
	_, err := c.autoScaling.UpdateAutoScalingGroupWithContext(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(name),
		MinSize:              aws.Int64(min),
		MaxSize:              aws.Int64(max),
		DesiredCapacity:      aws.Int64(desired),
	})
	return errors.Wrapf(err, "asg:%s failed to update capacity to %d-%d-%d", name, min, desired, max)
}

// TerminateInstance destroys one instance of the group. The provider keeps
// the group's desired capacity unless decrementDesired is set.
func (c *Clients) TerminateInstance(ctx context.Context, instanceID string, decrementDesired bool) error {
	_, err := c.autoScaling.TerminateInstanceInAutoScalingGroupWithContext(ctx,
		&autoscaling.TerminateInstanceInAutoScalingGroupInput{
			InstanceId:                     aws.String(instanceID),
			ShouldDecrementDesiredCapacity: aws.Bool(decrementDesired),
		})
	return errors.Wrapf(err, "instance:%s failed to terminate instance in auto scaling group", instanceID)
}

// SuspendProcesses pauses the named scaling processes of the group.
func (c *Clients) SuspendProcesses(ctx context.Context, name string, processes []string) error {
	_, err := c.autoScaling.SuspendProcessesWithContext(ctx, &autoscaling.ScalingProcessQuery{
		AutoScalingGroupName: aws.String(name),
		ScalingProcesses:     aws.StringSlice(processes),
	})
	return errors.Wrapf(err, "asg:%s suspend processes failure", name)
}

// ResumeProcesses re-enables all suspended scaling processes of the group.
func (c *Clients) ResumeProcesses(ctx context.Context, name string) error {
	_, err := c.autoScaling.ResumeProcessesWithContext(ctx, &autoscaling.ScalingProcessQuery{
		AutoScalingGroupName: aws.String(name),
	})
	return errors.Wrapf(err, "asg:%s resume processes failure", name)
}

// LoadBalancerInstanceHealth reports the health of every instance registered
// with the named classic load balancer.
func (c *Clients) LoadBalancerInstanceHealth(ctx context.Context, lbName string) ([]cloud.InstanceHealth, error) {
	output, err := c.elb.DescribeInstanceHealthWithContext(ctx, &elb.DescribeInstanceHealthInput{
		LoadBalancerName: aws.String(lbName),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "elb:%s failed to describe instance health", lbName)
	}
	states := make([]cloud.InstanceHealth, 0, len(output.InstanceStates))
	for _, state := range output.InstanceStates {
		states = append(states, cloud.InstanceHealth{
			InstanceID: aws.StringValue(state.InstanceId),
			State:      aws.StringValue(state.State),
		})
	}
	return states, nil
}

// DescribeInstanceDetails fetches EC2 details for the given instances, keyed
// by instance ID. Instances unknown to EC2 are missing from the result.
func (c *Clients) DescribeInstanceDetails(ctx context.Context, instanceIDs []string) (map[string]cloud.InstanceDetail, error) {
	details := make(map[string]cloud.InstanceDetail, len(instanceIDs))
	if len(instanceIDs) == 0 {
		return details, nil
	}
	err := c.ec2.DescribeInstancesPagesWithContext(ctx,
		&ec2.DescribeInstancesInput{InstanceIds: aws.StringSlice(instanceIDs)},
		func(output *ec2.DescribeInstancesOutput, lastPage bool) bool {
			for _, reservation := range output.Reservations {
				for _, instance := range reservation.Instances {
					detail := cloud.InstanceDetail{
						ID:             aws.StringValue(instance.InstanceId),
						PrivateDNSName: aws.StringValue(instance.PrivateDnsName),
						InstanceType:   aws.StringValue(instance.InstanceType),
						LaunchTime:     aws.TimeValue(instance.LaunchTime),
					}
					// State can be nil on very fresh instances.
					if instance.State != nil {
						detail.State = aws.StringValue(instance.State.Name)
					}
					details[detail.ID] = detail
				}
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrap(err, "failed to describe ec2 instances")
	}
	return details, nil
}

func convertGroup(group *autoscaling.Group) *cloud.Group {
	converted := &cloud.Group{
		Name:                    aws.StringValue(group.AutoScalingGroupName),
		MinSize:                 aws.Int64Value(group.MinSize),
		MaxSize:                 aws.Int64Value(group.MaxSize),
		DesiredCapacity:         aws.Int64Value(group.DesiredCapacity),
		LaunchConfigurationName: aws.StringValue(group.LaunchConfigurationName),
		LoadBalancerNames:       aws.StringValueSlice(group.LoadBalancerNames),
	}
	for _, instance := range group.Instances {
		converted.Instances = append(converted.Instances, cloud.Instance{
			ID:                      aws.StringValue(instance.InstanceId),
			LifecycleState:          cloud.LifecycleState(aws.StringValue(instance.LifecycleState)),
			LaunchConfigurationName: aws.StringValue(instance.LaunchConfigurationName),
		})
	}
	return converted
}
