package aws

import (
	"context"
	"testing"
	"time"

	"github.com/marek-obuchowicz/senza/cloud"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/autoscaling/autoscalingiface"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/elb"
	"github.com/aws/aws-sdk-go/service/elb/elbiface"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAutoScaling struct {
	autoscalingiface.AutoScalingAPI
	describeOutput *autoscaling.DescribeAutoScalingGroupsOutput
	describeErr    error
	updateErr      error
	gotDescribe    *autoscaling.DescribeAutoScalingGroupsInput
	gotUpdate      *autoscaling.UpdateAutoScalingGroupInput
	gotTerminate   *autoscaling.TerminateInstanceInAutoScalingGroupInput
	gotSuspend     *autoscaling.ScalingProcessQuery
	gotResume      *autoscaling.ScalingProcessQuery
}

func (m *mockAutoScaling) DescribeAutoScalingGroupsWithContext(_ aws.Context, input *autoscaling.DescribeAutoScalingGroupsInput, _ ...request.Option) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	m.gotDescribe = input
	return m.describeOutput, m.describeErr
}

func (m *mockAutoScaling) UpdateAutoScalingGroupWithContext(_ aws.Context, input *autoscaling.UpdateAutoScalingGroupInput, _ ...request.Option) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
	m.gotUpdate = input
	return &autoscaling.UpdateAutoScalingGroupOutput{}, m.updateErr
}

func (m *mockAutoScaling) TerminateInstanceInAutoScalingGroupWithContext(_ aws.Context, input *autoscaling.TerminateInstanceInAutoScalingGroupInput, _ ...request.Option) (*autoscaling.TerminateInstanceInAutoScalingGroupOutput, error) {
	m.gotTerminate = input
	return &autoscaling.TerminateInstanceInAutoScalingGroupOutput{}, nil
}

func (m *mockAutoScaling) SuspendProcessesWithContext(_ aws.Context, input *autoscaling.ScalingProcessQuery, _ ...request.Option) (*autoscaling.SuspendProcessesOutput, error) {
	m.gotSuspend = input
	return &autoscaling.SuspendProcessesOutput{}, nil
}

func (m *mockAutoScaling) ResumeProcessesWithContext(_ aws.Context, input *autoscaling.ScalingProcessQuery, _ ...request.Option) (*autoscaling.ResumeProcessesOutput, error) {
	m.gotResume = input
	return &autoscaling.ResumeProcessesOutput{}, nil
}

type mockELB struct {
	elbiface.ELBAPI
	output   *elb.DescribeInstanceHealthOutput
	err      error
	gotInput *elb.DescribeInstanceHealthInput
}

func (m *mockELB) DescribeInstanceHealthWithContext(_ aws.Context, input *elb.DescribeInstanceHealthInput, _ ...request.Option) (*elb.DescribeInstanceHealthOutput, error) {
	m.gotInput = input
	return m.output, m.err
}

type mockEC2 struct {
	ec2iface.EC2API
	pages    []*ec2.DescribeInstancesOutput
	err      error
	gotInput *ec2.DescribeInstancesInput
}

func (m *mockEC2) DescribeInstancesPagesWithContext(_ aws.Context, input *ec2.DescribeInstancesInput, fn func(*ec2.DescribeInstancesOutput, bool) bool, _ ...request.Option) error {
	m.gotInput = input
	for i, page := range m.pages {
		if !fn(page, i == len(m.pages)-1) {
			break
		}
	}
	return m.err
}

func TestDescribeGroupConvertsGroup(t *testing.T) {
	mock := &mockAutoScaling{describeOutput: &autoscaling.DescribeAutoScalingGroupsOutput{
		AutoScalingGroups: []*autoscaling.Group{{
			AutoScalingGroupName:    aws.String("test-asg"),
			MinSize:                 aws.Int64(1),
			MaxSize:                 aws.Int64(3),
			DesiredCapacity:         aws.Int64(2),
			LaunchConfigurationName: aws.String("cfg-new"),
			LoadBalancerNames:       []*string{aws.String("lb-1")},
			Instances: []*autoscaling.Instance{
				{
					InstanceId:              aws.String("i-a"),
					LifecycleState:          aws.String("InService"),
					LaunchConfigurationName: aws.String("cfg-old"),
				},
				{
					// Launch configuration deleted upstream.
					InstanceId:     aws.String("i-b"),
					LifecycleState: aws.String("Pending"),
				},
			},
		}},
	}}
	clients := &Clients{autoScaling: mock}

	group, err := clients.DescribeGroup(context.Background(), "test-asg")
	require.NoError(t, err)

	assert.Equal(t, &cloud.Group{
		Name:                    "test-asg",
		MinSize:                 1,
		MaxSize:                 3,
		DesiredCapacity:         2,
		LaunchConfigurationName: "cfg-new",
		LoadBalancerNames:       []string{"lb-1"},
		Instances: []cloud.Instance{
			{ID: "i-a", LifecycleState: cloud.LifecycleInService, LaunchConfigurationName: "cfg-old"},
			{ID: "i-b", LifecycleState: cloud.LifecyclePending, LaunchConfigurationName: ""},
		},
	}, group)

	require.NotNil(t, mock.gotDescribe)
	assert.Equal(t, []string{"test-asg"}, aws.StringValueSlice(mock.gotDescribe.AutoScalingGroupNames))
}

func TestDescribeGroupNotFound(t *testing.T) {
	mock := &mockAutoScaling{describeOutput: &autoscaling.DescribeAutoScalingGroupsOutput{}}
	clients := &Clients{autoScaling: mock}

	_, err := clients.DescribeGroup(context.Background(), "missing-asg")
	require.Error(t, err)
	assert.True(t, cloud.IsNotFound(err))
	assert.EqualError(t, err, "auto scaling group missing-asg not found")
}

func TestDescribeGroupError(t *testing.T) {
	describeErr := errors.New("throttled")
	mock := &mockAutoScaling{describeErr: describeErr}
	clients := &Clients{autoScaling: mock}

	_, err := clients.DescribeGroup(context.Background(), "test-asg")
	require.Error(t, err)
	assert.Equal(t, describeErr, errors.Cause(err))
	assert.Contains(t, err.Error(), "asg:test-asg")
}

func TestUpdateGroupCapacity(t *testing.T) {
	mock := &mockAutoScaling{}
	clients := &Clients{autoScaling: mock}

	require.NoError(t, clients.UpdateGroupCapacity(context.Background(), "test-asg", 2, 4, 3))

	require.NotNil(t, mock.gotUpdate)
	assert.Equal(t, "test-asg", aws.StringValue(mock.gotUpdate.AutoScalingGroupName))
	assert.Equal(t, int64(2), aws.Int64Value(mock.gotUpdate.MinSize))
	assert.Equal(t, int64(4), aws.Int64Value(mock.gotUpdate.MaxSize))
	assert.Equal(t, int64(3), aws.Int64Value(mock.gotUpdate.DesiredCapacity))
}

func TestUpdateGroupCapacityError(t *testing.T) {
	updateErr := errors.New("access denied")
	clients := &Clients{autoScaling: &mockAutoScaling{updateErr: updateErr}}

	err := clients.UpdateGroupCapacity(context.Background(), "test-asg", 2, 4, 3)
	require.Error(t, err)
	assert.Equal(t, updateErr, errors.Cause(err))
}

func TestTerminateInstance(t *testing.T) {
	tests := []struct {
		name             string
		decrementDesired bool
	}{
		{name: "keep desired capacity", decrementDesired: false},
		{name: "decrement desired capacity", decrementDesired: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockAutoScaling{}
			clients := &Clients{autoScaling: mock}

			require.NoError(t, clients.TerminateInstance(context.Background(), "i-a", tc.decrementDesired))

			require.NotNil(t, mock.gotTerminate)
			assert.Equal(t, "i-a", aws.StringValue(mock.gotTerminate.InstanceId))
			assert.Equal(t, tc.decrementDesired, aws.BoolValue(mock.gotTerminate.ShouldDecrementDesiredCapacity))
		})
	}
}

func TestSuspendProcesses(t *testing.T) {
	mock := &mockAutoScaling{}
	clients := &Clients{autoScaling: mock}

	processes := []string{"AZRebalance", "AlarmNotification", "ScheduledActions"}
	require.NoError(t, clients.SuspendProcesses(context.Background(), "test-asg", processes))

	require.NotNil(t, mock.gotSuspend)
	assert.Equal(t, "test-asg", aws.StringValue(mock.gotSuspend.AutoScalingGroupName))
	assert.Equal(t, processes, aws.StringValueSlice(mock.gotSuspend.ScalingProcesses))
}

func TestResumeProcesses(t *testing.T) {
	mock := &mockAutoScaling{}
	clients := &Clients{autoScaling: mock}

	require.NoError(t, clients.ResumeProcesses(context.Background(), "test-asg"))

	require.NotNil(t, mock.gotResume)
	assert.Equal(t, "test-asg", aws.StringValue(mock.gotResume.AutoScalingGroupName))
	// Resuming with no process list resumes everything.
	assert.Nil(t, mock.gotResume.ScalingProcesses)
}

func TestLoadBalancerInstanceHealth(t *testing.T) {
	mock := &mockELB{output: &elb.DescribeInstanceHealthOutput{
		InstanceStates: []*elb.InstanceState{
			{InstanceId: aws.String("i-a"), State: aws.String("InService")},
			{InstanceId: aws.String("i-b"), State: aws.String("OutOfService")},
		},
	}}
	clients := &Clients{elb: mock}

	states, err := clients.LoadBalancerInstanceHealth(context.Background(), "lb-1")
	require.NoError(t, err)

	assert.Equal(t, []cloud.InstanceHealth{
		{InstanceID: "i-a", State: "InService"},
		{InstanceID: "i-b", State: "OutOfService"},
	}, states)
	require.NotNil(t, mock.gotInput)
	assert.Equal(t, "lb-1", aws.StringValue(mock.gotInput.LoadBalancerName))
}

func TestLoadBalancerInstanceHealthError(t *testing.T) {
	lbErr := errors.New("throttled")
	clients := &Clients{elb: &mockELB{err: lbErr}}

	_, err := clients.LoadBalancerInstanceHealth(context.Background(), "lb-1")
	require.Error(t, err)
	assert.Equal(t, lbErr, errors.Cause(err))
	assert.Contains(t, err.Error(), "elb:lb-1")
}

func TestDescribeInstanceDetails(t *testing.T) {
	launched := time.Date(2019, 4, 2, 10, 0, 0, 0, time.UTC)
	mock := &mockEC2{pages: []*ec2.DescribeInstancesOutput{{
		Reservations: []*ec2.Reservation{
			{Instances: []*ec2.Instance{{
				InstanceId:     aws.String("i-a"),
				PrivateDnsName: aws.String("ip-10-0-0-1.internal"),
				InstanceType:   aws.String("m4.large"),
				LaunchTime:     aws.Time(launched),
				State:          &ec2.InstanceState{Name: aws.String("running")},
			}}},
			{Instances: []*ec2.Instance{{
				// A very fresh instance can report no state yet.
				InstanceId: aws.String("i-b"),
			}}},
		},
	}}}
	clients := &Clients{ec2: mock}

	details, err := clients.DescribeInstanceDetails(context.Background(), []string{"i-a", "i-b"})
	require.NoError(t, err)

	assert.Equal(t, map[string]cloud.InstanceDetail{
		"i-a": {
			ID:             "i-a",
			PrivateDNSName: "ip-10-0-0-1.internal",
			InstanceType:   "m4.large",
			State:          "running",
			LaunchTime:     launched,
		},
		"i-b": {ID: "i-b"},
	}, details)
	require.NotNil(t, mock.gotInput)
	assert.Equal(t, []string{"i-a", "i-b"}, aws.StringValueSlice(mock.gotInput.InstanceIds))
}

func TestDescribeInstanceDetailsEmpty(t *testing.T) {
	mock := &mockEC2{}
	clients := &Clients{ec2: mock}

	details, err := clients.DescribeInstanceDetails(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, details)
	assert.Nil(t, mock.gotInput, "ec2 must not be queried for an empty id list")
}
