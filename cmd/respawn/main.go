package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	cloudaws "github.com/marek-obuchowicz/senza/cloud/aws"
	"github.com/marek-obuchowicz/senza/respawn"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
)

var opts struct {
	Region            string        `short:"r" long:"region" env:"AWS_REGION" description:"AWS region hosting the auto scaling group"`
	InPlace           bool          `short:"i" long:"inplace" description:"replace instances without temporary extra capacity"`
	DryRun            bool          `short:"n" long:"dry-run" description:"report what would be replaced and exit without changing anything"`
	Timeout           time.Duration `short:"t" long:"timeout" description:"abort the run after this long (default: wait forever)"`
	MaxPollAttempts   uint64        `long:"max-poll-attempts" description:"give up a wait after this many polls (default: poll forever)"`
	ScaleOutInterval  time.Duration `long:"scale-out-interval" default:"5s" description:"pause between scale-out polls"`
	TerminateInterval time.Duration `long:"terminate-interval" default:"2s" description:"pause between termination polls"`
	NoCleanup         bool          `long:"no-cleanup" description:"do not restore capacity or resume processes when a run fails"`
	Verbose           bool          `short:"v" long:"verbose" description:"enable debug logging"`
}

func main() {
	args, err := flags.Parse(&opts)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: respawn [OPTIONS] GROUP_NAME")
		os.Exit(2)
	}
	groupName := args[0]

	if opts.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.WithField("asg", groupName)

	config := aws.NewConfig()
	if opts.Region != "" {
		config = config.WithRegion(opts.Region)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		logger.Fatalln("Failed to create aws session:", err)
	}
	clients := cloudaws.New(sess)

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if opts.DryRun {
		report, err := respawn.Inspect(ctx, clients, clients, groupName, nil)
		if err != nil {
			logger.Fatalln(err)
		}
		printReport(os.Stdout, report)
		return
	}

	var polls int
	observer := respawn.ObserverFunc(func(string, int) {
		polls++
		fmt.Print(".")
	})
	flushDots := func() {
		if polls > 0 {
			fmt.Println()
			polls = 0
		}
	}

	respawner, err := respawn.New(respawn.Config{
		Provider:        clients,
		GroupName:       groupName,
		InPlace:         opts.InPlace,
		ScaleOutPolicy:  respawn.RetryPolicy{Interval: opts.ScaleOutInterval, MaxAttempts: opts.MaxPollAttempts},
		TerminatePolicy: respawn.RetryPolicy{Interval: opts.TerminateInterval, MaxAttempts: opts.MaxPollAttempts},
		Observer:        observer,
		SkipCleanup:     opts.NoCleanup,
		FieldLogger:     logger,
	})
	if err != nil {
		logger.Fatalln(err)
	}
	if err := respawner.Run(ctx); err != nil {
		flushDots()
		logger.Fatalln(err)
	}
	flushDots()
}

func printReport(out io.Writer, report *respawn.Report) {
	fmt.Fprintf(out, "%s: launch configuration %s, capacity %d-%d-%d, %d/%d instances need to be updated\n",
		report.Group.Name, report.Group.LaunchConfigurationName,
		report.Group.MinSize, report.Group.DesiredCapacity, report.Group.MaxSize,
		report.StaleCount, len(report.Rows))
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Instance", "Launch Config", "Lifecycle", "Stale", "Type", "Private DNS", "Launched"})
	rows := make([][]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		stale := ""
		if row.Stale {
			stale = "yes"
		}
		var instanceType, dnsName, launched string
		if row.Detail != nil {
			instanceType = row.Detail.InstanceType
			dnsName = row.Detail.PrivateDNSName
			launched = humanize.RelTime(row.Detail.LaunchTime, time.Now(), "ago", "")
		}
		rows = append(rows, []string{
			row.InstanceID,
			row.LaunchConfigurationName,
			string(row.LifecycleState),
			stale,
			instanceType,
			dnsName,
			launched,
		})
	}
	table.AppendBulk(rows)
	table.Render()
}
