package komclient

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/komero-io/komero/pkg/accessmode"
	"github.com/komero-io/komero/pkg/byteshuman"
	"github.com/komero-io/komero/pkg/komtypes"
	"github.com/komero-io/komero/pkg/raidadvisor"
	"github.com/komero-io/komero/pkg/raidassist"
	"github.com/komero-io/komero/pkg/statuspoller"
	"github.com/komero-io/komero/pkg/tui"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const connectivityProbeTimeout = 5 * time.Second

func Entrypoints() []*cobra.Command {
	return []*cobra.Command{
		disksEntrypoint(),
		statusEntrypoint(),
		modeEntrypoint(),
		planEntrypoint(),
		addEntrypoint(),
		stopResyncEntrypoint(),
		watchEntrypoint(),
		sessionEntrypoint(),
		configInitEntrypoint(),
	}
}

func disksEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "disks",
		Short: "Lists the appliance's block devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context) error {
				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				client := statuspoller.NewClient(panel.urls)

				disks, err := client.FetchInventory(ctx)
				if err != nil {
					return err
				}

				arrayStatus, err := client.FetchArrayStatus(ctx)
				if err != nil {
					return err
				}

				view := tablewriter.NewWriter(os.Stdout)
				view.SetHeader([]string{"Device", "Name", "Size", "Mounted", "System", "Array"})

				for _, disk := range disks {
					view.Append([]string{
						disk.Path,
						disk.DisplayName,
						byteshuman.Humanize(disk.SizeBytes),
						mountedLabel(disk.Mounted, disk.MountPoint),
						boolToStr(disk.SystemDisk),
						boolToStr(arrayStatus.IsMember(disk.Path)),
					})

					for _, partition := range disk.Children {
						view.Append([]string{
							"  " + partition.Path,
							"",
							byteshuman.Humanize(partition.SizeBytes),
							mountedLabel(partition.Mounted, partition.MountPoint),
							"",
							boolToStr(arrayStatus.IsMember(partition.Path)),
						})
					}
				}

				view.Render()

				return nil
			}))
		},
	}
}

func statusEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Shows RAID array health and sync state",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context) error {
				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				status, err := statuspoller.NewClient(panel.urls).FetchArrayStatus(ctx)
				if err != nil {
					return err
				}

				if !status.Exists {
					fmt.Println("no RAID array configured")
					return nil
				}

				fmt.Printf("array state: %s (%d/%d devices active)\n",
					status.State,
					status.ActiveDevices,
					status.TotalDevices)

				if status.Syncing {
					fmt.Printf("resync:      %s  eta %s  %s\n",
						tui.ProgressBarWithPct(status.SyncProgress, 20, tui.ProgressBarDefaultTheme()),
						byteshuman.ETA(time.Duration(status.SyncETASecs)*time.Second),
						byteshuman.Speed(status.SyncSpeedBps))
				}

				view := tablewriter.NewWriter(os.Stdout)
				view.SetHeader([]string{"Member", "Size", "State"})
				for _, member := range status.Members {
					view.Append([]string{
						member.Device,
						byteshuman.Humanize(member.SizeBytes),
						member.State,
					})
				}
				view.Render()

				if suggestion := raidadvisor.Analyze(status.Members); suggestion != nil {
					fmt.Printf("\nhint: %s\n", suggestion.Message)
				}

				return nil
			}))
		},
	}
}

func modeEntrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Shows the resolved access mode (LAN-local vs internet-routed)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(func() error {
				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				fmt.Printf("%s (backend %s)\n", panel.mode, panel.urls.GetStatus())

				return nil
			}())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [private|public]",
		Short: "Manually switches access mode (verifies reachability first)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context) error {
				mode := accessmode.Mode(args[0])
				if !mode.Valid() {
					return fmt.Errorf("unknown mode: %s", args[0])
				}

				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				// never switch to a backend we cannot actually reach
				reachable, localAddress := panel.resolver.TestConnectivity(ctx, mode, connectivityProbeTimeout)
				if !reachable {
					return fmt.Errorf("not switching: %s backend is unreachable", mode)
				}

				panel.resolver.Set(mode)

				fmt.Printf("access mode set to %s\n", mode)
				if localAddress != "" {
					fmt.Printf("appliance advertises LAN address: %s\n", localAddress)
				}

				return nil
			}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "test [private|public]",
		Short: "Probes a mode's backend without switching to it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context) error {
				mode := accessmode.Mode(args[0])
				if !mode.Valid() {
					return fmt.Errorf("unknown mode: %s", args[0])
				}

				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				reachable, localAddress := panel.resolver.TestConnectivity(ctx, mode, connectivityProbeTimeout)

				fmt.Printf("%s: reachable=%s\n", mode, boolToStr(reachable))
				if localAddress != "" {
					fmt.Printf("appliance advertises LAN address: %s\n", localAddress)
				}

				return nil
			}))
		},
	})

	return cmd
}

func planEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [disk]",
		Short: "Prechecks adding a disk to the array and shows the command plan",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context) error {
				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				disk, arrayStatus, err := panel.findDisk(ctx, args[0])
				if err != nil {
					return err
				}

				plan := panel.planner().Precheck(ctx, *disk, arrayStatus)

				printPlan(plan)

				return nil
			}))
		},
	}
}

func addEntrypoint() *cobra.Command {
	dryRun := false
	assumeYes := false

	cmd := &cobra.Command{
		Use:   "add [disk]",
		Short: "Adds a disk to the RAID array and follows the resync to completion",
		Long: "Adds a disk to the RAID array. ALL DATA ON THE DISK WILL BE DESTROYED.\n" +
			"If prechecks propose a capacity rebalancing, the operation becomes\n" +
			"optimize-and-add (shrink & drop the smallest member, expand another,\n" +
			"then add the new disk).",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context) error {
				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				return panel.addDiskWorkflow(ctx, args[0], dryRun, assumeYes)
			}))
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", dryRun, "Have the backend validate the job without touching the array")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", assumeYes, "Skip the data-loss confirmation prompt")

	return cmd
}

func stopResyncEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-resync",
		Short: "Stops an in-progress resync, leaving the array in its current consistent state",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context) error {
				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				status, err := statuspoller.NewClient(panel.urls).FetchArrayStatus(ctx)
				if err != nil {
					return err
				}

				assistant := raidassist.New(panel.planner(), panel.store, nil, nil, panel.logger)
				defer assistant.Close()

				if err := assistant.Restore(time.Now()); err != nil {
					return err
				}

				// seed from the poll so stopping works even without a
				// resumable session (e.g. sync started from another panel)
				assistant.HandleStatusPoll(status)

				if err := assistant.StopResync(ctx); err != nil {
					return err
				}

				for _, entry := range assistant.Logs() {
					fmt.Println(entry.Message)
				}

				return nil
			}))
		},
	}
}

func sessionEntrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect the persisted resumable operation session",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Shows the persisted session, if any",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(func() error {
				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				// a year: show even sessions too old to be auto-resumed
				session, err := panel.store.LoadSession(365*24*time.Hour, time.Now())
				if err != nil {
					return err
				}
				if session == nil {
					fmt.Println("no persisted session")
					return nil
				}

				age := time.Since(session.SavedAt).Round(time.Second)

				fmt.Printf("status:  %s\nsaved:   %s ago (resumable within %s)\n",
					session.ExecutionStatus,
					age,
					raidassist.SessionMaxAge)
				if session.Progress != nil {
					fmt.Printf("progress: %.1f %%\n", session.Progress.Percent)
				}
				for _, entry := range session.Logs {
					fmt.Printf("  %s [%s] %s\n", entry.Timestamp.Format(time.RFC3339), entry.Severity, entry.Message)
				}

				return nil
			}())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drops the persisted session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(func() error {
				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				return panel.store.ClearSession()
			}())
		},
	})

	return cmd
}

func printPlan(plan *raidassist.Plan) {
	for _, blocker := range plan.BlockingErrors {
		fmt.Printf("BLOCKED: %s\n", blocker)
	}
	for _, warning := range plan.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}

	if optimization := plan.SmartOptimization; optimization != nil {
		fmt.Printf(
			"\nprechecks propose optimize-and-add: drop %s, expand %s, add %s (gains %s)\n",
			optimization.RemoveMember,
			optimization.ExpandMember,
			optimization.AddDisk,
			byteshuman.Humanize(optimization.EstimatedGain))

		printCommands(optimization.Steps)
	} else if len(plan.Commands) > 0 {
		printCommands(plan.Commands)
	}

	fmt.Printf("\ncan proceed: %s\n", boolToStr(plan.CanProceed))
}

func printCommands(commands []komtypes.Command) {
	view := tablewriter.NewWriter(os.Stdout)
	view.SetHeader([]string{"Step", "Command", "Destructive"})

	for _, command := range commands {
		view.Append([]string{command.Description, command.Command, boolToStr(command.Destructive)})
	}

	view.Render()
}

func confirmDataLoss(diskPath string) (bool, error) {
	fmt.Printf("\nThis will DESTROY ALL DATA on %s. Type 'yes' to continue: ", diskPath)

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}

	return strings.TrimSpace(answer) == "yes", nil
}

func mountedLabel(mounted bool, mountPoint string) string {
	if !mounted {
		return "-"
	}
	if mountPoint == "" {
		return "yes"
	}

	return mountPoint
}

func boolToStr(input bool) string {
	if input {
		return "true"
	} else {
		return "false"
	}
}

func wrapWithStopSupport(fn func(ctx context.Context) error) error {
	return fn(osutil.CancelOnInterruptOrTerminate(logex.StandardLogger()))
}
