package komclient

import (
	"context"
	"fmt"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/gokit/taskrunner"
	"github.com/komero-io/komero/pkg/accessmode"
	"github.com/komero-io/komero/pkg/komtypes"
	"github.com/komero-io/komero/pkg/pushchannel"
	"github.com/komero-io/komero/pkg/raidassist"
	"github.com/komero-io/komero/pkg/statuspoller"
	"github.com/spf13/cobra"
)

func watchEntrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Attaches to an in-progress RAID operation (resumes after restarts)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			osutil.ExitIfError(wrapWithStopSupport(func(ctx context.Context) error {
				panel, err := newPanel(logex.StandardLogger())
				if err != nil {
					return err
				}
				defer panel.Close()

				return panel.watchWorkflow(ctx)
			}))
		},
	}
}

// live view over one RAID operation: the assistant's state machine fed by
// both the push channel and the status poll fallback, rendered by a UI loop
type operationView struct {
	panel      *panel
	assistant  *raidassist.Assistant
	planner    *raidassist.Planner
	restClient *statuspoller.Client
	poller     *statuspoller.Poller
	channel    *pushchannel.Manager

	redraw     chan struct{} // coalesced change notifications
	refreshReq chan struct{} // assistant asking for an out-of-band poll
}

func newOperationView(p *panel) (*operationView, error) {
	o := &operationView{
		panel:      p,
		redraw:     make(chan struct{}, 1),
		refreshReq: make(chan struct{}, 1),
	}

	o.planner = p.planner()
	o.restClient = statuspoller.NewClient(p.urls)

	o.assistant = raidassist.New(
		o.planner,
		p.store,
		o.requestRefresh,
		o.requestRedraw,
		logex.Prefix("assistant", p.logger))

	poller, err := statuspoller.New(
		o.restClient,
		statuspoller.DefaultCadence,
		func(snapshot statuspoller.Snapshot) {
			o.assistant.HandleStatusPoll(snapshot.ArrayStatus)
			o.requestRedraw()
		},
		logex.Prefix("statuspoller", p.logger))
	if err != nil {
		return nil, err
	}
	o.poller = poller

	channelOptions := []pushchannel.Option{}
	if p.conf.EmbeddedBrowser {
		channelOptions = append(channelOptions, pushchannel.InsideSecureBrowser())
	}

	o.channel = pushchannel.New(pushchannel.Handlers{
		OnConnect: func(mode accessmode.Mode) {
			o.requestRedraw()
		},
		OnDisconnect: func(mode accessmode.Mode, err error) {
			// no automatic retry loop; the poll fallback keeps progress
			// flowing and a mode change triggers a fresh Connect
			o.requestRedraw()
		},
		OnMdraidLog:      o.assistant.HandleMdraidLog,
		OnResyncProgress: o.assistant.HandleResyncProgress,
		OnArrayStatus: func(status komtypes.ArrayStatus) {
			o.assistant.HandleStatusPoll(&status)
			o.requestRedraw()
		},
	}, logex.Prefix("pushchannel", p.logger), channelOptions...)

	return o, nil
}

func (o *operationView) Close() {
	o.channel.Disconnect()
	o.assistant.Close()
}

func (o *operationView) requestRedraw() {
	select {
	case o.redraw <- struct{}{}:
	default:
	}
}

func (o *operationView) requestRefresh() {
	select {
	case o.refreshReq <- struct{}{}:
	default:
	}
}

// follow runs until the operation settles (or ctx is cancelled), rendering
// state changes as they arrive.
func (o *operationView) follow(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := taskrunner.New(ctx, o.panel.logger)
	tasks.Start("statuspoller", o.poller.Task())

	// channel connect failure is not fatal: the poll fallback still shows
	// progress, and the user can retry by switching modes
	if err := o.channel.Connect(ctx, o.panel.mode, o.panel.urls); err != nil {
		logex.Levels(o.panel.logger).Error.Printf("push channel connect: %v", err)
	}

	// reconnect (to the other backend) whenever the mode is switched
	modeChanged := o.panel.resolver.Subscribe()
	defer o.panel.resolver.Unsubscribe(modeChanged)

	ui, err := newWatchUI(o)
	if err != nil {
		return err
	}
	defer ui.Close()

	idleProbe := time.NewTicker(time.Second)
	defer idleProbe.Stop()

	for {
		select {
		case <-ctx.Done():
			return tasks.Wait()
		case <-o.redraw:
			ui.Render()

			if o.settled() {
				ui.Render()
				cancel()
				return tasks.Wait()
			}
		case <-o.refreshReq:
			o.poller.RefreshNow(ctx)
		case mode := <-modeChanged:
			// the whole view follows the switch: REST polling, prechecks and
			// mutating calls move to the new backend along with the channel
			urls := o.panel.resolver.Endpoints().URLs(mode)
			o.panel.mode = mode
			o.panel.urls = urls
			o.restClient.SetUrls(urls)
			o.planner.SetUrls(urls)

			if err := o.channel.Connect(ctx, mode, urls); err != nil {
				logex.Levels(o.panel.logger).Error.Printf("push channel reconnect: %v", err)
			}
		case <-idleProbe.C:
			if o.nothingToFollow() {
				fmt.Println("no operation in progress")
				cancel()
				return tasks.Wait()
			}
			if o.settled() {
				ui.Render()
				cancel()
				return tasks.Wait()
			}
		}
	}
}

// the run ended and its outcome display window has passed
func (o *operationView) settled() bool {
	return o.assistant.Status().Terminal() && o.assistant.Progress() == nil
}

// watch was started but there is no run, no resumable session and the array
// is not syncing
func (o *operationView) nothingToFollow() bool {
	if o.assistant.Status() != komtypes.ExecutionIdle || o.assistant.Progress() != nil {
		return false
	}

	snapshot, polled := o.poller.Snapshot()
	if !polled {
		return false // no data yet; keep waiting
	}

	return snapshot.ArrayStatus == nil || !snapshot.ArrayStatus.Syncing
}
