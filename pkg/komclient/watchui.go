package komclient

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/komero-io/komero/pkg/byteshuman"
	"github.com/komero-io/komero/pkg/komtypes"
	"github.com/komero-io/komero/pkg/logtee"
	"github.com/komero-io/komero/pkg/tui"
	"github.com/mattn/go-isatty"
	"github.com/nsf/termbox-go"
	"github.com/olekukonko/tablewriter"
)

const logTailCapacity = 15

type watchUI interface {
	Render()
	// returns only after resources (like termbox) used by the UI are freed
	Close()
}

func newWatchUI(o *operationView) (watchUI, error) {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return newWatchFullscreenUI(o)
	}

	return &watchLineUI{view: o}, nil
}

// full-screen terminal view, redrawn in place on every state change
type watchFullscreenUI struct {
	view *operationView
	tail *logtee.LogTail
}

func newWatchFullscreenUI(o *operationView) (*watchFullscreenUI, error) {
	// while using termbox, ctrl+c doesn't work as a SIGINT anymore:
	//   https://github.com/nsf/termbox-go/issues/50#issuecomment-60668910
	if err := termbox.Init(); err != nil {
		return nil, err
	}

	return &watchFullscreenUI{
		view: o,
		tail: logtee.NewLogTail(logTailCapacity),
	}, nil
}

func (u *watchFullscreenUI) Render() {
	u.tail.Replace(u.view.assistant.Logs())

	rendered := &bytes.Buffer{}

	fmt.Fprintf(rendered, "Komero › RAID operation   [status: %s]\n\n", u.view.assistant.Status())

	if progress := u.view.assistant.Progress(); progress != nil {
		fmt.Fprintf(rendered, "%s", tui.ProgressBarWithPct(progress.Percent, 40, tui.ProgressBarDefaultTheme()))
		if progress.ETA != "" {
			fmt.Fprintf(rendered, "   eta %s", progress.ETA)
		}
		if progress.Speed != "" {
			fmt.Fprintf(rendered, "   %s", progress.Speed)
		}
		fmt.Fprintf(rendered, "\n\n")
	}

	if snapshot, polled := u.view.poller.Snapshot(); polled && snapshot.ArrayStatus != nil {
		renderArraySummary(rendered, snapshot.ArrayStatus)
	}

	fmt.Fprintf(rendered, "channel: %s\n\n", u.view.channel.Status())

	for _, line := range u.tail.Snapshot() {
		fmt.Fprintf(rendered, "%s\n", line)
	}

	if err := termbox.Clear(termbox.ColorDefault, termbox.ColorDefault); err != nil {
		return
	}

	drawLinesToTerminal(strings.Split(rendered.String(), "\n"))

	_ = termbox.Flush()
}

func (u *watchFullscreenUI) Close() {
	termbox.Close()
}

func renderArraySummary(rendered *bytes.Buffer, status *komtypes.ArrayStatus) {
	summary := tablewriter.NewWriter(rendered)
	summary.SetAutoFormatHeaders(false)
	summary.SetBorder(false)
	summary.SetHeader([]string{"Member", "Size", "State"})

	for _, member := range status.Members {
		summary.Append([]string{
			member.Device,
			byteshuman.Humanize(member.SizeBytes),
			member.State,
		})
	}

	summary.Render()
	fmt.Fprintf(rendered, "\n")
}

func drawLinesToTerminal(lines []string) {
	for j, line := range lines {
		lineAsRunes := []rune(line)

		for i := 0; i < len(lineAsRunes); i++ {
			termbox.SetCell(i, j, lineAsRunes[i], termbox.ColorDefault, termbox.ColorDefault)
		}
	}
}

// plain line output for non-tty stdout (pipes, CI)
type watchLineUI struct {
	view            *operationView
	printedLogCount int
	lastPercent     float64
}

func (u *watchLineUI) Render() {
	logs := u.view.assistant.Logs()

	for _, entry := range logs[u.printedLogCount:] {
		fmt.Println(logtee.FormatEntry(entry))
	}
	u.printedLogCount = len(logs)

	if progress := u.view.assistant.Progress(); progress != nil && progress.Percent != u.lastPercent {
		u.lastPercent = progress.Percent

		line := fmt.Sprintf("progress: %.1f %%", progress.Percent)
		if progress.ETA != "" {
			line += "  eta " + progress.ETA
		}
		if progress.Speed != "" {
			line += "  " + progress.Speed
		}
		fmt.Println(line)
	}
}

func (u *watchLineUI) Close() {}
