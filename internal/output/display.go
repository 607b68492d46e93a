package output

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cleandl/cleandl/internal/engine"
	"github.com/cleandl/cleandl/internal/scan"
	"github.com/cleandl/cleandl/internal/utils"
)

// Display periodically redraws the state of all downloads in place. It
// pulls snapshots from a list function so it never holds engine locks.
type Display struct {
	list     func() []engine.Snapshot
	tick     time.Duration
	doneCh   chan struct{}
	wg       sync.WaitGroup
	numLines int
}

func NewDisplay(list func() []engine.Snapshot) *Display {
	return &Display{
		list:   list,
		tick:   300 * time.Millisecond,
		doneCh: make(chan struct{}),
	}
}

func (d *Display) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.redraw()
			case <-d.doneCh:
				d.redraw()
				d.showSummary()
				return
			}
		}
	}()
}

func (d *Display) Stop() {
	close(d.doneCh)
	d.wg.Wait()
}

func (d *Display) redraw() {
	snaps := d.list()
	availableLines := getTerminalHeight() - 3
	if d.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", d.numLines)
	}
	lineCount := 0
	for _, snap := range snaps {
		if lineCount >= availableLines {
			break
		}
		fmt.Println(renderLine(snap))
		lineCount++
	}
	d.numLines = lineCount
}

func renderLine(snap engine.Snapshot) string {
	indent := strings.Repeat(" ", 2)
	name := snap.Name
	if name == "" {
		name = truncate(snap.URL, 48)
	}
	switch snap.Status {
	case engine.StatusQueued:
		return fmt.Sprintf("%s%s %s", indent, pendingStyle.Render(StyleSymbols["pending"]), pendingStyle.Render("Waiting: "+name))
	case engine.StatusDownloading:
		bar := ProgressBar(snap.Downloaded, snap.TotalSize, 30)
		detail := fmt.Sprintf("%s / %s %s %s",
			utils.FormatBytes(uint64(snap.Downloaded)), utils.FormatBytes(uint64(snap.TotalSize)),
			StyleSymbols["bullet"], utils.FormatSpeed(snap.Speed))
		if snap.TotalSize <= 0 {
			detail = fmt.Sprintf("%s %s %s", utils.FormatBytes(uint64(snap.Downloaded)), StyleSymbols["bullet"], utils.FormatSpeed(snap.Speed))
			return fmt.Sprintf("%s%s %s %s", indent, infoStyle.Render(StyleSymbols["bullet"]), name, debugStyle.Render(detail))
		}
		return fmt.Sprintf("%s%s %s %s", indent, bar, name, debugStyle.Render(detail))
	case engine.StatusPaused:
		return fmt.Sprintf("%s%s %s %s", indent, warningStyle.Render(StyleSymbols["warning"]), name,
			warningStyle.Render(fmt.Sprintf("paused at %s", utils.FormatBytes(uint64(snap.Downloaded)))))
	case engine.StatusVerifying:
		return fmt.Sprintf("%s%s %s %s", indent, infoStyle.Render(StyleSymbols["bullet"]), name, infoStyle.Render("verifying..."))
	case engine.StatusCompleted:
		line := fmt.Sprintf("%s%s %s %s", indent, successStyle.Render(StyleSymbols["pass"]), name,
			debugStyle.Render(utils.FormatBytes(uint64(snap.TotalSize))))
		if snap.Scan != nil {
			line += " " + renderScan(snap.Scan)
		}
		return line
	case engine.StatusCanceled:
		return fmt.Sprintf("%s%s %s %s", indent, debugStyle.Render(StyleSymbols["fail"]), name, debugStyle.Render("canceled"))
	case engine.StatusFailed:
		return fmt.Sprintf("%s%s %s %s", indent, errorStyle.Render(StyleSymbols["fail"]), name, errorStyle.Render(snap.Message))
	}
	return fmt.Sprintf("%s%s %s", indent, debugStyle.Render(StyleSymbols["bullet"]), name)
}

func renderScan(result *scan.Result) string {
	switch result.Status {
	case scan.StatusSafe:
		return successStyle.Render("[scan: clean]")
	case scan.StatusWarning:
		return warningStyle.Render("[scan: suspicious]")
	case scan.StatusDanger:
		return errorStyle.Render("[scan: MALICIOUS]")
	case scan.StatusPending:
		return pendingStyle.Render("[scan: pending]")
	default:
		return debugStyle.Render(fmt.Sprintf("[scan: %s]", result.Status))
	}
}

func (d *Display) showSummary() {
	snaps := d.list()
	var completed, failed, canceled int
	for _, snap := range snaps {
		switch snap.Status {
		case engine.StatusCompleted:
			completed++
		case engine.StatusFailed:
			failed++
		case engine.StatusCanceled:
			canceled++
		}
	}
	fmt.Println()
	indent := strings.Repeat(" ", 2)
	fmt.Println(indent + successStyle.Render(fmt.Sprintf("Completed %d of %d", completed, len(snaps))))
	if failed > 0 {
		fmt.Println(indent + errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, len(snaps))))
		for _, snap := range snaps {
			if snap.Status == engine.StatusFailed {
				fmt.Printf("%s%s %s\n", indent+indent, errorStyle.Render(snap.URL), debugStyle.Render(snap.Message))
			}
		}
	}
	if canceled > 0 {
		fmt.Println(indent + debugStyle.Render(fmt.Sprintf("Canceled %d of %d", canceled, len(snaps))))
	}
	fmt.Println()
}
