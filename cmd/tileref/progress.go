package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// progressBar renders batch progress on a terminal.
type progressBar struct {
	pw      progress.Writer
	tracker *progress.Tracker
	done    chan struct{}
}

func startProgress(out io.Writer, message string, total int) *progressBar {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(true)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true

	tracker := &progress.Tracker{Message: message, Total: int64(total), Units: progress.UnitsDefault}
	pw.AppendTracker(tracker)

	bar := &progressBar{pw: pw, tracker: tracker, done: make(chan struct{})}
	go func() {
		pw.Render()
		close(bar.done)
	}()
	return bar
}

func (b *progressBar) Add(n int) {
	b.tracker.Increment(int64(n))
}

// Stop completes the tracker and waits for the final frame.
func (b *progressBar) Stop() {
	b.tracker.MarkAsDone()
	<-b.done
}
