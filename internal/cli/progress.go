package cli

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/s3desk/s3desk/registry"
)

// progressView draws one pterm bar per transfer from registry events.
// Only the watch goroutine touches it.
type progressView struct {
	out  io.Writer
	bars map[string]*bar
}

type bar struct {
	printer     *pterm.ProgressbarPrinter
	shown       int
	compressing bool
}

// watch renders reg's transfers until the returned function is called.
// The function waits for the last event to be drawn.
func watch(reg *registry.Registry, out io.Writer) func() {
	events, unsubscribe := reg.Subscribe(256)
	done := make(chan struct{})
	v := &progressView{out: out, bars: make(map[string]*bar)}

	go func() {
		defer close(done)
		for ev := range events {
			v.apply(ev)
		}
		v.stopAll()
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func (v *progressView) apply(ev registry.Event) {
	t := ev.Transfer
	if ev.Removed {
		v.stop(t.ID)
		return
	}

	b, ok := v.bars[t.ID]
	if !ok {
		b = v.start(t.ID, title(t))
		if b == nil {
			return
		}
	}

	pct := int(t.Progress)
	if t.Status == registry.StatusCompressing {
		if !b.compressing {
			// the download bar is full; compression gets a bar of its own
			b.advance(100)
			v.stop(t.ID)
			if b = v.start(t.ID, "compressing "+t.Name); b == nil {
				return
			}
			b.compressing = true
		}
		pct = int(t.Compression)
	}
	if t.Status == registry.StatusCompleted {
		pct = 100
	}
	b.advance(pct)

	if t.Status.Terminal() {
		v.stop(t.ID)
		v.report(t)
	}
}

func (v *progressView) start(id, name string) *bar {
	printer, err := pterm.DefaultProgressbar.
		WithTotal(100).
		WithTitle(name).
		WithWriter(v.out).
		WithRemoveWhenDone(false).
		Start()
	if err != nil {
		return nil
	}
	b := &bar{printer: printer}
	v.bars[id] = b
	return b
}

func (b *bar) advance(pct int) {
	pct = min(max(pct, 0), 100)
	if pct > b.shown {
		b.printer.Add(pct - b.shown)
		b.shown = pct
	}
}

func (v *progressView) stop(id string) {
	if b, ok := v.bars[id]; ok {
		_, _ = b.printer.Stop()
		delete(v.bars, id)
	}
}

func (v *progressView) stopAll() {
	for id := range v.bars {
		v.stop(id)
	}
}

func (v *progressView) report(t registry.Transfer) {
	switch t.Status {
	case registry.StatusCompleted:
		pterm.Success.WithWriter(v.out).Printfln("%s %s (%s)", t.Kind, t.Name, formatBytes(t.TotalBytes))
	case registry.StatusCancelled:
		pterm.Warning.WithWriter(v.out).Printfln("%s %s cancelled", t.Kind, t.Name)
	case registry.StatusError:
		pterm.Error.WithWriter(v.out).Printfln("%s %s: %s", t.Kind, t.Name, t.Err)
	}
}

func title(t registry.Transfer) string {
	if t.FileCount > 1 {
		return fmt.Sprintf("%s %s (%d files)", t.Kind, t.Name, t.FileCount)
	}
	return fmt.Sprintf("%s %s", t.Kind, t.Name)
}

// formatBytes renders n with a binary unit, e.g. 1.5 MiB.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
