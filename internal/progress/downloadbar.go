package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// downloadBar renders the single in-flight download with mpb. The total is
// unknown until the response headers arrive.
type downloadBar struct {
	progress   *mpb.Progress
	bar        *mpb.Bar
	lastUpdate time.Time
	hasTotal   bool
}

func newDownloadBar(w io.Writer, name string) *downloadBar {
	p := mpb.New(
		mpb.WithOutput(w),
		mpb.WithRefreshRate(300*time.Millisecond),
		mpb.WithWidth(80),
	)
	label := truncateName(name, 40)
	bar := p.New(0,
		mpb.BarStyle().
			Lbound("[").
			Filler("█").
			Tip("█").
			Padding("░").
			Rbound("]"),
		mpb.PrependDecorators(
			decor.Name("↓ "+label, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Any(func(s decor.Statistics) string {
				if s.Total <= 0 {
					return "  --.-%"
				}
				return fmt.Sprintf("%6.2f%%", float64(s.Current)/float64(s.Total)*100)
			}, decor.WCSyncSpace),
			decor.Name("  "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 60, decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
	return &downloadBar{progress: p, bar: bar, lastUpdate: time.Now()}
}

func (d *downloadBar) update(done, total int64) {
	if total > 0 && !d.hasTotal {
		d.hasTotal = true
		d.bar.SetTotal(total, false)
	}
	now := time.Now()
	d.bar.EwmaSetCurrent(done, now.Sub(d.lastUpdate))
	d.lastUpdate = now
}

// finish completes or aborts the bar and waits for the final redraw.
func (d *downloadBar) finish(err error) {
	if err != nil {
		d.bar.Abort(false)
	} else {
		d.bar.SetTotal(-1, true)
	}
	d.progress.Wait()
}

// Write prints above the bar.
func (d *downloadBar) Write(p []byte) (int, error) {
	return d.progress.Write(p)
}
