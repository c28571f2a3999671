package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// uploadBar renders the single in-flight upload with progressbar.
type uploadBar struct {
	bar   *progressbar.ProgressBar
	total int64
}

func newUploadBar(w io.Writer, name string) *uploadBar {
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription("Uploading "+truncateName(name, 40)),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &uploadBar{bar: bar}
}

func (u *uploadBar) update(done, total int64) {
	if total > 0 && total != u.total {
		u.total = total
		u.bar.ChangeMax64(total)
	}
	_ = u.bar.Set64(done)
}

func (u *uploadBar) finish(err error) {
	if err != nil {
		_ = u.bar.Exit()
		return
	}
	_ = u.bar.Finish()
}
