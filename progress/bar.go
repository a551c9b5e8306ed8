package progress

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Bar returns a Factory whose root trackers drive a terminal progress bar
// written to w. The bar advances whenever work is reported to the root and
// shows the package that most recently started.
func Bar(w io.Writer) Factory {
	return func(name string, total int) Tracker {
		bar := progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(name),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "│",
				BarEnd:        "│",
			}),
		)
		return newRoot(name, total, &barSink{bar: bar, name: name})
	}
}

type barSink struct {
	bar  *progressbar.ProgressBar
	name string
}

func (s *barSink) started(pkg string) {
	s.bar.Describe(fmt.Sprintf("%s: %s", s.name, pkg))
}

func (s *barSink) completed(delta int) {
	_ = s.bar.Add(delta)
}

func (s *barSink) finished() {
	_ = s.bar.Finish()
}
