package scanner

import (
	"io"
	"os"
	"sync"
	"time"

	"imagematcher/imageprocessor"
	"imagematcher/logging"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// ProgressTracker follows the loading of one collection. On a terminal it
// draws a progress bar; elsewhere it only logs.
type ProgressTracker struct {
	label       string
	out         io.Writer
	enabled     bool
	interactive bool

	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	total     int
	processed int
	errors    int
	raw       int
	started   time.Time
	elapsed   time.Duration
}

// Summary is the final state of a tracker.
type Summary struct {
	Label     string
	Total     int
	Processed int
	Errors    int
	Raw       int // sources read through an embedded RAW preview
	Elapsed   time.Duration
}

// NewProgressTracker returns a tracker writing to out. When enabled is false
// nothing is drawn but counts are still kept.
func NewProgressTracker(label string, out io.Writer, enabled bool) *ProgressTracker {
	return &ProgressTracker{
		label:       label,
		out:         out,
		enabled:     enabled,
		interactive: isTerminal(out),
	}
}

// Start begins tracking total sources.
func (p *ProgressTracker) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.started = time.Now()
	if p.enabled && p.interactive && total > 0 {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription(p.label),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	logging.LogInfo("loading collection", "collection", p.label, "sources", total)
}

// Loaded records one finished source.
func (p *ProgressTracker) Loaded(path string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	if err != nil {
		p.errors++
	}
	if imageprocessor.IsRawFormat(path) {
		p.raw++
	}
	if p.bar != nil {
		_ = p.bar.Add(1)
	} else if p.enabled {
		logging.DebugLog("loaded", "collection", p.label, "path", path, "done", p.processed, "total", p.total)
	}
}

// Finish closes the bar, if any.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.elapsed = time.Since(p.started)
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
	logging.LogInfo("collection loaded", "collection", p.label,
		"processed", p.processed, "errors", p.errors, "raw", p.raw, "elapsed", p.elapsed.Round(time.Millisecond))
}

// Summary reports the counts gathered so far.
func (p *ProgressTracker) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Summary{
		Label:     p.label,
		Total:     p.total,
		Processed: p.processed,
		Errors:    p.errors,
		Raw:       p.raw,
		Elapsed:   p.elapsed,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
