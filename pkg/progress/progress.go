// Package progress provides a console progress bar
package progress

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"
)

// Bar displays the number of connections that finished their operations
type Bar struct {
	out         io.Writer
	label       string
	total       int
	blockCount  int
	completed   int
	timeouts    int
	startTime   time.Time
	currentText string
	mutex       sync.Mutex
	done        bool
	quiet       bool
}

// NewBar creates a progress bar for total connections. Nothing is written when quiet is set.
func NewBar(out io.Writer, label string, total int, quiet bool) *Bar {
	p := &Bar{
		out:        out,
		label:      label,
		total:      total,
		blockCount: 50,
		startTime:  time.Now(),
		quiet:      quiet,
	}

	if !quiet {
		fmt.Fprint(p.out, "\033[?25l") // Hide cursor
		p.mutex.Lock()
		p.render()
		p.mutex.Unlock()
	}

	return p
}

// ConnectionDone records one finished connection. It is safe for concurrent use.
func (p *Bar) ConnectionDone(timedOut bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.completed++
	if timedOut {
		p.timeouts++
	}
	if !p.quiet && !p.done {
		p.render()
	}
}

// Completed returns the number of finished connections and how many of them timed out
func (p *Bar) Completed() (int, int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.completed, p.timeouts
}

func (p *Bar) fraction() float64 {
	if p.total <= 0 {
		return 1
	}
	return math.Max(0, math.Min(1, float64(p.completed)/float64(p.total)))
}

func (p *Bar) render() {
	value := p.fraction()
	progressBlockCount := int(value * float64(p.blockCount))
	percent := int(value * 100)

	text := fmt.Sprintf(" %s %3d%% [%s%s] (%d/%d connections)",
		p.label,
		percent,
		strings.Repeat("=", progressBlockCount),
		strings.Repeat(" ", p.blockCount-progressBlockCount),
		p.completed,
		p.total)
	if p.timeouts > 0 {
		text += fmt.Sprintf(" %d timed out", p.timeouts)
	}

	p.updateText(text)
}

// updateText rewrites only the part of the line that changed. Callers hold the mutex.
func (p *Bar) updateText(text string) {
	commonPrefixLength := 0
	commonLength := int(math.Min(float64(len(p.currentText)), float64(len(text))))

	for commonPrefixLength < commonLength && text[commonPrefixLength] == p.currentText[commonPrefixLength] {
		commonPrefixLength++
	}

	var outputBuilder strings.Builder
	for i := 0; i < len(p.currentText)-commonPrefixLength; i++ {
		outputBuilder.WriteRune('\b')
	}

	outputBuilder.WriteString(text[commonPrefixLength:])

	overlapCount := len(p.currentText) - len(text)
	if overlapCount > 0 {
		outputBuilder.WriteString(strings.Repeat(" ", overlapCount))
		outputBuilder.WriteString(strings.Repeat("\b", overlapCount))
	}

	fmt.Fprint(p.out, outputBuilder.String())
	p.currentText = text
}

// Close cleans up the progress bar
func (p *Bar) Close() {
	if p.quiet {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.done {
		p.done = true
		fmt.Fprint(p.out, "\033[?25h") // Show cursor
	}
}

// ForceComplete shows the final state of the bar along with the elapsed time
func (p *Bar) ForceComplete() {
	if p.quiet {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	text := fmt.Sprintf(" %s %3d%% [%s] %.1fs (%d/%d connections)",
		p.label,
		int(p.fraction()*100),
		strings.Repeat("=", int(p.fraction()*float64(p.blockCount)))+strings.Repeat(" ", p.blockCount-int(p.fraction()*float64(p.blockCount))),
		time.Since(p.startTime).Seconds(),
		p.completed,
		p.total)
	if p.timeouts > 0 {
		text += fmt.Sprintf(" %d timed out", p.timeouts)
	}

	p.updateText(text)
	fmt.Fprintln(p.out)
}
