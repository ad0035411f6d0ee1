package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/mediaingest/internal/ingest/progress"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"golang.org/x/term"
)

const defaultWidth = 80

// progressLine redraws a single status line on a terminal.
type progressLine struct {
	mu    sync.Mutex
	out   io.Writer
	width int
	drawn bool
}

// newProgressLine returns nil when out is not a terminal.
func newProgressLine(out io.Writer) *progressLine {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		width = defaultWidth
	}
	return &progressLine{out: out, width: width}
}

func (p *progressLine) Render(s progress.Snapshot) {
	text := formatLine(s, p.width)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%-*s", p.width-1, text)
	p.drawn = true
}

func (p *progressLine) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}

// formatLine renders "[ 42.0%] 3/7 done  current.jpg" truncated to width-1.
func formatLine(s progress.Snapshot, width int) string {
	done, current := 0, ""
	for _, f := range s.Files {
		switch {
		case f.State.Terminal():
			done++
		case f.State == models.StateUploading || f.State == models.StateProcessing:
			current = f.Name
		}
	}

	line := fmt.Sprintf("[%5.1f%%] %d/%d done", s.Overall, done, len(s.Files))
	if current != "" {
		line += "  " + current
	}

	limit := width - 1
	if limit < 1 {
		limit = 1
	}
	if r := []rune(line); len(r) > limit {
		line = string(r[:limit-1]) + "…"
	}
	return strings.TrimRight(line, " ")
}
