package negotiate

import (
	"fmt"
	"io"
	"strings"
)

// LinePrompter reads replacement ports from a line channel. The caller owns
// the channel and its stdin pump, so the prompt never competes with other
// console readers. A blank entry or a closed channel cancels.
type LinePrompter struct {
	lines <-chan string
	out   io.Writer
}

func NewLinePrompter(lines <-chan string, out io.Writer) *LinePrompter {
	return &LinePrompter{
		lines: lines,
		out:   out,
	}
}

func (p *LinePrompter) PromptPort() (string, error) {
	fmt.Fprintf(p.out, "Port in use. Enter a new port (%d-%d), empty to cancel: ", PortMin, PortMax)
	line, ok := <-p.lines
	if !ok {
		return "", ErrCancelled
	}
	entry := strings.TrimSpace(line)
	if entry == "" {
		return "", ErrCancelled
	}
	return entry, nil
}
