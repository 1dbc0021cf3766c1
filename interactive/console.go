package interactive

import (
	"fmt"
	"io"
	"mqtt-chat/contract"
	"mqtt-chat/domain"
	"sync"

	"github.com/gookit/color"
)

// eraseLine moves the cursor to column 0 and clears the line, wiping the
// prompt and whatever the user typed so far.
const eraseLine = "\x1b[0G\x1b[K"

var _ contract.Renderer = (*Console)(nil)

// Console serializes every write to the terminal. Inbound messages and
// status lines are printed as one unit: erase the prompt line, print, then
// draw the prompt again so the user can keep typing.
//
// The prompt is only drawn once input is being read (ShowPrompt), and only
// once: prompted tracks whether it is on screen. When a line editor owns
// the prompt, out is the editor's own stdout wrapper, which already redraws
// the prompt after each write; redraw is then false.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	prompt   string
	redraw   bool
	prompted bool
	sender   color.Style
	status   color.Style
	colors   bool
}

func NewConsole(out io.Writer, identity string, redraw, colors bool) *Console {
	return &Console{
		out:    out,
		prompt: Prompt(identity),
		redraw: redraw,
		sender: color.New(color.FgCyan, color.OpBold),
		status: color.New(color.FgYellow),
		colors: colors,
	}
}

// Prompt is the input prompt shown for identity.
func Prompt(identity string) string {
	return identity + ": "
}

// Render prints an inbound message as "sender: body".
func (c *Console) Render(message domain.ChatMessage) {
	sender := message.Sender
	if c.colors {
		sender = c.sender.Sprint(sender)
	}
	c.print(fmt.Sprintf("%s: %s", sender, message.Body))
}

// Status prints a line about the session itself.
func (c *Console) Status(line string) {
	if c.colors {
		line = c.status.Sprint(line)
	}
	c.print(line)
}

// ShowPrompt draws the prompt without a trailing newline, unless it is
// already on screen.
func (c *Console) ShowPrompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.redraw || c.prompted {
		return
	}
	_, _ = io.WriteString(c.out, c.prompt)
	c.prompted = true
}

// HidePrompt records that the user submitted the line holding the prompt.
func (c *Console) HidePrompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompted = false
}

// StopPrompt stops redrawing the prompt after every line, once input is
// no longer read.
func (c *Console) StopPrompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redraw = false
}

func (c *Console) print(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prompted {
		_, _ = io.WriteString(c.out, eraseLine)
	}
	_, _ = io.WriteString(c.out, line+"\n")
	if c.prompted && c.redraw {
		_, _ = io.WriteString(c.out, c.prompt)
		return
	}
	c.prompted = false
}
