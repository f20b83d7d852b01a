package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

const (
	cliPrompt   = "Du> "
	cliGreeting = "StadtHirsch Briefing. Erzähl mir von deinem Projekt. /help zeigt die Befehle, /quit beendet.\n"
)

// CLI is the terminal channel: one local client, one conversation.
type CLI struct {
	logger *slog.Logger
	in     io.Reader
	chatID string

	mu  sync.Mutex // serializes writes to out
	out io.Writer

	spin *spinner
}

type CLIConfig struct {
	Logger  *slog.Logger
	In      io.Reader
	Out     io.Writer
	ChatID  string // "direct" when empty
	Spinner bool   // animate while a reply is pending
}

func NewCLI(cfg CLIConfig) *CLI {
	c := &CLI{logger: cfg.Logger, in: cfg.In, out: cfg.Out, chatID: cfg.ChatID}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.in == nil {
		c.in = os.Stdin
	}
	if c.out == nil {
		c.out = os.Stdout
	}
	if c.chatID == "" {
		c.chatID = "direct"
	}
	if cfg.Spinner {
		c.spin = &spinner{write: c.write}
	}
	return c
}

func (c *CLI) Name() string { return "cli" }

// Start reads client lines and publishes them until input ends, the client
// types /quit or ctx is cancelled. Replies are printed as they arrive.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	bus.OnOutbound(c.Name(), func(msg domain.OutboundMessage) {
		c.spin.stop()
		c.write("\r\033[K\n--- StadtHirsch ---\n" + msg.Content + "\n-------------------\n" + cliPrompt)
	})
	c.write(cliGreeting + cliPrompt)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, readErr := c.readLines(ctx)
	for {
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			return <-readErr
		}

		switch line = strings.TrimSpace(line); line {
		case "":
			c.write(cliPrompt)
			continue
		case "/quit", "/exit", "/q":
			c.logger.Info("cli session ended by user")
			return nil
		}
		c.spin.start()
		bus.Publish(domain.InboundMessage{
			Channel:   c.Name(),
			ChatID:    c.chatID,
			SenderID:  "user",
			Content:   line,
			Timestamp: time.Now(),
		})
	}
}

// readLines scans c.in on its own goroutine. The lines channel is closed at
// end of input, after the scan error is sent on the second channel. The
// goroutine exits early once ctx is done.
func (c *CLI) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
		close(lines)
	}()
	return lines, errc
}

func (c *CLI) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, s)
}

// Stop is a no-op; the session ends when Start returns.
func (c *CLI) Stop() error { return nil }

func (c *CLI) Send(_ context.Context, _ string, content string) error {
	c.write(content + "\n")
	return nil
}

// spinner animates a waiting indicator until stopped. A nil spinner does
// nothing.
type spinner struct {
	write func(string)

	mu   sync.Mutex
	quit chan struct{}
}

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

func (s *spinner) start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return
	}
	quit := make(chan struct{})
	s.quit = quit
	go func() {
		tick := time.NewTicker(100 * time.Millisecond)
		defer tick.Stop()
		for i := 0; ; i++ {
			select {
			case <-quit:
				return
			case <-tick.C:
				s.write(fmt.Sprintf("\r%c Denke nach...", spinnerFrames[i%len(spinnerFrames)]))
			}
		}
	}()
}

func (s *spinner) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		close(s.quit)
		s.quit = nil
	}
}
