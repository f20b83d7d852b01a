package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/briefing"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

// ChatCommand is a parsed slash command.
type ChatCommand struct {
	Name string
	Args []string
	Raw  string
}

// CommandResult holds the response for a handled command.
type CommandResult struct {
	Response string
	Handled  bool // false forwards the text to the briefing as a normal message
	Err      error
}

// ParseCommand returns nil unless text starts with "/".
func ParseCommand(text string) *ChatCommand {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil
	}
	return &ChatCommand{
		Name: strings.ToLower(strings.TrimPrefix(parts[0], "/")),
		Args: parts[1:],
		Raw:  text,
	}
}

// HandleCommand answers a chat command. Unknown commands are not handled.
func (l *Loop) HandleCommand(ctx context.Context, cmd *ChatCommand, msg domain.InboundMessage) CommandResult {
	key := msg.Key()
	switch cmd.Name {
	case "help", "hilfe":
		return CommandResult{Response: helpText(), Handled: true}

	case "neu", "new", "clear":
		l.service.Reset(ctx, key)
		return CommandResult{Response: "Das Briefing wurde zurückgesetzt. Erzähl mir von deinem Projekt!", Handled: true}

	case "status":
		return CommandResult{Response: statusText(l.service.Context(ctx, key)), Handled: true}

	case "briefing":
		ac := l.service.Context(ctx, key)
		return CommandResult{Response: "**Bisher erfasst**\n\n" + ac.BriefingSummary, Handled: true}

	case "confirm", "bestaetigen", "bestätigen":
		if err := l.service.Confirm(ctx, key); err != nil {
			return CommandResult{Handled: true, Err: err}
		}
		return CommandResult{Response: "Danke! Das Briefing ist bestätigt und geht an die Agenten.", Handled: true}

	default:
		return CommandResult{Handled: false}
	}
}

func helpText() string {
	return `**StadtHirsch Briefing**

/help: Diese Hilfe
/neu: Neues Briefing beginnen (auch /clear)
/status: Phase, Vollständigkeit und fehlende Angaben
/briefing: Bisher erfasste Angaben
/confirm: Vollständiges Briefing bestätigen`
}

func statusText(ac briefing.AIContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Status**\n\nPhase: %s\nVollständigkeit: %d%%\nNachrichten: %d\n", ac.Stage, ac.Percent(), ac.MessageCount)
	if len(ac.MissingFields) > 0 {
		fmt.Fprintf(&sb, "Fehlend: %s\n", briefing.FormatMissing(ac.MissingFields))
	}
	if ac.CaseID != "" {
		fmt.Fprintf(&sb, "Fall: %s\n", ac.CaseID)
	}
	return strings.TrimRight(sb.String(), "\n")
}
