package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

const (
	// Telegram rejects texts over 4096 characters; chunks stay below that.
	telegramChunkSize      = 4000
	telegramMaxSendRetries = 3

	telegramWelcome = "Hallo! Ich bin der Briefing-Assistent von StadtHirsch.\n\n" +
		"Erzähl mir von deinem Projekt: Was brauchst du, für welche Branche und für wen?\n\n" +
		"/status zeigt den Stand, /briefing die erfassten Angaben, /neu beginnt von vorn."
	telegramDenied  = "Zugriff verweigert. Deine Nutzer-ID ist nicht freigeschaltet."
	telegramNoVoice = "Deine Sprachnachricht konnte ich leider nicht verstehen. Schreib mir gern stattdessen."

	voiceTimeout = time.Minute
)

// telegramSender is the subset of *tgbotapi.BotAPI used for replies.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram is the bot channel. Each Telegram chat is one conversation,
// keyed "telegram:<chat id>".
type Telegram struct {
	token     string
	allowFrom []int64 // user ids; empty admits everyone
	parseMode string
	logger    *slog.Logger

	sender      telegramSender
	bus         domain.MessageBus
	sleep       func(time.Duration)
	transcriber domain.Transcriber
	fileURL     func(fileID string) (string, error)
	httpClient  *http.Client
}

type TelegramConfig struct {
	Token       string
	AllowFrom   []string
	ParseMode   string             // Markdown when empty
	Transcriber domain.Transcriber // nil ignores voice messages
	Logger      *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	t := &Telegram{
		token:       cfg.Token,
		parseMode:   cfg.ParseMode,
		logger:      cfg.Logger,
		sleep:       time.Sleep,
		transcriber: cfg.Transcriber,
		httpClient:  &http.Client{Timeout: voiceTimeout},
	}
	for _, raw := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			t.allowFrom = append(t.allowFrom, id)
		}
	}
	if t.parseMode == "" {
		t.parseMode = tgbotapi.ModeMarkdown
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

func (t *Telegram) Name() string { return "telegram" }

// Start logs the bot in and long-polls updates until ctx is done.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram login: %w", err)
	}
	t.sender, t.bus = bot, bus
	t.fileURL = bot.GetFileDirectURL
	t.logger.Info("telegram bot online", "username", bot.Self.UserName)

	bus.OnOutbound(t.Name(), func(msg domain.OutboundMessage) {
		if err := t.Send(ctx, msg.ChatID, msg.Content); err != nil {
			t.logger.Error("telegram reply not sent", "chat", msg.ChatID, "err", err)
		}
	})

	poll := tgbotapi.NewUpdate(0)
	poll.Timeout = 30
	updates := bot.GetUpdatesChan(poll)
	defer bot.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(u)
		}
	}
}

// Stop is a no-op; polling ends with the context passed to Start.
func (t *Telegram) Stop() error { return nil }

// Send delivers content to a chat, split into chunks Telegram accepts.
func (t *Telegram) Send(_ context.Context, chatID string, content string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	if t.sender == nil {
		return errors.New("telegram channel not started")
	}
	for _, chunk := range splitMessage(content, telegramChunkSize) {
		t.sendChunk(id, chunk)
	}
	return nil
}

func (t *Telegram) handleUpdate(u tgbotapi.Update) {
	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return
	}
	chat := strconv.FormatInt(m.Chat.ID, 10)

	if len(t.allowFrom) > 0 && !slices.Contains(t.allowFrom, m.From.ID) {
		t.logger.Warn("telegram user not allowed", "user_id", m.From.ID, "username", m.From.UserName)
		_ = t.Send(context.Background(), chat, telegramDenied)
		return
	}
	text := strings.TrimSpace(m.Text)
	if text == "" && m.Voice != nil && t.transcriber != nil {
		_, _ = t.sender.Send(tgbotapi.NewChatAction(m.Chat.ID, tgbotapi.ChatTyping))
		var err error
		if text, err = t.transcribeVoice(m.Voice.FileID); err != nil {
			t.logger.Warn("voice message not transcribed", "chat_id", m.Chat.ID, "err", err)
			_ = t.Send(context.Background(), chat, telegramNoVoice)
			return
		}
	}
	switch {
	case text == "":
		return
	case m.IsCommand() && m.Command() == "start":
		_ = t.Send(context.Background(), chat, telegramWelcome)
		return
	}

	_, _ = t.sender.Send(tgbotapi.NewChatAction(m.Chat.ID, tgbotapi.ChatTyping))
	t.bus.Publish(domain.InboundMessage{
		Channel:   t.Name(),
		ChatID:    chat,
		SenderID:  strconv.FormatInt(m.From.ID, 10),
		Content:   text,
		Timestamp: m.Time(),
	})
}

// transcribeVoice downloads a voice note and returns its text.
func (t *Telegram) transcribeVoice(fileID string) (string, error) {
	url, err := t.fileURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve voice file: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), voiceTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download voice file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download voice file: HTTP %d", resp.StatusCode)
	}
	tr, err := t.transcriber.Transcribe(ctx, resp.Body, "voice.ogg")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(tr.Text), nil
}

// sendChunk sends one chunk, falling back to plain text when Telegram
// cannot parse the Markdown and waiting out rate limits and transient
// failures.
func (t *Telegram) sendChunk(chatID int64, text string) {
	plain := false
	for attempt := 1; ; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if !plain {
			msg.ParseMode = t.parseMode
		}
		_, err := t.sender.Send(msg)
		if err == nil {
			return
		}
		if attempt > telegramMaxSendRetries {
			t.logger.Error("telegram send failed", "chat_id", chatID, "attempts", attempt, "err", err)
			return
		}

		var apiErr *tgbotapi.Error
		switch {
		case !plain && strings.Contains(err.Error(), "can't parse entities"):
			plain = true
		case errors.As(err, &apiErr) && apiErr.RetryAfter > 0:
			wait := time.Duration(apiErr.RetryAfter) * time.Second
			t.logger.Warn("telegram rate limit", "chat_id", chatID, "retry_after", wait)
			t.sleep(wait)
		default:
			wait := time.Duration(attempt) * time.Second
			t.logger.Warn("telegram send retry", "chat_id", chatID, "attempt", attempt, "wait", wait, "err", err)
			t.sleep(wait)
		}
	}
}

// splitMessage cuts text into chunks of at most size bytes. A cut prefers
// the last line break in the second half of the chunk and never splits a
// UTF-8 sequence.
func splitMessage(text string, size int) []string {
	var chunks []string
	for len(text) > size {
		cut := strings.LastIndexByte(text[:size], '\n')
		if cut < size/2 {
			cut = size
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
