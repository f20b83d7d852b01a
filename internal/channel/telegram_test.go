package channel

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/bus"
	"github.com/StadtHirsch-design/stadthirsch-briefing-system/internal/domain"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	errs []error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, nil
	}
	f.sent = append(f.sent, msg)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return tgbotapi.Message{}, err
	}
	return tgbotapi.Message{}, nil
}

func newTestTelegram(allow ...string) (*Telegram, *fakeSender, *bus.Queue) {
	tg := NewTelegram(TelegramConfig{Token: "x", AllowFrom: allow, Logger: testLogger()})
	s := &fakeSender{}
	tg.sender = s
	tg.sleep = func(time.Duration) {}
	b := bus.New(4, testLogger())
	tg.bus = b
	return tg, s, b
}

func textUpdate(userID, chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
		Date: int(time.Now().Unix()),
	}
	if strings.HasPrefix(text, "/") {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}}
	}
	return tgbotapi.Update{Message: msg}
}

func TestTelegram_PublishesMessages(t *testing.T) {
	tg, _, b := newTestTelegram()
	tg.handleUpdate(textUpdate(7, 42, "  Wir brauchen ein Logo "))
	tg.handleUpdate(textUpdate(7, 42, "/status"))

	require.Equal(t, 2, b.Pending())
	first := <-b.Subscribe()
	assert.Equal(t, "telegram:42", first.Key())
	assert.Equal(t, "7", first.SenderID)
	assert.Equal(t, "Wir brauchen ein Logo", first.Content)
	assert.Equal(t, "/status", (<-b.Subscribe()).Content)
}

func TestTelegram_StartCommandAndAllowList(t *testing.T) {
	tg, s, b := newTestTelegram("1", "oops", " 2 ")
	assert.Equal(t, []int64{1, 2}, tg.allowFrom)

	tg.handleUpdate(textUpdate(2, 10, "/start"))
	tg.handleUpdate(textUpdate(3, 11, "Hallo"))

	assert.Zero(t, b.Pending())
	require.Len(t, s.sent, 2)
	assert.Contains(t, s.sent[0].Text, "Briefing-Assistent")
	assert.Equal(t, int64(11), s.sent[1].ChatID)
	assert.Contains(t, s.sent[1].Text, "Zugriff verweigert")
}

func TestTelegram_MarkdownFallback(t *testing.T) {
	tg, s, _ := newTestTelegram()
	s.errs = []error{errors.New("Bad Request: can't parse entities")}

	tg.sendChunk(1, "*kaputt")
	require.Len(t, s.sent, 2)
	assert.Equal(t, tgbotapi.ModeMarkdown, s.sent[0].ParseMode)
	assert.Empty(t, s.sent[1].ParseMode)
}

func TestTelegram_WaitsOutRateLimit(t *testing.T) {
	tg, s, _ := newTestTelegram()
	var waited []time.Duration
	tg.sleep = func(d time.Duration) { waited = append(waited, d) }
	s.errs = []error{&tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 7",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 7}}}

	tg.sendChunk(1, "Hallo")
	assert.Len(t, s.sent, 2)
	assert.Equal(t, []time.Duration{7 * time.Second}, waited)
	assert.Equal(t, tgbotapi.ModeMarkdown, s.sent[1].ParseMode, "formatting is kept")
}

func TestTelegram_GivesUpAfterRetries(t *testing.T) {
	tg, s, _ := newTestTelegram()
	for i := 0; i <= telegramMaxSendRetries; i++ {
		s.errs = append(s.errs, errors.New("connection reset"))
	}
	tg.sendChunk(1, "Hallo")
	assert.Len(t, s.sent, telegramMaxSendRetries+1)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"kurz"}, splitMessage("kurz", 10))

	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	assert.Equal(t, []string{strings.Repeat("a", 8), "\n" + strings.Repeat("b", 8)}, splitMessage(text, 10))

	umlauts := strings.Repeat("ä", 10)
	for _, chunk := range splitMessage(umlauts, 5) {
		assert.True(t, strings.HasPrefix(chunk, "ä"))
		assert.LessOrEqual(t, len(chunk), 5)
	}
	assert.Equal(t, umlauts, strings.Join(splitMessage(umlauts, 5), ""))
}

type fakeTranscriber struct {
	text  string
	err   error
	audio string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (*domain.Transcription, error) {
	data, _ := io.ReadAll(audio)
	f.audio = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Transcription{Text: f.text, Language: "de"}, nil
}

func voiceUpdate(userID, chatID int64, fileID string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:  &tgbotapi.User{ID: userID},
		Chat:  &tgbotapi.Chat{ID: chatID},
		Voice: &tgbotapi.Voice{FileID: fileID},
		Date:  int(time.Now().Unix()),
	}}
}

func TestTelegram_VoiceMessagesAreTranscribed(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/file/voice-1.oga", r.URL.Path)
		_, _ = w.Write([]byte("OggS"))
	}))
	defer files.Close()

	tg, s, b := newTestTelegram()
	tr := &fakeTranscriber{text: " Ein Logo für unser Café "}
	tg.transcriber = tr
	tg.fileURL = func(id string) (string, error) { return files.URL + "/file/" + id + ".oga", nil }

	tg.handleUpdate(voiceUpdate(7, 42, "voice-1"))
	require.Equal(t, 1, b.Pending())
	assert.Equal(t, "Ein Logo für unser Café", (<-b.Subscribe()).Content)
	assert.Equal(t, "OggS", tr.audio)
	assert.Empty(t, s.sent)

	tr.err = errors.New("whisper down")
	tg.handleUpdate(voiceUpdate(7, 42, "voice-1"))
	assert.Zero(t, b.Pending())
	require.Len(t, s.sent, 1)
	assert.Contains(t, s.sent[0].Text, "Sprachnachricht")
}

func TestTelegram_VoiceIgnoredWithoutTranscriber(t *testing.T) {
	tg, s, b := newTestTelegram()
	tg.handleUpdate(voiceUpdate(7, 42, "voice-1"))
	assert.Zero(t, b.Pending())
	assert.Empty(t, s.sent)
}
