// Package bot wires the Telegram transport to the voice-note pipeline.
//
// Inbound updates are routed to command handlers (/start, /help, /invite,
// /revoke, /users) and the voice handler. Every interaction is gated by the
// authorization store; voice messages run the download → transcribe →
// analyze → render pipeline with progress edits along the way. A weighted
// semaphore bounds how many voice pipelines run at once; commands are cheap
// and handled inline.
//
// The [API] interface covers the slice of the Telegram client the bot
// touches, so tests can substitute a recorder.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"voxnote/internal/analyze"
	"voxnote/internal/auth"
	"voxnote/internal/calendar"
	"voxnote/internal/observe"
)

// defaultMaxConcurrent bounds simultaneous voice pipelines.
const defaultMaxConcurrent = 8

// API is the slice of the Telegram client the bot depends on.
// *tgbotapi.BotAPI satisfies it.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Transcriber obtains text from a downloaded audio file and owns the file's
// removal. *transcribe.Pipeline satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// Deps bundles the collaborators a Bot requires.
type Deps struct {
	Store       *auth.Store
	Issuer      *auth.Issuer
	Transcriber Transcriber
	Analyzer    analyze.Analyzer
	Linker      *calendar.Linker

	// AdminID is the administrator's Telegram user ID.
	AdminID int64

	// Username is the bot's own username, used to build t.me deep links.
	Username string
}

// Option is a functional option for configuring a Bot.
type Option func(*Bot)

// WithMaxConcurrent bounds the number of voice pipelines running at once.
func WithMaxConcurrent(n int64) Option {
	return func(b *Bot) {
		if n > 0 {
			b.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithMetrics overrides the metrics sink. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bot) {
		b.metrics = m
	}
}

// WithTempDir overrides where downloaded voice files are staged.
// Defaults to the system temp directory.
func WithTempDir(dir string) Option {
	return func(b *Bot) {
		b.tempDir = dir
	}
}

// WithDownloader overrides the file download function, for tests.
func WithDownloader(fn func(ctx context.Context, url, dest string) error) Option {
	return func(b *Bot) {
		b.download = fn
	}
}

// WithProviderName sets the analysis provider label used in metrics.
func WithProviderName(name string) Option {
	return func(b *Bot) {
		b.providerName = name
	}
}

// Bot routes Telegram updates to handlers. Safe for concurrent use.
type Bot struct {
	api          API
	store        *auth.Store
	issuer       *auth.Issuer
	transcriber  Transcriber
	analyzer     analyze.Analyzer
	linker       *calendar.Linker
	adminID      int64
	username     string
	providerName string

	sem      *semaphore.Weighted
	metrics  *observe.Metrics
	tempDir  string
	download func(ctx context.Context, url, dest string) error
	now      func() time.Time
}

// New creates a Bot. All Deps fields except Username are required.
func New(api API, deps Deps, opts ...Option) (*Bot, error) {
	if api == nil {
		return nil, errors.New("bot: api must not be nil")
	}
	if deps.Store == nil || deps.Issuer == nil || deps.Transcriber == nil || deps.Analyzer == nil || deps.Linker == nil {
		return nil, errors.New("bot: all dependencies must be set")
	}
	if deps.AdminID == 0 {
		return nil, errors.New("bot: admin user ID must be set")
	}

	b := &Bot{
		api:         api,
		store:       deps.Store,
		issuer:      deps.Issuer,
		transcriber: deps.Transcriber,
		analyzer:    deps.Analyzer,
		linker:      deps.Linker,
		adminID:     deps.AdminID,
		username:    deps.Username,
		sem:         semaphore.NewWeighted(defaultMaxConcurrent),
		tempDir:     os.TempDir(),
		download:    downloadFile,
		now:         time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	if b.metrics == nil {
		b.metrics = observe.DefaultMetrics()
	}
	return b, nil
}

// Run consumes updates via long polling until ctx is cancelled. Voice
// messages are processed in their own goroutines; commands are handled
// inline.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	slog.Info("bot started", "mode", "polling", "username", b.username)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// WebhookHandler returns an HTTP handler that accepts Telegram webhook
// payloads. Mount it at the webhook path when running in webhook mode
// instead of calling [Bot.Run].
func (b *Bot) WebhookHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		update, err := decodeUpdate(r)
		if err != nil {
			slog.Warn("rejecting malformed webhook payload", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		b.handleUpdate(ctx, *update)
		w.WriteHeader(http.StatusOK)
	})
}

// decodeUpdate parses a webhook request body into an update.
func decodeUpdate(r *http.Request) (*tgbotapi.Update, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var update tgbotapi.Update
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("parse update: %w", err)
	}
	return &update, nil
}

// handleUpdate routes one update. Commands and text hints run inline; voice
// pipelines are spawned onto their own goroutine.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Voice != nil:
		go b.handleVoice(ctx, msg)
	case msg.Text != "":
		b.reply(msg.Chat.ID, textHint)
	}
}

// handleCommand dispatches one bot command.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.handleHelp(msg)
	case "invite":
		b.handleInvite(ctx, msg)
	case "revoke":
		b.handleRevoke(msg)
	case "users":
		b.handleUsers(msg)
	default:
		b.reply(msg.Chat.ID, unknownCommandText)
	}
}

// send delivers a message and logs delivery failures; the transport never
// sees an error from a handler.
func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, bool) {
	sent, err := b.api.Send(c)
	if err != nil {
		slog.Error("failed to send message", "error", err)
		return tgbotapi.Message{}, false
	}
	return sent, true
}

// reply sends a plain text message to the chat.
func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

// replyMarkdown sends a Markdown-formatted message to the chat.
func (b *Bot) replyMarkdown(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeMarkdown
	b.send(m)
}

// downloadTimeout bounds one voice file transfer. Voice notes are small, so a
// transfer still running at this point is stalled, not large. The parent
// context is long-lived in polling mode and must not be the only bound.
var downloadTimeout = 2 * time.Minute

// downloadFile fetches url into dest. The file is removed again on failure.
func downloadFile(ctx context.Context, url, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("bot: create download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("bot: download voice file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bot: voice download returned HTTP %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("bot: create temp audio file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("bot: write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("bot: close temp audio file: %w", err)
	}
	return nil
}

// tempAudioPath returns a unique staging path for a downloaded voice file.
func (b *Bot) tempAudioPath() string {
	return filepath.Join(b.tempDir, "voice-"+uuid.NewString()+".ogg")
}
