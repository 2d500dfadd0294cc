package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"voxnote/internal/analyze"
	"voxnote/internal/auth"
)

// invitePrefix marks a /start deep-link payload carrying an invitation token.
const invitePrefix = "invite_"

// handleStart processes /start, including deep-link invitation redemption
// (`/start invite_<token>`).
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	if arg := strings.TrimSpace(msg.CommandArguments()); strings.HasPrefix(arg, invitePrefix) {
		b.redeemInvite(ctx, msg, strings.TrimPrefix(arg, invitePrefix))
		return
	}

	if !b.store.IsAuthorized(userID) {
		b.reply(msg.Chat.ID, accessDeniedText)
		return
	}
	b.replyMarkdown(msg.Chat.ID, welcomeText(msg.From.FirstName))
}

// redeemInvite attempts to redeem an invitation token for the sender. The
// issuer's verdict alone decides the reply: a member re-sending a consumed
// token is told it is invalid, not welcomed back.
func (b *Bot) redeemInvite(ctx context.Context, msg *tgbotapi.Message, token string) {
	userID := msg.From.ID

	outcome := b.issuer.Redeem(token, userID)
	b.metrics.RecordInvitation(ctx, outcome.String())
	switch outcome {
	case auth.RedemptionGranted:
		slog.Info("invitation redeemed", "user_id", userID)
		b.reply(msg.Chat.ID, inviteGrantedText)
	case auth.RedemptionExpired:
		b.reply(msg.Chat.ID, inviteExpiredText)
	default:
		b.reply(msg.Chat.ID, inviteInvalidText)
	}
}

// handleHelp processes /help. Only members get usage details.
func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	if !b.store.IsAuthorized(msg.From.ID) {
		b.reply(msg.Chat.ID, accessDeniedText)
		return
	}
	b.replyMarkdown(msg.Chat.ID, helpText)
}

// handleInvite processes /invite: admin-only issuance of a single-use
// invitation deep link with an inline share button.
func (b *Bot) handleInvite(ctx context.Context, msg *tgbotapi.Message) {
	token, err := b.issuer.Issue(msg.From.ID)
	if err != nil {
		if errors.Is(err, auth.ErrNotAdmin) {
			b.reply(msg.Chat.ID, adminOnlyText)
			return
		}
		slog.Error("failed to issue invitation", "error", err)
		b.reply(msg.Chat.ID, inviteFailedText)
		return
	}
	b.metrics.RecordInvitation(ctx, "issued")

	link := fmt.Sprintf("https://t.me/%s?start=%s%s", b.username, invitePrefix, token)

	reply := tgbotapi.NewMessage(msg.Chat.ID, inviteIssuedText(link))
	reply.ParseMode = tgbotapi.ModeMarkdown
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🔗 Share Invitation Link", link),
		),
	)
	b.send(reply)
}

// handleRevoke processes /revoke <user_id>: admin-only membership removal.
func (b *Bot) handleRevoke(msg *tgbotapi.Message) {
	if msg.From.ID != b.adminID {
		b.reply(msg.Chat.ID, adminOnlyText)
		return
	}

	arg := strings.TrimSpace(msg.CommandArguments())
	target, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: /revoke <user_id>")
		return
	}
	if target == b.adminID {
		b.reply(msg.Chat.ID, "❌ The administrator cannot be revoked.")
		return
	}

	if b.store.Remove(target) {
		slog.Info("membership revoked", "user_id", target)
		b.reply(msg.Chat.ID, fmt.Sprintf("✅ Access revoked for user %d.", target))
	} else {
		b.reply(msg.Chat.ID, fmt.Sprintf("User %d is not authorized.", target))
	}
}

// handleUsers processes /users: admin-only listing of the membership set.
func (b *Bot) handleUsers(msg *tgbotapi.Message) {
	if msg.From.ID != b.adminID {
		b.reply(msg.Chat.ID, adminOnlyText)
		return
	}

	users := b.store.Users()
	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 *Authorized users (%d):*\n", len(users))
	for _, id := range users {
		fmt.Fprintf(&sb, "\n• `%d`", id)
		if id == b.adminID {
			sb.WriteString(" (admin)")
		}
	}
	b.replyMarkdown(msg.Chat.ID, sb.String())
}

// handleVoice runs the full voice-note pipeline for one message, editing a
// single progress message through its stages. Pipeline errors never reach
// the transport; they are converted into user-facing text here.
func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if !b.store.IsAuthorized(userID) {
		b.reply(msg.Chat.ID, notAuthorizedText)
		return
	}

	if err := b.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer b.sem.Release(1)

	progress, ok := b.send(tgbotapi.NewMessage(msg.Chat.ID, processingText))
	if !ok {
		return
	}
	edit := func(text string) {
		b.send(tgbotapi.NewEditMessageText(msg.Chat.ID, progress.MessageID, text))
	}

	fileURL, err := b.api.GetFileDirectURL(msg.Voice.FileID)
	if err != nil {
		slog.Error("failed to resolve voice file URL", "user_id", userID, "error", err)
		b.metrics.RecordVoiceMessage(ctx, "download_failed")
		edit(processFailedText)
		return
	}

	audioPath := b.tempAudioPath()
	if err := b.download(ctx, fileURL, audioPath); err != nil {
		slog.Error("failed to download voice file", "user_id", userID, "error", err)
		b.metrics.RecordVoiceMessage(ctx, "download_failed")
		edit(processFailedText)
		return
	}

	edit(transcribingText)
	transcript, err := b.transcriber.Transcribe(ctx, audioPath, "")
	if err != nil {
		slog.Error("transcription failed for voice message", "user_id", userID, "error", err)
		b.metrics.RecordVoiceMessage(ctx, "transcribe_failed")
		edit(processFailedText)
		return
	}

	edit(analyzingText)
	start := time.Now()
	result, err := b.analyzer.Analyze(ctx, transcript, requesterName(msg.From))
	analyzeStatus := "ok"
	voiceStatus := "ok"
	if err != nil {
		slog.Warn("analysis failed, rendering degraded result", "user_id", userID, "error", err)
		result = analyze.Degraded()
		analyzeStatus = "error"
		voiceStatus = "analysis_degraded"
	}
	b.metrics.AnalyzeDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("provider", b.providerName),
			attribute.String("status", analyzeStatus),
		),
	)

	items := b.linkActionItems(result.ActionItems)
	final := tgbotapi.NewEditMessageText(msg.Chat.ID, progress.MessageID,
		renderAnalysis(requesterName(msg.From), transcript, result, b.now()))
	final.ParseMode = tgbotapi.ModeMarkdown
	final.DisableWebPagePreview = true
	if kb := actionItemsKeyboard(items); kb != nil {
		final.ReplyMarkup = kb
	}
	b.send(final)

	b.metrics.RecordVoiceMessage(ctx, voiceStatus)
}

// requesterName returns the display name used in prompts and replies.
func requesterName(u *tgbotapi.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return "User"
}
