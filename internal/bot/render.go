package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"voxnote/internal/analyze"
	"voxnote/internal/calendar"
)

// Fixed user-facing texts.
const (
	accessDeniedText = "❌ Access denied. This bot is invitation-only.\n" +
		"Please contact an administrator for access."
	notAuthorizedText = "❌ You are not authorized to use this bot."
	adminOnlyText     = "❌ Only administrators can use this command."

	processingText    = "🎤 Processing your voice message..."
	transcribingText  = "📝 Transcribing audio..."
	analyzingText     = "🧠 Analyzing content..."
	processFailedText = "❌ Sorry, I couldn't process your voice message. " +
		"Please try again or contact support if the issue persists."

	inviteGrantedText = "✅ Welcome! You now have access to the assistant.\n" +
		"Send /start to see available features."
	inviteInvalidText = "❌ Invalid or expired invitation link."
	inviteExpiredText = "❌ This invitation link has expired.\n" +
		"Please ask an administrator for a new one."
	inviteFailedText = "❌ Could not generate an invitation link. Please try again."

	unknownCommandText = "Unknown command. Type /help for available commands."
	textHint           = "🎤 Please send voice messages for processing.\n" +
		"I can transcribe and analyze voice notes and extract action items."
)

// welcomeText builds the personalised /start greeting for a member.
func welcomeText(firstName string) string {
	if firstName == "" {
		firstName = "there"
	}
	return fmt.Sprintf(`🤖 Welcome %s!

I'm your AI-powered personal assistant. Here's what I can do:

🎤 *Voice Processing*: Send me voice notes
📝 *Smart Analysis*: I'll extract action items and key points
📅 *Calendar Integration*: One-click scheduling to Google Calendar
🔒 *Secure Access*: Invitation-only system for your team

*How to use:*
1. Send me a voice message
2. I'll transcribe and analyze it
3. Click calendar links to schedule tasks

Type /help for more commands.`, firstName)
}

// helpText is the /help reply for members.
const helpText = `📚 *Available Commands:*

/start - Initialize the bot and check access
/help - Show this help message
/invite - Generate an invitation link (admin only)
/revoke - Remove user access (admin only)
/users - List authorized users (admin only)

*Voice Note Tips:*
• Speak clearly at a normal pace
• Mention specific dates for deadlines
• Use action words like "remind me", "schedule"
• Say "high priority" for urgent tasks

Need help? Contact your administrator.`

// inviteIssuedText builds the admin-facing message carrying a fresh
// invitation deep link.
func inviteIssuedText(link string) string {
	return fmt.Sprintf(`🎫 *Invitation Generated*

Share this link with the person you want to invite:
`+"`%s`"+`

⚠️ This link is single-use and expires in 24 hours.`, link)
}

// priorityEmoji maps an action item priority to its marker.
func priorityEmoji(priority string) string {
	switch priority {
	case analyze.PriorityHigh:
		return "🔴"
	case analyze.PriorityLow:
		return "🟢"
	default:
		return "🟡"
	}
}

// renderAnalysis formats the final reply for one analyzed voice note.
func renderAnalysis(userName, transcript string, res *analyze.Result, now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "📊 *Voice Note Analysis*\n")
	fmt.Fprintf(&sb, "👤 From: %s\n", userName)
	fmt.Fprintf(&sb, "🕐 Time: %s\n", now.Format("2006-01-02 15:04"))
	if res.Language != "" && res.Language != "unknown" {
		fmt.Fprintf(&sb, "🌐 Language: %s\n", res.Language)
	}

	fmt.Fprintf(&sb, "\n*📝 Transcript:*\n_%s_\n", transcript)
	fmt.Fprintf(&sb, "\n*📋 Summary:*\n%s\n", res.Summary)

	if len(res.ActionItems) > 0 {
		sb.WriteString("\n*✅ Action Items:*\n")
		for i, item := range res.ActionItems {
			fmt.Fprintf(&sb, "\n%d. %s %s", i+1, priorityEmoji(item.Priority), item.Task)
			if item.Deadline != "" {
				fmt.Fprintf(&sb, "\n   📅 Deadline: %s", item.Deadline)
			}
			if item.Assignee != "" {
				fmt.Fprintf(&sb, "\n   👤 Assignee: %s", item.Assignee)
			}
		}
		sb.WriteString("\n")
	}

	if len(res.Topics) > 0 {
		fmt.Fprintf(&sb, "\n*🏷️ Topics:* %s", strings.Join(res.Topics, ", "))
	}

	return sb.String()
}

// linkedItem pairs an action item with its calendar deep link.
type linkedItem struct {
	analyze.ActionItem
	calendarLink string
}

// linkActionItems attaches a calendar event link to every action item,
// parsing free-form deadlines into start times where possible.
func (b *Bot) linkActionItems(items []analyze.ActionItem) []linkedItem {
	now := b.now()
	out := make([]linkedItem, 0, len(items))
	for _, item := range items {
		start, _ := calendar.ParseDeadline(item.Deadline, now)
		out = append(out, linkedItem{
			ActionItem:   item,
			calendarLink: b.linker.EventLink(item.Task, calendar.Describe(item.Priority, now), start),
		})
	}
	return out
}

// actionItemsKeyboard builds one schedule button per action item. Returns
// nil when there is nothing to schedule.
func actionItemsKeyboard(items []linkedItem) *tgbotapi.InlineKeyboardMarkup {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items))
	for _, item := range items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📅 Schedule: "+truncate(item.Task, 30), item.calendarLink),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
