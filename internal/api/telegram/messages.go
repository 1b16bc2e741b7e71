package telegram

import (
	"fmt"
	"strings"

	app "chip-counter/internal/application"
	"chip-counter/internal/domain/entity"
)

const (
	msgStart = `👋 Hi! I count poker chips by colour.

📸 Send me a photo of your chips and I will reply with the count per colour and a picture of what I found.

📋 Commands:
/count - count a stack of chips
/stats - your counting stats
/help - help
/cancel - cancel the current operation`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Send a photo of your chips
2️⃣ The bot detects every chip
3️⃣ You get the count per colour plus a photo with every chip marked

💡 Tips:
• Spread chips out, stacks hide chips underneath
• Shoot from above in good light
• A plain table surface works best

📋 Commands:
/count - start counting
/cancel - cancel`

	msgAwaitingPhoto   = "📸 Send a photo of the chips to count."
	msgCancelled       = "❌ Cancelled. Send /count to count again."
	msgSendPhoto       = "📸 Please send a photo of the chips to count."
	msgIdleHint        = "💡 Send a photo of your chips, or /count to start. Use /help for tips."
	msgUnknownCommand  = "❓ Unknown command. Use /help for help."
	msgProcessing      = "⏳ Counting chips..."
	msgDecodeError     = "⚠️ I could not read that image. Please send a JPEG or PNG photo."
	msgProcessingError = "⚠️ Counting failed. Please try again with another photo."
)

// caption is the reply text for a finished count.
func caption(out *app.CountOutput) string {
	res := out.Result
	if res.TotalCount == 0 {
		return "🔍 No chips found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Found %d %s\n", res.TotalCount, plural(res.TotalCount, "chip", "chips"))
	res.Counts.Each(func(label string, n int) {
		fmt.Fprintf(&b, "\n• %s: %d", label, n)
	})
	if out.HasValue {
		fmt.Fprintf(&b, "\n\n💰 Total value: %s", formatValue(out.TotalValue))
	}
	return b.String()
}

func statsText(user *entity.User, st app.CountingStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Your counts: %d", user.Scans)
	if user.Scans > 0 {
		fmt.Fprintf(&b, "\nLast count: %d %s", user.LastCount, plural(user.LastCount, "chip", "chips"))
	}
	fmt.Fprintf(&b, "\n\nAll users: %d counts, %d chips", st.Succeeded, st.Chips)
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// formatValue drops trailing zeros: 12.5, 30, 0.25.
func formatValue(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
