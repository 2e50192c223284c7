package dispatch

import (
	"fmt"

	"github.com/mtaspro/neuraflow/internal/ratelimit"
	"github.com/mtaspro/neuraflow/internal/router"
)

// Fixed user-facing strings. Collaborator errors map onto these; the
// underlying error is only logged.
const (
	apologyGeneric   = "Sorry, I encountered an error processing your message. Please try again."
	apologyReasoning = "Sorry, I encountered an error processing your reasoning request. Please try again."
	apologySearch    = "Sorry, I couldn't fetch web results."
	apologySummary   = "Sorry, I couldn't summarize that right now. Please try again."

	ocrEmptyReply = "Couldn't extract any text from the image."
)

const helpText = `*NEURAFLOW Bot Manual*

AI Chat:
• @n [question] – Ask me anything (in groups)
• /ben [question] – Use Qwen3-235B for responses
• /think [question] – Use DeepSeek for reasoning and analysis
• /summary [text] – Summarize long text
• /statusben – Check Qwen rate limit status
• /thinkstatus – Check DeepSeek rate limit status
• /summarystatus – Check summarizer rate limit status
• /llamastatus – Check chat rate limit status
• @n history – Show conversation history
• @n members – List group members

Utilities:
• /search [query] – Search the web
• /clear – Clear chat history
• Send image with @n [message] – Extract text from the image

Notion:
• /note Title | Content – Save a quick note
• /todo Task – Add a task
• /journal Entry – Add a journal entry
• /addnote subject|title|content – Save a subject note
• /listnotes subject – List subject notes
• /addlink Subject|Note|URL – Save a subject link
• /listlinks Subject – List subject links`

// familyInfo carries per-family display strings for status reports and
// limit notices.
type familyInfo struct {
	title string // status report heading
	label string // short name used in limit notices
	hint  string // usage hint appended to status reports
}

var families = map[router.Family]familyInfo{
	router.FamilyQwen: {
		title: "🤖 *Qwen3-235B (OpenRouter) Status*",
		label: "Qwen API",
		hint:  "💡 Use /ben [question] to use Qwen3-235B via OpenRouter",
	},
	router.FamilyDeepSeek: {
		title: "🧠 *Reasoning Status*",
		label: "DeepSeek reasoning",
		hint:  "💡 Use /think [question] for logical reasoning and analysis",
	},
	router.FamilySummary: {
		title: "📝 *Summarizer Status*",
		label: "Summarizer",
		hint:  "💡 Use /summary [text] to summarize long text",
	},
	router.FamilyLlama: {
		title: "💬 *Chat Status*",
		label: "Chat",
		hint:  "💡 Mention @n [question] in a group, or just message me directly",
	},
}

// statusReport renders a limiter snapshot in the bot's status format.
func statusReport(family router.Family, s ratelimit.Status) string {
	info := families[family]

	text := info.title + "\n\n"
	if s.Available {
		text += "✅ *Available* - You can make a request now!\n"
		text += fmt.Sprintf("📊 Rate limit: %d requests per minute\n", s.MaxRequests)
		text += fmt.Sprintf("⏰ Next reset: %d seconds\n", s.RetryAfter)
	} else {
		text += "⏰ *Rate Limited* - Please wait before making another request\n"
		text += fmt.Sprintf("⏳ Time remaining: %d seconds\n", s.RetryAfter)
		text += fmt.Sprintf("📊 Rate limit: %d requests per minute\n", s.MaxRequests)
	}
	text += "\n" + info.hint
	return text
}

// limitNotice is the reply for a denied admission.
func limitNotice(family router.Family, retryAfter, maxRequests int) string {
	info := families[family]
	return fmt.Sprintf(
		"⏰ %s limit reached! Please wait for %d seconds before trying again.\n\n%d requests per minute. You can make another request in %d seconds.",
		info.label, retryAfter, maxRequests, retryAfter)
}
