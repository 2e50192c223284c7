// Package router classifies inbound chat text into exactly one command
// intent. Matching is priority-ordered and first-match-wins: a message that
// textually contains several recognizable tokens (a mention prefix plus an
// embedded /think, say) still produces a single intent.
package router

import (
	"strings"
)

// DefaultMention is the mention prefix that addresses the bot in groups.
const DefaultMention = "@n"

// Kind identifies the classified command.
type Kind int

const (
	// KindIgnore means the message is not addressed to the bot (group
	// message without the mention prefix). No reply is sent.
	KindIgnore Kind = iota
	KindHelp
	KindStatus
	KindClear
	KindSearch
	KindThink
	KindBen
	KindSummarize
	KindNoteAdd
	KindTodoAdd
	KindJournalAdd
	KindSubjectNoteAdd
	KindSubjectNoteList
	KindLinkAdd
	KindLinkList
	KindHistoryShow
	KindMembersList
	KindOCR
	KindChat
	// KindUsage is a recognized command with a missing or malformed
	// argument. Usage carries the reply text.
	KindUsage
)

var kindNames = map[Kind]string{
	KindIgnore:          "ignore",
	KindHelp:            "help",
	KindStatus:          "status",
	KindClear:           "clear",
	KindSearch:          "search",
	KindThink:           "think",
	KindBen:             "ben",
	KindSummarize:       "summarize",
	KindNoteAdd:         "note_add",
	KindTodoAdd:         "todo_add",
	KindJournalAdd:      "journal_add",
	KindSubjectNoteAdd:  "subject_note_add",
	KindSubjectNoteList: "subject_note_list",
	KindLinkAdd:         "link_add",
	KindLinkList:        "link_list",
	KindHistoryShow:     "history_show",
	KindMembersList:     "members_list",
	KindOCR:             "ocr",
	KindChat:            "chat",
	KindUsage:           "usage",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Family identifies a downstream API family for status intents.
type Family string

const (
	FamilyQwen     Family = "qwen"
	FamilyDeepSeek Family = "deepseek"
	FamilySummary  Family = "summary"
	FamilyLlama    Family = "llama"
)

// Intent is the classified command plus extracted arguments. Produced fresh
// per inbound message, never stored.
type Intent struct {
	Kind    Kind
	Query   string // free-text argument (search/think/ben/summarize/todo/journal/chat)
	Subject string
	Title   string
	Content string
	URL     string
	Family  Family // set for KindStatus
	Usage   string // set for KindUsage
	// Mentioned is true when the message carried the mention prefix, which
	// controls outbound mention formatting for chat replies.
	Mentioned bool
}

// Router classifies free text against the fixed command set. It is purely
// functional over its inputs and safe for concurrent use.
type Router struct {
	mention    string
	subjects   []string
	subjectSet map[string]string // lowercase -> canonical name
}

// New creates a router using the given mention prefix (DefaultMention when
// empty) and the closed set of knowledge-base subjects.
func New(mention string, subjects []string) *Router {
	if mention == "" {
		mention = DefaultMention
	}
	set := make(map[string]string, len(subjects))
	for _, s := range subjects {
		set[strings.ToLower(s)] = s
	}
	return &Router{
		mention:    strings.ToLower(mention),
		subjects:   subjects,
		subjectSet: set,
	}
}

// Classify produces exactly one intent for an inbound message.
//
// Precedence, highest first: image+mention OCR; mention-embedded /think;
// mention-embedded /ben; mention builtins (history/members/clear); mention
// default chat; bare slash commands; plain chat (direct chats only — group
// messages without the mention prefix are ignored).
func (r *Router) Classify(text string, isGroup, hasImage bool) Intent {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	mentioned := strings.HasPrefix(lower, r.mention)

	if hasImage && mentioned {
		return Intent{Kind: KindOCR, Mentioned: true}
	}

	if isGroup && mentioned {
		return r.classifyMention(trimmed, lower)
	}

	if intent, ok := r.classifySlash(trimmed, lower); ok {
		return intent
	}

	if isGroup {
		return Intent{Kind: KindIgnore}
	}
	// Direct chats default to plain conversation.
	return Intent{Kind: KindChat, Query: trimmed}
}

// classifyMention handles group messages addressed with the mention prefix.
// Matching runs on the lowered text; arguments are sliced out of the
// original so their casing reaches the backend intact. The two views stay
// byte-aligned because lowering never changes whitespace or ASCII length.
func (r *Router) classifyMention(trimmed, lower string) Intent {
	rest := strings.TrimSpace(trimmed[len(r.mention):])
	restLower := strings.TrimSpace(lower[len(r.mention):])

	switch {
	case strings.HasPrefix(restLower, "/think"):
		query := strings.TrimSpace(rest[len("/think"):])
		if query == "" {
			return usageIntent(usageThink)
		}
		return Intent{Kind: KindThink, Query: query, Mentioned: true}

	case strings.HasPrefix(restLower, "/ben"):
		query := strings.TrimSpace(rest[len("/ben"):])
		if query == "" {
			return usageIntent(usageBen)
		}
		return Intent{Kind: KindBen, Query: query, Mentioned: true}

	case strings.HasPrefix(restLower, "history"), strings.HasPrefix(restLower, "show memory"):
		return Intent{Kind: KindHistoryShow, Mentioned: true}

	case strings.HasPrefix(restLower, "members"):
		return Intent{Kind: KindMembersList, Mentioned: true}

	// clear wipes history, so it needs a word boundary: "clearly a good
	// idea" stays a chat message.
	case matchesToken(restLower, "clear"):
		return Intent{Kind: KindClear, Mentioned: true}
	}

	// Default mention chat keeps the full original text as the query so the
	// model sees how it was addressed.
	return Intent{Kind: KindChat, Query: trimmed, Mentioned: true}
}

// classifySlash matches bare slash commands usable in any chat. The boolean
// result is false when no command matched, in which case the caller falls
// through to plain-chat handling (an unknown slash token is never an error).
func (r *Router) classifySlash(trimmed, lower string) (Intent, bool) {
	switch lower {
	case "/help":
		return Intent{Kind: KindHelp}, true
	case "/statusben":
		return Intent{Kind: KindStatus, Family: FamilyQwen}, true
	case "/thinkstatus":
		return Intent{Kind: KindStatus, Family: FamilyDeepSeek}, true
	case "/summarystatus":
		return Intent{Kind: KindStatus, Family: FamilySummary}, true
	case "/llamastatus":
		return Intent{Kind: KindStatus, Family: FamilyLlama}, true
	case "/clear":
		return Intent{Kind: KindClear}, true
	}

	type freeText struct {
		token string
		kind  Kind
		usage string
	}
	// Order matters: first match wins.
	for _, cmd := range []freeText{
		{"/search", KindSearch, usageSearch},
		{"/think", KindThink, usageThink},
		{"/ben", KindBen, usageBen},
		{"/summary", KindSummarize, usageSummary},
	} {
		if matchesToken(lower, cmd.token) {
			query := argAfter(trimmed, cmd.token)
			if query == "" {
				return usageIntent(cmd.usage), true
			}
			return Intent{Kind: cmd.kind, Query: query}, true
		}
	}

	switch {
	case matchesToken(lower, "/note"):
		title, content, ok := splitPipe2(argAfter(trimmed, "/note"))
		if !ok {
			return usageIntent(usageNote), true
		}
		return Intent{Kind: KindNoteAdd, Title: title, Content: content}, true

	case matchesToken(lower, "/todo"):
		task := argAfter(trimmed, "/todo")
		if task == "" {
			return usageIntent(usageTodo), true
		}
		return Intent{Kind: KindTodoAdd, Query: task}, true

	case matchesToken(lower, "/journal"):
		entry := argAfter(trimmed, "/journal")
		if entry == "" {
			return usageIntent(usageJournal), true
		}
		return Intent{Kind: KindJournalAdd, Query: entry}, true

	case matchesToken(lower, "/addnote"):
		subject, title, content, ok := splitPipe3(argAfter(trimmed, "/addnote"))
		canonical, known := r.subjectSet[strings.ToLower(subject)]
		if !ok || !known {
			return usageIntent(r.subjectUsage("/addnote subject|title|content")), true
		}
		return Intent{Kind: KindSubjectNoteAdd, Subject: canonical, Title: title, Content: content}, true

	case matchesToken(lower, "/listnotes"):
		subject := argAfter(trimmed, "/listnotes")
		canonical, known := r.subjectSet[strings.ToLower(subject)]
		if !known {
			return usageIntent(r.subjectUsage("/listnotes subject")), true
		}
		return Intent{Kind: KindSubjectNoteList, Subject: canonical}, true

	case matchesToken(lower, "/addlink"):
		subject, note, url, ok := splitPipe3(argAfter(trimmed, "/addlink"))
		canonical, known := r.subjectSet[strings.ToLower(subject)]
		if !ok || !known {
			return usageIntent(r.subjectUsage("/addlink Subject|Note|URL")), true
		}
		return Intent{Kind: KindLinkAdd, Subject: canonical, Title: note, URL: url}, true

	case matchesToken(lower, "/listlinks"):
		subject := argAfter(trimmed, "/listlinks")
		canonical, known := r.subjectSet[strings.ToLower(subject)]
		if !known {
			return usageIntent(r.subjectUsage("/listlinks Subject")), true
		}
		return Intent{Kind: KindLinkList, Subject: canonical}, true
	}

	return Intent{}, false
}

// subjectUsage builds a usage reply that enumerates the closed subject set.
func (r *Router) subjectUsage(form string) string {
	return "Usage: " + form + "\nSubjects: " + strings.Join(r.subjects, ", ")
}

// matchesToken reports whether lower is exactly token or token followed by a
// space. "/thinkstatus" must not match "/think".
func matchesToken(lower, token string) bool {
	return lower == token || strings.HasPrefix(lower, token+" ")
}

// argAfter returns the trimmed text after the command token, preserving the
// original casing of the argument.
func argAfter(trimmed, token string) string {
	if len(trimmed) <= len(token) {
		return ""
	}
	return strings.TrimSpace(trimmed[len(token):])
}

// splitPipe2 splits "a|b|c" into ("a", "b|c"): the last field absorbs any
// embedded pipes.
func splitPipe2(arg string) (first, rest string, ok bool) {
	parts := strings.SplitN(arg, "|", 2)
	if len(parts) < 2 {
		return "", "", false
	}
	first = strings.TrimSpace(parts[0])
	rest = strings.TrimSpace(parts[1])
	return first, rest, first != "" && rest != ""
}

func splitPipe3(arg string) (first, second, rest string, ok bool) {
	parts := strings.SplitN(arg, "|", 3)
	if len(parts) < 3 {
		return "", "", "", false
	}
	first = strings.TrimSpace(parts[0])
	second = strings.TrimSpace(parts[1])
	rest = strings.TrimSpace(parts[2])
	return first, second, rest, first != "" && second != "" && rest != ""
}

func usageIntent(usage string) Intent {
	return Intent{Kind: KindUsage, Usage: usage}
}

// Usage strings for recognized commands with missing arguments.
const (
	usageSearch  = "Usage: /search [query]"
	usageThink   = "Usage: /think [your reasoning question or problem]"
	usageBen     = "Usage: /ben [your question or message]"
	usageSummary = "Usage: /summary [text to summarize]"
	usageNote    = "Usage: /note Title | Content"
	usageTodo    = "Usage: /todo Task"
	usageJournal = "Usage: /journal Your journal entry"
)
