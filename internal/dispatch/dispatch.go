// Package dispatch routes classified intents to their collaborators: rate
// limiters, conversation memory, generation backends, web search, OCR, and
// the Notion knowledge base. It owns reply formatting and the failure
// policy: collaborator errors never escape Handle.
package dispatch

import (
	"context"

	"github.com/mtaspro/neuraflow/internal/memory"
	"github.com/mtaspro/neuraflow/internal/notion"
	"github.com/mtaspro/neuraflow/internal/ratelimit"
	"github.com/mtaspro/neuraflow/internal/router"
)

// Generator produces a reply from conversation context. An empty reply with
// a nil error means the backend had nothing to say.
type Generator interface {
	Generate(ctx context.Context, history []memory.Message, identity bool) (string, error)
}

// Searcher performs a web search and returns reply-ready text.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// TextExtractor runs OCR over image bytes.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Knowledge is the notes/tasks knowledge base.
type Knowledge interface {
	AddNote(ctx context.Context, title, content string) error
	AddTodo(ctx context.Context, task string) error
	AddJournal(ctx context.Context, entry string) error
	AddSubjectNote(ctx context.Context, subject, title, content string) error
	ListSubjectNotes(ctx context.Context, subject string) ([]notion.Note, error)
	AddSubjectLink(ctx context.Context, subject, note, url string) error
	ListSubjectLinks(ctx context.Context, subject string) ([]notion.Link, error)
}

// Directory resolves group membership for the members builtin.
type Directory interface {
	Members(ctx context.Context, conversationID string) ([]Member, error)
}

// DirectoryFunc adapts a function to the Directory interface.
type DirectoryFunc func(ctx context.Context, conversationID string) ([]Member, error)

// Members calls f.
func (f DirectoryFunc) Members(ctx context.Context, conversationID string) ([]Member, error) {
	return f(ctx, conversationID)
}

// Member is one group participant.
type Member struct {
	// JID is the participant's full address, e.g. "12345@s.whatsapp.net".
	JID string
}

// Generators bundles the four generation backends.
type Generators struct {
	Chat       Generator // default chat (llama family)
	Reasoner   Generator // /think (deepseek family)
	Secondary  Generator // /ben (qwen family)
	Summarizer Generator // /summary (summary family)
}

// Limiters holds one sliding window per API family.
type Limiters struct {
	Llama    *ratelimit.Window
	DeepSeek *ratelimit.Window
	Qwen     *ratelimit.Window
	Summary  *ratelimit.Window
}

// ByFamily returns the limiter for a status family, or nil when unknown.
func (l Limiters) ByFamily(f router.Family) *ratelimit.Window {
	switch f {
	case router.FamilyLlama:
		return l.Llama
	case router.FamilyDeepSeek:
		return l.DeepSeek
	case router.FamilyQwen:
		return l.Qwen
	case router.FamilySummary:
		return l.Summary
	}
	return nil
}

// HistoryPolicy sets the retention size, in pairs, each intent class uses
// for both its read and its write.
type HistoryPolicy struct {
	Default int `yaml:"default"`
	Think   int `yaml:"think"`
	Ben     int `yaml:"ben"`
}

// DefaultHistoryPolicy mirrors the per-backend policies the bot has always
// run with.
func DefaultHistoryPolicy() HistoryPolicy {
	return HistoryPolicy{Default: memory.DefaultMaxPairs, Think: 10, Ben: 50}
}

// Request is one inbound message after classification.
type Request struct {
	Intent         router.Intent
	ConversationID string
	SenderID       string
	IsGroup        bool
	// Image carries the attachment bytes for OCR intents.
	Image []byte
}

// Outbound is the reply to send. A nil Outbound from Handle means silence.
// Replies always quote the inbound message; Mentions carries JIDs to tag.
type Outbound struct {
	Text     string
	Mentions []string
}
