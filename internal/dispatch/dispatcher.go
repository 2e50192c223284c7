package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mtaspro/neuraflow/internal/llm"
	"github.com/mtaspro/neuraflow/internal/memory"
	"github.com/mtaspro/neuraflow/internal/observability"
	"github.com/mtaspro/neuraflow/internal/ratelimit"
	"github.com/mtaspro/neuraflow/internal/router"
)

// Dispatcher executes classified intents. All collaborators are injected;
// the dispatcher holds no ambient state beyond them.
type Dispatcher struct {
	store    memory.Store
	gens     Generators
	limiters Limiters
	search   Searcher
	ocr      TextExtractor
	kb       Knowledge
	dir      Directory
	policy   HistoryPolicy
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Options configures a Dispatcher. Store, Generators, and Limiters are
// required; the remaining collaborators may be nil, in which case their
// intents answer with the matching apology.
type Options struct {
	Store      memory.Store
	Generators Generators
	Limiters   Limiters
	Search     Searcher
	OCR        TextExtractor
	Knowledge  Knowledge
	Directory  Directory
	Policy     HistoryPolicy
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Policy == (HistoryPolicy{}) {
		opts.Policy = DefaultHistoryPolicy()
	}
	return &Dispatcher{
		store:    opts.Store,
		gens:     opts.Generators,
		limiters: opts.Limiters,
		search:   opts.Search,
		ocr:      opts.OCR,
		kb:       opts.Knowledge,
		dir:      opts.Directory,
		policy:   opts.Policy,
		logger:   opts.Logger.With("component", "dispatch"),
		metrics:  opts.Metrics,
	}
}

// Handle executes one request and returns the reply, or nil for silence.
// Collaborator failures are logged and converted to fixed apology strings;
// they never propagate. Messages from distinct conversations may be in
// flight concurrently; messages from the same conversation are not
// serialized, so two arrivals before the first reply completes may
// interleave their history writes.
func (d *Dispatcher) Handle(ctx context.Context, req Request) *Outbound {
	intent := req.Intent
	if intent.Kind == router.KindIgnore {
		return nil
	}
	d.count(intent.Kind)

	switch intent.Kind {
	case router.KindUsage:
		usage := intent.Usage
		if usage == "" {
			usage = "Invalid command. Use /help to see the manual."
		}
		return &Outbound{Text: usage}

	case router.KindHelp:
		return &Outbound{Text: helpText}

	case router.KindStatus:
		limiter := d.limiters.ByFamily(intent.Family)
		if limiter == nil {
			return &Outbound{Text: "Unknown status command."}
		}
		return &Outbound{Text: statusReport(intent.Family, limiter.Snapshot())}

	case router.KindClear:
		if err := d.store.Clear(ctx, req.ConversationID); err != nil {
			d.fail(intent.Kind, req.ConversationID, err)
			return &Outbound{Text: apologyGeneric}
		}
		return &Outbound{Text: "Chat history cleared."}

	case router.KindSearch:
		return d.handleSearch(ctx, intent.Query)

	case router.KindThink:
		return d.handleGeneration(ctx, req, d.gens.Reasoner, d.limiters.DeepSeek,
			router.FamilyDeepSeek, d.policy.Think, intent.Query, apologyReasoning)

	case router.KindBen:
		return d.handleGeneration(ctx, req, d.gens.Secondary, d.limiters.Qwen,
			router.FamilyQwen, d.policy.Ben, intent.Query, apologyGeneric)

	case router.KindChat:
		out := d.handleGeneration(ctx, req, d.gens.Chat, d.limiters.Llama,
			router.FamilyLlama, d.policy.Default, intent.Query, apologyGeneric)
		if out != nil && req.IsGroup && intent.Mentioned {
			// Group AI replies tag the sender.
			out.Text = "@" + jidUser(req.SenderID) + " " + out.Text
			out.Mentions = []string{req.SenderID}
		}
		return out

	case router.KindSummarize:
		return d.handleSummarize(ctx, intent.Query)

	case router.KindOCR:
		return d.handleOCR(ctx, req)

	case router.KindHistoryShow:
		return d.handleHistoryShow(ctx, req)

	case router.KindMembersList:
		return d.handleMembers(ctx, req)

	case router.KindNoteAdd:
		return d.handleCRUD(ctx, intent.Kind, "Note added to Notion.", "Failed to add note.", func() error {
			return d.kb.AddNote(ctx, intent.Title, intent.Content)
		})

	case router.KindTodoAdd:
		return d.handleCRUD(ctx, intent.Kind, "Todo added to Notion.", "Failed to add todo.", func() error {
			return d.kb.AddTodo(ctx, intent.Query)
		})

	case router.KindJournalAdd:
		return d.handleCRUD(ctx, intent.Kind, "Journal entry added to Notion.", "Failed to add journal entry.", func() error {
			return d.kb.AddJournal(ctx, intent.Query)
		})

	case router.KindSubjectNoteAdd:
		return d.handleCRUD(ctx, intent.Kind,
			fmt.Sprintf("Note added to %s.", intent.Subject), "Failed to add note.", func() error {
				return d.kb.AddSubjectNote(ctx, intent.Subject, intent.Title, intent.Content)
			})

	case router.KindLinkAdd:
		return d.handleCRUD(ctx, intent.Kind,
			fmt.Sprintf("Link added to %s.", intent.Subject), "Failed to add link.", func() error {
				return d.kb.AddSubjectLink(ctx, intent.Subject, intent.Title, intent.URL)
			})

	case router.KindSubjectNoteList:
		return d.handleNoteList(ctx, intent.Subject)

	case router.KindLinkList:
		return d.handleLinkList(ctx, intent.Subject)
	}

	return nil
}

// handleGeneration is the shared path for history-bearing chat intents:
// admission check, record on attempt, history read, generate, append on
// non-empty reply.
func (d *Dispatcher) handleGeneration(ctx context.Context, req Request, gen Generator, limiter *ratelimit.Window, family router.Family, maxPairs int, query, apology string) *Outbound {
	if gen == nil {
		return &Outbound{Text: apology}
	}
	if limiter != nil {
		if !limiter.Allow() {
			if d.metrics != nil {
				d.metrics.RateLimited.WithLabelValues(string(family)).Inc()
			}
			return &Outbound{Text: limitNotice(family, limiter.RetryAfter(), limiter.MaxRequests())}
		}
		// Admission is consumed on attempt, before the call, so failed
		// calls still count against the window.
		limiter.Record()
	}

	history, err := d.store.History(ctx, req.ConversationID, maxPairs)
	if err != nil {
		d.fail(req.Intent.Kind, req.ConversationID, err)
		return &Outbound{Text: apology}
	}

	identity := llm.IsIntroQuery(query)
	turns := append(history, memory.Message{Role: memory.RoleUser, Content: query})

	reply, err := gen.Generate(ctx, turns, identity)
	if err != nil {
		d.fail(req.Intent.Kind, req.ConversationID, err)
		return &Outbound{Text: apology}
	}
	if reply == "" {
		// The backend had nothing to say: no message, no history write.
		return nil
	}

	if err := d.store.AppendExchange(ctx, req.ConversationID, query, reply, maxPairs); err != nil {
		// The reply is already generated; send it and log the write failure.
		d.fail(req.Intent.Kind, req.ConversationID, err)
	}
	return &Outbound{Text: reply}
}

// handleSummarize is history-exempt: one-off text in, summary out.
func (d *Dispatcher) handleSummarize(ctx context.Context, text string) *Outbound {
	if d.gens.Summarizer == nil {
		return &Outbound{Text: apologySummary}
	}
	limiter := d.limiters.Summary
	if limiter != nil {
		if !limiter.Allow() {
			if d.metrics != nil {
				d.metrics.RateLimited.WithLabelValues(string(router.FamilySummary)).Inc()
			}
			return &Outbound{Text: limitNotice(router.FamilySummary, limiter.RetryAfter(), limiter.MaxRequests())}
		}
		limiter.Record()
	}

	reply, err := d.gens.Summarizer.Generate(ctx,
		[]memory.Message{{Role: memory.RoleUser, Content: text}}, false)
	if err != nil {
		d.fail(router.KindSummarize, "", err)
		return &Outbound{Text: apologySummary}
	}
	if reply == "" {
		return nil
	}
	return &Outbound{Text: reply}
}

func (d *Dispatcher) handleSearch(ctx context.Context, query string) *Outbound {
	if d.search == nil {
		return &Outbound{Text: apologySearch}
	}
	results, err := d.search.Search(ctx, query)
	if err != nil {
		d.fail(router.KindSearch, "", err)
		return &Outbound{Text: apologySearch}
	}
	return &Outbound{Text: results}
}

func (d *Dispatcher) handleOCR(ctx context.Context, req Request) *Outbound {
	// A failed image download arrives here with no bytes and gets the same
	// reply as an image with no readable text.
	if d.ocr == nil || len(req.Image) == 0 {
		return &Outbound{Text: ocrEmptyReply}
	}
	text, err := d.ocr.ExtractText(ctx, req.Image)
	if err != nil {
		d.fail(router.KindOCR, req.ConversationID, err)
		return &Outbound{Text: ocrEmptyReply}
	}
	if text == "" {
		return &Outbound{Text: ocrEmptyReply}
	}
	return &Outbound{Text: "Extracted text:\n" + text}
}

func (d *Dispatcher) handleHistoryShow(ctx context.Context, req Request) *Outbound {
	history, err := d.store.History(ctx, req.ConversationID, d.policy.Default)
	if err != nil {
		d.fail(router.KindHistoryShow, req.ConversationID, err)
		return &Outbound{Text: apologyGeneric}
	}
	if len(history) == 0 {
		return &Outbound{Text: "No history found.", Mentions: []string{req.SenderID}}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d messages in memory:\n", len(history))
	for i, m := range history {
		marker := "👤"
		if m.Role == memory.RoleAssistant {
			marker = "🤖"
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, marker, m.Content)
	}
	return &Outbound{Text: strings.TrimRight(b.String(), "\n"), Mentions: []string{req.SenderID}}
}

func (d *Dispatcher) handleMembers(ctx context.Context, req Request) *Outbound {
	if d.dir == nil {
		return &Outbound{Text: apologyGeneric}
	}
	members, err := d.dir.Members(ctx, req.ConversationID)
	if err != nil {
		d.fail(router.KindMembersList, req.ConversationID, err)
		return &Outbound{Text: apologyGeneric}
	}

	tags := make([]string, 0, len(members))
	jids := make([]string, 0, len(members))
	for _, m := range members {
		tags = append(tags, "@"+jidUser(m.JID))
		jids = append(jids, m.JID)
	}
	return &Outbound{
		Text:     "Group members:\n" + strings.Join(tags, ", "),
		Mentions: jids,
	}
}

func (d *Dispatcher) handleNoteList(ctx context.Context, subject string) *Outbound {
	if d.kb == nil {
		return &Outbound{Text: "Failed to list notes."}
	}
	notes, err := d.kb.ListSubjectNotes(ctx, subject)
	if err != nil {
		d.fail(router.KindSubjectNoteList, "", err)
		return &Outbound{Text: "Failed to list notes."}
	}
	if len(notes) == 0 {
		return &Outbound{Text: "No notes found."}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Notes in %s:\n", subject)
	for i, n := range notes {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, n.Title, n.Content)
	}
	return &Outbound{Text: strings.TrimRight(b.String(), "\n")}
}

func (d *Dispatcher) handleLinkList(ctx context.Context, subject string) *Outbound {
	if d.kb == nil {
		return &Outbound{Text: "Failed to list links."}
	}
	links, err := d.kb.ListSubjectLinks(ctx, subject)
	if err != nil {
		d.fail(router.KindLinkList, "", err)
		return &Outbound{Text: "Failed to list links."}
	}
	if len(links) == 0 {
		return &Outbound{Text: "No links found."}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Links in %s:\n", subject)
	for i, l := range links {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, l.Title, l.URL)
	}
	return &Outbound{Text: strings.TrimRight(b.String(), "\n")}
}

// handleCRUD runs a knowledge-base write and maps the result onto fixed
// confirmation/failure strings.
func (d *Dispatcher) handleCRUD(ctx context.Context, kind router.Kind, success, failure string, op func() error) *Outbound {
	if d.kb == nil {
		return &Outbound{Text: failure}
	}
	if err := op(); err != nil {
		d.fail(kind, "", err)
		return &Outbound{Text: failure}
	}
	return &Outbound{Text: success}
}

func (d *Dispatcher) count(kind router.Kind) {
	if d.metrics != nil {
		d.metrics.MessagesHandled.WithLabelValues(kind.String()).Inc()
	}
}

func (d *Dispatcher) fail(kind router.Kind, conversation string, err error) {
	d.logger.Error("collaborator call failed",
		"intent", kind.String(),
		"conversation", conversation,
		"error", err)
	if d.metrics != nil {
		d.metrics.CollaboratorFailures.WithLabelValues(kind.String()).Inc()
	}
}

// jidUser returns the local part of a JID ("12345" from
// "12345@s.whatsapp.net").
func jidUser(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		return jid[:i]
	}
	return jid
}
