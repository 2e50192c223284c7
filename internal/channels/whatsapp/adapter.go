package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mtaspro/neuraflow/internal/dispatch"
	"github.com/mtaspro/neuraflow/internal/router"

	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for whatsmeow
)

// handleTimeout bounds the time a single inbound message may spend in the
// router and dispatcher, LLM call included.
const handleTimeout = 2 * time.Minute

// groupCacheTTL is how long a fetched group member list stays fresh.
const groupCacheTTL = 5 * time.Minute

// Adapter bridges WhatsApp events to the command router and dispatcher.
// It also implements dispatch.Directory for group member lookups.
type Adapter struct {
	config     *Config
	logger     *slog.Logger
	router     *router.Router
	dispatcher *dispatch.Dispatcher

	client    *whatsmeow.Client
	container *sqlstore.Container

	groupsMu sync.Mutex
	groups   map[string]groupEntry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type groupEntry struct {
	members []dispatch.Member
	fetched time.Time
}

// New creates a WhatsApp adapter backed by a SQLite session store.
func New(cfg *Config, rt *router.Router, d *dispatch.Dispatcher, logger *slog.Logger) (*Adapter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	sessionPath := expandPath(cfg.SessionPath)
	if err := os.MkdirAll(filepath.Dir(sessionPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	container, err := sqlstore.New(context.Background(), "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", sessionPath),
		waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	return &Adapter{
		config:     cfg,
		logger:     logger.With("component", "whatsapp"),
		router:     rt,
		dispatcher: d,
		container:  container,
		groups:     make(map[string]groupEntry),
	}, nil
}

// Start connects to WhatsApp and begins listening for messages. On first
// run it prints a QR code to stdout for pairing.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	device, err := a.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	a.client = whatsmeow.NewClient(device, waLog.Noop)
	a.client.AddEventHandler(a.handleEvent)

	if a.client.Store.ID == nil {
		// Not paired yet.
		qrChan, err := a.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("failed to get QR channel: %w", err)
		}
		if err := a.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case evt, ok := <-qrChan:
					if !ok {
						return
					}
					switch evt.Event {
					case "code":
						fmt.Fprintln(os.Stdout, renderQR(evt.Code))
						a.logger.Info("scan QR code to pair")
					case "success":
						a.logger.Info("paired with WhatsApp")
					}
				}
			}
		}()
		return nil
	}

	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// Stop disconnects and waits for in-flight message handlers.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if a.client != nil {
		a.client.Disconnect()
	}
	if a.container != nil {
		if err := a.container.Close(); err != nil {
			a.logger.Warn("failed to close session store", "error", err)
		}
	}
	return nil
}

// Connected reports whether the client currently holds a live connection.
func (a *Adapter) Connected() bool {
	return a.client != nil && a.client.IsConnected()
}

// handleEvent processes WhatsApp events.
func (a *Adapter) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		a.logger.Info("connected to WhatsApp")

	case *events.Disconnected:
		a.logger.Warn("disconnected from WhatsApp")

	case *events.LoggedOut:
		a.logger.Warn("logged out from WhatsApp", "reason", v.Reason)

	case *events.Message:
		// Replies may block on an LLM call; don't stall the event loop.
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handleMessage(v)
		}()
	}
}

// handleMessage classifies one inbound message and sends the reply, if any.
func (a *Adapter) handleMessage(evt *events.Message) {
	if evt.Info.Chat.Server == types.BroadcastServer || evt.Info.IsFromMe {
		return
	}

	text, hasImage := extractText(evt.Message)
	if text == "" && !hasImage {
		return
	}

	intent := a.router.Classify(text, evt.Info.IsGroup, hasImage)
	if intent.Kind == router.KindIgnore {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	req := dispatch.Request{
		Intent:         intent,
		ConversationID: evt.Info.Chat.String(),
		SenderID:       evt.Info.Sender.ToNonAD().String(),
		IsGroup:        evt.Info.IsGroup,
	}
	if intent.Kind == router.KindOCR {
		req.Image = a.downloadImage(ctx, evt)
	}

	if a.config.TypingEnabled() {
		a.setTyping(ctx, evt.Info.Chat, true)
		defer a.setTyping(ctx, evt.Info.Chat, false)
	}

	out := a.dispatcher.Handle(ctx, req)
	if out == nil {
		return
	}
	if err := a.send(ctx, evt, out); err != nil {
		a.logger.Error("failed to send reply",
			"chat", evt.Info.Chat.String(),
			"error", err)
	}
}

// send delivers a reply. Group replies quote the triggering message and
// carry mention JIDs so @tags resolve in clients.
func (a *Adapter) send(ctx context.Context, evt *events.Message, out *dispatch.Outbound) error {
	var msg *waE2E.Message
	if evt.Info.IsGroup || len(out.Mentions) > 0 {
		msg = &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text: proto.String(out.Text),
				ContextInfo: &waE2E.ContextInfo{
					StanzaID:      proto.String(evt.Info.ID),
					Participant:   proto.String(evt.Info.Sender.String()),
					QuotedMessage: evt.Message,
					MentionedJID:  out.Mentions,
				},
			},
		}
	} else {
		msg = &waE2E.Message{Conversation: proto.String(out.Text)}
	}

	_, err := a.client.SendMessage(ctx, evt.Info.Chat, msg)
	return err
}

// Members returns the participant list of a group chat, cached briefly to
// keep repeated @everyone-style commands from hammering the server.
func (a *Adapter) Members(ctx context.Context, conversationID string) ([]dispatch.Member, error) {
	jid, err := types.ParseJID(conversationID)
	if err != nil {
		return nil, fmt.Errorf("invalid group ID %q: %w", conversationID, err)
	}
	if jid.Server != types.GroupServer {
		return nil, fmt.Errorf("%q is not a group chat", conversationID)
	}

	a.groupsMu.Lock()
	entry, ok := a.groups[conversationID]
	a.groupsMu.Unlock()
	if ok && time.Since(entry.fetched) < groupCacheTTL {
		return entry.members, nil
	}

	info, err := a.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("failed to get group info: %w", err)
	}

	members := make([]dispatch.Member, 0, len(info.Participants))
	for _, p := range info.Participants {
		members = append(members, dispatch.Member{JID: p.JID.ToNonAD().String()})
	}

	a.groupsMu.Lock()
	a.groups[conversationID] = groupEntry{members: members, fetched: time.Now()}
	a.groupsMu.Unlock()
	return members, nil
}

func (a *Adapter) setTyping(ctx context.Context, chat types.JID, typing bool) {
	state := types.ChatPresencePaused
	if typing {
		state = types.ChatPresenceComposing
	}
	if err := a.client.SendChatPresence(ctx, chat, state, types.ChatPresenceMediaText); err != nil {
		a.logger.Debug("failed to send chat presence", "error", err)
	}
}

// downloadImage fetches the image bytes of an image message, or nil.
func (a *Adapter) downloadImage(ctx context.Context, evt *events.Message) []byte {
	img := evt.Message.GetImageMessage()
	if img == nil {
		return nil
	}
	data, err := a.client.Download(ctx, img)
	if err != nil {
		a.logger.Error("failed to download image", "error", err)
		return nil
	}
	return data
}

// extractText pulls the text (or caption) out of a message and reports
// whether the message carries an image.
func extractText(msg *waE2E.Message) (string, bool) {
	if msg == nil {
		return "", false
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption(), true
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText(), false
	}
	return msg.GetConversation(), false
}

// renderQR renders a pairing code as a terminal QR block. If rendering
// fails the raw code is returned so pairing stays possible.
func renderQR(code string) string {
	q, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return code
	}
	return q.ToSmallString(false)
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
