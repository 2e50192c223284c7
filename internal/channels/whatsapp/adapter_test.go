package whatsapp

import (
	"strings"
	"testing"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name      string
		msg       *waE2E.Message
		wantText  string
		wantImage bool
	}{
		{
			name:     "plain conversation",
			msg:      &waE2E.Message{Conversation: proto.String("hello")},
			wantText: "hello",
		},
		{
			name: "extended text",
			msg: &waE2E.Message{
				ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("@n hi")},
			},
			wantText: "@n hi",
		},
		{
			name: "image with caption",
			msg: &waE2E.Message{
				ImageMessage: &waE2E.ImageMessage{Caption: proto.String("@n read this")},
			},
			wantText:  "@n read this",
			wantImage: true,
		},
		{
			name:      "image without caption",
			msg:       &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}},
			wantText:  "",
			wantImage: true,
		},
		{
			name: "nil message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, hasImage := extractText(tt.msg)
			if text != tt.wantText || hasImage != tt.wantImage {
				t.Errorf("extractText() = (%q, %v), want (%q, %v)",
					text, hasImage, tt.wantText, tt.wantImage)
			}
		})
	}
}

func TestRenderQR(t *testing.T) {
	out := renderQR("pairing-code")
	if !strings.Contains(out, "█") {
		t.Errorf("renderQR() = %q, want terminal blocks", out)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	bad := &Config{}
	if err := bad.Validate(); err == nil {
		t.Error("empty session_path should fail validation")
	}
}

func TestConfigTypingEnabled(t *testing.T) {
	if !DefaultConfig().TypingEnabled() {
		t.Error("typing should default to enabled")
	}
	off := false
	cfg := &Config{SendTyping: &off}
	if cfg.TypingEnabled() {
		t.Error("explicit false should disable typing")
	}
	on := true
	cfg = &Config{SendTyping: &on}
	if !cfg.TypingEnabled() {
		t.Error("explicit true should enable typing")
	}
}
