// Package whatsapp connects the bot to WhatsApp using whatsmeow.
package whatsapp

import "fmt"

// Config holds WhatsApp connection configuration.
type Config struct {
	// SessionPath is the path to the SQLite database holding device
	// credentials. Pairing survives restarts through this file.
	SessionPath string `yaml:"session_path"`

	// SendTyping controls whether the bot shows a typing indicator while
	// a reply is being produced. Unset means enabled; see TypingEnabled.
	SendTyping *bool `yaml:"send_typing"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SessionPath: "~/.neuraflow/session.db",
	}
}

// TypingEnabled reports whether the typing indicator should be sent. It
// defaults to true when the field is absent from the config.
func (c *Config) TypingEnabled() bool {
	return c.SendTyping == nil || *c.SendTyping
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.SessionPath == "" {
		return fmt.Errorf("whatsapp: session_path is required")
	}
	return nil
}
