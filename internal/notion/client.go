// Package notion is a client for the bot's Notion knowledge base: quick
// notes, todos, journal entries, and subject-scoped notes/links kept in one
// database per subject.
package notion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
)

// linkProperty is the URL property name shared by all subject databases.
const linkProperty = "Link or File"

// subjectOrder is the closed subject set in display order.
var subjectOrder = []string{"Language", "ICT", "Mathematics", "Physics", "Chemistry", "Biology"}

// Config holds the integration token and database ids.
type Config struct {
	Token     string `yaml:"token"`
	NotesDB   string `yaml:"notes_db"`
	TodoDB    string `yaml:"todo_db"`
	JournalDB string `yaml:"journal_db"`
	// Subjects maps subject name to its database id.
	Subjects map[string]string `yaml:"subjects"`
}

// Client wraps the Notion API for the bot's databases. Safe for concurrent
// use.
type Client struct {
	cfg Config
	api *notionapi.Client
}

// NewClient creates a Notion client. Options are passed through to the
// underlying API client.
func NewClient(cfg Config, opts ...notionapi.ClientOption) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("notion: integration token is required")
	}
	return &Client{
		cfg: cfg,
		api: notionapi.NewClient(notionapi.Token(cfg.Token), opts...),
	}, nil
}

// Subjects returns the configured subjects in canonical order.
func (c *Client) Subjects() []string {
	out := make([]string, 0, len(c.cfg.Subjects))
	for _, s := range subjectOrder {
		if _, ok := c.cfg.Subjects[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Note is one row of a notes database.
type Note struct {
	Title   string
	Content string
}

// Link is one row of a subject database's link view.
type Link struct {
	Title string
	URL   string
}

// AddNote creates a quick note in the general notes database.
func (c *Client) AddNote(ctx context.Context, title, content string) error {
	return c.createPage(ctx, c.cfg.NotesDB, notionapi.Properties{
		"Name":    titleProperty(title),
		"Content": richTextProperty(content),
	})
}

// AddTodo creates an unchecked task in the todo database.
func (c *Client) AddTodo(ctx context.Context, task string) error {
	return c.createPage(ctx, c.cfg.TodoDB, notionapi.Properties{
		"Name": titleProperty(task),
		"Done": notionapi.CheckboxProperty{Checkbox: false},
	})
}

// AddJournal creates a journal entry dated today.
func (c *Client) AddJournal(ctx context.Context, entry string) error {
	today := notionapi.Date(time.Now())
	return c.createPage(ctx, c.cfg.JournalDB, notionapi.Properties{
		"Name": titleProperty(entry),
		"Date": notionapi.DateProperty{Date: &notionapi.DateObject{Start: &today}},
	})
}

// AddSubjectNote creates a note in the subject's database.
func (c *Client) AddSubjectNote(ctx context.Context, subject, title, content string) error {
	dbID, err := c.subjectDB(subject)
	if err != nil {
		return err
	}
	return c.createPage(ctx, dbID, notionapi.Properties{
		"Name":    titleProperty(title),
		"Content": richTextProperty(content),
	})
}

// ListSubjectNotes returns the notes stored for a subject.
func (c *Client) ListSubjectNotes(ctx context.Context, subject string) ([]Note, error) {
	pages, err := c.queryDatabase(ctx, subject)
	if err != nil {
		return nil, err
	}
	notes := make([]Note, 0, len(pages))
	for _, p := range pages {
		notes = append(notes, Note{
			Title:   pageTitle(p, "Name"),
			Content: pageRichText(p, "Content"),
		})
	}
	return notes, nil
}

// AddSubjectLink creates a link row in the subject's database.
func (c *Client) AddSubjectLink(ctx context.Context, subject, note, url string) error {
	dbID, err := c.subjectDB(subject)
	if err != nil {
		return err
	}
	return c.createPage(ctx, dbID, notionapi.Properties{
		"Name":       titleProperty(note),
		linkProperty: notionapi.URLProperty{URL: url},
	})
}

// ListSubjectLinks returns the link rows stored for a subject.
func (c *Client) ListSubjectLinks(ctx context.Context, subject string) ([]Link, error) {
	pages, err := c.queryDatabase(ctx, subject)
	if err != nil {
		return nil, err
	}
	links := make([]Link, 0, len(pages))
	for _, p := range pages {
		links = append(links, Link{
			Title: pageTitle(p, "Name"),
			URL:   pageURL(p, linkProperty),
		})
	}
	return links, nil
}

func (c *Client) subjectDB(subject string) (string, error) {
	dbID, ok := c.cfg.Subjects[subject]
	if !ok || dbID == "" {
		return "", fmt.Errorf("notion: unknown subject %q", subject)
	}
	return dbID, nil
}

func (c *Client) createPage(ctx context.Context, databaseID string, properties notionapi.Properties) error {
	if databaseID == "" {
		return errors.New("notion: database id is not configured")
	}
	_, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return fmt.Errorf("notion: create page: %w", err)
	}
	return nil
}

func (c *Client) queryDatabase(ctx context.Context, subject string) ([]notionapi.Page, error) {
	dbID, err := c.subjectDB(subject)
	if err != nil {
		return nil, err
	}
	resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), &notionapi.DatabaseQueryRequest{})
	if err != nil {
		return nil, fmt.Errorf("notion: query database: %w", err)
	}
	return resp.Results, nil
}

func titleProperty(text string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Title: []notionapi.RichText{{Text: &notionapi.Text{Content: text}}},
	}
}

func richTextProperty(text string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: text}}},
	}
}

func pageTitle(p notionapi.Page, name string) string {
	if prop, ok := p.Properties[name].(*notionapi.TitleProperty); ok && len(prop.Title) > 0 {
		if text := fragmentText(prop.Title[0]); text != "" {
			return text
		}
	}
	return "Untitled"
}

func pageRichText(p notionapi.Page, name string) string {
	if prop, ok := p.Properties[name].(*notionapi.RichTextProperty); ok && len(prop.RichText) > 0 {
		return fragmentText(prop.RichText[0])
	}
	return ""
}

func pageURL(p notionapi.Page, name string) string {
	if prop, ok := p.Properties[name].(*notionapi.URLProperty); ok {
		return prop.URL
	}
	return ""
}

func fragmentText(rt notionapi.RichText) string {
	if rt.PlainText != "" {
		return rt.PlainText
	}
	if rt.Text != nil {
		return rt.Text.Content
	}
	return ""
}
