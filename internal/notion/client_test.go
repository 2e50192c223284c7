package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jomei/notionapi"
)

func testConfig() Config {
	return Config{
		Token:     "secret",
		NotesDB:   "notes-db",
		TodoDB:    "todo-db",
		JournalDB: "journal-db",
		Subjects: map[string]string{
			"Physics": "physics-db",
			"ICT":     "ict-db",
		},
	}
}

// rewriteTransport points the API client at a test server.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewClient(testConfig(), notionapi.WithHTTPClient(&http.Client{
		Transport: rewriteTransport{target: target},
	}))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

const pageCreatedBody = `{"object":"page","id":"11111111-1111-1111-1111-111111111111"}`

func TestSubjects_CanonicalOrder(t *testing.T) {
	c, err := NewClient(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	got := c.Subjects()
	want := []string{"ICT", "Physics"}
	if len(got) != len(want) {
		t.Fatalf("subjects = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("subjects[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAddNote_SendsTitleAndContent(t *testing.T) {
	var captured map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/pages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Error("missing auth header")
		}
		if r.Header.Get("Notion-Version") == "" {
			t.Error("missing Notion-Version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(pageCreatedBody))
	})

	if err := c.AddNote(context.Background(), "Title", "Body"); err != nil {
		t.Fatal(err)
	}

	parent := captured["parent"].(map[string]any)
	if parent["database_id"] != "notes-db" {
		t.Errorf("database_id = %v", parent["database_id"])
	}
	if _, ok := captured["properties"].(map[string]any)["Content"]; !ok {
		t.Error("missing Content property")
	}
}

func TestListSubjectNotes_ParsesProperties(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/databases/physics-db/query" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"object":"list","results":[
			{"object":"page","id":"p1","properties":{
				"Name":{"id":"t","type":"title","title":[{"type":"text","plain_text":"Optics","text":{"content":"Optics"}}]},
				"Content":{"id":"c","type":"rich_text","rich_text":[{"type":"text","plain_text":"lens formula","text":{"content":"lens formula"}}]}}},
			{"object":"page","id":"p2","properties":{
				"Name":{"id":"t","type":"title","title":[]}}}
		]}`))
	})

	notes, err := c.ListSubjectNotes(context.Background(), "Physics")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("len = %d", len(notes))
	}
	if notes[0].Title != "Optics" || notes[0].Content != "lens formula" {
		t.Errorf("notes[0] = %+v", notes[0])
	}
	if notes[1].Title != "Untitled" {
		t.Errorf("empty title should read as Untitled, got %q", notes[1].Title)
	}
}

func TestListSubjectLinks_ParsesURL(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","results":[
			{"object":"page","id":"p1","properties":{
				"Name":{"id":"t","type":"title","title":[{"type":"text","plain_text":"Cheat sheet","text":{"content":"Cheat sheet"}}]},
				"Link or File":{"id":"u","type":"url","url":"https://example.com"}}}
		]}`))
	})

	links, err := c.ListSubjectLinks(context.Background(), "ICT")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].URL != "https://example.com" {
		t.Errorf("links = %+v", links)
	}
}

func TestUnknownSubject(t *testing.T) {
	c, _ := NewClient(testConfig())
	if _, err := c.ListSubjectNotes(context.Background(), "Astrology"); err == nil {
		t.Error("expected error for unknown subject")
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"bad property"}`))
	})

	if err := c.AddTodo(context.Background(), "task"); err == nil {
		t.Error("expected error on 400")
	}
}
