package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newStubServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(status)
		payload := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("failed to encode payload: %v", err)
		}
	}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: baseURL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestGeneratePageParsesStory(t *testing.T) {
	server := newStubServer(t, http.StatusOK, `{"title": "A Good Day", "content": "It rained and we stayed in."}`)
	defer server.Close()

	story, err := newTestClient(t, server.URL).GeneratePage(context.Background(), "instruction", "context")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if story.Title != "A Good Day" || story.Content != "It rained and we stayed in." {
		t.Fatalf("unexpected story %+v", story)
	}
}

func TestGeneratePageRejectsMalformedPayload(t *testing.T) {
	server := newStubServer(t, http.StatusOK, `not json at all`)
	defer server.Close()

	_, err := newTestClient(t, server.URL).GeneratePage(context.Background(), "instruction", "context")
	if !errors.Is(err, ErrMalformedCompletion) {
		t.Fatalf("expected ErrMalformedCompletion, got %v", err)
	}
}

func TestGeneratePageRejectsBlankFields(t *testing.T) {
	server := newStubServer(t, http.StatusOK, `{"title": "  ", "content": "body"}`)
	defer server.Close()

	_, err := newTestClient(t, server.URL).GeneratePage(context.Background(), "instruction", "context")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestGeneratePageSurfacesUpstreamStatus(t *testing.T) {
	server := newStubServer(t, http.StatusBadGateway, `{}`)
	defer server.Close()

	_, err := newTestClient(t, server.URL).GeneratePage(context.Background(), "instruction", "context")
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}

func TestGenerateQuestionsTrimsAndDropsBlanks(t *testing.T) {
	server := newStubServer(t, http.StatusOK,
		`{"questions": [" How did the day start? ", "", "What surprised you?"]}`)
	defer server.Close()

	questions, err := newTestClient(t, server.URL).GenerateQuestions(context.Background(), "notes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0] != "How did the day start?" {
		t.Fatalf("expected trimmed question, got %q", questions[0])
	}
}

func TestGenerateQuestionsRejectsEmptyList(t *testing.T) {
	server := newStubServer(t, http.StatusOK, `{"questions": []}`)
	defer server.Close()

	_, err := newTestClient(t, server.URL).GenerateQuestions(context.Background(), "notes")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestExtractItemsSkipsIncompleteEntries(t *testing.T) {
	server := newStubServer(t, http.StatusOK,
		`{"items": [
			{"category": "People", "title": "Ana", "description": "Sister"},
			{"category": "", "title": "Loose", "description": "no category"},
			{"category": "Places", "title": " ", "description": "no title"}
		]}`)
	defer server.Close()

	items, err := newTestClient(t, server.URL).ExtractItems(context.Background(), "notes text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Ana" {
		t.Fatalf("expected only the complete item, got %+v", items)
	}
}
