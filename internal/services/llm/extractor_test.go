package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"organ/internal/media"
)

func TestExtractorParsesBatch(t *testing.T) {
	var systemPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		systemPrompt = req.Messages[0].Content
		response := `[
			{"filename":"流浪地球2.2023.mkv","title_cn":"流浪地球2","title_en":"The Wandering Earth II","year":2023},
			{"filename":"Dark.S01E01.mkv","title_en":"Dark","season":"1","episode":1,"quality":"1080p"}
		]`
		_ = json.NewEncoder(w).Encode(completionPayload(response))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	extractor := NewExtractor(client, 10)

	results := extractor.Extract(context.Background(), []string{"流浪地球2.2023.mkv", "Dark.S01E01.mkv"}, media.TypeUnknown)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].TitleNative != "流浪地球2" || results[0].Year != 2023 {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if results[1].Season != 1 || results[1].Episode != 1 || results[1].Quality != "1080p" {
		t.Fatalf("unexpected second result %+v", results[1])
	}
	if strings.Contains(systemPrompt, "MOVIE filenames") || strings.Contains(systemPrompt, "TV SHOW filenames") {
		t.Fatalf("unknown media type should not add a hint, prompt: %q", systemPrompt)
	}
}

func TestExtractorMediaTypeHint(t *testing.T) {
	var systemPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)
		systemPrompt = req.Messages[0].Content
		_ = json.NewEncoder(w).Encode(completionPayload(`[{"filename":"Heat.1995.mkv","title_en":"Heat","year":1995}]`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	extractor := NewExtractor(client, 10)

	result := extractor.ExtractSingle(context.Background(), "Heat.1995.mkv", media.TypeMovie)
	if result.TitleLatin != "Heat" || result.Year != 1995 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.Contains(systemPrompt, "MOVIE filenames") {
		t.Fatalf("expected movie hint in prompt, got %q", systemPrompt)
	}
}

func TestExtractorAliasKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// title_en is blank, so the en_name alias has to win.
		_ = json.NewEncoder(w).Encode(completionPayload(`[{"filename":"show.mkv","title_en":"  ","cn_name":"剧集","en_name":"The Show","tmdbid":"4521"}]`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	extractor := NewExtractor(client, 10)

	result := extractor.ExtractSingle(context.Background(), "show.mkv", media.TypeTV)
	if result.TitleNative != "剧集" || result.TitleLatin != "The Show" {
		t.Fatalf("alias titles not picked up: %+v", result)
	}
	if result.TMDBID != 4521 {
		t.Fatalf("tmdbid alias not parsed, got %d", result.TMDBID)
	}
}

func TestExtractorFailureYieldsEmptyHints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryMaxAttempts(1),
	)
	extractor := NewExtractor(client, 10)

	results := extractor.Extract(context.Background(), []string{"a.mkv", "b.mkv"}, media.TypeUnknown)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, result := range results {
		if result.Filename == "" {
			t.Fatalf("result %d missing filename", i)
		}
		if result.TitleLatin != "" || result.Year != 0 {
			t.Fatalf("result %d should be empty hints: %+v", i, result)
		}
	}
}

func TestExtractorMissingEntryFilledFromOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Model omitted filename keys; map by position.
		_ = json.NewEncoder(w).Encode(completionPayload(`[{"title_en":"First"},{"title_en":"Second"}]`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	extractor := NewExtractor(client, 10)

	results := extractor.Extract(context.Background(), []string{"first.mkv", "second.mkv"}, media.TypeUnknown)
	if results[0].TitleLatin != "First" || results[0].Filename != "first.mkv" {
		t.Fatalf("positional mapping failed: %+v", results[0])
	}
	if results[1].TitleLatin != "Second" || results[1].Filename != "second.mkv" {
		t.Fatalf("positional mapping failed: %+v", results[1])
	}
}
