// Package llm provides an OpenAI-compatible chat client used for
// LLM-assisted filename extraction.
//
// The client sends structured prompts to a configured chat-completion
// endpoint and returns the raw JSON payload. Response parsing tolerates the
// quirks real providers exhibit: code fences around JSON, tool-call
// arguments instead of message content, streaming delta schemas returned
// for non-streaming requests, and legacy completion-style text fields.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts with a forced JSON object
// response format.
// Client.Complete: same without the forced format, for array payloads.
// Client.HealthCheck: verify API key and model availability.
// NewExtractor / Extractor.Extract: batch filename extraction returning one
// hints entry per input filename.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
//
// # Fallback
//
// Extraction is advisory. A failed batch yields empty hints for its
// filenames and recognition proceeds on pattern extraction alone.
package llm
