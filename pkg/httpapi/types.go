package httpapi

import "github.com/chorusdev/chorus/pkg/execrecord"

// Message is one chat message in the wire shapes that carry a messages array.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// generateRequest is the body for POST /api/generate and /v1/generate.
type generateRequest struct {
	Model           string `json:"model"`
	Prompt          string `json:"prompt"`
	Stream          bool   `json:"stream"`
	IncludeWorkflow bool   `json:"include_workflow"`
}

// generateResponse is the Ollama-style non-streaming and terminal-event shape.
type generateResponse struct {
	Model     string           `json:"model"`
	CreatedAt string           `json:"created_at"`
	Response  string           `json:"response"`
	Done      bool             `json:"done"`
	Workflow  *execrecord.Record `json:"workflow,omitempty"`
}

// chatRequest is the body for POST /api/chat and /v1/chat.
type chatRequest struct {
	Model           string    `json:"model"`
	Messages        []Message `json:"messages"`
	Stream          bool      `json:"stream"`
	IncludeWorkflow bool      `json:"include_workflow"`
}

// chatResponse is the Ollama-style non-streaming and terminal-event shape.
type chatResponse struct {
	Model     string             `json:"model"`
	CreatedAt string             `json:"created_at"`
	Message   Message            `json:"message"`
	Done      bool               `json:"done"`
	Workflow  *execrecord.Record `json:"workflow,omitempty"`
}

// completionsRequest is the body for POST /v1/chat/completions.
type completionsRequest struct {
	Model           string    `json:"model"`
	Messages        []Message `json:"messages"`
	Stream          bool      `json:"stream"`
	IncludeWorkflow bool      `json:"include_workflow"`
}

type completionChoice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// completionsResponse is the OpenAI-compatible /v1/chat/completions body.
type completionsResponse struct {
	ID       string              `json:"id"`
	Object   string              `json:"object"`
	Created  int64               `json:"created"`
	Model    string              `json:"model"`
	Choices  []completionChoice  `json:"choices"`
	Workflow *execrecord.Record  `json:"workflow,omitempty"`
}

type completionChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type completionChunkChoice struct {
	Index        int                  `json:"index"`
	Delta        completionChunkDelta `json:"delta"`
	FinishReason interface{}          `json:"finish_reason"`
}

type completionChunk struct {
	ID       string                   `json:"id"`
	Object   string                   `json:"object"`
	Created  int64                    `json:"created"`
	Model    string                   `json:"model"`
	Choices  []completionChunkChoice  `json:"choices"`
	Workflow *execrecord.Record       `json:"workflow,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

// textCompletionsRequest is the body for POST /v1/completions. Prompt may
// arrive as a single string or an array of strings (joined by newline).
type textCompletionsRequest struct {
	Model           string      `json:"model"`
	Prompt          interface{} `json:"prompt"`
	Stream          bool        `json:"stream"`
	IncludeWorkflow bool        `json:"include_workflow"`
}

type textChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

// textCompletionsResponse is the OpenAI-compatible /v1/completions body.
type textCompletionsResponse struct {
	ID       string              `json:"id"`
	Object   string              `json:"object"`
	Created  int64               `json:"created"`
	Model    string              `json:"model"`
	Choices  []textChoice        `json:"choices"`
	Workflow *execrecord.Record  `json:"workflow,omitempty"`
}

type textChunkChoice struct {
	Index        int         `json:"index"`
	Text         string      `json:"text"`
	FinishReason interface{} `json:"finish_reason"`
}

type textCompletionChunk struct {
	ID       string              `json:"id"`
	Object   string              `json:"object"`
	Created  int64               `json:"created"`
	Model    string              `json:"model"`
	Choices  []textChunkChoice   `json:"choices"`
	Workflow *execrecord.Record  `json:"workflow,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// errorBody is the JSON shape returned for every non-fatal request and
// stage failure.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// modelEntry is one row in the /api/tags, /v1/tags, /v1/models listings.
type modelEntry struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	ModifiedAt string `json:"modified_at"`
}
