package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) handleChatCompletions(c *gin.Context) {
	var req completionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		badRequest(c, "messages is required")
		return
	}
	prompt := promptFromMessages(req.Messages)
	if prompt == "" {
		badRequest(c, "messages must contain at least one non-empty message")
		return
	}

	modelLabel := req.Model
	if modelLabel == "" {
		modelLabel = defaultModelLabel
	}
	now := time.Now()
	id := "chatcmpl-" + uuid.New().String()

	if !req.Stream {
		text, record, err := runSync(c.Request.Context(), s.engine, s.plan, prompt)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := completionsResponse{
			ID: id, Object: "chat.completion", Created: now.Unix(), Model: modelLabel,
			Choices: []completionChoice{{Index: 0, Message: Message{Role: "assistant", Content: text}, FinishReason: "stop"}},
		}
		if req.IncludeWorkflow {
			resp.Workflow = record
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	s.streamChatCompletions(c, id, modelLabel, now.Unix(), prompt, req.IncludeWorkflow)
}

// streamChatCompletions writes the OpenAI-compatible "chat.completion.chunk"
// event family: a role delta first, then content deltas, a finish_reason
// delta, and finally the literal "data: [DONE]" sentinel line.
func (s *Server) streamChatCompletions(c *gin.Context, id, modelLabel string, created int64, prompt string, includeWorkflow bool) {
	writer := prepareStream(c)
	ctx := c.Request.Context()
	deltas, done := runStream(ctx, s.engine, s.plan, prompt)

	writeJSONEvent(writer, completionChunk{
		ID: id, Object: "chat.completion.chunk", Created: created, Model: modelLabel,
		Choices: []completionChunkChoice{{Index: 0, Delta: completionChunkDelta{Role: "assistant"}, FinishReason: nil}},
	})
	c.Writer.Flush()

	result := consumeStream(ctx, deltas, done, func(fragment string) {
		for _, chunk := range rechunk(fragment, maxEventBytes) {
			writeJSONEvent(writer, completionChunk{
				ID: id, Object: "chat.completion.chunk", Created: created, Model: modelLabel,
				Choices: []completionChunkChoice{{Index: 0, Delta: completionChunkDelta{Content: chunk}, FinishReason: nil}},
			})
			c.Writer.Flush()
		}
	})

	finish := completionChunk{ID: id, Object: "chat.completion.chunk", Created: created, Model: modelLabel}
	if result.Err != nil {
		finish.Choices = []completionChunkChoice{{Index: 0, Delta: completionChunkDelta{}, FinishReason: "error"}}
		finish.Error = result.Err.Error()
	} else {
		finish.Choices = []completionChunkChoice{{Index: 0, Delta: completionChunkDelta{}, FinishReason: "stop"}}
		if includeWorkflow {
			finish.Workflow = result.Record
		}
	}
	writeJSONEvent(writer, finish)
	c.Writer.Flush()
	_ = writer.WriteDone()
	c.Writer.Flush()
}

func (s *Server) handleTextCompletions(c *gin.Context) {
	var req textCompletionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}
	prompt, ok := promptFromTextCompletionPrompt(req.Prompt)
	if !ok || prompt == "" {
		badRequest(c, "prompt must be a string or an array of strings")
		return
	}

	modelLabel := req.Model
	if modelLabel == "" {
		modelLabel = defaultModelLabel
	}
	now := time.Now()
	id := "cmpl-" + uuid.New().String()

	// Honors stream:true here, matching /v1/chat/completions' behavior.
	if !req.Stream {
		text, record, err := runSync(c.Request.Context(), s.engine, s.plan, prompt)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := textCompletionsResponse{
			ID: id, Object: "text_completion", Created: now.Unix(), Model: modelLabel,
			Choices: []textChoice{{Index: 0, Text: text, FinishReason: "stop"}},
		}
		if req.IncludeWorkflow {
			resp.Workflow = record
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	s.streamTextCompletions(c, id, modelLabel, now.Unix(), prompt, req.IncludeWorkflow)
}

func (s *Server) streamTextCompletions(c *gin.Context, id, modelLabel string, created int64, prompt string, includeWorkflow bool) {
	writer := prepareStream(c)
	ctx := c.Request.Context()
	deltas, done := runStream(ctx, s.engine, s.plan, prompt)

	result := consumeStream(ctx, deltas, done, func(fragment string) {
		for _, chunk := range rechunk(fragment, maxEventBytes) {
			writeJSONEvent(writer, textCompletionChunk{
				ID: id, Object: "text_completion", Created: created, Model: modelLabel,
				Choices: []textChunkChoice{{Index: 0, Text: chunk, FinishReason: nil}},
			})
			c.Writer.Flush()
		}
	})

	finish := textCompletionChunk{ID: id, Object: "text_completion", Created: created, Model: modelLabel}
	if result.Err != nil {
		finish.Choices = []textChunkChoice{{Index: 0, Text: "", FinishReason: "error"}}
		finish.Error = result.Err.Error()
	} else {
		finish.Choices = []textChunkChoice{{Index: 0, Text: "", FinishReason: "stop"}}
		if includeWorkflow {
			finish.Workflow = result.Record
		}
	}
	writeJSONEvent(writer, finish)
	c.Writer.Flush()
	_ = writer.WriteDone()
	c.Writer.Flush()
}
