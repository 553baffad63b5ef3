package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
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
	createdAt := time.Now().Format(time.RFC3339)

	if !req.Stream {
		text, record, err := runSync(c.Request.Context(), s.engine, s.plan, prompt)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := chatResponse{Model: modelLabel, CreatedAt: createdAt, Message: Message{Role: "assistant", Content: text}, Done: true}
		if req.IncludeWorkflow {
			resp.Workflow = record
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	s.streamChat(c, modelLabel, createdAt, prompt, req.IncludeWorkflow)
}

// streamChat writes Ollama-style chat streaming events: one per
// rechunked delta with an assistant-role message and done:false, then a
// terminal event with an empty message and done:true.
func (s *Server) streamChat(c *gin.Context, modelLabel, createdAt, prompt string, includeWorkflow bool) {
	writer := prepareStream(c)
	ctx := c.Request.Context()
	deltas, done := runStream(ctx, s.engine, s.plan, prompt)

	result := consumeStream(ctx, deltas, done, func(fragment string) {
		for _, chunk := range rechunk(fragment, maxEventBytes) {
			writeJSONEvent(writer, chatResponse{Model: modelLabel, CreatedAt: createdAt, Message: Message{Role: "assistant", Content: chunk}, Done: false})
			c.Writer.Flush()
		}
	})

	if result.Err != nil {
		writeJSONEvent(writer, generateErrorEvent(modelLabel, createdAt, result.Err))
		c.Writer.Flush()
		return
	}
	final := chatResponse{Model: modelLabel, CreatedAt: createdAt, Message: Message{Role: "assistant", Content: ""}, Done: true}
	if includeWorkflow {
		final.Workflow = result.Record
	}
	writeJSONEvent(writer, final)
	c.Writer.Flush()
}
