package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chorusdev/chorus/internal/sse"
)

const defaultModelLabel = "chorus"

func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		badRequest(c, "prompt is required")
		return
	}

	modelLabel := req.Model
	if modelLabel == "" {
		modelLabel = defaultModelLabel
	}
	createdAt := time.Now().Format(time.RFC3339)

	if !req.Stream {
		text, record, err := runSync(c.Request.Context(), s.engine, s.plan, req.Prompt)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := generateResponse{Model: modelLabel, CreatedAt: createdAt, Response: text, Done: true}
		if req.IncludeWorkflow {
			resp.Workflow = record
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	s.streamGenerate(c, modelLabel, createdAt, req.Prompt, req.IncludeWorkflow)
}

// streamGenerate writes Ollama-style streaming events: one per rechunked
// delta with done:false, then a terminal event with done:true (and the
// workflow record, if requested).
func (s *Server) streamGenerate(c *gin.Context, modelLabel, createdAt, prompt string, includeWorkflow bool) {
	writer := prepareStream(c)
	ctx := c.Request.Context()
	deltas, done := runStream(ctx, s.engine, s.plan, prompt)

	result := consumeStream(ctx, deltas, done, func(fragment string) {
		for _, chunk := range rechunk(fragment, maxEventBytes) {
			writeJSONEvent(writer, generateResponse{Model: modelLabel, CreatedAt: createdAt, Response: chunk, Done: false})
			c.Writer.Flush()
		}
	})

	final := generateResponse{Model: modelLabel, CreatedAt: createdAt, Done: true}
	if result.Err != nil {
		writeJSONEvent(writer, generateErrorEvent(modelLabel, createdAt, result.Err))
		c.Writer.Flush()
		return
	}
	if includeWorkflow {
		final.Workflow = result.Record
	}
	writeJSONEvent(writer, final)
	c.Writer.Flush()
}

type generateErrorBody struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Done      bool   `json:"done"`
	Error     string `json:"error"`
}

func generateErrorEvent(modelLabel, createdAt string, err error) generateErrorBody {
	return generateErrorBody{Model: modelLabel, CreatedAt: createdAt, Done: true, Error: err.Error()}
}

// prepareStream sets the SSE response headers common to every streaming
// endpoint and returns a writer ready to emit events.
func prepareStream(c *gin.Context) *sse.Writer {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	return sse.NewWriter(c.Writer)
}
