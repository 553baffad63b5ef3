package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chorusdev/chorus/pkg/execrecord"
)

type responseOutputText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseOutputMessage struct {
	ID      string               `json:"id"`
	Type    string               `json:"type"`
	Role    string               `json:"role"`
	Content []responseOutputText `json:"content"`
}

type responsesBody struct {
	ID         string                   `json:"id"`
	Object     string                   `json:"object"`
	Created    int64                    `json:"created"`
	Model      string                   `json:"model"`
	Status     string                   `json:"status"`
	Output     []responseOutputMessage  `json:"output"`
	OutputText string                   `json:"output_text"`
	Workflow   *execrecord.Record       `json:"workflow,omitempty"`
}

// handleResponses accepts /v1/responses' equivalent input forms: a
// string input, an array of content blocks, a messages array, a
// standalone prompt, or plain instructions. Missing all of them is a 400.
func (s *Server) handleResponses(c *gin.Context) {
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	prompt := flattenResponsesInput(req)
	if prompt == "" {
		badRequest(c, "request must set one of input, messages, prompt, or instructions")
		return
	}

	modelLabel, _ := req["model"].(string)
	if modelLabel == "" {
		modelLabel = defaultModelLabel
	}
	includeWorkflow, _ := req["include_workflow"].(bool)
	stream, _ := req["stream"].(bool)

	now := time.Now()
	respID := "resp_" + uuid.New().String()
	msgID := "msg_" + uuid.New().String()

	// Honors stream:true here, matching the other compatible endpoints.
	if !stream {
		text, record, err := runSync(c.Request.Context(), s.engine, s.plan, prompt)
		if err != nil {
			writeError(c, err)
			return
		}
		body := responsesBody{
			ID: respID, Object: "response", Created: now.Unix(), Model: modelLabel, Status: "completed",
			Output:     []responseOutputMessage{{ID: msgID, Type: "message", Role: "assistant", Content: []responseOutputText{{Type: "output_text", Text: text}}}},
			OutputText: text,
		}
		if includeWorkflow {
			body.Workflow = record
		}
		c.JSON(http.StatusOK, body)
		return
	}

	s.streamResponses(c, respID, msgID, modelLabel, now.Unix(), prompt, includeWorkflow)
}

// streamResponses emits one "response.output_text.delta" event per
// rechunked fragment, then a terminal "response.completed" event
// carrying the full assembled response (and workflow record, if asked).
func (s *Server) streamResponses(c *gin.Context, respID, msgID, modelLabel string, created int64, prompt string, includeWorkflow bool) {
	writer := prepareStream(c)
	ctx := c.Request.Context()
	deltas, done := runStream(ctx, s.engine, s.plan, prompt)

	var acc string
	result := consumeStream(ctx, deltas, done, func(fragment string) {
		for _, chunk := range rechunk(fragment, maxEventBytes) {
			acc += chunk
			writeJSONEvent(writer, gin.H{
				"type":  "response.output_text.delta",
				"id":    respID,
				"delta": chunk,
			})
			c.Writer.Flush()
		}
	})

	if result.Err != nil {
		writeJSONEvent(writer, gin.H{
			"type":          "response.failed",
			"id":            respID,
			"error":         result.Err.Error(),
			"finish_reason": "error",
		})
		c.Writer.Flush()
		return
	}

	body := responsesBody{
		ID: respID, Object: "response", Created: created, Model: modelLabel, Status: "completed",
		Output:     []responseOutputMessage{{ID: msgID, Type: "message", Role: "assistant", Content: []responseOutputText{{Type: "output_text", Text: acc}}}},
		OutputText: acc,
	}
	if includeWorkflow {
		body.Workflow = result.Record
	}
	writeJSONEvent(writer, gin.H{"type": "response.completed", "response": body})
	c.Writer.Flush()
	_ = writer.WriteDone()
	c.Writer.Flush()
}
