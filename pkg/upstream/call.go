// Package upstream implements the single primitive every plan node calls
// through: one chat-completion request to an OpenAI-compatible
// "{base}/chat/completions" endpoint, tolerant of the response-shape
// variations real providers send, and optionally streamed into a sink.
package upstream

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/chorusdev/chorus/internal/httpclient"
	"github.com/chorusdev/chorus/pkg/apperr"
)

// Message is one chat message sent to the upstream model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sink receives text fragments as they arrive from a streaming call.
type Sink chan<- string

// Input describes one Upstream Call.
type Input struct {
	BaseURL     string
	APIKey      string
	Model       string
	Messages    []Message
	Temperature float64

	// Sink, if non-nil, requests streaming: the call sets stream:true and
	// pushes each text fragment into Sink as it arrives.
	Sink Sink
}

type requestBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

func newClient(baseURL, apiKey string) *httpclient.Client {
	client := httpclient.NewClient(httpclient.Config{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Transport: httpclient.DefaultHTTPClient.Transport},
	})
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	client.SetHeader("Content-Type", "application/json")
	return client
}

// Call performs one Upstream Call. The returned string is the fully
// concatenated assistant text, whether or not streaming was used.
// Callers bound the call's duration via ctx; Call itself applies no
// additional timeout.
func Call(ctx context.Context, in Input) (string, error) {
	client := newClient(in.BaseURL, in.APIKey)
	body := requestBody{
		Model:       in.Model,
		Messages:    in.Messages,
		Temperature: in.Temperature,
		Stream:      in.Sink != nil,
	}

	if in.Sink != nil {
		return callStreaming(ctx, client, body, in.Sink)
	}
	return callOnce(ctx, client, body)
}

func callOnce(ctx context.Context, client *httpclient.Client, body requestBody) (string, error) {
	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/chat/completions", Body: body})
	if err != nil {
		return "", apperr.Wrap(apperr.UpstreamHTTP, "upstream request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.Newf(apperr.UpstreamHTTP, "upstream returned HTTP %d: %s", resp.StatusCode, firstBytes(resp.Body, 500))
	}
	return ExtractText(resp.Body)
}

func callStreaming(ctx context.Context, client *httpclient.Client, body requestBody, sink Sink) (string, error) {
	resp, err := client.DoStream(ctx, httpclient.Request{Method: http.MethodPost, Path: "/chat/completions", Body: body})
	if err != nil {
		return "", apperr.Wrap(apperr.UpstreamHTTP, "upstream request failed", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/event-stream") {
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", apperr.Wrap(apperr.UpstreamMalformed, "failed to read non-stream upstream response", readErr)
		}
		text, err := ExtractText(raw)
		if err != nil {
			return "", err
		}
		if text != "" {
			sink <- text
		}
		return text, nil
	}

	return readEventStream(resp.Body, sink)
}

func readEventStream(body io.Reader, sink Sink) (string, error) {
	scanner := newEventFrameScanner(body)
	var acc strings.Builder

	for {
		payload, err := scanner.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", apperr.Wrap(apperr.UpstreamHTTP, "failed to read upstream event stream", err)
		}
		if isDonePayload(payload) {
			break
		}
		if strings.TrimSpace(payload) == "" {
			continue
		}

		doc, parseErr := parseJSONDoc(payload)
		if parseErr != nil {
			continue
		}

		if text, ok := tryExtractDeltaText(doc); ok && text != "" {
			sink <- text
			acc.WriteString(text)
		}

		if reason, ok := lookup(doc, "choices", 0, "finish_reason"); ok {
			if s, ok := reason.(string); ok && s != "" {
				break
			}
		}
	}

	return acc.String(), nil
}

func firstBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
