// Package planner is a thin client for the external Planner: the
// natural-language-to-workflow service the interpreter treats as an
// out-of-process collaborator. It is deliberately minimal — message
// construction and a JSON-RPC call — since the Planner's own behavior is
// out of scope for the interpreter.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
)

// Client sends prompts and self_heal feedback payloads to an A2A-compliant
// planning agent and reports back its response text.
type Client struct {
	agentURL   string
	httpClient *http.Client
}

// New returns a Client addressing the planning agent at agentURL.
func New(agentURL string) *Client {
	return &Client{
		agentURL:   agentURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// jsonRPCRequest is the envelope the A2A protocol's message/send method
// expects over its JSON-RPC transport.
type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Plan sends prompt as a user message and returns the text of the agent's
// reply message (all text parts joined by newlines): the candidate workflow
// document (or a description of one).
func (c *Client) Plan(ctx context.Context, prompt string) (string, error) {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: prompt})
	return c.send(ctx, msg)
}

// SubmitSelfHealFeedback sends a self_heal feedback payload (see
// interpreter.selfHealPayload) to the Planner for re-planning, returning
// its textual response.
func (c *Client) SubmitSelfHealFeedback(ctx context.Context, payload map[string]interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal self_heal payload: %w", err)
	}
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: string(data)})
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg *a2a.Message) (string, error) {
	params := a2a.MessageSendParams{Message: *msg}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal message params: %w", err)
	}

	reqBody, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "message/send",
		Params:  paramsJSON,
	})
	if err != nil {
		return "", fmt.Errorf("marshal jsonrpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.agentURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build planner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call planner: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return "", fmt.Errorf("decode planner response: %w", err)
	}
	if rpcResp.Error != nil {
		return "", fmt.Errorf("planner error: %s", rpcResp.Error.Message)
	}

	var reply a2a.Message
	if err := json.Unmarshal(rpcResp.Result, &reply); err != nil {
		return "", fmt.Errorf("decode planner message: %w", err)
	}
	return extractText(&reply), nil
}

func extractText(msg *a2a.Message) string {
	var text string
	for _, part := range msg.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			if text != "" {
				text += "\n"
			}
			text += tp.Text
		}
	}
	return text
}
