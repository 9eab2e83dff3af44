package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/llm"
)

// Adjudicate implements llm.Adjudicator using text-only chat/completions in JSON mode.
// The returned content is not schema-checked here; llm.Decode does that.
func (c *Client) Adjudicate(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	c.logger.Info("llm.adjudicate.start",
		"req_id", rid,
		"run_id", common.RunIDFromContext(ctx),
		"name", req.Name,
		"model", c.cfg.Model,
		"evidence_blocks", len(req.Evidence),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req)},
			{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + llm.SchemaJSON(req.Schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.adjudicate.http_error",
			"req_id", rid, "name", req.Name, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, llm.AsAdjudicationError(req.Name, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.adjudicate.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, &llm.AdjudicationError{Op: req.Name, Kind: llm.KindMalformed, Err: fmt.Errorf("decode openai response: %w", err)}
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.adjudicate.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, &llm.AdjudicationError{Op: req.Name, Kind: llm.KindMalformed, Err: fmt.Errorf("no choices in openai response")}
	}
	content := llm.StripCodeFence([]byte(cc.Choices[0].Message.Content))

	c.logger.Info("llm.adjudicate.ok",
		"req_id", rid,
		"name", req.Name,
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}
