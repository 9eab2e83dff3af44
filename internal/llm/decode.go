package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Conform validates raw against schema, falling back to a lenient sanitize and a second
// validation. The returned bytes always satisfy the schema.
func Conform(schema map[string]any, raw []byte, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw = StripCodeFence(raw)
	err := ValidateJSONAgainstSchema(schema, raw)
	if err == nil {
		return raw, nil
	}
	cleaned, _, sErr := SanitizeAgainstSchema(raw, schema, logger)
	if sErr != nil {
		return nil, fmt.Errorf("sanitize failed: %w (strict: %v)", sErr, err)
	}
	if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
		return nil, fmt.Errorf("schema validation failed: %w", vErr)
	}
	return cleaned, nil
}

// Decode runs one adjudication and unmarshals the schema-conforming answer into T.
// Every failure is an *AdjudicationError.
func Decode[T any](ctx context.Context, adj Adjudicator, req Request, logger *slog.Logger) (T, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	raw, err := adj.Adjudicate(ctx, req)
	if err != nil {
		logger.Warn("llm.decode.adjudicate_error", "name", req.Name, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return zero, AsAdjudicationError(req.Name, err)
	}

	conformed, err := Conform(req.Schema, raw, logger)
	if err != nil {
		logger.Warn("llm.decode.schema_error", "name", req.Name, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return zero, malformed(req.Name, err)
	}

	var out T
	if err := json.Unmarshal(conformed, &out); err != nil {
		return zero, malformed(req.Name, fmt.Errorf("unmarshal: %w", err))
	}
	logger.Debug("llm.decode.ok", "name", req.Name, "bytes", len(conformed),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// StripCodeFence removes a ```json ... ``` wrapper some models add around JSON answers.
func StripCodeFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}
