package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type judgment struct {
	Analysis string   `json:"analysis"`
	IsValid  bool     `json:"is_valid"`
	Actions  []string `json:"actions_to_take"`
}

func judgmentSchema() map[string]any {
	return Object(map[string]any{
		"analysis":        NonEmptyString(),
		"is_valid":        Boolean(),
		"actions_to_take": Array(String()),
	}, "analysis", "is_valid")
}

func fixed(body string) Adjudicator {
	return AdjudicatorFunc(func(context.Context, Request) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	})
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    judgment
		wantErr bool
	}{
		{
			name: "strict match",
			body: `{"analysis":"ok","is_valid":true,"actions_to_take":[]}`,
			want: judgment{Analysis: "ok", IsValid: true, Actions: []string{}},
		},
		{
			name: "code fence and lenient repair",
			body: "```json\n{\"analysis\":\"coincide\",\"is_valid\":\"sí\",\"extra\":1,\"actions_to_take\":null}\n```",
			want: judgment{Analysis: "coincide", IsValid: true},
		},
		{
			name:    "missing required",
			body:    `{"is_valid":false}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `lo siento`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Name: "test", Schema: judgmentSchema()}
			got, err := Decode[judgment](context.Background(), fixed(tt.body), req, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrAdjudication)
				var ae *AdjudicationError
				require.True(t, errors.As(err, &ae))
				assert.Equal(t, KindMalformed, ae.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeUpstreamErrors(t *testing.T) {
	down := AdjudicatorFunc(func(context.Context, Request) (json.RawMessage, error) {
		return nil, errors.New("connection refused")
	})
	_, err := Decode[judgment](context.Background(), down, Request{Name: "x", Schema: judgmentSchema()}, nil)
	var ae *AdjudicationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindUnavailable, ae.Kind)

	slow := AdjudicatorFunc(func(ctx context.Context, _ Request) (json.RawMessage, error) {
		return nil, context.DeadlineExceeded
	})
	_, err = Decode[judgment](context.Background(), slow, Request{Name: "y", Schema: judgmentSchema()}, nil)
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindTimeout, ae.Kind)
}

func TestSanitizeAgainstSchema(t *testing.T) {
	schema := Object(map[string]any{
		"valor":    Decimal(),
		"cantidad": Integer(0),
		"seccion":  Enum("general_data", "line_items"),
		"items": Array(Object(map[string]any{
			"clave": NonEmptyString(),
		}, "clave")),
	}, "seccion")

	raw := []byte(`{"valor":"$1,234.50","cantidad":"3","seccion":"LINE_ITEMS","items":{"clave":"EN"},"ruido":true}`)
	out, touched, err := SanitizeAgainstSchema(raw, schema, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, touched)
	require.NoError(t, ValidateJSONAgainstSchema(schema, out))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "1234.50", got["valor"])
	assert.Equal(t, float64(3), got["cantidad"])
	assert.Equal(t, "line_items", got["seccion"])
	assert.Len(t, got["items"], 1)
	assert.NotContains(t, got, "ruido")
}

func TestSanitizeRejectsAmbiguousNumbers(t *testing.T) {
	schema := Object(map[string]any{
		"total":    Decimal(),
		"cantidad": Integer(0),
		"nota":     Decimal(),
	}, "total", "cantidad")

	tests := []struct {
		name string
		raw  string
	}{
		{name: "comma as decimal separator", raw: `{"total":"1.234,56","cantidad":3}`},
		{name: "fractional integer string", raw: `{"total":"10.00","cantidad":"3.7"}`},
		{name: "fractional integer number", raw: `{"total":"10.00","cantidad":3.7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := SanitizeAgainstSchema([]byte(tt.raw), schema, nil)
			require.NoError(t, err)
			assert.Error(t, ValidateJSONAgainstSchema(schema, out))
		})
	}

	out, _, err := SanitizeAgainstSchema([]byte(`{"total":"USD 12,500.75","cantidad":"1,200","nota":"2,5"}`), schema, nil)
	require.NoError(t, err)
	require.NoError(t, ValidateJSONAgainstSchema(schema, out))
	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "12500.75", got["total"])
	assert.Equal(t, float64(1200), got["cantidad"])
	assert.NotContains(t, got, "nota")
}

func TestDecodeRejectsEuropeanAmounts(t *testing.T) {
	schema := Object(map[string]any{
		"total": Decimal(),
		"count": Integer(0),
	}, "total", "count")
	_, err := Decode[struct {
		Total string `json:"total"`
		Count int    `json:"count"`
	}](context.Background(), fixed(`{"total":"1.234,56","count":"3.7"}`), Request{Name: "amounts", Schema: schema}, nil)
	var ae *AdjudicationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, KindMalformed, ae.Kind)
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "Client.Timeout exceeded while awaiting headers" }
func (timeoutErr) Timeout() bool { return true }

func TestKindOfTransportTimeout(t *testing.T) {
	err := &url.Error{Op: "Post", URL: "http://llm/v1/chat/completions", Err: timeoutErr{}}
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, KindUnavailable, KindOf(errors.New("connection refused")))

	var ae *AdjudicationError
	require.True(t, errors.As(AsAdjudicationError("op", err), &ae))
	assert.Equal(t, KindTimeout, ae.Kind)
}

func TestLimitBoundsConcurrency(t *testing.T) {
	inFlight := make(chan struct{}, 10)
	maxSeen := 0
	release := make(chan struct{})
	adj := Limit(AdjudicatorFunc(func(ctx context.Context, _ Request) (json.RawMessage, error) {
		inFlight <- struct{}{}
		if len(inFlight) > maxSeen {
			maxSeen = len(inFlight)
		}
		<-release
		<-inFlight
		return json.RawMessage(`{}`), nil
	}), 1)

	done := make(chan struct{})
	for i := 0; i < 3; i++ {
		go func() {
			_, _ = adj.Adjudicate(context.Background(), Request{})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		release <- struct{}{}
		<-done
	}
	assert.Equal(t, 1, maxSeen)
}
