package classify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/llm"
)

type MockAdjudicator struct{ mock.Mock }

func (m *MockAdjudicator) Adjudicate(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(string)
	return json.RawMessage(raw), args.Error(1)
}

type staticPages []string

func (s staticPages) PageTexts(context.Context, entity.Document) ([]string, error) {
	return s, nil
}

func pdfDoc(name string, pages int) entity.Document {
	return entity.Document{Name: name, Format: constants.PDF, PageCount: pages}
}

func TestClassifyXMLSkipsAdjudicator(t *testing.T) {
	adj := &MockAdjudicator{}
	c := NewLLMClassifier(adj, staticPages{}, nil)

	res, err := c.Classify(context.Background(), entity.Document{Name: "factura.xml", Format: constants.XML})
	require.NoError(t, err)
	typ, ok := res.Type()
	require.True(t, ok)
	assert.Equal(t, constants.CFDI, typ)
	adj.AssertNotCalled(t, "Adjudicate", mock.Anything, mock.Anything)
}

func TestClassifySingleAndSegmented(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		check  func(t *testing.T, res entity.ClassificationResult)
	}{
		{
			name:   "single",
			answer: `{"kind":"single","document_type":"pedimento"}`,
			check: func(t *testing.T, res entity.ClassificationResult) {
				typ, ok := res.Type()
				require.True(t, ok)
				assert.Equal(t, constants.Pedimento, typ)
			},
		},
		{
			name:   "segmented pages become zero based",
			answer: `{"kind":"segmented","segments":[{"document_type":"cove","start_page":1,"end_page":3},{"document_type":"cove","start_page":4,"end_page":6}]}`,
			check: func(t *testing.T, res entity.ClassificationResult) {
				segs, ok := res.Segments()
				require.True(t, ok)
				assert.Equal(t, []entity.Segment{
					{Type: constants.Cove, Range: entity.PageRange{Start: 0, End: 2}},
					{Type: constants.Cove, Range: entity.PageRange{Start: 3, End: 5}},
				}, segs)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := &MockAdjudicator{}
			adj.On("Adjudicate", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
				return r.Kind == "classify" && len(r.Evidence) == 2 && r.Evidence[1].Label == "Página 2"
			})).Return(tt.answer, nil).Once()

			c := NewLLMClassifier(adj, staticPages{"uno", "dos"}, nil)
			res, err := c.Classify(context.Background(), pdfDoc("f.pdf", 2))
			require.NoError(t, err)
			tt.check(t, res)
			adj.AssertExpectations(t)
		})
	}
}

func TestClassifyErrorsAreClassificationErrors(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		err    error
	}{
		{name: "empty segments", answer: `{"kind":"segmented","segments":[]}`},
		{name: "label outside enum", answer: `{"kind":"single","document_type":"menu"}`},
		{name: "adjudicator down", err: errors.New("503")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := &MockAdjudicator{}
			adj.On("Adjudicate", mock.Anything, mock.Anything).Return(tt.answer, tt.err)
			c := NewLLMClassifier(adj, staticPages{"x"}, nil)

			_, err := c.Classify(context.Background(), pdfDoc("bad.pdf", 1))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnclassifiable)
			var ce *ClassificationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "bad.pdf", ce.File)
		})
	}
}

func TestSchemaListsEveryType(t *testing.T) {
	s := Schema(constants.AllDocumentTypes())
	b, err := json.Marshal(s)
	require.NoError(t, err)
	for _, l := range constants.AsStringSlice() {
		assert.Contains(t, string(b), `"`+l+`"`)
	}
}

func TestManifestClassifier(t *testing.T) {
	m, err := ParseManifest(strings.NewReader(`{"files":[
		{"file":"ped.pdf","document_type":"pedimento"},
		{"file":"coves.pdf","segments":[{"document_type":"cove","start_page":2,"end_page":2}]},
		{"file":"timbre.xml","document_type":"factura"}
	]}`))
	require.NoError(t, err)
	c := NewManifestClassifier(m)
	ctx := context.Background()

	res, err := c.Classify(ctx, pdfDoc("ped.pdf", 3))
	require.NoError(t, err)
	assert.Equal(t, entity.KindSingle, res.Kind())

	res, err = c.Classify(ctx, pdfDoc("coves.pdf", 3))
	require.NoError(t, err)
	segs, _ := res.Segments()
	assert.Equal(t, entity.PageRange{Start: 1, End: 1}, segs[0].Range)

	res, err = c.Classify(ctx, entity.Document{Name: "cfdi.xml", Format: constants.XML})
	require.NoError(t, err)
	typ, _ := res.Type()
	assert.Equal(t, constants.CFDI, typ)

	res, err = c.Classify(ctx, entity.Document{Name: "timbre.xml", Format: constants.XML})
	require.NoError(t, err)
	typ, _ = res.Type()
	assert.Equal(t, constants.CFDI, typ)

	_, err = c.Classify(ctx, pdfDoc("unknown.pdf", 1))
	assert.ErrorIs(t, err, ErrUnclassifiable)

	_, err = ParseManifest(strings.NewReader(`{"files":[],"extra":1}`))
	assert.Error(t, err)
}
