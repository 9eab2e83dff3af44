package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/llm"
	"github.com/cargoclaro/glosa-sub000/internal/pages"
)

// ErrUnclassifiable is wrapped by every ClassificationError.
var ErrUnclassifiable = errors.New("document could not be classified")

// ClassificationError is fatal to one input file, never to the batch.
type ClassificationError struct {
	File string
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.File, e.Err)
}

func (e *ClassificationError) Unwrap() []error { return []error{ErrUnclassifiable, e.Err} }

// Classifier labels one input file.
type Classifier interface {
	Classify(ctx context.Context, doc entity.Document) (entity.ClassificationResult, error)
}

// LLMClassifier asks the adjudicator to label a document from its page texts.
type LLMClassifier struct {
	adj     llm.Adjudicator
	pages   pages.Source
	allowed []constants.DocumentType
	logger  *slog.Logger
}

func NewLLMClassifier(adj llm.Adjudicator, src pages.Source, logger *slog.Logger) *LLMClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClassifier{adj: adj, pages: src, allowed: constants.AllDocumentTypes(), logger: logger}
}

type segmentAnswer struct {
	Type      string `json:"document_type"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

type answer struct {
	Kind     string          `json:"kind"`
	Type     string          `json:"document_type"`
	Segments []segmentAnswer `json:"segments"`
}

func labels(types []constants.DocumentType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// Schema is the adjudicator answer shape; pages are 1-based.
func Schema(allowed []constants.DocumentType) map[string]any {
	ls := labels(allowed)
	return llm.Object(map[string]any{
		"kind":          llm.Enum("single", "segmented"),
		"document_type": llm.Enum(ls...),
		"segments": llm.Array(llm.Object(map[string]any{
			"document_type": llm.Enum(ls...),
			"start_page":    llm.Integer(1),
			"end_page":      llm.Integer(1),
		}, "document_type", "start_page", "end_page")),
	}, "kind")
}

func instructions(allowed []constants.DocumentType, pageCount int) string {
	var b strings.Builder
	b.WriteString("Clasifica el archivo de un expediente aduanal. ")
	fmt.Fprintf(&b, "El archivo tiene %d página(s), numeradas desde 1. ", max(pageCount, 1))
	b.WriteString("Si todo el archivo es un solo documento responde kind=single y document_type. ")
	b.WriteString("Si contiene varios documentos responde kind=segmented y lista cada documento con su rango de páginas inclusivo, en orden, sin traslapes. ")
	b.WriteString("Tipos permitidos: ")
	for i, t := range allowed {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%s)", t, t.Label())
	}
	b.WriteString(". Usa other para hojas que no pertenecen a ningún tipo.")
	return b.String()
}

// Classify implements Classifier. XML files are CFDI without asking the adjudicator.
func (c *LLMClassifier) Classify(ctx context.Context, doc entity.Document) (entity.ClassificationResult, error) {
	if doc.Format == constants.XML {
		return entity.Single(doc, constants.CFDI), nil
	}
	start := time.Now()

	texts, err := c.pages.PageTexts(ctx, doc)
	if err != nil {
		return entity.ClassificationResult{}, &ClassificationError{File: doc.Name, Err: err}
	}
	evidence := make([]llm.Evidence, 0, len(texts))
	for i, t := range texts {
		evidence = append(evidence, llm.Evidence{Label: fmt.Sprintf("Página %d", i+1), Content: t})
	}

	req := llm.Request{
		Kind:         "classify",
		Name:         "classify." + doc.Name,
		Instructions: instructions(c.allowed, len(texts)),
		Evidence:     evidence,
		Schema:       Schema(c.allowed),
	}
	ans, err := llm.Decode[answer](ctx, c.adj, req, c.logger)
	if err != nil {
		return entity.ClassificationResult{}, &ClassificationError{File: doc.Name, Err: err}
	}

	res, err := toResult(doc, ans)
	if err != nil {
		return entity.ClassificationResult{}, &ClassificationError{File: doc.Name, Err: err}
	}
	c.logger.Info("classify.ok",
		"doc", doc.Name,
		"kind", res.Kind().String(),
		"pages", len(texts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// toResult converts 1-based adjudicator pages into 0-based ranges.
func toResult(doc entity.Document, ans answer) (entity.ClassificationResult, error) {
	switch ans.Kind {
	case "single":
		t, ok := constants.ParseDocumentType(ans.Type)
		if !ok {
			return entity.ClassificationResult{}, fmt.Errorf("unknown document type %q", ans.Type)
		}
		return entity.Single(doc, t), nil
	case "segmented":
		if len(ans.Segments) == 0 {
			return entity.ClassificationResult{}, errors.New("segmented answer without segments")
		}
		segs := make([]entity.Segment, 0, len(ans.Segments))
		for _, s := range ans.Segments {
			t, ok := constants.ParseDocumentType(s.Type)
			if !ok {
				return entity.ClassificationResult{}, fmt.Errorf("unknown document type %q", s.Type)
			}
			segs = append(segs, entity.Segment{
				Type:  t,
				Range: entity.PageRange{Start: s.StartPage - 1, End: s.EndPage - 1},
			})
		}
		return entity.Segmented(doc, segs), nil
	default:
		return entity.ClassificationResult{}, fmt.Errorf("unknown kind %q", ans.Kind)
	}
}
