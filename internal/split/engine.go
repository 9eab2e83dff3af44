package split

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/cargoclaro/glosa-sub000/internal/entity"
)

// Engine is the page-level PDF backend.
type Engine interface {
	PageCount(data []byte) (int, error)
	Extract(data []byte, r entity.PageRange) ([]byte, error)
}

var disableConfigDir sync.Once

// PDFCPUEngine implements Engine with pdfcpu, in memory.
type PDFCPUEngine struct {
	conf *model.Configuration
}

func NewPDFCPUEngine() *PDFCPUEngine {
	// pdfcpu otherwise writes a config dir under the user's home on first use.
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPUEngine{conf: conf}
}

func (e *PDFCPUEngine) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), e.conf)
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return n, nil
}

// Extract keeps pages r.Start..r.End (0-based) in their original order.
func (e *PDFCPUEngine) Extract(data []byte, r entity.PageRange) ([]byte, error) {
	var out bytes.Buffer
	sel := []string{fmt.Sprintf("%d-%d", r.Start+1, r.End+1)}
	if err := api.Trim(bytes.NewReader(data), &out, sel, e.conf); err != nil {
		return nil, fmt.Errorf("pdf trim %s: %w", r.Label(), err)
	}
	return out.Bytes(), nil
}
