package validation

import (
	"fmt"
	"strings"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/catalog"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/extract"
)

// Section names, in report order.
const (
	SectionNumbering   = "Numeración de documentos"
	SectionIdentity    = "Proveedor y destinatario"
	SectionMerchandise = "Mercancía"
	SectionMonetary    = "Operación monetaria"
	SectionWeights     = "Pesos y bultos"
	SectionPartidas    = "Partidas"
	SectionExtraction  = "Extracción"
)

// Builder turns an Input into the specs of one section. Builders are pure.
type Builder struct {
	Name  string
	Build func(in *Input) []*Spec
}

// DefaultBuilders returns every section in report order.
func DefaultBuilders() []Builder {
	return []Builder{
		{Name: SectionNumbering, Build: numbering},
		{Name: SectionIdentity, Build: identity},
		{Name: SectionMerchandise, Build: merchandise},
		{Name: SectionMonetary, Build: monetary},
		{Name: SectionWeights, Build: weights},
		{Name: SectionPartidas, Build: partidas},
		{Name: SectionExtraction, Build: extraction},
	}
}

// Build runs the builders in order and drops sections with nothing to check. A panicking
// builder yields a single blocked spec for its section.
func Build(in *Input, builders []Builder) []Section {
	out := make([]Section, 0, len(builders))
	for _, b := range builders {
		specs := buildSafely(in, b)
		if len(specs) == 0 {
			continue
		}
		out = append(out, Section{Name: b.Name, Specs: specs})
	}
	return out
}

func buildSafely(in *Input, b Builder) (specs []*Spec) {
	defer func() {
		if rec := recover(); rec != nil {
			specs = []*Spec{NewSpec("construccion", "Construcción de la sección "+b.Name, "").
				Block(fmt.Errorf("panic building section: %v", rec))}
		}
	}()
	return b.Build(in)
}

func normalizeNumber(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "/", "", ".", "").Replace(strings.ToUpper(strings.TrimSpace(s)))
}

func sameNumber(a, b string) bool {
	return a != "" && normalizeNumber(a) == normalizeNumber(b)
}

func partidaLabel(p entity.Partida) string {
	if s := strings.TrimSpace(p.Sequence); s != "" {
		return s
	}
	return fmt.Sprintf("p%d.o%d", p.Page+1, p.Ordinal)
}

// partidaLabels labels every partida, adding its page and ordinal when two partidas
// share a sequence number.
func partidaLabels(ps []entity.Partida) []string {
	counts := make(map[string]int, len(ps))
	for _, p := range ps {
		counts[partidaLabel(p)]++
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		l := partidaLabel(p)
		if counts[l] > 1 {
			l = fmt.Sprintf("%s.p%d.o%d", l, p.Page+1, p.Ordinal)
		}
		out[i] = l
	}
	return out
}

// invoiceKeys returns the normalized number of each invoice reference, suffixed with its
// 1-based position when the number repeats.
func invoiceKeys(refs []entity.InvoiceRef) []string {
	counts := make(map[string]int, len(refs))
	for _, r := range refs {
		counts[normalizeNumber(r.Number)]++
	}
	out := make([]string, len(refs))
	for i, r := range refs {
		k := normalizeNumber(r.Number)
		if counts[k] > 1 {
			k = fmt.Sprintf("%s.%d", k, i+1)
		}
		out[i] = k
	}
	return out
}

func numbering(in *Input) []*Spec {
	p := in.Pedimento
	if p == nil {
		return nil
	}
	h := p.Header
	docs := in.Documents
	var specs []*Spec

	specs = append(specs, NewSpec("numero_pedimento", "Número de pedimento",
		"El número de pedimento tiene 15 dígitos con la estructura AA AD PPPP NNNNNNN: año (2), aduana de despacho (2), "+
			"patente del agente aduanal (4) y consecutivo (7). El año debe corresponder con la fecha de pago y la aduana con la aduana de despacho.").
		Add(Provided, srcPedimento,
			F("numero_pedimento", h.Number),
			F("aduana_es", h.CustomsOffice),
			F("fecha_pago", h.PaymentDate),
			F("clave_pedimento", h.Clave)))

	cove := NewSpec("cove_declarado", "COVE declarados en el pedimento",
		"Cada factura declarada en el pedimento debe tener su número de COVE y cada COVE del expediente debe estar declarado "+
			"en el pedimento para la misma factura.").
		Add(Provided, srcPedimento, F("facturas", h.Invoices))
	for _, c := range docs.Coves {
		cove.Add(Provided, source(constants.Cove, c.Source), F("numero_cove", c.Number), F("numero_factura", c.InvoiceNumber))
	}
	specs = append(specs, cove)

	inv := NewSpec("numeros_factura", "Números de factura",
		"Los números de factura declarados en el pedimento deben coincidir con los documentos comerciales del expediente. "+
			precedenceText(in.Operation())).
		Add(Provided, srcPedimento, F("facturas", invoiceNumbers(h.Invoices)))
	for _, f := range docs.Invoices {
		inv.Add(Provided, source(constants.Invoice, f.Source), F("numero", f.Number))
	}
	for _, c := range docs.Cartas {
		inv.Add(Provided, source(constants.Carta318, c.Source), F("numero_factura", c.InvoiceNumber))
	}
	for _, c := range docs.CFDIs {
		inv.Add(Provided, source(constants.CFDI, c.Source), F("serie", c.Series), F("folio", c.Folio), F("uuid", c.UUID))
	}
	specs = append(specs, inv)

	if len(docs.Transport) > 0 || len(h.Guides) > 0 {
		tr := NewSpec("documento_transporte", "Guía o conocimiento de embarque",
			"Las guías (master y house) declaradas en el pedimento deben coincidir con los documentos de transporte del expediente.").
			Add(Provided, srcPedimento, F("guias", h.Guides), F("transportes", h.Transport))
		for _, t := range docs.Transport {
			tr.Add(Provided, source(constants.DocumentType(t.Kind), t.Source),
				F("numero", t.Number), F("numero_master", t.MasterNumber), F("transportista", t.Carrier))
		}
		specs = append(specs, tr)
	}

	containers := map[string][]entity.Container{}
	for _, t := range docs.Transport {
		if len(t.Containers) > 0 {
			containers[source(constants.DocumentType(t.Kind), t.Source)] = t.Containers
		}
	}
	if len(h.Containers) > 0 || len(containers) > 0 {
		ct := NewSpec("contenedores", "Contenedores",
			"Los contenedores y su tipo declarados en el pedimento deben coincidir con los del documento de transporte.").
			Add(Provided, srcPedimento, F("contenedores", h.Containers))
		for src, cs := range containers {
			ct.Add(Provided, src, F("contenedores", cs))
		}
		if c := in.Catalogs.Get(catalog.Containers); c != nil {
			for _, k := range h.Containers {
				if e, ok := c.Lookup(k.Kind); ok {
					ct.Add(External, c.Label(), F(k.Kind, e))
				}
			}
		}
		specs = append(specs, ct)
	}

	return append(specs, identifierSpecs(in, "pedimento", srcPedimento, h.Identifiers)...)
}

func invoiceNumbers(refs []entity.InvoiceRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Number)
	}
	return out
}

func identity(in *Input) []*Spec {
	p := in.Pedimento
	if p == nil {
		return nil
	}
	h := p.Header
	docs := in.Documents
	op := in.Operation()

	party := NewSpec("importador_exportador", "Importador / exportador",
		"El RFC y la razón social del importador o exportador del pedimento deben coincidir con los documentos comerciales. "+
			precedenceText(op)).
		Add(Provided, srcPedimento, F("importador_exportador", h.Importer))

	counter := NewSpec("proveedor_comprador", "Proveedor / comprador",
		"Los proveedores (importación) o compradores (exportación) del pedimento, con su identificación fiscal y domicilio, "+
			"deben coincidir con los documentos comerciales. "+precedenceText(op)).
		Add(Provided, srcPedimento, F("proveedores", h.Suppliers))

	if op == constants.OperationExport {
		for _, c := range docs.CFDIs {
			src := source(constants.CFDI, c.Source)
			party.Add(Provided, src, F("emisor", c.Issuer))
			counter.Add(Provided, src, F("receptor", c.Receiver))
			if c.ForeignTrade != nil {
				counter.Add(Provided, src, F("destinatario", c.ForeignTrade.Recipient))
			}
		}
		for _, c := range docs.Coves {
			src := source(constants.Cove, c.Source)
			party.Add(Provided, src, F("emisor", c.Issuer))
			counter.Add(Provided, src, F("destinatario", c.Recipient))
		}
		for _, f := range docs.Invoices {
			src := source(constants.Invoice, f.Source)
			party.Add(Provided, src, F("vendedor", f.Seller))
			counter.Add(Provided, src, F("comprador", f.Buyer))
		}
	} else {
		for _, c := range docs.Cartas {
			src := source(constants.Carta318, c.Source)
			party.Add(Provided, src, F("importador", c.Importer))
			counter.Add(Provided, src, F("proveedor", c.Supplier))
		}
		for _, f := range docs.Invoices {
			src := source(constants.Invoice, f.Source)
			party.Add(Provided, src, F("comprador", f.Buyer))
			counter.Add(Provided, src, F("vendedor", f.Seller))
		}
		for _, c := range docs.Coves {
			src := source(constants.Cove, c.Source)
			party.Add(Provided, src, F("destinatario", c.Recipient))
			counter.Add(Provided, src, F("emisor", c.Issuer))
		}
	}
	specs := []*Spec{party, counter}

	linked := map[string]string{}
	for _, pt := range p.Partidas {
		if pt.Linked != "" {
			linked[partidaLabel(pt)] = pt.Linked
		}
	}
	var cartaLinked []Field
	for _, c := range docs.Cartas {
		if c.Linked != "" {
			cartaLinked = append(cartaLinked, F(source(constants.Carta318, c.Source), c.Linked))
		}
	}
	if len(linked) > 0 || len(cartaLinked) > 0 || anySupplierLinked(h.Suppliers) {
		v := NewSpec("vinculacion", "Vinculación",
			"La vinculación entre comprador y vendedor debe declararse de forma consistente en el encabezado y en todas las partidas, "+
				"y coincidir con la Carta 3.1.8 cuando exista.").
			Add(Provided, srcPedimento, F("proveedores", h.Suppliers), F("vinculacion_por_partida", linked))
		for _, f := range cartaLinked {
			v.Add(Provided, f.Name, F("vinculacion", f.Value))
		}
		specs = append(specs, v)
	}
	return specs
}

func anySupplierLinked(ss []entity.Supplier) bool {
	for _, s := range ss {
		if s.Linked != "" {
			return true
		}
	}
	return false
}

type partidaView struct {
	Sequence    string `json:"secuencia"`
	Fraction    string `json:"fraccion"`
	Description string `json:"descripcion,omitempty"`
	UMC         string `json:"umc,omitempty"`
	QuantityUMC string `json:"cantidad_umc,omitempty"`
	UMT         string `json:"umt,omitempty"`
	QuantityUMT string `json:"cantidad_umt,omitempty"`
	Origin      string `json:"pais_origen_destino,omitempty"`
	Seller      string `json:"pais_vendedor_comprador,omitempty"`
}

func viewPartidas(ps []entity.Partida) []partidaView {
	out := make([]partidaView, 0, len(ps))
	for _, p := range ps {
		out = append(out, partidaView{
			Sequence:    partidaLabel(p),
			Fraction:    p.Fraction,
			Description: p.Description,
			UMC:         p.UMC,
			QuantityUMC: p.QuantityUMC,
			UMT:         p.UMT,
			QuantityUMT: p.QuantityUMT,
			Origin:      p.OriginCountry,
			Seller:      p.SellerCountry,
		})
	}
	return out
}

// addCommercialLines adds the merchandise lines of every commercial document.
func addCommercialLines(s *Spec, docs *extract.Documents) {
	for _, f := range docs.Invoices {
		s.Add(Provided, source(constants.Invoice, f.Source), F("partidas", f.Items), F("pais_origen", nonEmpty(f.Origin)))
	}
	for _, c := range docs.Coves {
		s.Add(Provided, source(constants.Cove, c.Source), F("mercancias", c.Items))
	}
	for _, c := range docs.Cartas {
		if len(c.Items) > 0 {
			s.Add(Provided, source(constants.Carta318, c.Source), F("mercancias", c.Items))
		}
	}
	for _, c := range docs.CFDIs {
		s.Add(Provided, source(constants.CFDI, c.Source), F("conceptos", c.Items))
		if c.ForeignTrade != nil {
			s.Add(Provided, source(constants.CFDI, c.Source), F("mercancias_comercio_exterior", c.ForeignTrade.Goods))
		}
	}
}

func nonEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func merchandise(in *Input) []*Spec {
	p := in.Pedimento
	if p == nil || len(p.Partidas) == 0 {
		return nil
	}
	docs := &in.Documents
	views := viewPartidas(p.Partidas)
	op := in.Operation()

	desc := NewSpec("descripcion_mercancia", "Descripción de la mercancía",
		"La descripción de cada partida debe corresponder con mercancía amparada por los documentos comerciales y ser suficiente "+
			"para identificarla. "+precedenceText(op)).
		Add(Provided, srcPedimento, F("partidas", views))
	addCommercialLines(desc, docs)

	qty := NewSpec("cantidades", "Cantidades y unidades de medida comercial",
		"La cantidad y unidad de medida comercial (UMC) de las partidas deben corresponder con las cantidades de los documentos comerciales; "+
			"las claves de unidad deben existir en el catálogo de unidades.").
		Add(Provided, srcPedimento, F("partidas", views))
	addCommercialLines(qty, docs)
	if c := in.Catalogs.Get(catalog.Units); c != nil {
		for _, v := range views {
			for _, code := range []string{v.UMC, v.UMT} {
				if e, ok := c.Lookup(code); ok {
					qty.Add(External, c.Label(), F(code, e))
				}
			}
		}
	}

	origin := NewSpec("pais_origen", "País de origen y vendedor",
		"El país de origen y el país vendedor/comprador de cada partida deben ser congruentes con los documentos comerciales "+
			"y existir en el catálogo de países.").
		Add(Provided, srcPedimento, F("partidas", views))
	for _, f := range docs.Invoices {
		origin.Add(Provided, source(constants.Invoice, f.Source), F("pais_origen", nonEmpty(f.Origin)), F("vendedor", f.Seller))
	}
	if c := in.Catalogs.Get(catalog.Countries); c != nil {
		for _, v := range views {
			for _, code := range []string{v.Origin, v.Seller} {
				if e, ok := c.Lookup(code); ok {
					origin.Add(External, c.Label(), F(code, e))
				}
			}
		}
	}
	return []*Spec{desc, qty, origin}
}

func weights(in *Input) []*Spec {
	p := in.Pedimento
	if p == nil {
		return nil
	}
	h := p.Header
	docs := in.Documents

	gross := NewSpec("peso_bruto", "Peso bruto",
		"El peso bruto del pedimento (kg) debe coincidir con el documento de transporte y con la lista de empaque; "+
			"convierte unidades cuando el documento declare libras u otra unidad. Una diferencia menor al 1% es aceptable.").
		Add(Provided, srcPedimento, F("peso_bruto", h.GrossWeight))
	packages := NewSpec("bultos", "Bultos",
		"El número de bultos y las marcas declaradas en el pedimento deben coincidir con la lista de empaque y el documento de transporte.").
		Add(Provided, srcPedimento, F("marcas_numeros_bultos", h.Packages))

	var plWeights, plPackages []string
	for _, pl := range docs.PackingLists {
		src := source(constants.PackingList, pl.Source)
		gross.Add(Provided, src, F("peso_bruto", pl.GrossWeight), F("peso_neto", nonEmpty(pl.NetWeight)), F("unidad_peso", nonEmpty(pl.WeightUnit)))
		packages.Add(Provided, src, F("bultos", pl.Packages), F("marcas", nonEmpty(pl.Marks)))
		plWeights = append(plWeights, pl.GrossWeight)
		plPackages = append(plPackages, pl.Packages)
	}
	for _, t := range docs.Transport {
		src := source(constants.DocumentType(t.Kind), t.Source)
		gross.Add(Provided, src, F("peso_bruto", nonEmpty(t.GrossWeight)), F("unidad_peso", nonEmpty(t.WeightUnit)))
		packages.Add(Provided, src, F("bultos", nonEmpty(t.Packages)))
	}
	if len(plWeights) > 1 {
		total, skipped := sum(plWeights...)
		gross.Add(Inferred, srcComputed, F("peso_bruto_listas_empaque", computed(total, "suma de peso bruto de las listas de empaque", skipped)))
	}
	if len(plPackages) > 1 {
		total, skipped := sum(plPackages...)
		packages.Add(Inferred, srcComputed, F("bultos_listas_empaque", computed(total, "suma de bultos de las listas de empaque", skipped)))
	}
	return []*Spec{gross, packages}
}

func extraction(in *Input) []*Spec {
	specs := make([]*Spec, 0, len(in.Failures))
	for _, f := range in.Failures {
		name := "extraccion." + f.Document
		if f.Stage != "" {
			name += "." + f.Stage
		}
		specs = append(specs, NewSpec(name, "Extracción de "+f.Document, "").Block(f.Err))
	}
	return specs
}
