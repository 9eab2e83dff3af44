package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/catalog"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
)

// invoiceCandidates collects every document value for one declared invoice, by field.
func invoiceCandidates(in *Input, ref entity.InvoiceRef) (totals, incoterms []Candidate) {
	docs := in.Documents
	for _, f := range docs.Invoices {
		if sameNumber(f.Number, ref.Number) {
			src := source(constants.Invoice, f.Source)
			totals = append(totals, Candidate{Type: constants.Invoice, Source: src, Value: f.Total})
			incoterms = append(incoterms, Candidate{Type: constants.Invoice, Source: src, Value: f.Incoterm})
		}
	}
	for _, c := range docs.Cartas {
		if sameNumber(c.InvoiceNumber, ref.Number) {
			src := source(constants.Carta318, c.Source)
			totals = append(totals, Candidate{Type: constants.Carta318, Source: src, Value: c.Total})
			incoterms = append(incoterms, Candidate{Type: constants.Carta318, Source: src, Value: c.Incoterm})
		}
	}
	for _, c := range docs.CFDIs {
		if sameNumber(c.Folio, ref.Number) || sameNumber(c.Series+c.Folio, ref.Number) {
			src := source(constants.CFDI, c.Source)
			totals = append(totals, Candidate{Type: constants.CFDI, Source: src, Value: c.Total})
			if c.ForeignTrade != nil {
				incoterms = append(incoterms, Candidate{Type: constants.CFDI, Source: src, Value: c.ForeignTrade.Incoterm})
			}
		}
	}
	for _, c := range docs.Coves {
		if sameNumber(c.InvoiceNumber, ref.Number) {
			var lines []string
			for _, it := range c.Items {
				lines = append(lines, it.TotalValue)
			}
			if len(lines) > 0 {
				total, _ := sum(lines...)
				totals = append(totals, Candidate{Type: constants.Cove, Source: source(constants.Cove, c.Source), Value: total.StringFixed(2)})
			}
		}
	}
	return totals, incoterms
}

func monetary(in *Input) []*Spec {
	p := in.Pedimento
	if p == nil {
		return nil
	}
	h := p.Header
	op := in.Operation()
	var specs []*Spec

	incoterm := NewSpec("incoterm", "Término de facturación (INCOTERM)",
		"El INCOTERM declarado para cada factura en el pedimento debe coincidir con el documento comercial que prevalece "+
			"y existir en el catálogo de términos de facturación. "+precedenceText(op))
	keys := invoiceKeys(h.Invoices)
	for i, ref := range h.Invoices {
		totals, incoterms := invoiceCandidates(in, ref)
		v := NewSpec("valor_factura."+keys[i], "Valor de la factura "+ref.Number,
			"El valor en moneda de facturación declarado en el pedimento para esta factura debe coincidir con el documento que prevalece. "+
				precedenceText(op)).
			Add(Provided, srcPedimento, F("factura", ref))
		addCandidates(v, op, "valor_total", totals)
		specs = append(specs, v)

		incoterm.Add(Provided, srcPedimento, F("incoterm_"+ref.Number, ref.Incoterm))
		addCandidates(incoterm, op, "incoterm_"+ref.Number, incoterms)
	}
	if c := in.Catalogs.Get(catalog.Incoterms); c != nil {
		for _, ref := range h.Invoices {
			if e, ok := c.Lookup(ref.Incoterm); ok {
				incoterm.Add(External, c.Label(), F(ref.Incoterm, e))
			}
		}
	}
	if len(h.Invoices) > 0 {
		specs = append(specs, incoterm)
	}

	fx := NewSpec("tipo_cambio", "Tipo de cambio",
		"El tipo de cambio del pedimento debe ser el publicado oficialmente para el día hábil anterior a la fecha de pago.").
		Add(Provided, srcPedimento, F("tipo_cambio", h.ExchangeRate), F("fecha_pago", h.PaymentDate))
	for _, c := range in.Documents.CFDIs {
		if c.ForeignTrade != nil {
			fx.Add(Provided, source(constants.CFDI, c.Source), F("tipo_cambio_usd", c.ForeignTrade.ExchangeRate))
		}
	}
	if official, err := in.Tariffs.ExchangeRate("USD"); err != nil {
		fx.Block(fmt.Errorf("tipo de cambio oficial: %w", err))
	} else {
		fx.Add(External, "Tipo de cambio oficial", F("usd", official))
	}
	specs = append(specs, fx)

	specs = append(specs, dollarValue(in, h), customsValue(in, h))
	if op == constants.OperationImport {
		if s := incrementables(in, h); s != nil {
			specs = append(specs, s)
		}
	}
	return specs
}

// dollarValue checks each invoice's dollar value (value x currency factor) and the header total.
func dollarValue(in *Input, h entity.PedimentoHeader) *Spec {
	s := NewSpec("valor_dolares", "Valor en dólares",
		"El valor en dólares de cada factura es su valor en moneda de facturación por el factor de moneda; "+
			"el valor en dólares del encabezado es la suma de las facturas. Diferencias de redondeo de centavos son aceptables.").
		Add(Provided, srcPedimento, F("valor_dolares", h.DollarValue), F("facturas", h.Invoices))

	var dollars []string
	for _, ref := range h.Invoices {
		dollars = append(dollars, ref.DollarValue)
		value, ok1 := dec(ref.Value)
		factor, ok2 := dec(ref.CurrencyRatio)
		if ok1 && ok2 {
			s.Add(Inferred, srcComputed, F("valor_dolares_"+ref.Number,
				computed(value.Mul(factor), "valor_moneda_factura x factor_moneda", 0)))
		}
	}
	if len(dollars) > 0 {
		total, skipped := sum(dollars...)
		s.Add(Inferred, srcComputed, F("suma_valor_dolares_facturas", computed(total, "suma de valor_dolares por factura", skipped)))
	}
	if rate, ok := dec(h.ExchangeRate); ok {
		if usd, ok := dec(h.DollarValue); ok {
			s.Add(Inferred, srcComputed, F("valor_dolares_en_pesos",
				computed(usd.Mul(rate), "valor_dolares x tipo_cambio (comparar con precio pagado / valor comercial)", 0)))
		}
	}
	return s
}

// customsValue checks valor aduana = precio pagado + incrementables and the partida sums.
func customsValue(in *Input, h entity.PedimentoHeader) *Spec {
	s := NewSpec("valor_aduana", "Valor en aduana y precio pagado",
		"El valor en aduana es el precio pagado más los incrementables (fletes, seguros, embalajes y otros). "+
			"La suma del valor en aduana y del precio pagado de las partidas debe coincidir con el encabezado; "+
			"se acepta una diferencia de redondeo de un peso por partida.").
		Add(Provided, srcPedimento,
			F("valor_aduana", h.CustomsValue),
			F("precio_pagado_valor_comercial", h.CommercialValue),
			F("fletes", nonEmpty(h.Freight)),
			F("valor_seguros", nonEmpty(h.Insurance)),
			F("embalajes", nonEmpty(h.Packaging)),
			F("otros_incrementables", nonEmpty(h.OtherIncrementals)))

	paid, ok := dec(h.CommercialValue)
	if ok {
		incr, _ := sum(h.Freight, h.Insurance, h.Packaging, h.OtherIncrementals)
		s.Add(Inferred, srcComputed, F("precio_pagado_mas_incrementables",
			computed(paid.Add(incr), "precio_pagado + fletes + seguros + embalajes + otros", 0)))
	}
	if len(in.Pedimento.Partidas) > 0 {
		var customs, prices []string
		for _, p := range in.Pedimento.Partidas {
			customs = append(customs, p.CustomsValue)
			prices = append(prices, p.PaidPrice)
		}
		cv, s1 := sum(customs...)
		pp, s2 := sum(prices...)
		s.Add(Inferred, srcComputed,
			F("suma_valor_aduana_partidas", computed(cv, "suma de valor_aduana por partida", s1)),
			F("suma_precio_pagado_partidas", computed(pp, "suma de importe_precio_pagado por partida", s2)),
			F("tolerancia", decimal.NewFromInt(int64(len(in.Pedimento.Partidas))).StringFixed(2)))
	}
	return s
}

// incrementables compares freight and insurance against the invoices (imports only).
func incrementables(in *Input, h entity.PedimentoHeader) *Spec {
	if len(in.Documents.Invoices) == 0 {
		return nil
	}
	s := NewSpec("incrementables", "Incrementables",
		"Los fletes y seguros facturados que no estén incluidos en el precio deben declararse como incrementables en el pedimento, "+
			"convertidos a pesos con el tipo de cambio y el factor de moneda. Considera el INCOTERM de la factura.").
		Add(Provided, srcPedimento,
			F("fletes", nonEmpty(h.Freight)),
			F("valor_seguros", nonEmpty(h.Insurance)),
			F("tipo_cambio", h.ExchangeRate),
			F("facturas", h.Invoices))
	for _, f := range in.Documents.Invoices {
		s.Add(Provided, source(constants.Invoice, f.Source),
			F("incoterm", nonEmpty(f.Incoterm)),
			F("moneda", f.Currency),
			F("fletes", nonEmpty(f.Freight)),
			F("seguros", nonEmpty(f.Insurance)))
	}
	return s
}
