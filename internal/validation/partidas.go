package validation

import (
	"errors"
	"fmt"

	"github.com/cargoclaro/glosa-sub000/internal/catalog"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/tariff"
)

// partidas builds one group of checks per partida, plus one check per identifier.
func partidas(in *Input) []*Spec {
	p := in.Pedimento
	if p == nil {
		return nil
	}
	var specs []*Spec
	labels := partidaLabels(p.Partidas)
	for i, pt := range p.Partidas {
		label := labels[i]
		prefix := "partida." + label
		src := fmt.Sprintf("%s, partida %s", srcPedimento, label)
		rates, rateErr := in.Tariffs.Rates(in.tariffQuery(pt))

		fr := NewSpec(prefix+".fraccion", "Partida "+label+": fracción y contribuciones",
			"La fracción arancelaria y el NICO deben existir en la tarifa vigente a la fecha de entrada y corresponder con la descripción. "+
				"Las tasas de IGI, IVA e IEPS de las contribuciones deben coincidir con la tarifa, salvo preferencia arancelaria "+
				"respaldada por un identificador de tratado.").
			Add(Provided, src,
				F("fraccion", pt.Fraction),
				F("nico", nonEmpty(pt.Nico)),
				F("descripcion", pt.Description),
				F("pais_origen_destino", nonEmpty(pt.OriginCountry)),
				F("contribuciones", pt.Contributions),
				F("identificadores", pt.Identifiers))
		tariffEvidence(fr, rates, rateErr)

		umt := NewSpec(prefix+".umt", "Partida "+label+": unidad de medida de tarifa",
			"La unidad de medida de tarifa (UMT) debe ser la que la tarifa establece para la fracción y su cantidad debe ser congruente "+
				"con la cantidad comercial.").
			Add(Provided, src,
				F("umc", pt.UMC),
				F("cantidad_umc", pt.QuantityUMC),
				F("umt", nonEmpty(pt.UMT)),
				F("cantidad_umt", nonEmpty(pt.QuantityUMT)))
		tariffEvidence(umt, rates, rateErr)

		val := NewSpec(prefix+".valor", "Partida "+label+": valor y precio unitario",
			"El precio unitario es el importe del precio pagado entre la cantidad comercial; el valor en aduana de la partida no debe "+
				"ser menor al precio pagado. Acepta diferencias de redondeo.").
			Add(Provided, src,
				F("cantidad_umc", pt.QuantityUMC),
				F("importe_precio_pagado", pt.PaidPrice),
				F("precio_unitario", pt.UnitPrice),
				F("valor_aduana", pt.CustomsValue),
				F("valor_agregado", nonEmpty(pt.AddedValue)))
		if paid, ok := dec(pt.PaidPrice); ok {
			if qty, ok := dec(pt.QuantityUMC); ok && !qty.IsZero() {
				val.Add(Inferred, srcComputed, F("precio_unitario_calculado", map[string]any{
					"valor":   paid.DivRound(qty, 5).String(),
					"formula": "importe_precio_pagado / cantidad_umc",
				}))
			}
		}

		specs = append(specs, fr, umt, val)
		specs = append(specs, identifierSpecs(in, prefix, src, pt.Identifiers)...)
	}
	return specs
}

// tariffEvidence adds the tariff lookup. A missing fraction is evidence; an unreachable
// tariff service blocks the check.
func tariffEvidence(s *Spec, rates tariff.Rates, err error) {
	switch {
	case err == nil:
		s.Add(External, "Tarifa vigente", F("tarifa", rates))
	case errors.Is(err, tariff.ErrNotFound):
		s.Add(External, "Tarifa vigente", F("tarifa", "la fracción y NICO no tienen tarifa vigente en la fecha"))
	default:
		s.Block(fmt.Errorf("consulta de tarifa: %w", err))
	}
}

// identifierSpecs checks each identifier for structural plausibility against the catalog.
func identifierSpecs(in *Input, prefix, src string, ids []entity.Identifier) []*Spec {
	cat := in.Catalogs.Get(catalog.Identifiers)
	specs := make([]*Spec, 0, len(ids))
	for i, id := range ids {
		s := NewSpec(fmt.Sprintf("%s.identificador.%d.%s", prefix, i+1, id.Code),
			fmt.Sprintf("Identificador %s (%s)", id.Code, src),
			"Verifica sólo la plausibilidad estructural: la clave existe en el catálogo de identificadores y cada complemento, "+
				"en su posición, tiene la forma que el catálogo describe. No evalúes cumplimiento legal.").
			Add(Provided, src,
				F("clave", id.Code),
				F("complemento1", nonEmpty(id.Complement1)),
				F("complemento2", nonEmpty(id.Complement2)),
				F("complemento3", nonEmpty(id.Complement3)))
		switch entry, ok := cat.Lookup(id.Code); {
		case cat == nil:
			s.Block(fmt.Errorf("%w: %s", ErrCatalogMissing, catalog.Identifiers))
		case ok:
			s.Add(External, cat.Label(), F("definicion", entry))
		default:
			s.Add(External, cat.Label(), F("definicion", "la clave no existe en el catálogo"))
		}
		specs = append(specs, s)
	}
	return specs
}
