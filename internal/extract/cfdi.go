package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/cargoclaro/glosa-sub000/internal/entity"
)

// ErrNotCFDI is returned for XML that is not a Comprobante.
var ErrNotCFDI = errors.New("not a CFDI comprobante")

// Element names match on local name, so cfdi:, cce11: and cce20: prefixes all decode.
type comprobante struct {
	XMLName      xml.Name     `xml:"Comprobante"`
	Serie        string       `xml:"Serie,attr"`
	Folio        string       `xml:"Folio,attr"`
	Fecha        string       `xml:"Fecha,attr"`
	Moneda       string       `xml:"Moneda,attr"`
	TipoCambio   string       `xml:"TipoCambio,attr"`
	SubTotal     string       `xml:"SubTotal,attr"`
	Total        string       `xml:"Total,attr"`
	Emisor       xmlParty     `xml:"Emisor"`
	Receptor     xmlParty     `xml:"Receptor"`
	Conceptos    []concepto   `xml:"Conceptos>Concepto"`
	Complementos []complement `xml:"Complemento"`
}

type xmlParty struct {
	Rfc          string `xml:"Rfc,attr"`
	Nombre       string `xml:"Nombre,attr"`
	NumRegIdTrib string `xml:"NumRegIdTrib,attr"`
	Domicilio    *struct {
		Calle  string `xml:"Calle,attr"`
		Pais   string `xml:"Pais,attr"`
		Estado string `xml:"Estado,attr"`
	} `xml:"Domicilio"`
}

type concepto struct {
	NoIdentificacion string `xml:"NoIdentificacion,attr"`
	Cantidad         string `xml:"Cantidad,attr"`
	ClaveUnidad      string `xml:"ClaveUnidad,attr"`
	Descripcion      string `xml:"Descripcion,attr"`
	ValorUnitario    string `xml:"ValorUnitario,attr"`
	Importe          string `xml:"Importe,attr"`
}

type complement struct {
	Timbre *struct {
		UUID string `xml:"UUID,attr"`
	} `xml:"TimbreFiscalDigital"`
	Comercio *comercioExterior `xml:"ComercioExterior"`
}

type comercioExterior struct {
	ClaveDePedimento string     `xml:"ClaveDePedimento,attr"`
	Incoterm         string     `xml:"Incoterm,attr"`
	TipoCambioUSD    string     `xml:"TipoCambioUSD,attr"`
	TotalUSD         string     `xml:"TotalUSD,attr"`
	Destinatario     []xmlParty `xml:"Destinatario"`
	Mercancias       []struct {
		NoIdentificacion    string `xml:"NoIdentificacion,attr"`
		FraccionArancelaria string `xml:"FraccionArancelaria,attr"`
		CantidadAduana      string `xml:"CantidadAduana,attr"`
		UnidadAduana        string `xml:"UnidadAduana,attr"`
		ValorUnitarioAduana string `xml:"ValorUnitarioAduana,attr"`
		ValorDolares        string `xml:"ValorDolares,attr"`
	} `xml:"Mercancias>Mercancia"`
}

func (p xmlParty) party() entity.Party {
	out := entity.Party{RFC: p.Rfc, Name: p.Nombre, TaxID: p.NumRegIdTrib}
	if p.Domicilio != nil {
		out.Address = joinNonEmpty(p.Domicilio.Calle, p.Domicilio.Estado, p.Domicilio.Pais)
	}
	return out
}

func joinNonEmpty(parts ...string) string {
	var b bytes.Buffer
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p)
	}
	return b.String()
}

// ParseCFDI decodes a CFDI 4.0 (or 3.3) XML, including the Comercio Exterior complement.
func ParseCFDI(data []byte) (entity.CFDI, error) {
	var c comprobante
	if err := xml.Unmarshal(data, &c); err != nil {
		var unexpected xml.UnmarshalError
		if errors.As(err, &unexpected) {
			return entity.CFDI{}, fmt.Errorf("%w: %v", ErrNotCFDI, err)
		}
		return entity.CFDI{}, fmt.Errorf("cfdi: decode xml: %w", err)
	}

	out := entity.CFDI{
		Series:       c.Serie,
		Folio:        c.Folio,
		Date:         c.Fecha,
		Currency:     c.Moneda,
		ExchangeRate: c.TipoCambio,
		Subtotal:     c.SubTotal,
		Total:        c.Total,
		Issuer:       c.Emisor.party(),
		Receiver:     c.Receptor.party(),
	}
	for _, k := range c.Conceptos {
		out.Items = append(out.Items, entity.CommodityLine{
			Description: k.Descripcion,
			PartNumber:  k.NoIdentificacion,
			Quantity:    k.Cantidad,
			Unit:        k.ClaveUnidad,
			UnitValue:   k.ValorUnitario,
			TotalValue:  k.Importe,
		})
	}
	for _, comp := range c.Complementos {
		if comp.Timbre != nil && out.UUID == "" {
			out.UUID = comp.Timbre.UUID
		}
		if ce := comp.Comercio; ce != nil {
			ft := &entity.ForeignTrade{
				PedimentoKey: ce.ClaveDePedimento,
				Incoterm:     ce.Incoterm,
				ExchangeRate: ce.TipoCambioUSD,
				TotalUSD:     ce.TotalUSD,
			}
			if len(ce.Destinatario) > 0 {
				ft.Recipient = ce.Destinatario[0].party()
			}
			for _, m := range ce.Mercancias {
				ft.Goods = append(ft.Goods, entity.CommodityLine{
					PartNumber:  m.NoIdentificacion,
					Fraction:    m.FraccionArancelaria,
					Quantity:    m.CantidadAduana,
					Unit:        m.UnidadAduana,
					UnitValue:   m.ValorUnitarioAduana,
					DollarValue: m.ValorDolares,
				})
			}
			out.ForeignTrade = ft
		}
	}
	return out, nil
}
