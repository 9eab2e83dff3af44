package extract

import (
	"github.com/cargoclaro/glosa-sub000/internal/llm"
)

func partySchema() map[string]any {
	return llm.Object(map[string]any{
		"rfc":       llm.String(),
		"curp":      llm.String(),
		"id_fiscal": llm.String(),
		"nombre":    llm.String(),
		"domicilio": llm.String(),
	})
}

func lineSchema() map[string]any {
	return llm.Object(map[string]any{
		"descripcion":    llm.NonEmptyString(),
		"numero_parte":   llm.String(),
		"cantidad":       llm.Decimal(),
		"unidad":         llm.String(),
		"valor_unitario": llm.Decimal(),
		"valor_total":    llm.Decimal(),
		"valor_dolares":  llm.Decimal(),
		"fraccion":       llm.String(),
		"pais_origen":    llm.String(),
		"peso_neto":      llm.Decimal(),
		"peso_bruto":     llm.Decimal(),
	}, "descripcion")
}

func coveSchema() map[string]any {
	return llm.Object(map[string]any{
		"numero_cove":      llm.NonEmptyString(),
		"tipo_operacion":   llm.String(),
		"fecha_expedicion": llm.String(),
		"numero_factura":   llm.String(),
		"subdivision":      llm.Boolean(),
		"emisor":           partySchema(),
		"destinatario":     partySchema(),
		"moneda":           llm.String(),
		"mercancias":       llm.Array(lineSchema()),
	}, "numero_cove")
}

func invoiceSchema() map[string]any {
	return llm.Object(map[string]any{
		"numero":      llm.NonEmptyString(),
		"fecha":       llm.String(),
		"incoterm":    llm.String(),
		"moneda":      llm.String(),
		"vendedor":    partySchema(),
		"comprador":   partySchema(),
		"partidas":    llm.Array(lineSchema()),
		"subtotal":    llm.Decimal(),
		"fletes":      llm.Decimal(),
		"seguros":     llm.Decimal(),
		"total":       llm.Decimal(),
		"pais_origen": llm.String(),
	}, "numero")
}

func cartaSchema() map[string]any {
	return llm.Object(map[string]any{
		"fecha":          llm.String(),
		"numero_factura": llm.NonEmptyString(),
		"proveedor":      partySchema(),
		"importador":     partySchema(),
		"moneda":         llm.String(),
		"valor_total":    llm.Decimal(),
		"incoterm":       llm.String(),
		"vinculacion":    llm.String(),
		"correcciones": llm.Array(llm.Object(map[string]any{
			"campo":          llm.NonEmptyString(),
			"valor_original": llm.String(),
			"valor_correcto": llm.String(),
		}, "campo")),
		"mercancias": llm.Array(lineSchema()),
	}, "numero_factura")
}

func packingListSchema() map[string]any {
	return llm.Object(map[string]any{
		"numero":         llm.String(),
		"numero_factura": llm.String(),
		"bultos":         llm.Decimal(),
		"peso_bruto":     llm.Decimal(),
		"peso_neto":      llm.Decimal(),
		"unidad_peso":    llm.String(),
		"marcas":         llm.String(),
		"partidas":       llm.Array(lineSchema()),
	})
}

func transportSchema() map[string]any {
	return llm.Object(map[string]any{
		"numero":        llm.NonEmptyString(),
		"numero_master": llm.String(),
		"transportista": llm.String(),
		"embarcador":    partySchema(),
		"consignatario": partySchema(),
		"origen":        llm.String(),
		"destino":       llm.String(),
		"bultos":        llm.Decimal(),
		"peso_bruto":    llm.Decimal(),
		"unidad_peso":   llm.String(),
		"contenedores": llm.Array(llm.Object(map[string]any{
			"numero": llm.NonEmptyString(),
			"tipo":   llm.String(),
		}, "numero")),
		"fecha": llm.String(),
	}, "numero")
}
