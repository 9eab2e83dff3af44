package pedimento

import (
	"github.com/cargoclaro/glosa-sub000/internal/llm"
)

const (
	sectionGeneral   = "general_data"
	sectionLineItems = "line_items"
)

func sectionSchema() map[string]any {
	return llm.Object(map[string]any{
		"section": llm.Enum(sectionGeneral, sectionLineItems),
	}, "section")
}

func countSchema() map[string]any {
	return llm.Object(map[string]any{
		"count": llm.BoundedInteger(0, MaxItemsPerPage),
	}, "count")
}

func partySchema() map[string]any {
	return llm.Object(map[string]any{
		"rfc":       llm.String(),
		"curp":      llm.String(),
		"id_fiscal": llm.String(),
		"nombre":    llm.String(),
		"domicilio": llm.String(),
	})
}

func chargeSchema() map[string]any {
	return llm.Object(map[string]any{
		"concepto":   llm.NonEmptyString(),
		"tasa":       llm.String(),
		"tipo_tasa":  llm.String(),
		"forma_pago": llm.String(),
		"importe":    llm.Decimal(),
	}, "concepto")
}

func identifierSchema() map[string]any {
	return llm.Object(map[string]any{
		"clave":        llm.NonEmptyString(),
		"complemento1": llm.String(),
		"complemento2": llm.String(),
		"complemento3": llm.String(),
	}, "clave")
}

// primaryHeaderSchema covers the fields printed on the first page.
func primaryHeaderSchema() map[string]any {
	return llm.Object(map[string]any{
		"numero_pedimento":                llm.NonEmptyString(),
		"tipo_operacion":                  llm.Enum("IMP", "EXP"),
		"clave_pedimento":                 llm.NonEmptyString(),
		"regimen":                         llm.String(),
		"destino_origen":                  llm.String(),
		"tipo_cambio":                     llm.Decimal(),
		"peso_bruto":                      llm.Decimal(),
		"aduana_es":                       llm.String(),
		"medio_transporte_entrada_salida": llm.String(),
		"medio_transporte_arribo":         llm.String(),
		"medio_transporte_salida":         llm.String(),
		"valor_dolares":                   llm.Decimal(),
		"valor_aduana":                    llm.Decimal(),
		"precio_pagado_valor_comercial":   llm.Decimal(),
		"importador_exportador":           partySchema(),
		"valor_seguros":                   llm.Decimal(),
		"fletes":                          llm.Decimal(),
		"embalajes":                       llm.Decimal(),
		"otros_incrementables":            llm.Decimal(),
		"marcas_numeros_bultos":           llm.String(),
		"fecha_entrada":                   llm.String(),
		"fecha_pago":                      llm.String(),
		"cuadro_liquidacion":              llm.Array(chargeSchema()),
		"total_efectivo":                  llm.Decimal(),
		"total_otros":                     llm.Decimal(),
		"total":                           llm.Decimal(),
	}, "numero_pedimento", "tipo_operacion", "clave_pedimento")
}

// remainingHeaderSchema covers the header blocks printed after the first page.
func remainingHeaderSchema() map[string]any {
	return llm.Object(map[string]any{
		"proveedores": llm.Array(llm.Object(map[string]any{
			"id_fiscal":   llm.String(),
			"nombre":      llm.NonEmptyString(),
			"domicilio":   llm.String(),
			"vinculacion": llm.String(),
		}, "nombre")),
		"facturas": llm.Array(llm.Object(map[string]any{
			"numero":               llm.NonEmptyString(),
			"fecha":                llm.String(),
			"incoterm":             llm.String(),
			"moneda":               llm.String(),
			"valor_moneda_factura": llm.Decimal(),
			"factor_moneda":        llm.Decimal(),
			"valor_dolares":        llm.Decimal(),
			"cove":                 llm.String(),
		}, "numero")),
		"transportes": llm.Array(llm.Object(map[string]any{
			"identificacion": llm.NonEmptyString(),
			"pais":           llm.String(),
		}, "identificacion")),
		"guias": llm.Array(llm.Object(map[string]any{
			"numero": llm.NonEmptyString(),
			"tipo":   llm.String(),
		}, "numero")),
		"contenedores": llm.Array(llm.Object(map[string]any{
			"numero": llm.NonEmptyString(),
			"tipo":   llm.String(),
		}, "numero")),
		"identificadores": llm.Array(identifierSchema()),
		"observaciones":   llm.String(),
	})
}

func partidaSchema() map[string]any {
	return llm.Object(map[string]any{
		"secuencia":               llm.String(),
		"fraccion":                llm.NonEmptyString(),
		"nico":                    llm.String(),
		"vinculacion":             llm.String(),
		"metodo_valoracion":       llm.String(),
		"umc":                     llm.String(),
		"cantidad_umc":            llm.Decimal(),
		"umt":                     llm.String(),
		"cantidad_umt":            llm.Decimal(),
		"pais_vendedor_comprador": llm.String(),
		"pais_origen_destino":     llm.String(),
		"descripcion":             llm.String(),
		"valor_aduana":            llm.Decimal(),
		"importe_precio_pagado":   llm.Decimal(),
		"precio_unitario":         llm.Decimal(),
		"valor_agregado":          llm.Decimal(),
		"contribuciones":          llm.Array(chargeSchema()),
		"identificadores":         llm.Array(identifierSchema()),
		"observaciones":           llm.String(),
	}, "fraccion")
}
