package constants

import (
	"strings"
)

// DocumentType is the canonical label of a customs document inside an expediente.
type DocumentType string

const (
	Pedimento      DocumentType = "pedimento"
	BillOfLading   DocumentType = "bill_of_lading"
	AirWaybill     DocumentType = "air_waybill"
	Invoice        DocumentType = "invoice"
	Carta318       DocumentType = "carta_318"
	Cove           DocumentType = "cove"
	PackingList    DocumentType = "packing_list"
	PackingSlip    DocumentType = "packing_slip"
	Shipper        DocumentType = "shipper"
	DeliveryTicket DocumentType = "delivery_ticket"
	CFDI           DocumentType = "cfdi"
	Other          DocumentType = "other"
)

type typeInfo struct {
	label     string
	singleton bool
	discarded bool
	transport bool
}

// Order here is the canonical order used for listings and reports.
var allDocumentTypes = []DocumentType{
	Pedimento,
	Cove,
	Invoice,
	Carta318,
	CFDI,
	BillOfLading,
	AirWaybill,
	PackingList,
	PackingSlip,
	Shipper,
	DeliveryTicket,
	Other,
}

var documentTypeInfo = map[DocumentType]typeInfo{
	Pedimento:      {label: "Pedimento", singleton: true},
	Cove:           {label: "COVE"},
	Invoice:        {label: "Factura comercial"},
	Carta318:       {label: "Carta 3.1.8"},
	CFDI:           {label: "CFDI"},
	BillOfLading:   {label: "Conocimiento de embarque", transport: true},
	AirWaybill:     {label: "Guía aérea", transport: true},
	PackingList:    {label: "Lista de empaque"},
	PackingSlip:    {label: "Nota de empaque"},
	Shipper:        {label: "Shipper"},
	DeliveryTicket: {label: "Ticket de entrega"},
	Other:          {label: "Otro", discarded: true},
}

// AllDocumentTypes returns every type in canonical order.
func AllDocumentTypes() []DocumentType {
	out := make([]DocumentType, len(allDocumentTypes))
	copy(out, allDocumentTypes)
	return out
}

// AsStringSlice returns the raw labels, used as the classifier enum.
func AsStringSlice() []string {
	result := make([]string, len(allDocumentTypes))
	for i, t := range allDocumentTypes {
		result[i] = string(t)
	}
	return result
}

func (t DocumentType) Valid() bool {
	_, ok := documentTypeInfo[t]
	return ok
}

// Singleton reports whether at most one document of this type may exist per expediente.
func (t DocumentType) Singleton() bool { return documentTypeInfo[t].singleton }

// Discarded reports whether documents of this type are dropped during assembly.
func (t DocumentType) Discarded() bool { return documentTypeInfo[t].discarded }

// Transport reports whether the type is a transport document (BL or air waybill).
func (t DocumentType) Transport() bool { return documentTypeInfo[t].transport }

// Label is the human readable Spanish name.
func (t DocumentType) Label() string {
	if info, ok := documentTypeInfo[t]; ok {
		return info.label
	}
	return string(t)
}

func (t DocumentType) String() string { return string(t) }

// ParseDocumentType maps a free-form label onto a DocumentType.
func ParseDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}
	normalized = strings.NewReplacer("-", "_", " ", "_", ".", "").Replace(normalized)

	synonyms := map[string]DocumentType{
		"factura":                  Invoice,
		"commercial_invoice":       Invoice,
		"factura_comercial":        Invoice,
		"bl":                       BillOfLading,
		"b/l":                      BillOfLading,
		"conocimiento_de_embarque": BillOfLading,
		"awb":                      AirWaybill,
		"guia_aerea":               AirWaybill,
		"guía_aérea":               AirWaybill,
		"carta318":                 Carta318,
		"carta_318":                Carta318,
		"carta_3_1_8":              Carta318,
		"lista_de_empaque":         PackingList,
		"packinglist":              PackingList,
		"packing_slip":             PackingSlip,
		"nota_de_empaque":          PackingSlip,
		"shipper_letter":           Shipper,
		"ticket":                   DeliveryTicket,
		"ticket_de_entrega":        DeliveryTicket,
		"e_document":               Cove,
		"acuse_de_valor":           Cove,
		"xml":                      CFDI,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}
	for _, t := range allDocumentTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return Other, false
}
