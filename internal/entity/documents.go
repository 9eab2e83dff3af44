package entity

// Cove is a value acknowledgement (e-document) as extracted.
type Cove struct {
	Source        string          `json:"-"`
	Number        string          `json:"numero_cove"`
	Operation     string          `json:"tipo_operacion,omitempty"`
	Date          string          `json:"fecha_expedicion,omitempty"`
	InvoiceNumber string          `json:"numero_factura"`
	Subdivision   bool            `json:"subdivision,omitempty"`
	Issuer        Party           `json:"emisor"`
	Recipient     Party           `json:"destinatario"`
	Currency      string          `json:"moneda,omitempty"`
	Items         []CommodityLine `json:"mercancias"`
}

// CommodityLine is a merchandise row in a COVE, invoice, CFDI or packing list.
type CommodityLine struct {
	Description string `json:"descripcion"`
	PartNumber  string `json:"numero_parte,omitempty"`
	Quantity    string `json:"cantidad,omitempty"`
	Unit        string `json:"unidad,omitempty"`
	UnitValue   string `json:"valor_unitario,omitempty"`
	TotalValue  string `json:"valor_total,omitempty"`
	DollarValue string `json:"valor_dolares,omitempty"`
	Fraction    string `json:"fraccion,omitempty"`
	Origin      string `json:"pais_origen,omitempty"`
	NetWeight   string `json:"peso_neto,omitempty"`
	GrossWeight string `json:"peso_bruto,omitempty"`
}

// Invoice is a commercial invoice.
type Invoice struct {
	Source    string          `json:"-"`
	Number    string          `json:"numero"`
	Date      string          `json:"fecha,omitempty"`
	Incoterm  string          `json:"incoterm,omitempty"`
	Currency  string          `json:"moneda"`
	Seller    Party           `json:"vendedor"`
	Buyer     Party           `json:"comprador"`
	Items     []CommodityLine `json:"partidas,omitempty"`
	Subtotal  string          `json:"subtotal,omitempty"`
	Freight   string          `json:"fletes,omitempty"`
	Insurance string          `json:"seguros,omitempty"`
	Total     string          `json:"total"`
	Origin    string          `json:"pais_origen,omitempty"`
}

// Carta318 is the amendment letter for invoice data (rule 3.1.8).
type Carta318 struct {
	Source        string          `json:"-"`
	Date          string          `json:"fecha,omitempty"`
	InvoiceNumber string          `json:"numero_factura"`
	Supplier      Party           `json:"proveedor"`
	Importer      Party           `json:"importador"`
	Currency      string          `json:"moneda,omitempty"`
	Total         string          `json:"valor_total,omitempty"`
	Incoterm      string          `json:"incoterm,omitempty"`
	Linked        string          `json:"vinculacion,omitempty"`
	Corrections   []Correction    `json:"correcciones,omitempty"`
	Items         []CommodityLine `json:"mercancias,omitempty"`
}

type Correction struct {
	Field    string `json:"campo"`
	Original string `json:"valor_original,omitempty"`
	Correct  string `json:"valor_correcto"`
}

// CFDI is an electronic invoice (with Comercio Exterior complement when present).
type CFDI struct {
	Source       string          `json:"-"`
	UUID         string          `json:"uuid,omitempty"`
	Series       string          `json:"serie,omitempty"`
	Folio        string          `json:"folio"`
	Date         string          `json:"fecha"`
	Currency     string          `json:"moneda"`
	ExchangeRate string          `json:"tipo_cambio,omitempty"`
	Subtotal     string          `json:"subtotal,omitempty"`
	Total        string          `json:"total"`
	Issuer       Party           `json:"emisor"`
	Receiver     Party           `json:"receptor"`
	Items        []CommodityLine `json:"conceptos"`
	ForeignTrade *ForeignTrade   `json:"comercio_exterior,omitempty"`
}

// ForeignTrade is the Comercio Exterior complement.
type ForeignTrade struct {
	PedimentoKey string          `json:"clave_pedimento,omitempty"`
	Incoterm     string          `json:"incoterm,omitempty"`
	ExchangeRate string          `json:"tipo_cambio_usd,omitempty"`
	TotalUSD     string          `json:"total_usd,omitempty"`
	Recipient    Party           `json:"destinatario,omitempty"`
	Goods        []CommodityLine `json:"mercancias,omitempty"`
}

// PackingList covers packing lists and packing slips.
type PackingList struct {
	Source      string          `json:"-"`
	Number      string          `json:"numero,omitempty"`
	InvoiceRef  string          `json:"numero_factura,omitempty"`
	Packages    string          `json:"bultos"`
	GrossWeight string          `json:"peso_bruto"`
	NetWeight   string          `json:"peso_neto,omitempty"`
	WeightUnit  string          `json:"unidad_peso,omitempty"`
	Marks       string          `json:"marcas,omitempty"`
	Items       []CommodityLine `json:"partidas,omitempty"`
}

// TransportDocument covers bills of lading and air waybills.
type TransportDocument struct {
	Source       string      `json:"-"`
	Kind         string      `json:"tipo"`
	Number       string      `json:"numero"`
	MasterNumber string      `json:"numero_master,omitempty"`
	Carrier      string      `json:"transportista,omitempty"`
	Shipper      Party       `json:"embarcador"`
	Consignee    Party       `json:"consignatario"`
	Origin       string      `json:"origen,omitempty"`
	Destination  string      `json:"destino,omitempty"`
	Packages     string      `json:"bultos,omitempty"`
	GrossWeight  string      `json:"peso_bruto,omitempty"`
	WeightUnit   string      `json:"unidad_peso,omitempty"`
	Containers   []Container `json:"contenedores,omitempty"`
	Date         string      `json:"fecha,omitempty"`
}
