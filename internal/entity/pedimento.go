package entity

// Pedimento is the extracted customs declaration: a merged header plus its partidas in
// (page, ordinal) order. Decimal amounts are kept as the strings the document shows.
type Pedimento struct {
	Header   PedimentoHeader `json:"header"`
	Partidas []Partida       `json:"partidas"`
}

// PedimentoHeader merges the primary header (first page) with the remaining header fields.
type PedimentoHeader struct {
	PrimaryHeader
	RemainingHeader
}

// PrimaryHeader holds the fields printed on the first page of a pedimento.
type PrimaryHeader struct {
	Number            string   `json:"numero_pedimento"`
	Operation         string   `json:"tipo_operacion"`
	Clave             string   `json:"clave_pedimento"`
	Regime            string   `json:"regimen"`
	Destination       string   `json:"destino_origen,omitempty"`
	ExchangeRate      string   `json:"tipo_cambio"`
	GrossWeight       string   `json:"peso_bruto"`
	CustomsOffice     string   `json:"aduana_es"`
	TransportEntry    string   `json:"medio_transporte_entrada_salida,omitempty"`
	TransportArrival  string   `json:"medio_transporte_arribo,omitempty"`
	TransportExit     string   `json:"medio_transporte_salida,omitempty"`
	DollarValue       string   `json:"valor_dolares"`
	CustomsValue      string   `json:"valor_aduana"`
	CommercialValue   string   `json:"precio_pagado_valor_comercial"`
	Importer          Party    `json:"importador_exportador"`
	Insurance         string   `json:"valor_seguros,omitempty"`
	Freight           string   `json:"fletes,omitempty"`
	Packaging         string   `json:"embalajes,omitempty"`
	OtherIncrementals string   `json:"otros_incrementables,omitempty"`
	Packages          string   `json:"marcas_numeros_bultos,omitempty"`
	EntryDate         string   `json:"fecha_entrada,omitempty"`
	PaymentDate       string   `json:"fecha_pago,omitempty"`
	Liquidation       []Charge `json:"cuadro_liquidacion,omitempty"`
	TotalCash         string   `json:"total_efectivo,omitempty"`
	TotalOther        string   `json:"total_otros,omitempty"`
	Total             string   `json:"total,omitempty"`
}

// RemainingHeader holds the header fields printed after the first page.
type RemainingHeader struct {
	Suppliers   []Supplier   `json:"proveedores,omitempty"`
	Invoices    []InvoiceRef `json:"facturas,omitempty"`
	Transport   []Transport  `json:"transportes,omitempty"`
	Guides      []Guide      `json:"guias,omitempty"`
	Containers  []Container  `json:"contenedores,omitempty"`
	Identifiers []Identifier `json:"identificadores,omitempty"`
	Remarks     string       `json:"observaciones,omitempty"`
}

// Party is an importer, exporter or recipient.
type Party struct {
	RFC     string `json:"rfc,omitempty"`
	CURP    string `json:"curp,omitempty"`
	TaxID   string `json:"id_fiscal,omitempty"`
	Name    string `json:"nombre"`
	Address string `json:"domicilio,omitempty"`
}

// Supplier is a seller/buyer block of the pedimento.
type Supplier struct {
	TaxID   string `json:"id_fiscal"`
	Name    string `json:"nombre"`
	Address string `json:"domicilio,omitempty"`
	Linked  string `json:"vinculacion,omitempty"`
}

// InvoiceRef is an invoice declared in the pedimento, with its COVE acknowledgement.
type InvoiceRef struct {
	Number        string `json:"numero"`
	Date          string `json:"fecha,omitempty"`
	Incoterm      string `json:"incoterm,omitempty"`
	Currency      string `json:"moneda"`
	Value         string `json:"valor_moneda_factura"`
	CurrencyRatio string `json:"factor_moneda,omitempty"`
	DollarValue   string `json:"valor_dolares,omitempty"`
	Cove          string `json:"cove,omitempty"`
}

type Transport struct {
	ID      string `json:"identificacion"`
	Country string `json:"pais,omitempty"`
}

type Guide struct {
	Number string `json:"numero"`
	Kind   string `json:"tipo,omitempty"` // M master, H house
}

type Container struct {
	Number string `json:"numero"`
	Kind   string `json:"tipo,omitempty"`
}

// Charge is one row of the liquidation table or one partida contribution.
type Charge struct {
	Concept     string `json:"concepto"`
	Rate        string `json:"tasa,omitempty"`
	RateKind    string `json:"tipo_tasa,omitempty"`
	PaymentForm string `json:"forma_pago,omitempty"`
	Amount      string `json:"importe"`
}

// Identifier is a pedimento/partida identifier with up to three positional complements.
type Identifier struct {
	Code        string `json:"clave"`
	Complement1 string `json:"complemento1,omitempty"`
	Complement2 string `json:"complemento2,omitempty"`
	Complement3 string `json:"complemento3,omitempty"`
}

// Complements returns the non-empty complements in position order.
func (i Identifier) Complements() []string {
	var out []string
	for _, c := range []string{i.Complement1, i.Complement2, i.Complement3} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Partida is one line item of the pedimento.
type Partida struct {
	Sequence        string       `json:"secuencia"`
	Fraction        string       `json:"fraccion"`
	Nico            string       `json:"nico,omitempty"`
	Linked          string       `json:"vinculacion,omitempty"`
	ValuationMethod string       `json:"metodo_valoracion,omitempty"`
	UMC             string       `json:"umc"`
	QuantityUMC     string       `json:"cantidad_umc"`
	UMT             string       `json:"umt,omitempty"`
	QuantityUMT     string       `json:"cantidad_umt,omitempty"`
	SellerCountry   string       `json:"pais_vendedor_comprador,omitempty"`
	OriginCountry   string       `json:"pais_origen_destino,omitempty"`
	Description     string       `json:"descripcion"`
	CustomsValue    string       `json:"valor_aduana,omitempty"`
	PaidPrice       string       `json:"importe_precio_pagado,omitempty"`
	UnitPrice       string       `json:"precio_unitario,omitempty"`
	AddedValue      string       `json:"valor_agregado,omitempty"`
	Contributions   []Charge     `json:"contribuciones,omitempty"`
	Identifiers     []Identifier `json:"identificadores,omitempty"`
	Remarks         string       `json:"observaciones,omitempty"`

	Page    int `json:"page"`    // 0-based page of the pedimento
	Ordinal int `json:"ordinal"` // 1-based position on that page
}
