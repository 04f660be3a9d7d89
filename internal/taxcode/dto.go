package taxcode

type TaxCodesResponse struct {
	TaxCodes []*TaxCode `json:"tax_codes"`
}
