package geocode

import (
	"context"
	"strings"
)

const defaultViaCEPURL = "https://viacep.com.br"

// PostalAddress is what a postal-code service knows about a CEP. It carries
// no coordinates.
type PostalAddress struct {
	PostalCode string
	Street     string
	District   string
	City       string
	State      string
}

// PostalLookup resolves a CEP (8 digits) to an address. A nil address with a
// nil error means the code does not exist.
type PostalLookup interface {
	Lookup(ctx context.Context, cep string) (*PostalAddress, error)
}

// viaCEPResponse is the JSON body of /ws/{cep}/json/.
type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	Erro       any    `json:"erro"` // true (bool) or "true" (string) depending on API version
}

func (r viaCEPResponse) notFound() bool {
	switch v := r.Erro.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// ViaCEPClient looks up Brazilian postal codes on viacep.com.br.
type ViaCEPClient struct {
	httpBase
}

// NewViaCEPClient creates a ViaCEP client.
func NewViaCEPClient(opts ...HTTPOption) *ViaCEPClient {
	return &ViaCEPClient{httpBase: newHTTPBase(defaultViaCEPURL, opts)}
}

// Lookup implements PostalLookup.
func (c *ViaCEPClient) Lookup(ctx context.Context, cep string) (*PostalAddress, error) {
	var resp viaCEPResponse
	if err := c.getJSON(ctx, ProviderPostal, "/ws/"+cep+"/json/", nil, &resp); err != nil {
		return nil, err
	}
	if resp.notFound() || resp.Localidade == "" {
		return nil, nil
	}
	return &PostalAddress{
		PostalCode: cep,
		Street:     resp.Logradouro,
		District:   resp.Bairro,
		City:       resp.Localidade,
		State:      resp.UF,
	}, nil
}

// String renders "street, district, city - state, 19700-000".
func (a *PostalAddress) String() string {
	cityState := strings.Join(nonEmpty(a.City, a.State), " - ")
	return strings.Join(nonEmpty(a.Street, a.District, cityState, formatPostalCode(a.PostalCode)), ", ")
}
