package companieshouse

import (
	"encoding/json"

	"github.com/Sternrassler/lookup-reconciler/pkg/locator"
	"github.com/Sternrassler/lookup-reconciler/pkg/matcher"
	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

// CompaniesID identifies the company search module.
const CompaniesID = "companies-house-companies"

func init() {
	reconciler.Register(companiesManifest, newCompanies)
}

var companiesManifest = reconciler.Manifest{
	ID:          CompaniesID,
	Description: "Searches Companies House for companies matching a name.",
	Options: []reconciler.Option{
		{Name: "companyName", Description: "Column holding the company name", Required: true},
		{Name: "preciseMatch", Description: "Keep only companies whose normalized name equals the given one"},
	},
	Columns: record.Schema{"companyNumber", "companyName", "companyStatus", "companyIncorporationDate", "companyAddress"},
	NoMatch: matcher.NoMatchEmpty.String(),
}

type companySearch struct {
	Items []struct {
		Title          string `json:"title"`
		CompanyNumber  string `json:"company_number"`
		CompanyStatus  string `json:"company_status"`
		DateOfCreation string `json:"date_of_creation"`
		AddressSnippet string `json:"address_snippet"`
	} `json:"items"`
}

func decodeCompanies(data json.RawMessage) ([]matcher.Candidate, error) {
	var body companySearch
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}

	candidates := make([]matcher.Candidate, 0, len(body.Items))
	for _, item := range body.Items {
		candidates = append(candidates, matcher.Candidate{
			ID:      item.CompanyNumber,
			Name:    item.Title,
			Address: item.AddressSnippet,
			Fields: map[string]any{
				"companyNumber":            matcher.OrNil(item.CompanyNumber),
				"companyName":              matcher.OrNil(item.Title),
				"companyStatus":            matcher.OrNil(item.CompanyStatus),
				"companyIncorporationDate": matcher.OrNil(item.DateOfCreation),
				"companyAddress":           matcher.OrNil(item.AddressSnippet),
			},
		})
	}
	return candidates, nil
}

func newCompanies(s reconciler.Settings) (*reconciler.Module, error) {
	nameField := s.Get("companyName")

	return &reconciler.Module{
		Locator: locator.Config{
			Field:         nameField,
			BaseURL:       BaseURL,
			Auth:          auth,
			PageSizeParam: "items_per_page",
			PageSize:      PageSize,
			Address:       searchAddress("/search/companies"),
		},
		Pager:   pager,
		Decoder: matcher.DecoderFunc(decodeCompanies),
		Matcher: matcher.Config{
			NameField: nameField,
			ExactName: s.Bool("preciseMatch"),
			NoMatch:   matcher.NoMatchEmpty,
		},
	}, nil
}
