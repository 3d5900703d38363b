// Package opencorporates registers a company search module for the
// OpenCorporates API.
package opencorporates

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Sternrassler/lookup-reconciler/pkg/client"
	"github.com/Sternrassler/lookup-reconciler/pkg/locator"
	"github.com/Sternrassler/lookup-reconciler/pkg/matcher"
	"github.com/Sternrassler/lookup-reconciler/pkg/pagination"
	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

const (
	// ID identifies the module.
	ID = "opencorporates-companies"

	// BaseURL is the OpenCorporates API root.
	BaseURL = "https://api.opencorporates.com"

	// PageSize is the largest per_page the API accepts.
	PageSize = 100

	// TokenParam carries the API token.
	TokenParam = "api_token"
)

func init() {
	reconciler.Register(manifest, newModule)
}

var manifest = reconciler.Manifest{
	ID:          ID,
	Description: "Searches OpenCorporates for companies matching a name, optionally within one jurisdiction.",
	Options: []reconciler.Option{
		{Name: "companyName", Description: "Column holding the company name", Required: true},
		{Name: "companyJurisdiction", Description: "Column holding a jurisdiction code such as gb or us_de"},
		{Name: "preciseMatch", Description: "Keep only companies whose normalized name equals the given one"},
	},
	Columns: record.Schema{
		"companyJurisdiction", "companyNumber", "companyName", "companyStatus",
		"companyIncorporationDate", "companyAddress", "companyURL",
	},
	NoMatch: matcher.NoMatchFail.String(),
}

type search struct {
	Results struct {
		Companies []struct {
			Company struct {
				Name                    string `json:"name"`
				CompanyNumber           string `json:"company_number"`
				JurisdictionCode        string `json:"jurisdiction_code"`
				CurrentStatus           string `json:"current_status"`
				IncorporationDate       string `json:"incorporation_date"`
				RegisteredAddressInFull string `json:"registered_address_in_full"`
				OpencorporatesURL       string `json:"opencorporates_url"`
			} `json:"company"`
		} `json:"companies"`
	} `json:"results"`
}

func decode(data json.RawMessage) ([]matcher.Candidate, error) {
	var body search
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}

	candidates := make([]matcher.Candidate, 0, len(body.Results.Companies))
	for _, item := range body.Results.Companies {
		co := item.Company
		candidates = append(candidates, matcher.Candidate{
			ID:      co.CompanyNumber,
			Name:    co.Name,
			Address: co.RegisteredAddressInFull,
			Fields: map[string]any{
				"companyJurisdiction":      matcher.OrNil(co.JurisdictionCode),
				"companyNumber":            matcher.OrNil(co.CompanyNumber),
				"companyName":              matcher.OrNil(co.Name),
				"companyStatus":            matcher.OrNil(co.CurrentStatus),
				"companyIncorporationDate": matcher.OrNil(co.IncorporationDate),
				"companyAddress":           matcher.OrNil(co.RegisteredAddressInFull),
				"companyURL":               matcher.OrNil(co.OpencorporatesURL),
			},
		})
	}
	return candidates, nil
}

func newModule(s reconciler.Settings) (*reconciler.Module, error) {
	nameField := s.Get("companyName")
	jurisdictionField := s.Get("companyJurisdiction")

	return &reconciler.Module{
		Locator: locator.Config{
			Field:         nameField,
			BaseURL:       BaseURL,
			Auth:          client.Auth{Scheme: client.AuthQueryToken, TokenParam: TokenParam},
			PageSizeParam: "per_page",
			PageSize:      PageSize,
			Address: func(base, subject string, entry record.Entry) (string, url.Values) {
				params := url.Values{"q": {subject}}
				if j := entry.Value(jurisdictionField); jurisdictionField != "" && j != "" {
					params.Set("jurisdiction_code", strings.ToLower(j))
				}
				return strings.TrimRight(base, "/") + "/v0.4/companies/search", params
			},
		},
		Pager: pagination.NumberPager{
			Size:       PageSize,
			PageParam:  "page",
			TotalField: "results.total_count",
		},
		Decoder: matcher.DecoderFunc(decode),
		Matcher: matcher.Config{
			NameField: nameField,
			ExactName: s.Bool("preciseMatch"),
			NoMatch:   matcher.NoMatchFail,
		},
	}, nil
}
