package companieshouse

import (
	"encoding/json"

	"github.com/Sternrassler/lookup-reconciler/pkg/locator"
	"github.com/Sternrassler/lookup-reconciler/pkg/matcher"
	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

// OfficersID identifies the individual officer search module.
const OfficersID = "companies-house-individuals-officers"

func init() {
	reconciler.Register(officersManifest, newOfficers)
}

var officersManifest = reconciler.Manifest{
	ID:          OfficersID,
	Description: "Searches Companies House for officers matching an individual's name.",
	Options: []reconciler.Option{
		{Name: "individualName", Description: "Column holding the individual's full name", Required: true},
		{Name: "individualDateOfBirth", Description: "Column holding a date of birth (YYYY-MM or YYYY-MM-DD)"},
		{Name: "preciseMatch", Description: "Keep only officers whose normalized name equals the individual's"},
		{Name: "nonLegalNameMatch", Description: "Keep only officers sharing first and last name, ignoring middle names"},
	},
	Columns: record.Schema{"officerID", "officerName", "officerDateOfBirth", "officerAddress"},
	NoMatch: matcher.NoMatchEmpty.String(),
}

type officerSearch struct {
	Items []struct {
		Title          string       `json:"title"`
		DateOfBirth    *dateOfBirth `json:"date_of_birth"`
		AddressSnippet string       `json:"address_snippet"`
		Description    string       `json:"description"`
		Links          struct {
			Self string `json:"self"`
		} `json:"links"`
	} `json:"items"`
}

func decodeOfficers(data json.RawMessage) ([]matcher.Candidate, error) {
	var body officerSearch
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}

	candidates := make([]matcher.Candidate, 0, len(body.Items))
	for _, item := range body.Items {
		c := matcher.Candidate{
			ID:       officerID(item.Links.Self),
			Name:     item.Title,
			Address:  item.AddressSnippet,
			Position: item.Description,
		}
		birth(&c, item.DateOfBirth)
		c.Fields = map[string]any{
			"officerID":          matcher.OrNil(c.ID),
			"officerName":        matcher.OrNil(c.Name),
			"officerDateOfBirth": c.BirthDate(),
			"officerAddress":     matcher.OrNil(c.Address),
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func newOfficers(s reconciler.Settings) (*reconciler.Module, error) {
	nameField := s.Get("individualName")

	return &reconciler.Module{
		Locator: locator.Config{
			Field:         nameField,
			BaseURL:       BaseURL,
			Auth:          auth,
			PageSizeParam: "items_per_page",
			PageSize:      PageSize,
			Address:       searchAddress("/search/officers"),
		},
		Pager:   pager,
		Decoder: matcher.DecoderFunc(decodeOfficers),
		Matcher: matcher.Config{
			NameField:        nameField,
			DateOfBirthField: s.Get("individualDateOfBirth"),
			ExactName:        s.Bool("preciseMatch"),
			FirstLastName:    s.Bool("nonLegalNameMatch"),
			NoMatch:          matcher.NoMatchEmpty,
		},
	}, nil
}
