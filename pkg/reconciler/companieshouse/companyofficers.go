package companieshouse

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/Sternrassler/lookup-reconciler/pkg/locator"
	"github.com/Sternrassler/lookup-reconciler/pkg/matcher"
	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

// CompanyOfficersID identifies the module listing a company's officers.
const CompanyOfficersID = "companies-house-company-officers"

func init() {
	reconciler.Register(companyOfficersManifest, newCompanyOfficers)
}

var companyOfficersManifest = reconciler.Manifest{
	ID:          CompanyOfficersID,
	Description: "Lists the officers of a Companies House company, optionally filtered by name and date of birth.",
	Options: []reconciler.Option{
		{Name: "companyNumber", Description: "Column holding the company number", Required: true},
		{Name: "officerName", Description: "Column holding an officer name to filter by"},
		{Name: "officerDateOfBirth", Description: "Column holding a date of birth (YYYY-MM or YYYY-MM-DD)"},
		{Name: "preciseMatch", Description: "Keep only officers whose normalized name equals the given one"},
		{Name: "nonLegalNameMatch", Description: "Keep only officers sharing first and last name, ignoring middle names"},
	},
	Columns: record.Schema{
		"officerID", "officerName", "officerRole", "officerAppointedOn",
		"officerResignedOn", "officerDateOfBirth", "officerAddress",
	},
	NoMatch: matcher.NoMatchEmpty.String(),
}

type companyOfficerList struct {
	Items []struct {
		Name        string       `json:"name"`
		OfficerRole string       `json:"officer_role"`
		AppointedOn string       `json:"appointed_on"`
		ResignedOn  string       `json:"resigned_on"`
		DateOfBirth *dateOfBirth `json:"date_of_birth"`
		Address     address      `json:"address"`
		Links       struct {
			Officer struct {
				Appointments string `json:"appointments"`
			} `json:"officer"`
		} `json:"links"`
	} `json:"items"`
}

func decodeCompanyOfficers(data json.RawMessage) ([]matcher.Candidate, error) {
	var body companyOfficerList
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}

	candidates := make([]matcher.Candidate, 0, len(body.Items))
	for _, item := range body.Items {
		c := matcher.Candidate{
			ID:       officerID(item.Links.Officer.Appointments),
			Name:     reorderName(item.Name),
			Address:  item.Address.String(),
			Position: item.OfficerRole,
		}
		birth(&c, item.DateOfBirth)
		c.Fields = map[string]any{
			"officerID":          matcher.OrNil(c.ID),
			"officerName":        matcher.OrNil(c.Name),
			"officerRole":        matcher.OrNil(c.Position),
			"officerAppointedOn": matcher.OrNil(item.AppointedOn),
			"officerResignedOn":  matcher.OrNil(item.ResignedOn),
			"officerDateOfBirth": c.BirthDate(),
			"officerAddress":     matcher.OrNil(c.Address),
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func newCompanyOfficers(s reconciler.Settings) (*reconciler.Module, error) {
	nameField := s.Get("officerName")
	if nameField == "" && (s.Bool("preciseMatch") || s.Bool("nonLegalNameMatch")) {
		return nil, &reconciler.ConfigError{
			Module: CompanyOfficersID,
			Option: "officerName",
			Reason: "is required when name matching is enabled",
		}
	}

	return &reconciler.Module{
		Locator: locator.Config{
			Field:         s.Get("companyNumber"),
			BaseURL:       BaseURL,
			Auth:          auth,
			PageSizeParam: "items_per_page",
			PageSize:      PageSize,
			Address: func(base, subject string, _ record.Entry) (string, url.Values) {
				number := strings.ToUpper(strings.ReplaceAll(subject, " ", ""))
				return strings.TrimRight(base, "/") + "/company/" + url.PathEscape(number) + "/officers", nil
			},
		},
		Pager:   pager,
		Decoder: matcher.DecoderFunc(decodeCompanyOfficers),
		Matcher: matcher.Config{
			NameField:        nameField,
			DateOfBirthField: s.Get("officerDateOfBirth"),
			ExactName:        s.Bool("preciseMatch"),
			FirstLastName:    s.Bool("nonLegalNameMatch"),
			NoMatch:          matcher.NoMatchEmpty,
		},
	}, nil
}
