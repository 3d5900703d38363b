// Package companieshouse registers lookup modules for the UK Companies House
// public data API.
package companieshouse

import (
	"net/url"
	"strings"

	"github.com/Sternrassler/lookup-reconciler/pkg/client"
	"github.com/Sternrassler/lookup-reconciler/pkg/locator"
	"github.com/Sternrassler/lookup-reconciler/pkg/matcher"
	"github.com/Sternrassler/lookup-reconciler/pkg/pagination"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

// BaseURL is the Companies House public data API root.
const BaseURL = "https://api.company-information.service.gov.uk"

// PageSize is the largest items_per_page the search endpoints accept.
const PageSize = 100

// Companies House authenticates with the API key as the basic auth username.
var auth = client.Auth{Scheme: client.AuthBasic}

var pager = pagination.OffsetPager{
	Size:       PageSize,
	StartParam: "start_index",
	TotalField: "total_results",
}

type dateOfBirth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type address struct {
	Premises     string `json:"premises"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	Locality     string `json:"locality"`
	Region       string `json:"region"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// String joins the non-blank parts with ", ".
func (a address) String() string {
	var parts []string
	for _, p := range []string{a.Premises, a.AddressLine1, a.AddressLine2, a.Locality, a.Region, a.PostalCode, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// birth sets the candidate's birth date components.
func birth(c *matcher.Candidate, dob *dateOfBirth) {
	if dob == nil {
		return
	}
	c.BirthYear = matcher.IntPtr(dob.Year)
	c.BirthMonth = matcher.IntPtr(dob.Month)
	c.BirthDay = matcher.IntPtr(dob.Day)
}

// officerID extracts the ID following "officers" in a link such as
// "/officers/abc123/appointments".
func officerID(link string) string {
	segments := strings.Split(strings.Trim(link, "/"), "/")
	for i, s := range segments {
		if s == "officers" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

// reorderName turns "SURNAME, Forenames" into "Forenames SURNAME".
func reorderName(name string) string {
	surname, forenames, ok := strings.Cut(name, ",")
	if !ok {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(strings.TrimSpace(forenames) + " " + strings.TrimSpace(surname))
}

func searchAddress(path string) locator.AddressFunc {
	return func(base, subject string, _ record.Entry) (string, url.Values) {
		return strings.TrimRight(base, "/") + path, url.Values{"q": {subject}}
	}
}
