package matcher

import (
	"fmt"

	"github.com/Sternrassler/lookup-reconciler/pkg/record"
)

// Predicate decides whether a candidate agrees with an entry.
type Predicate struct {
	Name  string
	Match func(entry record.Entry, c Candidate) bool
}

// DateOfBirth passes candidates whose birth year and month agree with the
// entry's ISO date prefix (YYYY-MM). Candidates missing either are kept.
func DateOfBirth(field string) Predicate {
	return Predicate{
		Name: "date-of-birth",
		Match: func(entry record.Entry, c Candidate) bool {
			value := entry.Value(field)
			if value == "" {
				return true
			}
			if c.BirthYear == nil || c.BirthMonth == nil {
				return true
			}
			year := fmt.Sprintf("%04d", *c.BirthYear)
			month := fmt.Sprintf("%02d", *c.BirthMonth)
			return year == substr(value, 0, 4) && month == substr(value, 5, 7)
		},
	}
}

// ExactName passes candidates whose normalized name equals the entry's.
func ExactName(field string) Predicate {
	return Predicate{
		Name: "exact-name",
		Match: func(entry record.Entry, c Candidate) bool {
			return Normalize(entry.Get(field)) == Normalize(c.Name)
		},
	}
}

// FirstLastName passes candidates whose first and last name tokens equal the
// entry's, ignoring middle names.
func FirstLastName(field string) Predicate {
	return Predicate{
		Name: "first-last-name",
		Match: func(entry record.Entry, c Candidate) bool {
			wantFirst, wantLast := FirstLast(Normalize(entry.Get(field)))
			first, last := FirstLast(Normalize(c.Name))
			return first == wantFirst && last == wantLast
		},
	}
}

func substr(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}
