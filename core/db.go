package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrderings parses a comma separated list of fields, "-" prefixed for descending order.
// Fields missing from allowed are reported as a ValidationError on the "ordering" field.
func ParseOrderings(val string, allowed ...string) ([]DBOrdering, error) {
	val = CleanString(val)
	if val == "" {
		return nil, nil
	}

	var ords []DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = CleanString(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !contains(allowed, field) {
			return nil, NewValidationError(nil, FieldError{Field: "ordering", Error: "cannot order by " + field})
		}
		ords = append(ords, DBOrdering{Field: field, Ascending: !descending})
	}
	return ords, nil
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
