package units

import "regexp"

var (
	storagePattern  = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?([kKmMgGtTpP]i?[bB]?)?$`)
	durationPattern = regexp.MustCompile(`^([0-9]+(\.[0-9]+)?[dDhHmMsS]?)?$`)
)

type InvalidQuantityError struct {
	Kind  string
	Value string
}

func (e *InvalidQuantityError) Error() string {
	return "invalid " + e.Kind + " value given: '" + e.Value + "'"
}

// ValidateStorage accepts sizes such as 10, 10G, 10GB, 10GiB, 1.5TB and 512mib.
func ValidateStorage(v string) error {
	if !storagePattern.MatchString(v) {
		return &InvalidQuantityError{Kind: "storage", Value: v}
	}
	return nil
}

// ValidateDuration accepts an empty string or a number with an optional
// single-letter d/h/m/s unit, so "20m" passes and "20min" does not.
func ValidateDuration(v string) error {
	if !durationPattern.MatchString(v) {
		return &InvalidQuantityError{Kind: "time", Value: v}
	}
	return nil
}
