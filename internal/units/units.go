// Package units turns free-form storage and duration quantities into the
// canonical units used by the preview engine: GiB for storage and minutes for
// durations.
package units

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultStorageUnit  = "GiB"
	DefaultDurationUnit = "min"
)

var numberPattern = regexp.MustCompile(`\d*\.?\d+`)

// ParseQuantity splits raw into its leading number and trailing unit. Empty
// input yields (0, defaultUnit), as does a missing unit suffix for the unit.
// raw is expected to have passed ValidateStorage or ValidateDuration.
func ParseQuantity(raw, defaultUnit string) (float64, string) {
	value := strings.ReplaceAll(raw, " ", "")
	if value == "" {
		return 0, defaultUnit
	}
	loc := numberPattern.FindStringIndex(value)
	if loc == nil {
		return 0, defaultUnit
	}
	amount, err := decimal.NewFromString(value[loc[0]:loc[1]])
	if err != nil {
		return 0, defaultUnit
	}
	unit := value[loc[1]:]
	if unit == "" {
		unit = defaultUnit
	}
	return amount.InexactFloat64(), unit
}

// ToGiB converts amount in unit to GiB. Only the first letter of the unit is
// significant, so k, K, kb, KiB all share a rule. The factors are powers of
// ten even though the result is labelled binary; HTCondor treats every storage
// size as binary and the preview keeps that convention.
func ToGiB(amount float64, unit string) float64 {
	d := decimal.NewFromFloat(amount)
	switch prefix(unit) {
	case 'k':
		d = d.Shift(-6)
	case 'm':
		d = d.Shift(-3)
	case 't':
		d = d.Shift(3)
	case 'p':
		d = d.Shift(6)
	}
	return d.InexactFloat64()
}

// ToMinutes converts amount in unit (d, h, m, s; case-insensitive) to minutes.
// Unknown or empty units are taken as minutes.
func ToMinutes(amount float64, unit string) float64 {
	d := decimal.NewFromFloat(amount)
	switch prefix(unit) {
	case 'd':
		d = d.Mul(decimal.NewFromInt(24 * 60))
	case 'h':
		d = d.Mul(decimal.NewFromInt(60))
	case 's':
		d = d.Div(decimal.NewFromInt(60))
	}
	return d.InexactFloat64()
}

func StorageGiB(raw string) float64 {
	return ToGiB(ParseQuantity(raw, DefaultStorageUnit))
}

func DurationMinutes(raw string) float64 {
	return ToMinutes(ParseQuantity(raw, DefaultDurationUnit))
}

func prefix(unit string) byte {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return 0
	}
	c := unit[0]
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	return c
}
