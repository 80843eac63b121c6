package debias

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Variant selects what the adversary observes besides the predictor output.
type Variant int

const (
	// DemographicParity: the adversary sees only the predictor output, so the
	// predictor is pushed towards outcomes independent of the protected attribute.
	DemographicParity Variant = iota + 1
	// EqualizedOdds: the adversary also sees the true label, so independence
	// is only demanded conditional on the label.
	EqualizedOdds
)

var (
	variantNames  = [...]string{DemographicParity: "demographic_parity", EqualizedOdds: "equalized_odds"}
	variantByName = map[string]Variant{
		"demographic_parity": DemographicParity,
		"equalized_odds":     EqualizedOdds,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Variant(0)
	_ json.Marshaler           = Variant(0)
	_ json.Unmarshaler         = (*Variant)(nil)
	_ encoding.TextMarshaler   = Variant(0)
	_ encoding.TextUnmarshaler = (*Variant)(nil)
)

// IsValid reports whether v is a known variant.
func (v Variant) IsValid() bool {
	return v >= DemographicParity && v <= EqualizedOdds
}

// String returns the name of the variant. For invalid values it returns "Variant(n)".
func (v Variant) String() string {
	if v.IsValid() {
		return variantNames[v]
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// inputs returns the width of the adversary's input vector.
func (v Variant) inputs() int {
	if v == EqualizedOdds {
		return 3
	}
	return 1
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: variant %d", ErrInvalidConfig, int(v))
	}
	return []byte(variantNames[v]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(text []byte) error {
	got, ok := variantByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: variant %q", ErrInvalidConfig, text)
	}
	*v = got
	return nil
}

// MarshalJSON implements json.Marshaler. Variant serializes as a JSON string.
func (v Variant) MarshalJSON() ([]byte, error) {
	text, err := v.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (v *Variant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: variant %s", ErrInvalidConfig, data)
	}
	return v.UnmarshalText([]byte(s))
}
