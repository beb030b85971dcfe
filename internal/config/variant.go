package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Variant selects the network architecture and its loss combination.
type Variant int

// Supported variants.
const (
	VAE Variant = iota
	GAN
	Evaluator
)

var variantNames = [...]string{
	VAE:       "vae",
	GAN:       "gan",
	Evaluator: "evaluator",
}

// String returns the configuration name of the variant.
func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return fmt.Sprintf("Variant(%d)", int(v))
	}
	return variantNames[v]
}

// Valid reports whether v is one of the supported variants.
func (v Variant) Valid() bool {
	return v >= VAE && v <= Evaluator
}

// ParseVariant converts "vae", "gan" or "evaluator" into a Variant.
func ParseVariant(s string) (Variant, error) {
	for i, name := range variantNames {
		if name == s {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown variant %q (want vae, gan or evaluator)", ErrInvalidConfig, s)
}

// MarshalYAML encodes the variant by name.
func (v Variant) MarshalYAML() (any, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: unknown variant %d", ErrInvalidConfig, int(v))
	}
	return v.String(), nil
}

// UnmarshalYAML decodes a variant name.
func (v *Variant) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseVariant(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Set implements flag.Value.
func (v *Variant) Set(s string) error {
	parsed, err := ParseVariant(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
