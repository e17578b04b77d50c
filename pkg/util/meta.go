package util

import (
	"fmt"
)

const (
	APIVersionV1Alpha1 = "clipcheck/v1alpha1"
)

type TypeMeta struct {
	APIVersion string `json:"apiVersion,omitempty"`
	Kind       string `json:"kind"`
}

// ValidateAPIVersion accepts the current version or an empty string. The
// kind field is checked separately during decoding.
func ValidateAPIVersion(version string) error {
	switch version {
	case "", APIVersionV1Alpha1:
		return nil
	default:
		return fmt.Errorf("unknown apiVersion: '%s'", version)
	}
}
