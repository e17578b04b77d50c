package util

import (
	"encoding/json"
	"fmt"
)

// UnmarshalWithKind decodes data into target after checking that the
// document's "kind" field matches expectedKind. Config types embed TypeMeta
// and call this from their UnmarshalJSON so a scenario file can never be
// silently decoded as a suite, or vice versa.
func UnmarshalWithKind(data []byte, target any, expectedKind string) error {
	probe := struct {
		Kind string `json:"kind"`
	}{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	if probe.Kind != expectedKind {
		return fmt.Errorf("cannot decode kind '%s' as kind '%s'", probe.Kind, expectedKind)
	}

	return json.Unmarshal(data, target)
}
