//go:build linux

package kraceconfig

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// StringOrSlice unmarshals a JSON value that may be either a bare string or
// an array of strings, the shape config.c's get_string_array accepts for
// opened_by/triggered_by/closed_by/comms.
type StringOrSlice []string

func (s *StringOrSlice) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringOrSlice{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// UnmarshalYAML implements yaml.v3's Unmarshaler, needed because yaml.v3
// does not consult json.Unmarshaler.
func (s *StringOrSlice) UnmarshalYAML(value *yaml.Node) error {
	var one string
	if err := value.Decode(&one); err == nil {
		*s = StringOrSlice{one}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return err
	}
	*s = many
	return nil
}
