package config

import "encoding/json"

const redacted = "[REDACTED]"

// SensitiveString hides its value from fmt, JSON and YAML output.
type SensitiveString string

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Value returns the raw secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SensitiveString(raw)
	return nil
}

func (s SensitiveString) MarshalYAML() (any, error) {
	return s.String(), nil
}
