package report

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/sysnotify/internal/broadcast"
	"github.com/jmylchreest/sysnotify/internal/session"
)

// JSONFormatter formats output as indented JSON.
type JSONFormatter struct{}

// Result writes r as JSON.
func (f *JSONFormatter) Result(w io.Writer, r *broadcast.Result) error {
	return encodeJSON(w, r)
}

// Sessions writes sessions as JSON.
func (f *JSONFormatter) Sessions(w io.Writer, sessions []session.Session) error {
	return encodeJSON(w, sessionList{Sessions: nonNil(sessions)})
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// Result writes r as YAML.
func (f *YAMLFormatter) Result(w io.Writer, r *broadcast.Result) error {
	return encodeYAML(w, r)
}

// Sessions writes sessions as YAML.
func (f *YAMLFormatter) Sessions(w io.Writer, sessions []session.Session) error {
	return encodeYAML(w, sessionList{Sessions: nonNil(sessions)})
}

func encodeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

func nonNil(sessions []session.Session) []session.Session {
	if sessions == nil {
		return []session.Session{}
	}
	return sessions
}
