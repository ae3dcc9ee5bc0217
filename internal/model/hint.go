package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseHint parses a notify-send style hint of the form TYPE:NAME:VALUE.
// The value keeps any further colons, so "string:x-url:http://a" is valid.
func ParseHint(spec string) (string, any, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[1] == "" {
		return "", nil, fmt.Errorf("%w: %q", ErrMalformedHint, spec)
	}
	kind, name, raw := parts[0], parts[1], parts[2]

	switch strings.ToLower(kind) {
	case "int":
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return "", nil, fmt.Errorf("invalid int hint %q: %w", name, err)
		}
		return name, int32(v), nil
	case "double":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid double hint %q: %w", name, err)
		}
		return name, v, nil
	case "string":
		return name, raw, nil
	case "byte":
		v, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return "", nil, fmt.Errorf("invalid byte hint %q: %w", name, err)
		}
		return name, byte(v), nil
	case "boolean", "bool":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return "", nil, fmt.Errorf("invalid boolean hint %q: %w", name, err)
		}
		return name, v, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownHintType, kind)
	}
}
