package backend

import (
	"encoding/json"
	"fmt"
)

// EncodeRecord serializes a single record as JSON.
func EncodeRecord(r Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot encode nil record")
	}
	return json.Marshal(r)
}

// DecodeRecord parses a JSON record of collection c.
func DecodeRecord(c Collection, data []byte) (Record, error) {
	switch c {
	case Profiles:
		var v Profile
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding profile: %w", err)
		}
		return v, nil
	case Courses:
		var v Course
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding course: %w", err)
		}
		return v, nil
	case Modules:
		var v Module
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding module: %w", err)
		}
		return v, nil
	case Contents:
		var v Content
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decoding content: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", c)
	}
}

// EncodeRecords serializes an ordered record list as a JSON array.
func EncodeRecords(records []Record) ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		data, err := EncodeRecord(r)
		if err != nil {
			return nil, err
		}
		raw = append(raw, data)
	}
	return json.Marshal(raw)
}

// DecodeRecords parses a JSON array of records of collection c. Empty input
// yields an empty list.
func DecodeRecords(c Collection, data []byte) ([]Record, error) {
	if len(data) == 0 {
		return []Record{}, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c, err)
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		r, err := DecodeRecord(c, item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
