package feed

import (
	"bytes"
	"encoding/json"
)

// PageShape identifies which of the known source-API response shapes a page
// body matched. The feed is duck-typed upstream; modeling the variants
// explicitly keeps the normalization auditable and lets callers log anything
// outside the known set instead of silently coercing it.
type PageShape int

const (
	// ShapeList is a bare JSON array of records.
	ShapeList PageShape = iota
	// ShapeDataObject is an object wrapping the records under "data".
	ShapeDataObject
	// ShapeCollaboratorsObject wraps the records under "colaboradores".
	ShapeCollaboratorsObject
	// ShapeBareObject is a single record object, normalized to a
	// one-element list.
	ShapeBareObject
	// ShapeUnknown is anything else, including invalid JSON. Unknown
	// pages yield zero records.
	ShapeUnknown
)

func (s PageShape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeDataObject:
		return "data-object"
	case ShapeCollaboratorsObject:
		return "colaboradores-object"
	case ShapeBareObject:
		return "bare-object"
	default:
		return "unknown"
	}
}

type pageEnvelope struct {
	Data          json.RawMessage `json:"data"`
	Colaboradores json.RawMessage `json:"colaboradores"`
}

// DecodePage normalizes one raw page body into a flat record list, reporting
// which shape variant it matched. Unknown or malformed bodies decode to an
// empty list, never an error: the fetcher treats them as an empty page.
func DecodePage(body []byte) ([]EmployeeRecord, PageShape) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ShapeUnknown
	}

	switch trimmed[0] {
	case '[':
		var records []EmployeeRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, ShapeUnknown
		}
		return records, ShapeList

	case '{':
		var env pageEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, ShapeUnknown
		}
		// A present wrapper key claims the envelope even when its value is
		// unusable (null, scalar): that is an empty page, not a record.
		if len(env.Data) > 0 {
			records, _ := decodeWrapped(env.Data)
			return records, ShapeDataObject
		}
		if len(env.Colaboradores) > 0 {
			records, _ := decodeWrapped(env.Colaboradores)
			return records, ShapeCollaboratorsObject
		}
		// No known wrapper key: the object is itself a single record.
		var record EmployeeRecord
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, ShapeUnknown
		}
		return []EmployeeRecord{record}, ShapeBareObject

	default:
		return nil, ShapeUnknown
	}
}

// decodeWrapped decodes a wrapper value that may be a list of records or a
// single record object.
func decodeWrapped(raw json.RawMessage) ([]EmployeeRecord, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, false
	}
	switch trimmed[0] {
	case '[':
		var records []EmployeeRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, false
		}
		return records, true
	case '{':
		var record EmployeeRecord
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, false
		}
		return []EmployeeRecord{record}, true
	default:
		return nil, false
	}
}
