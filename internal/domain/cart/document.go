package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DocumentVersion is the current stored cart format
const DocumentVersion = 1

type document struct {
	Version int    `json:"version"`
	Cart    []Line `json:"cart"`
}

// EncodeDocument serializes a whole cart for a PersistenceStore
func EncodeDocument(lines []Line) ([]byte, error) {
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(document{Version: DocumentVersion, Cart: lines})
	if err != nil {
		return nil, fmt.Errorf("encode cart document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a stored cart. A bare JSON array of lines is accepted
// as an unversioned document.
func DecodeDocument(data []byte) ([]Line, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrInvalidDocument
	}
	if data[0] == '[' {
		var lines []Line
		if err := json.Unmarshal(data, &lines); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return lines, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Version > DocumentVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidDocument, doc.Version)
	}
	if doc.Cart == nil {
		doc.Cart = []Line{}
	}
	return doc.Cart, nil
}
