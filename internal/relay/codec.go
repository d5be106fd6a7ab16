package relay

import "encoding/json"

// Encode converts a struct with json tags into a Doc.
func Encode(v any) (Doc, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode fills a struct with json tags from a Doc. Numbers arrive as float64
// regardless of backend, matching JSON wire semantics.
func Decode(doc Doc, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
