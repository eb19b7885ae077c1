package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

// ReadJSON reads an array of flat objects. Key order is preserved and numbers are
// kept as json.Number.
func ReadJSON(r io.Reader) ([]roster.Record, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	out := make([]roster.Record, 0, len(raw))
	for i, obj := range raw {
		rec, err := DecodeRecord(obj)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeRecord decodes one JSON object into a record in key order.
func DecodeRecord(obj []byte) (roster.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected an object, got %v", tok)
	}
	var rec roster.Record
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		if v == nil {
			continue
		}
		rec = append(rec, roster.Field{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return rec, nil
}
