package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/catalog.schema.json
var catalogSchemaJSON string

var catalogSchema = jsonschema.MustCompileString("catalog.schema.json", catalogSchemaJSON)

var structValidate = validator.New()

// Decode parses and validates a raw catalog document. The document is first
// checked against the embedded JSON schema, then decoded and checked at the
// struct level. The returned catalog carries the document's content digest.
func Decode(raw []byte) (*Catalog, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := catalogSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if err := structValidate.Struct(&c); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	for i := range c.Entries {
		e := &c.Entries[i]
		for _, d := range [3]int{0, 1, 2} {
			if e.Anchor[d] < 0 || e.Anchor[d] >= e.Size[d] {
				return nil, fmt.Errorf("catalog: entry %q anchor outside extent", e.ID)
			}
		}
	}
	if err := c.index(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	c.Digest = HashBytes(raw)
	return &c, nil
}
