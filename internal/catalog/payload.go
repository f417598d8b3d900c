package catalog

import (
	"encoding/json"
	"fmt"
)

// PayloadBlock is one voxel of a structure payload in local coordinates.
type PayloadBlock struct {
	Pos   [3]int `json:"pos"`
	Block string `json:"block"`
}

// Variant is an optional alternative block set (e.g. an alternate room).
// The executor selects at most one variant per placement, deterministically
// from the secondary seed.
type Variant struct {
	ID     string         `json:"id"`
	Blocks []PayloadBlock `json:"blocks"`
}

// Payload is a structure's voxel content. Its embedded size and anchor are
// not authoritative; the catalog entry's metadata is (the executor rewrites
// them before placing).
type Payload struct {
	ID       string         `json:"id"`
	Size     [3]int         `json:"size"`
	Anchor   [3]int         `json:"anchor"`
	Blocks   []PayloadBlock `json:"blocks"`
	Variants []Variant      `json:"variants,omitempty"`
}

func DecodePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("payload: missing id")
	}
	if len(p.Blocks) == 0 {
		return nil, fmt.Errorf("payload %s: no blocks", p.ID)
	}
	return &p, nil
}
