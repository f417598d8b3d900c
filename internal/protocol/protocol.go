// Package protocol defines the JSON messages spoken over the two websocket
// surfaces: the remote content service (catalog and payload fetches) and
// the local status feed.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello      = "HELLO"
	TypeWelcome    = "WELCOME"
	TypeCatalogReq = "CATALOG_REQ"
	TypeCatalog    = "CATALOG"
	TypePayloadReq = "PAYLOAD_REQ"
	TypePayload    = "PAYLOAD"
	TypeStatus     = "STATUS"
	TypeError      = "ERROR"
)

// BaseMessage routes incoming JSON by type before full decoding.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
