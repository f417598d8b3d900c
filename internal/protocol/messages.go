package protocol

// HELLO (client -> content service)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
	WorldSeed       int64  `json:"world_seed"`
}

// WELCOME (content service -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id,omitempty"`
	CatalogID       string `json:"catalog_id"`
	CatalogDigest   string `json:"catalog_digest"`
}

// CATALOG_REQ (client -> content service). KnownDigest lets the service
// answer not-modified with an empty document.
type CatalogReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CatalogID       string `json:"catalog_id"`
	KnownDigest     string `json:"known_digest,omitempty"`
}

// CATALOG (content service -> client). Raw is absent when NotModified.
type CatalogMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CatalogID       string `json:"catalog_id"`
	Digest          string `json:"digest"`
	NotModified     bool   `json:"not_modified,omitempty"`
	Raw             []byte `json:"raw,omitempty"`
}

// PAYLOAD_REQ (client -> content service)
type PayloadReqMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EntryID         string `json:"entry_id"`
}

// PAYLOAD (content service -> client). Raw is the payload document whose
// sha256 must equal the catalog's expectation for the entry.
type PayloadMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EntryID         string `json:"entry_id"`
	Raw             []byte `json:"raw,omitempty"`
	Error           string `json:"error,omitempty"`
}

// STATUS (status feed -> subscriber), sent periodically and after every
// placement.
type StatusMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	CatalogID     string `json:"catalog_id"`
	CatalogDigest string `json:"catalog_digest"`

	Ready           bool `json:"ready"`
	DownloadsTotal  int  `json:"downloads_total"`
	DownloadsDone   int  `json:"downloads_done"`
	PayloadsCached  int  `json:"payloads_cached"`
	QueueDepth      int  `json:"queue_depth"`
	TilesClaimed    int  `json:"tiles_claimed"`
	PlacementsTotal int  `json:"placements_total"`
}

// ERROR (either direction)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
