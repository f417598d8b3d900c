package protocol

const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrUnknownCatalog  = "E_UNKNOWN_CATALOG"
	ErrUnknownEntry    = "E_UNKNOWN_ENTRY"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownCatalog:  {},
	ErrUnknownEntry:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
