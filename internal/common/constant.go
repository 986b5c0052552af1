package common

const (
	// AccessTokenHeaderName is the gRPC metadata key used to carry the
	// access token on inbound and outbound requests.
	AccessTokenHeaderName = "access_token"

	// InternalKeyHeaderName is the gRPC metadata key carrying the shared key
	// of trusted internal callers (the OAuth exchange gateway).
	InternalKeyHeaderName = "internal_key"

	// InternalKeyHTTPHeader is the HTTP counterpart of InternalKeyHeaderName.
	InternalKeyHTTPHeader = "X-Internal-Key"
)
