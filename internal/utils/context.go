package utils

// contextKey is a type used for context keys to avoid conflicts with other packages' context keys.
type contextKey struct {
	name string
}

// Returns string representation of the context key.
func (c *contextKey) String() string {
	return c.name
}

// AuthContextKey is the context key under which the authentication middleware
// stores the resolved *schemas.AuthContext.
var AuthContextKey = &contextKey{"authContext"}

// TraceIdKey is the context key for the per-request trace id.
var TraceIdKey = &contextKey{"traceId"}

// SanitizedPayloadKey is the context key for the validated request payload.
var SanitizedPayloadKey = &contextKey{"sanitizedPayload"}
