package contextKey

// key is the private type backing the request context keys, so no other
// package can collide with them.
type key string

// UserIDKey carries the authenticated user's id (hex string) in a request
// context.
const UserIDKey = key("userID")

// JwtErrorKey carries a token validation error in a request context.
const JwtErrorKey = key("jwtError")
