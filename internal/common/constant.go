package common

// AuthorizationHeaderName carries the optional bearer token that selects the
// current user. Requests without it act as the default user.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix is the scheme prefix expected in the Authorization header.
const BearerPrefix = "Bearer "
