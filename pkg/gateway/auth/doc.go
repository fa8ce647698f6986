// Package auth implements the two authentication mechanisms a project
// can select: signed bearer tokens (HS256 or RS256) and server-held
// sessions looked up in the shared key-value store.
//
// Verification failures are deliberately indistinguishable from missing
// credentials: both yield "no identity", logged at warn. The pipeline
// then either admits the request anonymously (public path) or rejects it
// with 401. This keeps configurations mixing public and protected paths
// predictable.
package auth
