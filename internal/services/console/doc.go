// Package console hosts the operator console: the sign-in flow, the
// authorization gateway evaluated on every request, and the management
// surface that mutates the account directory.
//
// The gateway's decision is a pure function of the enriched session, the
// request path, and the immutable route policy. The only storage read per
// request is the directory lookup performed by the enricher, bounded by a
// timeout and failing closed to the sign-in page.
package console
