// Package audit persists an append-only log of security-relevant events:
// grant and membership mutations, token lifecycle, invitations. The Recorder
// plugs into the grant service's audit hook; recording failures are logged
// and never propagate to the mutation path.
package audit
