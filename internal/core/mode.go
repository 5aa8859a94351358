// Package core is the orchestration layer.  It composes the
// transport, authentication and engine layers into the serve mode and
// provides a builder that selects collaborators from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  auth / engine  →  core  →  cmd (CLI)
//
// Build is the single dispatch point between configuration and the
// running daemon.
package core

import "context"

// Mode is a complete operational mode of npsrv.  It owns its full
// lifecycle from opening listeners to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
