//go:build linux

// Package auto blank-imports whichever concrete backend matches the
// current build target, so callers that don't care which backend they
// get can write:
//
//	import _ "github.com/aml-go/aml/backend/auto"
//
// instead of picking backend/epoll or backend/kqueue themselves — the
// same registration-by-side-effect pattern database/sql drivers use.
package auto

import _ "github.com/aml-go/aml/backend/epoll"
