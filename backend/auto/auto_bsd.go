//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package auto

import _ "github.com/aml-go/aml/backend/kqueue"
