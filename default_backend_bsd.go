//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package aml

const defaultBackendName = "kqueue"
