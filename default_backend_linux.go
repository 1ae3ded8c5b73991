//go:build linux

package aml

const defaultBackendName = "epoll"
