// Package tls implements the hub's certificate lifecycle: an on-disk
// certificate store with an SNI-dispatched observer (spec.md §4.7), and
// ACME/DNS-01 provisioning on top of it (spec.md §4.8).
/*
 * Copyright (c) 2018-2026, Vesper Home Hub Authors. All rights reserved.
 */
package tls

import (
	"crypto/tls"
	"path/filepath"
)

// BoxHostname is the well-known name under which the hub's own
// self-signed certificate lives (spec.md §6: "a well-known 'default'
// hostname").
const BoxHostname = "default"

const (
	certFilename      = "cert.pem"
	privkeyFilename   = "privkey.pem"
	fullchainFilename = "fullchain.pem"
)

// Record is a loaded certificate plus its backing key for one hostname.
type Record struct {
	Hostname  string
	CertPEM   []byte
	KeyPEM    []byte
	ChainPEM  []byte // optional fullchain.pem contents, nil if absent
	Pair      tls.Certificate
}

func dirFor(certDir, hostname string) string {
	return filepath.Join(certDir, hostname)
}
