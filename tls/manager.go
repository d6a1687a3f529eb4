package tls

import (
	"context"
	"crypto/tls"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/glog"

	"github.com/vesper-home/hub/metrics"
)

// Manager owns the hostname -> Record map and the SNI-dispatched SSL
// context provider built on top of it (spec.md §4.7). The map is
// guarded by a read-write lock: per-connection SNI lookups are
// frequent reads, reload/add/remove are rare writes.
type Manager struct {
	certDir string
	years   int
	stores  []BackupStore
	metrics *metrics.TLS

	mu      sync.RWMutex
	records map[string]Record
}

func NewManager(certDir string, selfSignedYears int, stores []BackupStore, m *metrics.TLS) *Manager {
	return &Manager{
		certDir: certDir,
		years:   selfSignedYears,
		stores:  stores,
		metrics: m,
		records: make(map[string]Record),
	}
}

// Reload scans the certificate directory: each immediate sub-directory
// is a hostname, canonical filenames cert.pem/privkey.pem and optional
// fullchain.pem yield a record. The in-memory map is replaced
// atomically; a reload failure leaves the previous map in place
// (spec.md §7: "Certificate reload failures leave the previous map in
// place; they do not tear down the observer").
func (m *Manager) Reload() error {
	entries, err := os.ReadDir(m.certDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	next := make(map[string]Record, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, err := loadRecord(m.certDir, e.Name())
		if err != nil {
			glog.Warningf("tls: skipping %s: %v", e.Name(), err)
			continue
		}
		next[e.Name()] = rec
	}

	m.mu.Lock()
	m.records = next
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.CertReloaded()
	}
	return nil
}

func loadRecord(certDir, hostname string) (Record, error) {
	dir := dirFor(certDir, hostname)
	certPEM, err := os.ReadFile(filepath.Join(dir, certFilename))
	if err != nil {
		return Record{}, err
	}
	keyPEM, err := os.ReadFile(filepath.Join(dir, privkeyFilename))
	if err != nil {
		return Record{}, err
	}
	var chainPEM []byte
	if b, err := os.ReadFile(filepath.Join(dir, fullchainFilename)); err == nil {
		chainPEM = b
	}
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return Record{}, err
	}
	return Record{Hostname: hostname, CertPEM: certPEM, KeyPEM: keyPEM, ChainPEM: chainPEM, Pair: pair}, nil
}

// AddCertificate persists rec to disk, installs it in the map, and
// replicates it to every configured BackupStore. The tls.Certificate
// pair used for serving is always (re)derived from CertPEM/KeyPEM here,
// so callers never need to populate rec.Pair themselves.
func (m *Manager) AddCertificate(rec Record) error {
	pair, err := tls.X509KeyPair(rec.CertPEM, rec.KeyPEM)
	if err != nil {
		return err
	}
	rec.Pair = pair

	if err := writeRecordAtomically(m.certDir, rec); err != nil {
		return err
	}
	m.mu.Lock()
	m.records[rec.Hostname] = rec
	m.mu.Unlock()
	if m.stores != nil {
		replicate(context.Background(), m.stores, rec, m.metrics)
	}
	return nil
}

// RemoveCertificate deletes the hostname's directory and drops it from
// the map.
func (m *Manager) RemoveCertificate(hostname string) error {
	m.mu.Lock()
	delete(m.records, hostname)
	m.mu.Unlock()
	return os.RemoveAll(dirFor(m.certDir, hostname))
}

// GetCertificate is a snapshot lookup.
func (m *Manager) GetCertificate(hostname string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[hostname]
	return rec, ok
}

// GetBoxCertificate returns the hub's canonical-name certificate,
// minting a self-signed 2048-bit RSA cert valid for m.years if absent.
// Minting is racy-safe: reload, re-check under the lock, then generate
// and write atomically (temp file + rename) so two concurrent callers
// never observe a half-written pair.
func (m *Manager) GetBoxCertificate() (Record, error) {
	if rec, ok := m.GetCertificate(BoxHostname); ok {
		return rec, nil
	}
	if err := m.Reload(); err != nil {
		return Record{}, err
	}
	if rec, ok := m.GetCertificate(BoxHostname); ok {
		return rec, nil
	}

	certPEM, keyPEM, err := mintSelfSigned(BoxHostname, m.years)
	if err != nil {
		return Record{}, err
	}
	rec := Record{Hostname: BoxHostname, CertPEM: certPEM, KeyPEM: keyPEM}
	if err := m.AddCertificate(rec); err != nil {
		return Record{}, err
	}
	rec, _ = m.GetCertificate(BoxHostname)
	return rec, nil
}

func writeRecordAtomically(certDir string, rec Record) error {
	dir := dirFor(certDir, rec.Hostname)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, certFilename), rec.CertPEM); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(dir, privkeyFilename), rec.KeyPEM); err != nil {
		return err
	}
	if rec.ChainPEM != nil {
		if err := writeFileAtomic(filepath.Join(dir, fullchainFilename), rec.ChainPEM); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// GetCertificateForClientHello is the SNI servername callback: it
// returns the matching per-host certificate if any, or (nil, nil) — the
// "no-acknowledge" response — when the client presented no SNI or no
// record matches. Wire it into tls.Config.GetCertificate; every field
// read through m is protected by the read-write lock, so the callback
// is safe to invoke concurrently from many connections.
func (m *Manager) GetCertificateForClientHello(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if hello.ServerName == "" {
		return nil, nil
	}
	rec, ok := m.GetCertificate(hello.ServerName)
	if !ok {
		return nil, nil
	}
	return &rec.Pair, nil
}

// Config builds a *tls.Config wired to this manager's SNI callback,
// the hub's SSL-context provider in idiomatic Go terms.
func (m *Manager) Config() *tls.Config {
	return &tls.Config{GetCertificate: m.GetCertificateForClientHello}
}
