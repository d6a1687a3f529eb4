package tls_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	vtls "github.com/vesper-home/hub/tls"
)

type recordingStore struct {
	name string
	puts []vtls.Record
}

func (s *recordingStore) Name() string { return s.name }
func (s *recordingStore) Put(ctx context.Context, rec vtls.Record) error {
	s.puts = append(s.puts, rec)
	return nil
}

func TestGetBoxCertificateMintsAndPersists(t *testing.T) {
	dir := t.TempDir()
	store := &recordingStore{name: "fake"}
	mgr := vtls.NewManager(dir, 2, []vtls.BackupStore{store}, nil)

	rec, err := mgr.GetBoxCertificate()
	if err != nil {
		t.Fatalf("GetBoxCertificate: %v", err)
	}
	if rec.Hostname != vtls.BoxHostname {
		t.Fatalf("hostname = %q, want %q", rec.Hostname, vtls.BoxHostname)
	}
	if len(rec.CertPEM) == 0 || len(rec.KeyPEM) == 0 {
		t.Fatal("expected non-empty cert/key PEM")
	}
	if len(store.puts) != 1 {
		t.Fatalf("expected one backup replication, got %d", len(store.puts))
	}

	if _, err := os.Stat(filepath.Join(dir, vtls.BoxHostname, "cert.pem")); err != nil {
		t.Fatalf("cert.pem not persisted: %v", err)
	}

	again, err := mgr.GetBoxCertificate()
	if err != nil {
		t.Fatalf("second GetBoxCertificate: %v", err)
	}
	if string(again.CertPEM) != string(rec.CertPEM) {
		t.Fatal("second call should return the already-minted certificate, not mint a new one")
	}
	if len(store.puts) != 1 {
		t.Fatal("second call should not trigger another backup replication")
	}
}

func TestReloadPicksUpOnDiskRecords(t *testing.T) {
	dir := t.TempDir()
	mgr := vtls.NewManager(dir, 2, nil, nil)

	seed := vtls.NewManager(dir, 2, nil, nil)
	if _, err := seed.GetBoxCertificate(); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := mgr.GetCertificate(vtls.BoxHostname); !ok {
		t.Fatal("expected Reload to discover the on-disk box certificate")
	}
}

func TestRemoveCertificateDeletesDirAndMapEntry(t *testing.T) {
	dir := t.TempDir()
	mgr := vtls.NewManager(dir, 2, nil, nil)
	if _, err := mgr.GetBoxCertificate(); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	if err := mgr.RemoveCertificate(vtls.BoxHostname); err != nil {
		t.Fatalf("RemoveCertificate: %v", err)
	}
	if _, ok := mgr.GetCertificate(vtls.BoxHostname); ok {
		t.Fatal("expected certificate to be gone from the map")
	}
	if _, err := os.Stat(filepath.Join(dir, vtls.BoxHostname)); !os.IsNotExist(err) {
		t.Fatalf("expected directory to be removed, stat err = %v", err)
	}
}

func TestGetCertificateForClientHelloNoAcknowledgeWithoutSNI(t *testing.T) {
	dir := t.TempDir()
	mgr := vtls.NewManager(dir, 2, nil, nil)
	if _, err := mgr.GetBoxCertificate(); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	cert, err := mgr.GetCertificateForClientHello(noSNIHello())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cert != nil {
		t.Fatal("expected nil certificate (no-acknowledge) when ServerName is empty")
	}

	cert, err = mgr.GetCertificateForClientHello(helloFor(vtls.BoxHostname))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cert == nil {
		t.Fatal("expected a matching certificate for the box hostname")
	}
}
