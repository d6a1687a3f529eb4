package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"testing"
)

func TestBuildCSRIncludesAllHostnamesAsDNSNames(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	hosts := []string{"hub.example.com", "alt.example.com"}
	der, err := buildCSR(key, hosts)
	if err != nil {
		t.Fatalf("buildCSR: %v", err)
	}
	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		t.Fatalf("ParseCertificateRequest: %v", err)
	}
	if csr.Subject.CommonName != hosts[0] {
		t.Fatalf("CN = %q, want %q", csr.Subject.CommonName, hosts[0])
	}
	if len(csr.DNSNames) != len(hosts) {
		t.Fatalf("DNSNames = %v, want %v", csr.DNSNames, hosts)
	}
}

func TestEncodeDERChainProducesOneBlockPerCert(t *testing.T) {
	pem1, _, err := mintSelfSigned("a.example.com", 1)
	if err != nil {
		t.Fatal(err)
	}
	pem2, _, err := mintSelfSigned("b.example.com", 1)
	if err != nil {
		t.Fatal(err)
	}

	block1, _ := pem.Decode(pem1)
	block2, _ := pem.Decode(pem2)

	chain, err := encodeDERChain([][]byte{block1.Bytes, block2.Bytes})
	if err != nil {
		t.Fatalf("encodeDERChain: %v", err)
	}

	n := 0
	rest := chain
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		n++
	}
	if n != 2 {
		t.Fatalf("got %d PEM blocks, want 2", n)
	}
}

func TestSymlinkSANPointsAtCNDirectory(t *testing.T) {
	dir := t.TempDir()
	cnDir := dirFor(dir, "cn.example.com")
	if err := os.MkdirAll(cnDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := symlinkSAN(dir, "cn.example.com", "alt.example.com"); err != nil {
		t.Fatalf("symlinkSAN: %v", err)
	}

	target, err := os.Readlink(dirFor(dir, "alt.example.com"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != cnDir {
		t.Fatalf("symlink target = %q, want %q", target, cnDir)
	}
}
