package tls

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"os"
	"time"

	"github.com/golang/glog"
	"golang.org/x/crypto/acme"

	"github.com/vesper-home/hub/cmn"
	"github.com/vesper-home/hub/metrics"
)

// ProvisionResult is delivered once over the one-shot channel Provision
// returns (spec.md §4.8: "result delivered over a one-shot channel").
type ProvisionResult struct {
	Record Record
	Err    error
}

// Provisioner drives real ACME DNS-01 provisioning against a
// CertificateManager (SPEC_FULL §4.10, replacing spec.md §4.8's
// external-script step with an in-process golang.org/x/crypto/acme
// client while keeping the same shape: place challenge, wait, finalize,
// copy certs in, symlink non-CN SANs).
type Provisioner struct {
	mgr             *Manager
	dns             DNSAPIClient
	directoryURL    string
	propagationWait time.Duration
	metrics         *metrics.TLS
}

func NewProvisioner(mgr *Manager, dns DNSAPIClient, directoryURL string, propagationWait time.Duration, m *metrics.TLS) *Provisioner {
	return &Provisioner{
		mgr:             mgr,
		dns:             dns,
		directoryURL:    directoryURL,
		propagationWait: propagationWait,
		metrics:         m,
	}
}

// Provision runs asynchronously on a helper goroutine for the given
// hostnames (CN first, remaining entries are alternative names), and
// returns a channel carrying exactly one ProvisionResult.
func (p *Provisioner) Provision(ctx context.Context, hostnames []string) <-chan ProvisionResult {
	out := make(chan ProvisionResult, 1)
	go func() {
		rec, err := p.provision(ctx, hostnames)
		if err != nil && p.metrics != nil {
			name := ""
			if len(hostnames) > 0 {
				name = hostnames[0]
			}
			p.metrics.ACMERenewal(name, false)
		} else if p.metrics != nil {
			p.metrics.ACMERenewal(hostnames[0], true)
		}
		out <- ProvisionResult{Record: rec, Err: err}
		close(out)
	}()
	return out
}

func (p *Provisioner) provision(ctx context.Context, hostnames []string) (Record, error) {
	if len(hostnames) == 0 {
		return Record{}, cmn.NewInvalidValueError("acme provisioning requires at least one hostname")
	}
	cn := hostnames[0]

	accountKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Record{}, err
	}
	client := &acme.Client{DirectoryURL: p.directoryURL, Key: accountKey}

	if _, err := client.Register(ctx, &acme.Account{}, acme.AcceptTOS); err != nil {
		return Record{}, cmn.NewGenericError("acme account registration failed", err)
	}

	ids := make([]acme.AuthzID, len(hostnames))
	for i, h := range hostnames {
		ids[i] = acme.AuthzID{Type: "dns", Value: h}
	}
	order, err := client.AuthorizeOrder(ctx, ids)
	if err != nil {
		return Record{}, cmn.NewGenericError("acme order authorization failed", err)
	}

	for _, authzURL := range order.AuthzURLs {
		if err := p.satisfyDNS01(ctx, client, authzURL); err != nil {
			return Record{}, err
		}
	}

	order, err = client.WaitOrder(ctx, order.URI)
	if err != nil {
		return Record{}, cmn.NewGenericError("acme order did not become ready", err)
	}

	certKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Record{}, err
	}
	csr, err := buildCSR(certKey, hostnames)
	if err != nil {
		return Record{}, err
	}

	der, _, err := client.CreateOrderCert(ctx, order.FinalizeURL, csr, true)
	if err != nil {
		return Record{}, cmn.NewGenericError("acme finalize/download failed", err)
	}

	certPEM, err := encodeDERChain(der)
	if err != nil {
		return Record{}, err
	}
	keyDER, err := x509.MarshalECPrivateKey(certKey)
	if err != nil {
		return Record{}, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	rec := Record{Hostname: cn, CertPEM: certPEM, KeyPEM: keyPEM}
	if err := p.mgr.AddCertificate(rec); err != nil {
		return Record{}, err
	}
	rec, _ = p.mgr.GetCertificate(cn)

	for _, san := range hostnames[1:] {
		if err := symlinkSAN(p.mgr.certDir, cn, san); err != nil {
			glog.Warningf("acme: symlinking %s -> %s: %v", san, cn, err)
		}
	}

	return rec, nil
}

// satisfyDNS01 places the _acme-challenge TXT record through the
// configured DNSAPIClient, waits for propagation, tells the CA to
// validate, waits for it to do so, then cleans the record up
// regardless of outcome (spec.md §4.8 steps 2-3).
func (p *Provisioner) satisfyDNS01(ctx context.Context, client *acme.Client, authzURL string) error {
	authz, err := client.GetAuthorization(ctx, authzURL)
	if err != nil {
		return cmn.NewGenericError("acme get authorization failed", err)
	}

	var chal *acme.Challenge
	for _, c := range authz.Challenges {
		if c.Type == "dns-01" {
			chal = c
			break
		}
	}
	if chal == nil {
		return cmn.NewGenericError("acme authorization has no dns-01 challenge", nil)
	}

	txtValue, err := client.DNS01ChallengeRecord(chal.Token)
	if err != nil {
		return cmn.NewGenericError("computing dns-01 record failed", err)
	}
	name := "_acme-challenge." + authz.Identifier.Value

	if err := p.dns.PlaceTXT(ctx, name, txtValue); err != nil {
		return cmn.NewGenericError("placing dns-01 txt record failed", err)
	}
	defer func() {
		if err := p.dns.RemoveTXT(ctx, name, txtValue); err != nil {
			glog.Warningf("acme: removing dns-01 txt record for %s: %v", name, err)
		}
	}()

	select {
	case <-time.After(p.propagationWait):
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, err := client.Accept(ctx, chal); err != nil {
		return cmn.NewGenericError("acme challenge accept failed", err)
	}
	if _, err := client.WaitAuthorization(ctx, authzURL); err != nil {
		return cmn.NewGenericError("acme authorization did not complete", err)
	}
	return nil
}

func buildCSR(key *ecdsa.PrivateKey, hostnames []string) ([]byte, error) {
	tmpl := &x509.CertificateRequest{
		Subject:  pkix.Name{CommonName: hostnames[0]},
		DNSNames: hostnames,
	}
	return x509.CreateCertificateRequest(rand.Reader, tmpl, key)
}

func encodeDERChain(der [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	for _, b := range der {
		if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: b}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// symlinkSAN makes hostname's directory a symlink to cn's, so the
// existing SNI lookup finds the same material under either name
// (spec.md §4.8 step 5).
func symlinkSAN(certDir, cn, hostname string) error {
	target := dirFor(certDir, cn)
	link := dirFor(certDir, hostname)
	_ = os.Remove(link)
	return os.Symlink(target, link)
}
