package tls

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-storage-blob-go/azblob"
	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/vesper-home/hub/metrics"
)

// BackupStore is an optional collaborator the certificate manager
// notifies whenever a certificate is added (including the minted box
// certificate), replicating that hostname's record off-box (SPEC_FULL
// §4.9). Reload and RemoveCertificate do not notify it. Failures are
// logged and never block the primary on-disk operation.
type BackupStore interface {
	Name() string
	Put(ctx context.Context, rec Record) error
}

// GCSBackupStore replicates certificate material into a Google Cloud
// Storage bucket, one object per hostname per file.
type GCSBackupStore struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSBackupStore(client *storage.Client, bucket, prefix string) *GCSBackupStore {
	return &GCSBackupStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *GCSBackupStore) Name() string { return "gcs:" + s.bucket }

func (s *GCSBackupStore) Put(ctx context.Context, rec Record) error {
	bkt := s.client.Bucket(s.bucket)
	if err := writeGCSObject(ctx, bkt, s.objectName(rec.Hostname, certFilename), rec.CertPEM); err != nil {
		return err
	}
	if err := writeGCSObject(ctx, bkt, s.objectName(rec.Hostname, privkeyFilename), rec.KeyPEM); err != nil {
		return err
	}
	if rec.ChainPEM != nil {
		if err := writeGCSObject(ctx, bkt, s.objectName(rec.Hostname, fullchainFilename), rec.ChainPEM); err != nil {
			return err
		}
	}
	return nil
}

func (s *GCSBackupStore) objectName(hostname, file string) string {
	if s.prefix == "" {
		return hostname + "/" + file
	}
	return s.prefix + "/" + hostname + "/" + file
}

func writeGCSObject(ctx context.Context, bkt *storage.BucketHandle, name string, data []byte) error {
	w := bkt.Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// AzureBackupStore replicates certificate material into an Azure Blob
// Storage container, mirroring GCSBackupStore's layout so the two
// stores are interchangeable from the certificate manager's point of
// view.
type AzureBackupStore struct {
	containerURL azblob.ContainerURL
	prefix       string
}

func NewAzureBackupStore(accountName, accountKey, containerName, prefix string) (*AzureBackupStore, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", accountName, containerName))
	if err != nil {
		return nil, err
	}
	return &AzureBackupStore{
		containerURL: azblob.NewContainerURL(*u, pipeline),
		prefix:       prefix,
	}, nil
}

func (s *AzureBackupStore) Name() string { return "azure:" + s.containerURL.URL().Host }

func (s *AzureBackupStore) Put(ctx context.Context, rec Record) error {
	if err := s.upload(ctx, rec.Hostname, certFilename, rec.CertPEM); err != nil {
		return err
	}
	if err := s.upload(ctx, rec.Hostname, privkeyFilename, rec.KeyPEM); err != nil {
		return err
	}
	if rec.ChainPEM != nil {
		if err := s.upload(ctx, rec.Hostname, fullchainFilename, rec.ChainPEM); err != nil {
			return err
		}
	}
	return nil
}

func (s *AzureBackupStore) upload(ctx context.Context, hostname, file string, data []byte) error {
	name := hostname + "/" + file
	if s.prefix != "" {
		name = s.prefix + "/" + name
	}
	blobURL := s.containerURL.NewBlockBlobURL(name)
	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{})
	return err
}

// replicate fans a record out to every configured backup store
// concurrently via errgroup, logging (not returning) any per-store
// failure and counting it against m. One slow or failing store must
// never delay or suppress the others' replication.
func replicate(ctx context.Context, stores []BackupStore, rec Record, m *metrics.TLS) {
	var g errgroup.Group
	for _, s := range stores {
		s := s
		g.Go(func() error {
			if err := s.Put(ctx, rec); err != nil {
				glog.Warningf("backup store %s: %v", s.Name(), err)
				if m != nil {
					m.BackupError(s.Name())
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}
