package documents

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"luma-ledger/ledger-backend/pkg/storage"
)

type StorageProvider struct {
	s3     storage.S3Client
	bucket string
}

func NewStorageProvider(s3 storage.S3Client, bucket string) *StorageProvider {
	return &StorageProvider{
		s3:     s3,
		bucket: bucket,
	}
}

func (p *StorageProvider) Bucket() string {
	return p.bucket
}

func (p *StorageProvider) UploadToS3(ctx context.Context, key string, body io.Reader) error {
	return p.s3.Upload(ctx, p.bucket, key, body)
}

func (p *StorageProvider) DownloadFromS3(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return p.s3.Download(ctx, bucket, key)
}

// GenerateS3Key namespaces uploads by company; the document id keeps keys
// unique when the same file name is uploaded twice.
func (p *StorageProvider) GenerateS3Key(companyID, documentID uuid.UUID, fileName string) string {
	name := strings.ReplaceAll(filepath.Base(fileName), " ", "_")
	return fmt.Sprintf("companies/%s/documents/%s/%s", companyID, documentID, name)
}
