// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/idsee/registry-backend/internal/config"
)

const maxEvidenceSize = 10 * 1024 * 1024

var allowedEvidenceTypes = []string{".pdf", ".jpg", ".jpeg", ".png"}

var ErrInvalidEvidence = newError(KindValidation, "INVALID_EVIDENCE", "evidence must be a pdf, jpg or png of at most 10MB")

// StorageService keeps verification evidence documents. Documents go to S3
// when credentials are configured and to a local directory otherwise.
type StorageService struct {
	s3Client *s3.S3
	config   config.AWSConfig
	now      func() time.Time
}

type StoredObject struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func NewStorageService(cfg config.AWSConfig) (*StorageService, error) {
	svc := &StorageService{config: cfg, now: time.Now}
	if cfg.AccessKeyID == "" || cfg.S3Bucket == "" {
		return svc, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	svc.s3Client = s3.New(sess)
	return svc, nil
}

// UsesS3 reports whether documents are written to the configured bucket.
func (s *StorageService) UsesS3() bool {
	return s.s3Client != nil
}

// StoreEvidence validates and stores one evidence document for userID.
func (s *StorageService) StoreEvidence(ctx context.Context, userID uuid.UUID, filename, contentType string, r io.Reader) (*StoredObject, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !isAllowedEvidence(ext) {
		return nil, ErrInvalidEvidence
	}

	body, err := io.ReadAll(io.LimitReader(r, maxEvidenceSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence: %w", err)
	}
	if len(body) == 0 || len(body) > maxEvidenceSize {
		return nil, ErrInvalidEvidence
	}

	key := s.evidenceKey(userID, ext)
	if s.s3Client != nil {
		_, err = s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.config.S3Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(body),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(int64(len(body))),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload to S3: %w", err)
		}
	} else {
		path := filepath.Join(s.config.LocalUploadDir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create upload directory: %w", err)
		}
		if err := os.WriteFile(path, body, 0o640); err != nil {
			return nil, fmt.Errorf("failed to write evidence: %w", err)
		}
	}

	return &StoredObject{
		Key:         key,
		Size:        int64(len(body)),
		ContentType: contentType,
	}, nil
}

// EvidenceURL returns a short-lived link to a stored document. Locally stored
// documents have no URL.
func (s *StorageService) EvidenceURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "", fmt.Errorf("S3 client not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

func (s *StorageService) evidenceKey(userID uuid.UUID, ext string) string {
	return fmt.Sprintf("evidence/%s/%s_%s%s",
		userID, s.now().UTC().Format("20060102"), uuid.New().String()[:8], ext)
}

func isAllowedEvidence(ext string) bool {
	for _, allowed := range allowedEvidenceTypes {
		if ext == allowed {
			return true
		}
	}
	return false
}
