package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

// Store archives analysis reports as JSON objects in a MinIO bucket.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New connects to MinIO and makes sure the bucket exists.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// ReportKey is the object key of a record's report.
func ReportKey(rec patients.PatientRecord) string {
	owner := rec.DoctorID
	if owner == "" {
		owner = "anonymous"
	}
	return path.Join("reports", owner, string(rec.ID)+".json")
}

// Archive uploads the record, payload included, and returns its URL.
func (s *Store) Archive(ctx context.Context, rec patients.PatientRecord) (string, error) {
	if rec.Data == nil {
		return "", patients.ErrNoAnalysisData
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	key := ReportKey(rec)
	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"handle": rec.Handle,
		},
	})
	if err != nil {
		return "", err
	}

	// public URL; a private bucket needs a presigned URL instead
	u := s.client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, s.bucketName, key), nil
}

// Ping checks that the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}
