// Package s3snapshot persists the user set as a JSON object in an
// S3-compatible bucket (AWS S3, MinIO, R2).
package s3snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/m3rciful/moexbot/internal/domain"
)

// Config selects the bucket and object holding the snapshot.
type Config struct {
	Endpoint       string `yaml:"endpoint" envconfig:"S3_ENDPOINT"`
	Region         string `yaml:"region" envconfig:"S3_REGION"`
	Bucket         string `yaml:"bucket" envconfig:"S3_BUCKET"`
	Key            string `yaml:"key" envconfig:"S3_KEY"`
	AccessKey      string `yaml:"access_key" envconfig:"S3_ACCESS_KEY"`
	SecretKey      string `yaml:"secret_key" envconfig:"S3_SECRET_KEY"`
	UseSSL         bool   `yaml:"use_ssl" envconfig:"S3_USE_SSL"`
	ForcePathStyle bool   `yaml:"force_path_style" envconfig:"S3_FORCE_PATH_STYLE"`
}

// objectAPI is the subset of *s3.Client the persister needs.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Persister stores users under one object key.
type Persister struct {
	api    objectAPI
	bucket string
	key    string
}

type snapshot struct {
	Version int           `json:"version"`
	Users   []domain.User `json:"users"`
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Persister, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3snapshot: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3snapshot: region is required")
	}
	if cfg.Key == "" {
		cfg.Key = "moexbot/users.json"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3snapshot: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return newWithAPI(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Key), nil
}

func newWithAPI(api objectAPI, bucket, key string) *Persister {
	return &Persister{api: api, bucket: bucket, key: key}
}

// Load returns no users when the object does not exist.
func (p *Persister) Load(ctx context.Context) ([]domain.User, error) {
	out, err := p.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3snapshot: get %s: %w", p.key, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3snapshot: read %s: %w", p.key, err)
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("s3snapshot: decode %s: %w", p.key, err)
	}
	return snap.Users, nil
}

// Save overwrites the object with the full user set.
func (p *Persister) Save(ctx context.Context, users []domain.User) error {
	raw, err := json.Marshal(snapshot{Version: 1, Users: users})
	if err != nil {
		return fmt.Errorf("s3snapshot: encode: %w", err)
	}
	_, err = p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(p.key),
		Body:          bytes.NewReader(raw),
		ContentLength: aws.Int64(int64(len(raw))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3snapshot: put %s: %w", p.key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}

func normaliseEndpoint(endpoint string, useSSL bool) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
