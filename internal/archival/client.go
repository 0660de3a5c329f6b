// Package archival archives product thumbnails to S3-compatible object
// storage (SPEC_FULL §2 item 14), adapted from the teacher's Cloudflare R2
// backup client: same AWS SDK v2 wiring, repurposed from database backups
// to per-product thumbnail persistence so scraped images survive the
// source site's own churn.
package archival

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Client wraps the AWS S3 SDK configured against Cloudflare R2's
// S3-compatible endpoint.
type Client struct {
	s3         *s3.Client
	uploader   *manager.Uploader
	bucket     string
	publicBase string
	log        zerolog.Logger
}

// Config carries the R2 credentials and bucket a Client archives into.
type Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// PublicBase, if set, is prefixed to an archived key to build the
	// durable URL handed back to callers (e.g. a custom domain fronting
	// the bucket). Falls back to the R2 API URL otherwise.
	PublicBase string
}

// New creates a Client configured for Cloudflare's R2 endpoint.
func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("archival: r2 credentials incomplete")
	}

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL:               fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID),
			HostnameImmutable: true,
			SigningRegion:     "auto",
		}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("archival: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.Concurrency = 3
	})

	publicBase := cfg.PublicBase
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", cfg.AccountID, cfg.Bucket)
	}

	return &Client{
		s3:         client,
		uploader:   uploader,
		bucket:     cfg.Bucket,
		publicBase: publicBase,
		log:        log.With().Str("component", "archival").Logger(),
	}, nil
}

// key derives a deterministic object key for one platform's product
// thumbnail, namespaced by day so a bucket listing stays browsable.
func key(platform, sourceURL string) string {
	return fmt.Sprintf("thumbnails/%s/%s/%s", platform, time.Now().UTC().Format("2006-01-02"), sanitize(sourceURL))
}

func sanitize(sourceURL string) string {
	out := make([]rune, 0, len(sourceURL))
	for _, r := range sourceURL {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// Archive uploads a thumbnail's bytes under a key derived from platform
// and the image's source URL, and returns the archived object's durable
// URL. Satisfies registry.Archiver.
func (c *Client) Archive(platform, sourceURL string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	k := key(platform, sourceURL)

	c.log.Debug().Str("platform", platform).Str("key", k).Int("bytes", len(data)).Msg("archiving thumbnail")

	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("archival: upload %s: %w", k, err)
	}

	return fmt.Sprintf("%s/%s", c.publicBase, k), nil
}
