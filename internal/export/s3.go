package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/tyburd/mangabot/internal/manga"
)

// S3Config points the publisher at an S3 compatible bucket
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string // base URL the bucket is served from
	Prefix    string
}

// S3Publisher uploads standalone chapter pages to a public bucket
type S3Publisher struct {
	client    s3iface.S3API
	bucket    string
	publicURL string
	prefix    string
}

// NewS3Publisher creates the S3 session and publisher
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" || cfg.PublicURL == "" {
		return nil, fmt.Errorf("%w: s3 export needs a bucket and a public url", manga.ErrConfiguration)
	}

	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	return newS3Publisher(s3.New(sess), cfg), nil
}

func newS3Publisher(client s3iface.S3API, cfg S3Config) *S3Publisher {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "chapters"
	}
	return &S3Publisher{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		prefix:    prefix,
	}
}

// Publish implements Publisher
func (p *S3Publisher) Publish(ctx context.Context, chapter manga.Chapter, title string) (string, error) {
	if len(chapter.Pictures) == 0 {
		return "", errors.New("s3: chapter has no pictures")
	}

	key := p.prefix + "/" + pageKey(title, chapter.URL) + ".html"
	_, err := p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(RenderPage(title, chapter.Pictures)),
		ACL:          aws.String("public-read"),
		ContentType:  aws.String("text/html; charset=utf-8"),
		CacheControl: aws.String("public, max-age=86400"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return p.publicURL + "/" + key, nil
}
