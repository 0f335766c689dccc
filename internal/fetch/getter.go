package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/internal/config"
)

// Getter opens the body of a URL for one scheme.
type Getter interface {
	Get(ctx context.Context, u *url.URL) (io.ReadCloser, error)
}

// HTTPGetter fetches http and https URLs.
type HTTPGetter struct {
	Client    *http.Client
	UserAgent string
}

func (g *HTTPGetter) Get(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if g.UserAgent != "" {
		req.Header.Set("User-Agent", g.UserAgent)
	}
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", u.Redacted())
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, errors.NewNotFound("source", u.Redacted())
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", u.Redacted(), resp.Status)
	}
	return resp.Body, nil
}

// FileGetter opens file:// URLs and bare paths.
type FileGetter struct{}

func (FileGetter) Get(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	p := u.Path
	f, err := os.Open(filepath.FromSlash(p))
	if os.IsNotExist(err) {
		return nil, errors.NewNotFound("source", p)
	}
	if err != nil {
		return nil, errors.NewIO("open", p, err)
	}
	return f, nil
}

// S3Getter fetches s3://bucket/key URLs from an S3-compatible endpoint.
type S3Getter struct {
	client *minio.Client
}

// NewS3Getter connects to the endpoint in cfg.
func NewS3Getter(cfg config.S3) (*S3Getter, error) {
	if !cfg.Configured() {
		return nil, errors.NewValidation("s3", "no endpoint configured (set CHRISTUS_S3_ENDPOINT)")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "s3 client")
	}
	return &S3Getter{client: client}, nil
}

func (g *S3Getter) Get(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, errors.NewValidation("url", "want s3://bucket/key, got "+u.String())
	}
	if _, err := g.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.Code == "NoSuchBucket" {
			return nil, errors.NewNotFound("source", u.String())
		}
		return nil, errors.Wrapf(err, "stat %s", u.String())
	}
	obj, err := g.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", u.String())
	}
	return obj, nil
}
