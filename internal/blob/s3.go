package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joshp123/omhome/internal/config"
)

// S3Store keeps documents as objects under a key prefix.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3Store(cfg config.BlobConfig) (*S3Store, error) {
	if !cfg.Enabled() || cfg.AccessKeyFile == "" || cfg.SecretKeyFile == "" {
		return nil, fmt.Errorf("blob store needs endpoint, bucket and key files")
	}
	creds, err := fileCredentials(cfg.AccessKeyFile, cfg.SecretKeyFile)
	if err != nil {
		return nil, err
	}
	host, secure, err := parseEndpoint(strings.TrimSpace(cfg.Endpoint))
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{Creds: creds, Secure: secure, Region: cfg.Region})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = config.DefaultBlobPrefix
	}
	return &S3Store{client: client, bucket: strings.TrimSpace(cfg.Bucket), prefix: prefix}, nil
}

func fileCredentials(accessKeyFile, secretKeyFile string) (*credentials.Credentials, error) {
	accessKey, err := config.ReadSecretFile(accessKeyFile)
	if err != nil {
		return nil, fmt.Errorf("blob access key: %w", err)
	}
	secretKey, err := config.ReadSecretFile(secretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("blob secret key: %w", err)
	}
	return credentials.NewStaticV4(accessKey, secretKey, ""), nil
}

func (s *S3Store) Load(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translate(err)
	}
	return data, nil
}

func (s *S3Store) Save(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"generator": "omhome"},
	})
	return translate(err)
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix + "/" + prefix}) {
		if obj.Err != nil {
			return nil, translate(obj.Err)
		}
		if name, ok := s.name(obj.Key); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	return translate(s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{}))
}

func (s *S3Store) key(name string) string {
	return path.Join(s.prefix, name+extension)
}

// name reverses key for direct children of the prefix.
func (s *S3Store) name(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, s.prefix+"/")
	if !ok || strings.Contains(rest, "/") || !strings.HasSuffix(rest, extension) {
		return "", false
	}
	return strings.TrimSuffix(rest, extension), true
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}

// parseEndpoint accepts a bare host (TLS) or an http(s) URL.
func parseEndpoint(raw string) (string, bool, error) {
	if !strings.Contains(raw, "://") {
		return raw, true, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("blob endpoint: %w", err)
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false, fmt.Errorf("blob endpoint %q: want host or http(s) URL", raw)
	}
	return u.Host, u.Scheme == "https", nil
}
