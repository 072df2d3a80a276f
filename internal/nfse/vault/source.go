package vault

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Source reads keystore bytes from where a certificate record points.
type Source interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// FileSource reads keystores from the local filesystem, relative paths resolved against Dir.
type FileSource struct {
	Dir string
}

func (s FileSource) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := path
	if s.Dir != "" && !strings.HasPrefix(p, "/") {
		p = strings.TrimRight(s.Dir, "/") + "/" + p
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, &CertificateError{Reason: "read keystore file", Err: err}
	}
	return b, nil
}

// S3Config describes an S3-compatible object store holding keystores.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Source reads keystores addressed as s3://bucket/key.
type S3Source struct {
	client s3iface.S3API
}

func NewS3Source(cfg S3Config) (*S3Source, error) {
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("vault: s3 session: %w", err)
	}
	return &S3Source{client: s3.New(sess)}, nil
}

// NewS3SourceWithClient is used with a preconfigured or fake client.
func NewS3SourceWithClient(client s3iface.S3API) *S3Source {
	return &S3Source{client: client}
}

func (s *S3Source) Read(ctx context.Context, path string) ([]byte, error) {
	u, err := url.Parse(path)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return nil, &CertificateError{Reason: fmt.Sprintf("invalid s3 keystore path %q", path)}
	}
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return nil, &CertificateError{Reason: "fetch keystore from s3", Err: err}
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &CertificateError{Reason: "read keystore from s3", Err: err}
	}
	return b, nil
}

// MultiSource routes s3:// paths to S3 and everything else to Files.
type MultiSource struct {
	Files FileSource
	S3    Source
}

func (m MultiSource) Read(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(path, "s3://") {
		if m.S3 == nil {
			return nil, &CertificateError{Reason: "s3 keystore storage is not configured"}
		}
		return m.S3.Read(ctx, path)
	}
	return m.Files.Read(ctx, path)
}
