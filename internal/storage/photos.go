// Package storage keeps date and couple photos in an S3-compatible bucket
// and hands out their public URLs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

// MaxPhotoSize is the largest accepted upload.
const MaxPhotoSize = 5 << 20

var (
	ErrNotImage   = errors.New("file must be an image")
	ErrTooLarge   = errors.New("file must be less than 5MB")
	ErrEmpty      = errors.New("no file provided")
	ErrInvalidURL = errors.New("invalid photo url")
)

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

type Photos struct {
	api     ObjectAPI
	bucket  string
	baseURL string
	now     func() time.Time
}

func New(api ObjectAPI, bucket, publicBaseURL string) *Photos {
	return &Photos{
		api:     api,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		now:     time.Now,
	}
}

// NewS3 builds Photos on a static-credential S3 client with a custom
// endpoint (MinIO and friends), using path-style addressing.
func NewS3(ctx context.Context, cfg Config) (*Photos, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	base := cfg.PublicBaseURL
	if base == "" {
		base = cfg.Endpoint
	}
	return New(client, cfg.Bucket, base), nil
}

// Upload stores an image under "<owner>/<unixmillis>.<ext>" and returns
// its public URL. The content type is sniffed, not trusted from the client.
func (p *Photos) Upload(ctx context.Context, owner, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxPhotoSize {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", ErrNotImage
	}

	key := ObjectKey(owner, filename, mt.Extension(), p.now())
	_, err = p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mt.String()),
		CacheControl:  aws.String("max-age=3600"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return p.PublicURL(key), nil
}

func (p *Photos) Delete(ctx context.Context, photoURL string) error {
	key, err := p.KeyFromURL(photoURL)
	if err != nil {
		return err
	}
	if _, err := p.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (p *Photos) PublicURL(key string) string {
	return p.baseURL + "/" + p.bucket + "/" + key
}

// KeyFromURL extracts the object key following "/<bucket>/".
func (p *Photos) KeyFromURL(photoURL string) (string, error) {
	u, err := url.Parse(photoURL)
	if err != nil {
		return "", ErrInvalidURL
	}
	_, key, ok := strings.Cut(u.Path, "/"+p.bucket+"/")
	if !ok || key == "" || strings.Contains(key, "..") {
		return "", ErrInvalidURL
	}
	return key, nil
}

// TrailingKey reads an "<owner>/<file>" key from the last two path
// segments of photoURL. It serves callers that have no bucket at hand.
func TrailingKey(photoURL string) (string, error) {
	u, err := url.Parse(photoURL)
	if err != nil || u.Path == "" {
		return "", ErrInvalidURL
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", ErrInvalidURL
	}
	owner, file := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || file == "" || owner == ".." || strings.Contains(file, "..") {
		return "", ErrInvalidURL
	}
	return owner + "/" + file, nil
}

// OwnedBy reports whether key lives under owner's prefix.
func OwnedBy(key, owner string) bool {
	return owner != "" && strings.HasPrefix(key, owner+"/")
}

// ObjectKey prefers the sniffed extension and falls back to the
// client-supplied filename's.
func ObjectKey(owner, filename, sniffedExt string, now time.Time) string {
	ext := strings.TrimPrefix(sniffedExt, ".")
	if ext == "" {
		if i := strings.LastIndexByte(filename, '.'); i >= 0 && i < len(filename)-1 {
			ext = strings.ToLower(filename[i+1:])
		}
	}
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%d.%s", owner, now.UnixMilli(), ext)
}
