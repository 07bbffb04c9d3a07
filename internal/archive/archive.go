// Package archive persists vegetation-index responses to S3 or any
// S3-compatible store such as MinIO. Platform thumbnail URLs expire after
// about a day; archiving copies the PNGs next to a zstd-compressed JSON
// manifest so a series stays viewable.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/assemble"
	"github.com/agrisa/satellite-data-service/internal/gateway"
)

// DefaultExpiry is how long presigned manifest URLs stay valid.
const DefaultExpiry = 7 * 24 * time.Hour

const projectTag = "Project=agrisa-satellite"

// ObjectAPI is the subset of the S3 client the archive writes with.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner signs GET URLs for stored objects.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Fetcher downloads a rendered image URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Archiver writes responses under {kind}/{date}/{id}/ in one bucket.
type Archiver struct {
	objects ObjectAPI
	presign Presigner
	fetch   Fetcher
	exec    gateway.Executor
	bucket  string
	expiry  time.Duration
	encoder *zstd.Encoder
	now     func() time.Time
	newID   func() string
}

func New(objects ObjectAPI, presign Presigner, fetch Fetcher, exec gateway.Executor, bucket string) (*Archiver, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	return &Archiver{
		objects: objects,
		presign: presign,
		fetch:   fetch,
		exec:    exec,
		bucket:  bucket,
		expiry:  DefaultExpiry,
		encoder: enc,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Bucket returns the target bucket name.
func (a *Archiver) Bucket() string { return a.bucket }

type storedImage struct {
	thumbnail string
	preview   string
}

// Store copies every thumbnail of resp, writes the manifest and returns a
// reference to it. A thumbnail that cannot be copied is logged and left
// out; only a failed manifest write fails the call.
func (a *Archiver) Store(ctx context.Context, kind string, resp *assemble.Response) (*assemble.ArchiveRef, error) {
	now := a.now().UTC()
	base := fmt.Sprintf("%s/%s/%s", strings.ToLower(kind), now.Format("2006-01-02"), a.newID())

	tasks := make([]gateway.Task[storedImage], len(resp.Images))
	for i, img := range resp.Images {
		tasks[i] = func(ctx context.Context) (storedImage, error) {
			return a.storeThumbnail(ctx, base, img.ImageIndex, img.Outputs.Thumbnail)
		}
	}
	outcomes, err := gateway.Gather(ctx, a.exec, tasks, gateway.GatherOptions{ReturnErrors: true})
	if err != nil {
		return nil, err
	}

	ref := &assemble.ArchiveRef{Key: base + "/manifest.json.zst"}
	for i, o := range outcomes {
		if o.Err != nil {
			log.Warn().Err(o.Err).Int("imageIndex", resp.Images[i].ImageIndex).Msg("Thumbnail not archived")
			continue
		}
		ref.Thumbnails = append(ref.Thumbnails, o.Value.thumbnail)
		ref.Previews = append(ref.Previews, o.Value.preview)
	}

	manifest, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := a.put(ctx, ref.Key, a.encoder.EncodeAll(manifest, nil), "application/zstd"); err != nil {
		return nil, err
	}

	url, err := a.PresignedURL(ctx, ref.Key)
	if err != nil {
		return nil, err
	}
	ref.URL = url
	ref.ExpiresAt = now.Add(a.expiry).Format(time.RFC3339)

	log.Info().
		Str("bucket", a.bucket).
		Str("key", ref.Key).
		Int("manifestBytes", len(manifest)).
		Int("thumbnails", len(ref.Thumbnails)).
		Msg("Response archived")
	return ref, nil
}

func (a *Archiver) storeThumbnail(ctx context.Context, base string, index int, url string) (storedImage, error) {
	if url == "" {
		return storedImage{}, fmt.Errorf("image %d has no thumbnail", index)
	}
	data, contentType, err := a.fetch.Fetch(ctx, url)
	if err != nil {
		return storedImage{}, fmt.Errorf("fetch thumbnail %d: %w", index, err)
	}
	if contentType == "" {
		contentType = "image/png"
	}
	preview, err := Preview(data, PreviewSize)
	if err != nil {
		return storedImage{}, err
	}

	s := storedImage{
		thumbnail: fmt.Sprintf("%s/thumbnails/%03d.png", base, index),
		preview:   fmt.Sprintf("%s/previews/%03d.webp", base, index),
	}
	if err := a.put(ctx, s.thumbnail, data, contentType); err != nil {
		return storedImage{}, err
	}
	if err := a.put(ctx, s.preview, preview, "image/webp"); err != nil {
		return storedImage{}, err
	}
	return s, nil
}

func (a *Archiver) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := a.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
		Tagging:     aws.String(projectTag),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	log.Debug().Str("key", key).Int("bytes", len(body)).Msg("Object stored")
	return nil
}

// PresignedURL creates a GET URL for key valid for the archive expiry.
func (a *Archiver) PresignedURL(ctx context.Context, key string) (string, error) {
	result, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = a.expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
