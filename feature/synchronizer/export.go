package synchronizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"plaid-sync/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Exporter uploads run reports as JSON objects to a bucket.
type Exporter struct {
	client storage.Client
	bucket string
	prefix string
	keep   int
	logger *zap.Logger
}

// NewExporter creates a new exporter. keep bounds the number of reports
// left in the bucket after each upload; zero keeps everything.
func NewExporter(client storage.Client, bucket, prefix string, keep int, logger *zap.Logger) *Exporter {
	return &Exporter{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		keep:   keep,
		logger: logger,
	}
}

// Key returns the object name for a report:
// prefix/YYYY/MM/DD/HHMMSSZ-<run id>.json. Keys sort by start time, which
// List and Prune rely on.
func (e *Exporter) Key(r *Report) string {
	return path.Join(e.prefix, r.StartedAt.UTC().Format("2006/01/02/150405Z")+"-"+r.RunID+".json")
}

// Export uploads the report, creating the bucket when missing.
func (e *Exporter) Export(ctx context.Context, r *Report) (string, error) {
	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return "", fmt.Errorf("failed to check bucket %s: %w", e.bucket, err)
	}
	if !exists {
		e.logger.Info("Creating report bucket", zap.String("bucket", e.bucket))
		if err := e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{}); err != nil {
			return "", fmt.Errorf("failed to create bucket %s: %w", e.bucket, err)
		}
	}

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key := e.Key(r)
	_, err = e.client.PutObject(ctx, e.bucket, key, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	if e.keep > 0 {
		if err := e.Prune(ctx, e.keep); err != nil {
			e.logger.Warn("Failed to prune old reports", zap.Error(err))
		}
	}
	return key, nil
}

// List returns the stored report keys, oldest first.
func (e *Exporter) List(ctx context.Context) ([]string, error) {
	var keys []string
	for obj := range e.client.ListObjects(ctx, e.bucket, minio.ListObjectsOptions{Prefix: e.prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list reports: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, ".json") {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Fetch downloads and decodes one report.
func (e *Exporter) Fetch(ctx context.Context, key string) (*Report, error) {
	obj, err := e.client.GetObject(ctx, e.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &r, nil
}

// Prune removes all but the newest keep reports.
func (e *Exporter) Prune(ctx context.Context, keep int) error {
	keys, err := e.List(ctx)
	if err != nil {
		return err
	}
	if len(keys) <= keep {
		return nil
	}
	stale := keys[:len(keys)-keep]

	objectsCh := make(chan minio.ObjectInfo, len(stale))
	for _, key := range stale {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var failed []string
	for rerr := range e.client.RemoveObjects(ctx, e.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		failed = append(failed, rerr.ObjectName)
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to remove %d reports: %s", len(failed), strings.Join(failed, ", "))
	}
	e.logger.Debug("Pruned reports", zap.Int("removed", len(stale)))
	return nil
}
