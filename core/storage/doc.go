// Package storage keeps sync run reports in S3 compatible object storage.
//
// Client is the slice of the MinIO API the report exporter needs, so the
// exporter can be tested against mocks.Client instead of a live server.
// NewClient builds the real implementation from Config:
//
//	client, err := storage.NewClient(cfg.Storage)
//	ok, err := client.BucketExists(ctx, cfg.Storage.Bucket)
package storage
