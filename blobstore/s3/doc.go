// Package s3 provides an Amazon S3 implementation of the blobstore.Store interface.
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "kmeanslab/")
//
// Writes go through the multipart upload manager so large snapshots are
// split into parts transparently.
package s3
