// Package blobstore stores named, immutable byte blobs such as encoded
// session snapshots.
//
// Store is the interface every backend implements. Implementations must be
// safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral services
//   - LocalStore: local filesystem with atomic writes
//   - CachingStore: read-through LRU in front of a remote store
//   - minio.Store: MinIO and other S3-compatible servers
//   - s3.Store: Amazon S3 with multipart uploads
//
// # Custom Implementations
//
//	type Store interface {
//	    Put(ctx, name, data) error          // Atomic write
//	    Get(ctx, name) ([]byte, error)
//	    Delete(ctx, name) error             // Missing blobs are not an error
//	    List(ctx, prefix) ([]string, error) // Sorted names
//	}
package blobstore
