// Package minio provides a blobstore.Store for MinIO and other
// S3-compatible object stores.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
//	    Secure: false,
//	})
//	store := kmminio.NewStore(client, "kmeanslab", "snapshots/")
package minio
