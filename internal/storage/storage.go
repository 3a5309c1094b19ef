package storage

import (
	"context"
	"io"
	"time"
)

// Package storage contains the artifact store abstraction backing page images
// and uploaded sources. Implementations target S3-compatible object stores.

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is a reusable, S3-compatible object storage client interface.
// Keys are caller-constructed strings; the client does not invent key
// structure. Uploads are atomic per object: either the object exists fully
// at the key or not at all.
type Storage interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Upload stores the file at localPath under key and returns its publicly
	// resolvable URL.
	Upload(ctx context.Context, localPath, key, contentType string) (string, error)
	// Download fetches the object at key into localPath.
	Download(ctx context.Context, key, localPath string) error
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL that can be used to download the object without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
