package fileio

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
)

// ObjectStore is a FileIO backed by an S3-compatible object store via
// minio-go. Object stores offer no atomic create-if-absent primitive and
// only eventually-consistent listing, so CreateExclusive here is
// best-effort (check-then-put) and commit callers are expected to pair it
// with an external Lock.
type ObjectStore struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

func NewObjectStore(client *minio.Client, bucket string, logger zerolog.Logger) *ObjectStore {
	return &ObjectStore{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("component", "fileio.objectstore").Str("bucket", bucket).Logger(),
	}
}

func (o *ObjectStore) IsObjectStore() bool { return true }

func (o *ObjectStore) key(path string) string {
	return strings.TrimPrefix(path, "/")
}

func (o *ObjectStore) Open(path string) (io.ReadCloser, error) {
	obj, err := o.client.GetObject(context.Background(), o.bucket, o.key(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, wrapIOError(err, path)
	}
	if _, err := obj.Stat(); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, errNotFound(path)
		}
		return nil, wrapIOError(err, path)
	}
	return obj, nil
}

func (o *ObjectStore) Create(path string) (io.WriteCloser, error) {
	return &objectWriter{store: o, path: path}, nil
}

func (o *ObjectStore) CreateExclusive(path string) (io.WriteCloser, error) {
	exists, err := o.Exists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errAlreadyExists(path)
	}
	return &objectWriter{store: o, path: path, exclusive: true}, nil
}

func (o *ObjectStore) Delete(path string) error {
	if err := o.client.RemoveObject(context.Background(), o.bucket, o.key(path), minio.RemoveObjectOptions{}); err != nil {
		return wrapIOError(err, path)
	}
	return nil
}

func (o *ObjectStore) Exists(path string) (bool, error) {
	_, err := o.client.StatObject(context.Background(), o.bucket, o.key(path), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return false, nil
	}
	return false, wrapIOError(err, path)
}

func (o *ObjectStore) List(path string) ([]FileStatus, error) {
	prefix := o.key(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out []FileStatus
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: false}) {
		if obj.Err != nil {
			return nil, wrapIOError(obj.Err, path)
		}
		out = append(out, FileStatus{
			Path:    "/" + strings.TrimSuffix(obj.Key, "/"),
			Size:    obj.Size,
			ModTime: obj.LastModified,
			IsDir:   strings.HasSuffix(obj.Key, "/"),
		})
	}
	return out, nil
}

// MkdirAll is a no-op: object stores have no directories, only key prefixes.
func (o *ObjectStore) MkdirAll(path string) error { return nil }

type objectWriter struct {
	store     *ObjectStore
	path      string
	exclusive bool
	buf       bytes.Buffer
}

func (w *objectWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *objectWriter) Close() error {
	if w.exclusive {
		exists, err := w.store.Exists(w.path)
		if err != nil {
			return err
		}
		if exists {
			return errAlreadyExists(w.path)
		}
	}
	_, err := w.store.client.PutObject(
		context.Background(),
		w.store.bucket,
		w.store.key(w.path),
		bytes.NewReader(w.buf.Bytes()),
		int64(w.buf.Len()),
		minio.PutObjectOptions{},
	)
	if err != nil {
		return wrapIOError(err, w.path)
	}
	return nil
}
