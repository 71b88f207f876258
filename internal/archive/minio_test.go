package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	exists  bool
	made    []string
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func (f *fakeObjectStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, nil
}

func (f *fakeObjectStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	f.exists = true
	return nil
}

func (f *fakeObjectStore) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(data)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
		f.types = map[string]string{}
	}
	f.objects[bucket+"/"+key] = data
	f.types[bucket+"/"+key] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestEnsureBucket(t *testing.T) {
	fake := &fakeObjectStore{}
	s := newStore(fake, "artifacts", nil)

	require.NoError(t, s.ensureBucket(context.Background()))
	require.NoError(t, s.ensureBucket(context.Background()))
	assert.Equal(t, []string{"artifacts"}, fake.made)
}

func TestPut(t *testing.T) {
	fake := &fakeObjectStore{exists: true}
	s := newStore(fake, "artifacts", nil)

	require.NoError(t, s.Put(context.Background(), "returns/run-1/a.csv.gz", []byte("zipped"), "application/gzip"))
	assert.Equal(t, []byte("zipped"), fake.objects["artifacts/returns/run-1/a.csv.gz"])
	assert.Equal(t, "application/gzip", fake.types["artifacts/returns/run-1/a.csv.gz"])
}

func TestPut_Error(t *testing.T) {
	fake := &fakeObjectStore{putErr: errors.New("access denied")}
	s := newStore(fake, "artifacts", nil)

	err := s.Put(context.Background(), "k", []byte("x"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put artifacts/k")
}
