package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1714567890123)
	key := ObjectKey(42, now, ".jpg")
	assert.Regexp(t, regexp.MustCompile(`^42/1714567890123-[0-9a-f]{8}\.jpg$`), key)
	assert.NotEqual(t, key, ObjectKey(42, now, "jpg"), "keys at the same instant must differ")
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"", "/abs", "../x", "1/../../x", "1//x", `1\x`, "1/./x"} {
		assert.ErrorIs(t, validateKey(key), ErrInvalidKey, "key %q", key)
	}
	assert.NoError(t, validateKey("1/123-abc.jpg"))
}

func TestKeyFromURL(t *testing.T) {
	key, ok := KeyFromURL("/uploads/1/a.jpg", "/uploads/")
	assert.True(t, ok)
	assert.Equal(t, "1/a.jpg", key)

	_, ok = KeyFromURL("https://elsewhere/1/a.jpg", "/uploads")
	assert.False(t, ok)

	_, ok = KeyFromURL("/uploads/../etc/passwd", "/uploads")
	assert.False(t, ok)
}

func TestLocalPutServeDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(filepath.Join(dir, "uploads"), "/uploads")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Put(ctx, "7/1-abc.jpg", []byte("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/7/1-abc.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "uploads", "7", "1-abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	srv := httptest.NewServer(http.StripPrefix("/uploads", store.Handler()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/uploads/7/1-abc.jpg")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jpeg bytes", string(body))

	resp, err = http.Get(srv.URL + "/uploads/7/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, store.Delete(ctx, "7/1-abc.jpg"))
	require.NoError(t, store.Delete(ctx, "7/1-abc.jpg"), "deleting a missing object is not an error")
	_, err = os.Stat(filepath.Join(dir, "uploads", "7", "1-abc.jpg"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../escape.jpg", []byte("x"), "image/jpeg")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	deletes []*s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3PutAndDelete(t *testing.T) {
	fake := &fakeS3{}
	store := &S3{client: fake, bucket: "images", publicURL: "https://cdn.example.com/images/"}
	ctx := context.Background()

	url, err := store.Put(ctx, "3/9-abc.jpg", []byte("data"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/images/3/9-abc.jpg", url)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "images", *fake.puts[0].Bucket)
	assert.Equal(t, "3/9-abc.jpg", *fake.puts[0].Key)
	assert.Equal(t, "image/jpeg", *fake.puts[0].ContentType)

	require.NoError(t, store.Delete(ctx, "3/9-abc.jpg"))
	require.Len(t, fake.deletes, 1)
}

func TestS3PutError(t *testing.T) {
	store := &S3{client: &fakeS3{err: errors.New("boom")}, bucket: "images", publicURL: "https://cdn"}
	_, err := store.Put(context.Background(), "1/a.jpg", []byte("x"), "image/jpeg")
	assert.Error(t, err)
}

func TestNewS3Config(t *testing.T) {
	_, err := NewS3(S3Config{Bucket: "b"})
	assert.Error(t, err)

	s, err := NewS3(S3Config{Endpoint: "http://minio:9000", Bucket: "b", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/b", s.PublicURL())
}
