package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "shots"})
	require.NoError(t, err)
	return store
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{Bucket: "shots"})
	assert.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	_, err = New(client, Config{})
	assert.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/b/shots/o")
		assert.Equal(t, "screenshots/example.com/abc.png", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "png-bytes")
		assert.Contains(t, string(body), "image/png")

		fmt.Fprintln(w, `{"name":"screenshots/example.com/abc.png","bucket":"shots"}`)
	})

	store := newTestStore(t, handler)
	uri, err := store.PutObject(context.Background(), "screenshots/example.com/abc.png", "image/png", bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "gs://shots/screenshots/example.com/abc.png", uri)
	assert.NoError(t, store.Close())
}

func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store := newTestStore(t, handler)
	_, err := store.PutObject(context.Background(), "a.png", "image/png", bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}

func TestPutObjectEmptyPath(t *testing.T) {
	store := newTestStore(t, http.NotFoundHandler())
	_, err := store.PutObject(context.Background(), "", "image/png", bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestOpenMissingBucket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, `{"error":{"code":404,"message":"Not Found"}}`)
	}))
	defer server.Close()

	_, err := Open(context.Background(), Config{Bucket: "missing"}, nil,
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	assert.Error(t, err)
}
