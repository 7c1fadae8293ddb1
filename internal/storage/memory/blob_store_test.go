package memory

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "aircraft/a1/abc.jpg", "image/jpeg", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://aircraft/a1/abc.jpg", uri)

	payload[0] = 'C'
	stored, contentType, ok := store.Object("aircraft/a1/abc.jpg")
	require.True(t, ok)
	require.Equal(t, "content", string(stored))
	require.Equal(t, "image/jpeg", contentType)

	stored[0] = 'X'
	again, _, _ := store.Object("aircraft/a1/abc.jpg")
	require.Equal(t, "content", string(again))
}

func TestBlobStoreDeleteObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), "a.png", "image/png", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	require.NoError(t, store.DeleteObject(context.Background(), "a.png"))
	_, _, ok := store.Object("a.png")
	require.False(t, ok)
	require.NoError(t, store.DeleteObject(context.Background(), "a.png"))
}

func TestBlobStoreRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.Error(t, err)
}

func TestBlobStoreHandler(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), "aircraft/a1/abc.png", "image/png", bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	h := store.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/aircraft/a1/abc.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, "png", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/aircraft/a1/missing.png", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/aircraft/a1/abc.png", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
