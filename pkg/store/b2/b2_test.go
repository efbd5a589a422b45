package b2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// preAuthorized returns a Store wired directly at srv's upload endpoint,
// bypassing b2_authorize_account/b2_get_upload_url so tests can drive
// Upload's retry behavior without reimplementing the B2 API.
func preAuthorized(srv *httptest.Server) *Store {
	return &Store{
		cfg:        Config{AccountID: "acct", ApplicationKey: "key", Bucket: "bucket"},
		client:     srv.Client(),
		bucketID:   "bucket-id",
		uploadURL:  srv.URL + "/upload",
		uploadAuth: "upload-token",
	}
}

func TestUploadRetriesAfter429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"code":"too_many_requests","message":"slow down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := preAuthorized(srv)
	meta, err := s.Upload(context.Background(), "objects/ab/ab3456", strings.NewReader("payload"))
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
	require.EqualValues(t, len("payload"), meta.Size)
	require.NotEmpty(t, meta.SHA1)
}

func TestUploadPermanentErrorDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"bad_request","message":"nope"}`))
	}))
	defer srv.Close()

	s := preAuthorized(srv)
	_, err := s.Upload(context.Background(), "objects/ab/ab3456", strings.NewReader("payload"))
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
