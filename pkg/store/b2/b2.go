// Package b2 implements store.Store against the Backblaze B2 native API,
// adapted from backathon's B2Storage: B2 bills per-API-call in tiers, so
// this client caches its account authorization and upload URL across calls
// and only re-authorizes when B2 tells it the token expired.
package b2

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/coldvault/coldvault/internal/telemetry"
	"github.com/coldvault/coldvault/pkg/store"
)

const (
	authorizeURL  = "https://api.backblazeb2.com/b2api/v2/b2_authorize_account"
	requestTimeout = 30 * time.Second
)

// Config holds the B2 account credentials and target bucket.
type Config struct {
	AccountID      string
	ApplicationKey string
	Bucket         string
}

// Store is a B2-backed implementation of store.Store.
type Store struct {
	cfg    Config
	client *http.Client

	mu         sync.Mutex
	apiURL     string
	authToken  string
	downloadURL string
	bucketID   string
	uploadURL  string
	uploadAuth string
}

// New returns a B2 store. Authorization happens lazily on first use.
func New(cfg Config) *Store {
	return &Store{cfg: cfg, client: &http.Client{Timeout: requestTimeout}}
}

type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("b2 store: %s (%d): %s", e.Code, e.Status, e.Message)
}

func (s *Store) authorize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authorizeURL, nil)
	if err != nil {
		return err
	}
	creds := base64.StdEncoding.EncodeToString([]byte(s.cfg.AccountID + ":" + s.cfg.ApplicationKey))
	req.Header.Set("Authorization", "Basic "+creds)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("b2 store: authorize: %w", err)
	}
	defer resp.Body.Close()

	var data struct {
		AuthorizationToken string `json:"authorizationToken"`
		APIURL             string `json:"apiUrl"`
		DownloadURL        string `json:"downloadUrl"`
		AllowedBucketID    string `json:"allowed.bucketId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("b2 store: authorize: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &apiError{Status: resp.StatusCode, Message: "authorize_account failed"}
	}

	s.mu.Lock()
	s.authToken = data.AuthorizationToken
	s.apiURL = data.APIURL
	s.downloadURL = data.DownloadURL
	s.uploadURL = ""
	s.uploadAuth = ""
	s.mu.Unlock()
	return nil
}

func (s *Store) callAPI(ctx context.Context, apiName string, body, out interface{}) error {
	s.mu.Lock()
	needAuth := s.authToken == "" || s.apiURL == ""
	s.mu.Unlock()
	if needAuth {
		if err := s.authorize(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("b2 store: marshal %s request: %w", apiName, err)
	}

	s.mu.Lock()
	apiURL, token := s.apiURL, s.authToken
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/b2api/v2/"+apiName, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("b2 store: call %s: %w", apiName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("b2 store: call %s: read response: %w", apiName, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Code == "expired_auth_token" {
			if err := s.authorize(ctx); err != nil {
				return err
			}
			return s.callAPI(ctx, apiName, body, out)
		}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.Unmarshal(raw, &apiErr)
		apiErr.Status = resp.StatusCode
		return &apiErr
	}

	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (s *Store) bucketIDFor(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.bucketID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var resp struct {
		Buckets []struct {
			BucketID   string `json:"bucketId"`
			BucketName string `json:"bucketName"`
		} `json:"buckets"`
	}
	if err := s.callAPI(ctx, "b2_list_buckets", map[string]string{"accountId": s.cfg.AccountID}, &resp); err != nil {
		return "", err
	}
	for _, b := range resp.Buckets {
		if b.BucketName == s.cfg.Bucket {
			s.mu.Lock()
			s.bucketID = b.BucketID
			s.mu.Unlock()
			return b.BucketID, nil
		}
	}
	return "", fmt.Errorf("b2 store: no such bucket %q", s.cfg.Bucket)
}

func (s *Store) getUploadURL(ctx context.Context) (string, string, error) {
	bucketID, err := s.bucketIDFor(ctx)
	if err != nil {
		return "", "", err
	}

	var resp struct {
		UploadURL          string `json:"uploadUrl"`
		AuthorizationToken string `json:"authorizationToken"`
	}
	if err := s.callAPI(ctx, "b2_get_upload_url", map[string]string{"bucketId": bucketID}, &resp); err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.uploadURL = resp.UploadURL
	s.uploadAuth = resp.AuthorizationToken
	s.mu.Unlock()
	return resp.UploadURL, resp.AuthorizationToken, nil
}

// retryAfterDelay parses a Retry-After header given in seconds, defaulting
// to one second when absent or unparseable.
func retryAfterDelay(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}

// Upload stores content under name, retrying transient upload-URL expiry and
// server errors with exponential backoff, as B2 recommends. A 429 response
// is handled separately: B2 asks callers to sleep for the Retry-After
// duration and then retry with backoff reset, rather than treating it as
// just another transient failure.
func (s *Store) Upload(ctx context.Context, name string, content io.Reader) (store.ObjectMetadata, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreUpload, "b2", name)
	defer span.End()

	data, err := io.ReadAll(content)
	if err != nil {
		return store.ObjectMetadata{}, fmt.Errorf("b2 store: read payload for %q: %w", name, err)
	}
	digest := sha1.Sum(data)
	sha1Hex := hex.EncodeToString(digest[:])

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second
	expBackoff.Multiplier = 2
	expBackoff.MaxInterval = 64 * time.Second
	attempt := 0

	op := func() error {
		attempt++
		s.mu.Lock()
		uploadURL, uploadAuth := s.uploadURL, s.uploadAuth
		s.mu.Unlock()
		if uploadURL == "" {
			var err error
			uploadURL, uploadAuth, err = s.getUploadURL(ctx)
			if err != nil {
				return backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", uploadAuth)
		req.Header.Set("X-Bz-File-Name", name)
		req.Header.Set("Content-Type", "b2/x-auto")
		req.Header.Set("X-Bz-Content-Sha1", sha1Hex)

		resp, err := s.client.Do(req)
		if err != nil {
			s.mu.Lock()
			s.uploadURL = ""
			s.mu.Unlock()
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfterDelay(resp.Header.Get("Retry-After"))
			telemetry.AddEvent(ctx, "b2.rate_limited", telemetry.Attempt(attempt), telemetry.RetryAfter(wait.Seconds()))
			raw, _ := io.ReadAll(resp.Body)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
			expBackoff.Reset()
			return fmt.Errorf("b2 store: upload %q: rate limited: %s", name, string(raw))
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode >= 500:
			s.mu.Lock()
			s.uploadURL = ""
			s.mu.Unlock()
			raw, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("b2 store: upload %q: %s", name, string(raw))
		default:
			raw, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("b2 store: upload %q: %s", name, string(raw)))
		}
	}

	policy := backoff.WithMaxRetries(expBackoff, 4) // 5 attempts in all
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		telemetry.RecordError(ctx, err)
		return store.ObjectMetadata{}, err
	}
	return store.ObjectMetadata{Size: int64(len(data)), SHA1: sha1Hex}, nil
}

// Download fetches the named object by its full file name.
func (s *Store) Download(ctx context.Context, name string) (io.ReadCloser, store.ObjectMetadata, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreDownload, "b2", name)
	defer span.End()

	s.mu.Lock()
	needAuth := s.authToken == "" || s.downloadURL == ""
	s.mu.Unlock()
	if needAuth {
		if err := s.authorize(ctx); err != nil {
			return nil, store.ObjectMetadata{}, err
		}
	}

	s.mu.Lock()
	downloadURL, token := s.downloadURL, s.authToken
	s.mu.Unlock()

	url := fmt.Sprintf("%s/file/%s/%s", downloadURL, s.cfg.Bucket, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, store.ObjectMetadata{}, err
	}
	req.Header.Set("Authorization", token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, store.ObjectMetadata{}, fmt.Errorf("b2 store: download %q: %w", name, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, store.ObjectMetadata{}, store.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, store.ObjectMetadata{}, fmt.Errorf("b2 store: download %q: %s", name, string(raw))
	}

	meta := store.ObjectMetadata{Size: resp.ContentLength, SHA1: resp.Header.Get("X-Bz-Content-Sha1")}
	return resp.Body, meta, nil
}

// Delete removes the named file's most recent version; older versions of the
// same name, if any, are left in place.
func (s *Store) Delete(ctx context.Context, name string) error {
	versions, err := s.listFileVersions(ctx, name, 1)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return store.ErrNotFound
	}

	for _, v := range versions {
		if v.FileName != name {
			continue
		}
		err := s.callAPI(ctx, "b2_delete_file_version", map[string]string{
			"fileName": v.FileName,
			"fileId":   v.FileID,
		}, nil)
		if err != nil {
			return fmt.Errorf("b2 store: delete %q: %w", name, err)
		}
	}
	return nil
}

type fileVersion struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

func (s *Store) listFileVersions(ctx context.Context, prefix string, maxCount int) ([]fileVersion, error) {
	bucketID, err := s.bucketIDFor(ctx)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Files []fileVersion `json:"files"`
	}
	err = s.callAPI(ctx, "b2_list_file_names", map[string]interface{}{
		"bucketId":     bucketID,
		"prefix":       prefix,
		"maxFileCount": maxCount,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// List returns every file name under prefix, paging through B2's 1000-item
// response limit.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	bucketID, err := s.bucketIDFor(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	startFileName := ""
	for {
		var resp struct {
			Files []struct {
				FileName string `json:"fileName"`
			} `json:"files"`
			NextFileName *string `json:"nextFileName"`
		}

		req := map[string]interface{}{
			"bucketId":     bucketID,
			"prefix":       prefix,
			"maxFileCount": 1000,
		}
		if startFileName != "" {
			req["startFileName"] = startFileName
		}

		if err := s.callAPI(ctx, "b2_list_file_names", req, &resp); err != nil {
			return nil, err
		}
		for _, f := range resp.Files {
			names = append(names, f.FileName)
		}
		if resp.NextFileName == nil || *resp.NextFileName == "" {
			break
		}
		startFileName = *resp.NextFileName
	}
	return names, nil
}

var _ store.Store = (*Store)(nil)
