// Package repository is coldvault's interface to the remote object store
// and the local metadata cache together (spec.md §4, grounded on
// backathon's Repository class): PushObject and GetObject are the only two
// operations anything outside this package needs to durably create or
// retrieve a content-addressed Object.
package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coldvault/coldvault/internal/telemetry"
	"github.com/coldvault/coldvault/internal/telemetry/metrics"
	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/codec"
	"github.com/coldvault/coldvault/pkg/coldvaulterr"
	"github.com/coldvault/coldvault/pkg/cryptoframe"
	"github.com/coldvault/coldvault/pkg/store"
)

// Repository ties a metadata Cache to a remote Store, applying the
// compression/encryption options passed to New to every object that
// crosses the boundary between them.
type Repository struct {
	cache *cache.Cache
	store store.Store

	macKey    []byte
	frameOpts cryptoframe.Options
	metrics   *metrics.Collectors
}

// Option configures optional Repository behavior beyond the required
// cache/store/macKey/frameOpts.
type Option func(*Repository)

// WithMetrics wires Prometheus collectors into the repository, exposed
// over the optional status API server when enabled.
func WithMetrics(m *metrics.Collectors) Option {
	return func(r *Repository) { r.metrics = m }
}

// New constructs a Repository. macKey may be nil (plain SHA-256
// addressing); frameOpts controls compression/encryption of uploaded
// bytes and must be populated consistently with macKey (an encrypted
// repository always keys its addresses).
func New(c *cache.Cache, s store.Store, macKey []byte, frameOpts cryptoframe.Options, opts ...Option) *Repository {
	r := &Repository{cache: c, store: s, macKey: macKey, frameOpts: frameOpts}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithCache returns a Repository identical to r but bound to a different
// cache connection, so a backup worker goroutine can operate its own SQLite
// connection instead of sharing the dispatcher's (spec.md §5/§9: the cache
// database connection must not cross the worker boundary).
func (r *Repository) WithCache(c *cache.Cache) *Repository {
	clone := *r
	clone.cache = c
	return &clone
}

// ChildRef names one child dependency of a pushed object. Name is set for
// tree entries (the child's filename, carried for search indexing) and nil
// for an inode's chunklist entries.
type ChildRef struct {
	ObjID []byte
	Name  []byte
}

// PushObject durably stores payload as a new Object, linking it to children
// via ObjectRelation rows. If an object with the same content address
// already exists, neither the cache row nor the remote upload is repeated —
// content-addressing makes this push idempotent, mirroring backathon's
// push_object. The Object row, its relations, and the remote upload all
// commit or roll back together: spec.md §4.7 forbids a cache row surviving
// a failed or un-attempted upload, so the insert happens inside the same
// BEGIN IMMEDIATE transaction that the upload's success gates the commit of.
func (r *Repository) PushObject(ctx context.Context, typ codec.Type, payload []byte, children []ChildRef) (*cache.Object, error) {
	ctx, span := telemetry.StartPushSpan(ctx, string(typ), len(payload))
	defer span.End()

	objID := codec.DeriveAddress(payload, r.macKey)

	existing, err := r.cache.GetObject(ctx, objID)
	if err == nil {
		if err := r.verifyChildrenMatch(ctx, objID, children); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if !coldvaulterr.IsNotFound(err) {
		return nil, err
	}

	framed, err := cryptoframe.Frame(payload, r.frameOpts)
	if err != nil {
		return nil, coldvaulterr.Wrap(coldvaulterr.CodeCorruption, "frame payload for upload", err)
	}

	key := codec.ObjectKey(objID)
	dedupedChildren := dedupe(children)
	obj := &cache.Object{
		ObjID:            objID,
		Type:             string(typ),
		Payload:          payload,
		UploadedSize:     int64Ptr(int64(len(framed))),
		FileSize:         int64Ptr(int64(len(payload))),
		LastModifiedTime: int64Ptr(time.Now().Unix()),
	}

	err = r.cache.WithImmediateTx(ctx, func(tx *cache.ImmediateTx) error {
		if err := r.cache.PutObjectTx(ctx, tx, obj); err != nil {
			return err
		}
		for _, child := range dedupedChildren {
			if err := r.cache.AddRelationTx(ctx, tx, objID, child.ObjID, child.Name); err != nil {
				return err
			}
		}

		meta, err := r.store.Upload(ctx, key, bytes.NewReader(framed))
		if err != nil {
			return coldvaulterr.Wrap(coldvaulterr.CodeTransientIO, fmt.Sprintf("upload object %s", objID.Hex()), err)
		}
		if meta.Size != 0 && meta.Size != int64(len(framed)) {
			return coldvaulterr.New(coldvaulterr.CodeCorruption,
				fmt.Sprintf("object %s: store reported %d bytes uploaded, expected %d", objID.Hex(), meta.Size, len(framed)))
		}
		if r.metrics != nil {
			r.metrics.BytesUploaded.Add(float64(len(framed)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return obj, nil
}

func int64Ptr(v int64) *int64 {
	return &v
}

// verifyChildrenMatch is the sanity check backathon's push_object performs
// when an object already exists: the caller's children must match the
// object's recorded relations, or the database and the in-flight backup
// have disagreed about content addressing, which is a contract violation.
func (r *Repository) verifyChildrenMatch(ctx context.Context, objID []byte, children []ChildRef) error {
	rels, err := r.cache.ChildrenOfObject(ctx, objID)
	if err != nil {
		return err
	}
	want := dedupe(children)
	if len(rels) != len(want) {
		return coldvaulterr.New(coldvaulterr.CodeContractViolation,
			fmt.Sprintf("object %x children mismatch: cache has %d, caller supplied %d", objID, len(rels), len(want)))
	}
	have := make(map[string]bool, len(rels))
	for _, rel := range rels {
		have[string(rel.ChildID)] = true
	}
	for _, c := range want {
		if !have[string(c.ObjID)] {
			return coldvaulterr.New(coldvaulterr.CodeContractViolation,
				fmt.Sprintf("object %x missing expected child relation", objID))
		}
	}
	return nil
}

// GetObject retrieves and verifies an object's payload by address,
// decrypting and decompressing it and confirming its re-derived address
// matches objID before returning. A mismatch means the remote store
// returned corrupted or tampered data.
func (r *Repository) GetObject(ctx context.Context, objID []byte) ([]byte, error) {
	ctx, span := telemetry.StartGetSpan(ctx, telemetry.FormatObjID(objID))
	defer span.End()

	key := codec.ObjectKey(objID)
	rc, meta, err := r.store.Download(ctx, key)
	if err != nil {
		telemetry.RecordError(ctx, err)
		if errors.Is(err, store.ErrNotFound) {
			return nil, coldvaulterr.Wrap(coldvaulterr.CodeNotFound, fmt.Sprintf("object %x", objID), err)
		}
		return nil, coldvaulterr.Wrap(coldvaulterr.CodeTransientIO, fmt.Sprintf("download object %x", objID), err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, coldvaulterr.Wrap(coldvaulterr.CodeTransientIO, fmt.Sprintf("read object %x", objID), err)
	}
	if meta.Size != 0 && meta.Size != int64(buf.Len()) {
		return nil, coldvaulterr.New(coldvaulterr.CodeCorruption,
			fmt.Sprintf("object %x: downloaded %d bytes, store reported %d", objID, buf.Len(), meta.Size))
	}
	if r.metrics != nil {
		r.metrics.BytesDownloaded.Add(float64(buf.Len()))
	}

	payload, err := cryptoframe.Unframe(buf.Bytes(), r.frameOpts)
	if err != nil {
		return nil, coldvaulterr.Wrap(coldvaulterr.CodeCorruption, fmt.Sprintf("unframe object %x", objID), err)
	}

	digest := codec.DeriveAddress(payload, r.macKey)
	if !codec.Equal(digest, objID) {
		return nil, coldvaulterr.ErrCorruptedRepository
	}

	return payload, nil
}

// PutSnapshot uploads a snapshot index object (spec.md §3) to
// "snapshots/{uuid}" and records it in the cache.
func (r *Repository) PutSnapshot(ctx context.Context, path []byte, rootID []byte, timestamp int64, uuid string) (*cache.Snapshot, error) {
	payload, err := codec.EncodeSnapshot(timestamp, rootID, path)
	if err != nil {
		return nil, fmt.Errorf("repository: encode snapshot: %w", err)
	}

	framed, err := cryptoframe.Frame(payload, r.frameOpts)
	if err != nil {
		return nil, coldvaulterr.Wrap(coldvaulterr.CodeCorruption, "frame snapshot for upload", err)
	}

	key := "snapshots/" + uuid
	if _, err := r.store.Upload(ctx, key, bytes.NewReader(framed)); err != nil {
		return nil, coldvaulterr.Wrap(coldvaulterr.CodeTransientIO, "upload snapshot", err)
	}

	return r.cache.CreateSnapshot(ctx, path, rootID, timestamp)
}

func dedupe(children []ChildRef) []ChildRef {
	seen := make(map[string]bool, len(children))
	out := make([]ChildRef, 0, len(children))
	for _, c := range children {
		k := string(c.ObjID)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}
