package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for coldvault operations, following OpenTelemetry semantic
// convention style: a dotted namespace per concern.
const (
	// ========================================================================
	// Object / content-addressing attributes
	// ========================================================================
	AttrObjID   = "object.id"   // hex content address
	AttrObjType = "object.type" // inode, blob, tree, snapshot
	AttrSize    = "object.size" // payload size in bytes

	// ========================================================================
	// Filesystem attributes
	// ========================================================================
	AttrPath       = "fs.path"
	AttrEntryID    = "fs.entry_id"
	AttrMode       = "fs.mode"
	AttrEntryCount = "fs.entry_count"

	// ========================================================================
	// Snapshot attributes
	// ========================================================================
	AttrSnapshotID = "snapshot.id"
	AttrRootPath   = "snapshot.root_path"
	AttrTimestamp  = "snapshot.timestamp"

	// ========================================================================
	// Storage backend attributes
	// ========================================================================
	AttrStoreType  = "store.type"
	AttrStoreKey   = "store.key"
	AttrBucket     = "store.bucket"
	AttrRegion     = "store.region"
	AttrAttempt    = "store.attempt"
	AttrRetryAfter = "store.retry_after_seconds"

	// ========================================================================
	// Worker/pipeline attributes
	// ========================================================================
	AttrWorkerID  = "worker.id"
	AttrBatchSize = "pipeline.batch_size"
	AttrOperation = "pipeline.operation" // scan, backup, gc, restore

	// ========================================================================
	// Garbage collection attributes
	// ========================================================================
	AttrCandidates = "gc.candidates"
	AttrFreedBytes = "gc.freed_bytes"
)

// Span names for coldvault operations. Format: <component>.<action>.
const (
	SpanScanWalk     = "scanner.walk"
	SpanScanSettle   = "scanner.settle"
	SpanBackupRun    = "backup.run"
	SpanBackupEntry  = "backup.entry"
	SpanRestoreWalk  = "restore.walk"
	SpanGCSweep      = "gc.sweep"
	SpanGCMark       = "gc.mark"
	SpanRepoPush     = "repository.push_object"
	SpanRepoGet      = "repository.get_object"
	SpanRepoSnapshot = "repository.put_snapshot"
	SpanStoreUpload  = "store.upload"
	SpanStoreDownload = "store.download"
)

// ObjID returns an attribute for a content-addressed object's hex id.
func ObjID(hex string) attribute.KeyValue {
	return attribute.String(AttrObjID, hex)
}

// ObjType returns an attribute for an object's type (inode, blob, tree, snapshot).
func ObjType(t string) attribute.KeyValue {
	return attribute.String(AttrObjType, t)
}

// Size returns an attribute for a payload size in bytes.
func Size(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, n)
}

// Path returns an attribute for a filesystem path.
func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

// EntryID returns an attribute for an FSEntry row id.
func EntryID(id int64) attribute.KeyValue {
	return attribute.Int64(AttrEntryID, id)
}

// EntryCount returns an attribute for a batch's entry count.
func EntryCount(n int) attribute.KeyValue {
	return attribute.Int(AttrEntryCount, n)
}

// SnapshotID returns an attribute for a snapshot's UUID.
func SnapshotID(id string) attribute.KeyValue {
	return attribute.String(AttrSnapshotID, id)
}

// RootPath returns an attribute for a snapshot's backup root path.
func RootPath(p string) attribute.KeyValue {
	return attribute.String(AttrRootPath, p)
}

// StoreType returns an attribute for the storage backend kind (local, s3, b2).
func StoreType(t string) attribute.KeyValue {
	return attribute.String(AttrStoreType, t)
}

// StoreKey returns an attribute for an object's key within the store.
func StoreKey(key string) attribute.KeyValue {
	return attribute.String(AttrStoreKey, key)
}

// Bucket returns an attribute for a cloud bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// Region returns an attribute for a cloud region.
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// Attempt returns an attribute for a retry attempt number.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// RetryAfter returns an attribute for a rate-limit retry delay in seconds.
func RetryAfter(seconds float64) attribute.KeyValue {
	return attribute.Float64(AttrRetryAfter, seconds)
}

// WorkerID returns an attribute identifying a backup pool lane.
func WorkerID(id int) attribute.KeyValue {
	return attribute.Int(AttrWorkerID, id)
}

// BatchSize returns an attribute for the number of entries in one batch.
func BatchSize(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, n)
}

// Operation returns an attribute naming the top-level pipeline operation.
func Operation(op string) attribute.KeyValue {
	return attribute.String(AttrOperation, op)
}

// Candidates returns an attribute for the number of GC sweep candidates.
func Candidates(n int) attribute.KeyValue {
	return attribute.Int(AttrCandidates, n)
}

// FreedBytes returns an attribute for bytes reclaimed by a GC sweep.
func FreedBytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrFreedBytes, n)
}

// StartPushSpan starts a span for pushing one content-addressed object.
func StartPushSpan(ctx context.Context, objType string, size int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRepoPush, trace.WithAttributes(ObjType(objType), Size(int64(size))))
}

// StartGetSpan starts a span for retrieving one content-addressed object.
func StartGetSpan(ctx context.Context, objIDHex string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRepoGet, trace.WithAttributes(ObjID(objIDHex)))
}

// StartStoreSpan starts a span for a storage backend operation (upload or
// download), tagged with the backend type and object key.
func StartStoreSpan(ctx context.Context, spanName, storeType, key string) (context.Context, trace.Span) {
	return StartSpan(ctx, spanName, trace.WithAttributes(StoreType(storeType), StoreKey(key)))
}

// StartWorkerSpan starts a span for one backup pool lane processing a batch.
func StartWorkerSpan(ctx context.Context, workerID int, batchSize int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{WorkerID(workerID), BatchSize(batchSize)}, attrs...)
	return StartSpan(ctx, SpanBackupEntry, trace.WithAttributes(allAttrs...))
}

// FormatObjID renders a raw object id as the hex string traces carry.
func FormatObjID(id []byte) string {
	return fmt.Sprintf("%x", id)
}
