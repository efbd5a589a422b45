package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across coldvault's pipeline
// stages (scan, backup, restore, gc). Use these keys consistently so log
// aggregation and querying stays uniform across commands.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Pipeline / operation
	// ========================================================================
	KeyOperation = "operation" // scan, backup, restore, gc
	KeyWorkerID  = "worker_id" // backup pool lane index
	KeyBatchSize = "batch_size"
	KeyEntryID   = "entry_id" // FSEntry row id

	// ========================================================================
	// Filesystem
	// ========================================================================
	KeyPath       = "path"        // full file/directory path
	KeyFilename   = "filename"    // file or directory name (basename)
	KeyParentPath = "parent_path" // parent directory path
	KeyMode       = "mode"        // file mode/permissions (unix-style)
	KeySize       = "size"        // file or object size in bytes

	// ========================================================================
	// Content addressing
	// ========================================================================
	KeyObjID   = "obj_id"   // hex content address
	KeyObjType = "obj_type" // inode, blob, tree, snapshot
	KeyChunks  = "chunks"   // number of chunks in a blob list

	// ========================================================================
	// Snapshot
	// ========================================================================
	KeySnapshotID = "snapshot_id"
	KeyRootPath   = "root_path"
	KeyTimestamp  = "timestamp"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // coldvaulterr code

	// ========================================================================
	// Storage backend
	// ========================================================================
	KeyStoreType  = "store_type"  // local, s3, b2
	KeyBucket     = "bucket"      // cloud bucket name (S3)
	KeyStoreKey   = "store_key"   // object key in the store
	KeyRegion     = "region"      // cloud region
	KeyAttempt    = "attempt"     // retry attempt number
	KeyMaxRetries = "max_retries" // maximum retry attempts
	KeyRetryAfter = "retry_after_seconds"

	// ========================================================================
	// Cache layer
	// ========================================================================
	KeyCacheState = "cache_state" // dirty, clean, uploading
	KeyDBPath     = "db_path"

	// ========================================================================
	// Garbage collection
	// ========================================================================
	KeyGCCandidates = "gc_candidates"
	KeyGCFreedBytes = "gc_freed_bytes"
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation returns a slog.Attr naming the top-level pipeline operation.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// WorkerID returns a slog.Attr identifying a backup pool lane.
func WorkerID(id int) slog.Attr {
	return slog.Int(KeyWorkerID, id)
}

// BatchSize returns a slog.Attr for the number of entries in one batch.
func BatchSize(n int) slog.Attr {
	return slog.Int(KeyBatchSize, n)
}

// EntryID returns a slog.Attr for an FSEntry row id.
func EntryID(id int64) slog.Attr {
	return slog.Int64(KeyEntryID, id)
}

// Path returns a slog.Attr for a file/directory path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Filename returns a slog.Attr for a filename (basename).
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// ParentPath returns a slog.Attr for a parent directory path.
func ParentPath(p string) slog.Attr {
	return slog.String(KeyParentPath, p)
}

// Mode returns a slog.Attr for a file mode/permissions bitmask.
func Mode(m uint32) slog.Attr {
	return slog.Any(KeyMode, m)
}

// Size returns a slog.Attr for a file or object size in bytes.
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// ObjID returns a slog.Attr for a content-addressed object id, formatted as hex.
func ObjID(id []byte) slog.Attr {
	return slog.String(KeyObjID, fmt.Sprintf("%x", id))
}

// ObjIDHex returns a slog.Attr for an object id already rendered as hex.
func ObjIDHex(hex string) slog.Attr {
	return slog.String(KeyObjID, hex)
}

// ObjType returns a slog.Attr for an object's type (inode, blob, tree, snapshot).
func ObjType(t string) slog.Attr {
	return slog.String(KeyObjType, t)
}

// Chunks returns a slog.Attr for the number of chunks in a blob list.
func Chunks(n int) slog.Attr {
	return slog.Int(KeyChunks, n)
}

// SnapshotID returns a slog.Attr for a snapshot's UUID.
func SnapshotID(id string) slog.Attr {
	return slog.String(KeySnapshotID, id)
}

// RootPath returns a slog.Attr for a snapshot's backup root path.
func RootPath(p string) slog.Attr {
	return slog.String(KeyRootPath, p)
}

// Timestamp returns a slog.Attr for a unix-seconds timestamp.
func Timestamp(ts int64) slog.Attr {
	return slog.Int64(KeyTimestamp, ts)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a coldvaulterr numeric/string code.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// StoreType returns a slog.Attr for the storage backend kind.
func StoreType(t string) slog.Attr {
	return slog.String(KeyStoreType, t)
}

// Bucket returns a slog.Attr for a cloud bucket name.
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// StoreKey returns a slog.Attr for an object's key within the store.
func StoreKey(key string) slog.Attr {
	return slog.String(KeyStoreKey, key)
}

// Region returns a slog.Attr for a cloud region.
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts configured.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// RetryAfter returns a slog.Attr for a rate-limit retry delay in seconds.
func RetryAfter(seconds float64) slog.Attr {
	return slog.Float64(KeyRetryAfter, seconds)
}

// CacheState returns a slog.Attr for a cache entry's state.
func CacheState(state string) slog.Attr {
	return slog.String(KeyCacheState, state)
}

// DBPath returns a slog.Attr for the cache database's file path.
func DBPath(path string) slog.Attr {
	return slog.String(KeyDBPath, path)
}

// GCCandidates returns a slog.Attr for the number of GC sweep candidates.
func GCCandidates(n int) slog.Attr {
	return slog.Int(KeyGCCandidates, n)
}

// GCFreedBytes returns a slog.Attr for bytes reclaimed by a GC sweep.
func GCFreedBytes(n int64) slog.Attr {
	return slog.Int64(KeyGCFreedBytes, n)
}
