// Package codec implements the tag-length-value encoding for coldvault's
// object payload types (blob, inode, tree, snapshot, and the restore-only
// symlink) and the address
// derivation function used to name them. Payloads are encoded as msgpack
// arrays whose first element is a short ASCII tag string, mirroring the
// umsgpack-based wire format of the backathon/gbackup sources this format
// was distilled from — any implementation sharing a key must round-trip
// these exact structures byte-for-byte.
package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Type identifies which of the five payload shapes a decoded object holds.
type Type string

const (
	TypeBlob     Type = "blob"
	TypeInode    Type = "inode"
	TypeTree     Type = "tree"
	TypeSnapshot Type = "snapshot"

	// TypeSymlink is never produced by this package's own backup pipeline
	// (which deletes symlink entries rather than backing them up), but
	// restore must still be able to materialize one: an object store may
	// hold symlink objects written by another client generation. Decode
	// and EncodeSymlink exist for that compatibility path.
	TypeSymlink Type = "symlink"
)

// InodeInfo is the info_map carried by an inode payload.
type InodeInfo struct {
	Size    int64
	Inode   uint64
	UID     uint32
	GID     uint32
	Mode    uint32
	MtimeNs int64
	AtimeNs int64
}

// ChunkRef is one (offset, child_objid) pair of an inode's chunklist.
type ChunkRef struct {
	Offset int64
	ObjID  []byte
}

// InodePayload is the decoded form of an `["inode", info_map, contents]`
// object. Exactly one of Immediate or Chunklist is set, matching whichever
// contents variant the payload carried.
type InodePayload struct {
	Info      InodeInfo
	Immediate []byte
	Chunklist []ChunkRef
}

// TreeInfo is the info_map carried by a tree payload.
type TreeInfo struct {
	UID     uint32
	GID     uint32
	Mode    uint32
	MtimeNs int64
	AtimeNs int64
}

// TreeEntry is one (raw_name_bytes, child_objid) pair of a tree's entry list.
// Name is preserved exactly as the original OS byte sequence — it is never
// assumed to be valid UTF-8.
type TreeEntry struct {
	Name       []byte
	ChildObjID []byte
}

// TreePayload is the decoded form of a `["tree", info_map, entries]` object.
type TreePayload struct {
	Info    TreeInfo
	Entries []TreeEntry
}

// SymlinkPayload is the decoded form of a `["symlink", info_map, target]`
// object. info_map carries the same fields as a tree's (uid, gid, mode,
// mtime, atime); a symlink has no size or inode number of its own.
type SymlinkPayload struct {
	Info   TreeInfo
	Target []byte
}

// SnapshotPayload is the decoded form of a `["snapshot", {...}]` object.
type SnapshotPayload struct {
	Date int64
	Root []byte
	Path []byte
}

// Payload is the result of Decode: exactly one of the typed fields matching
// Type is populated.
type Payload struct {
	Type     Type
	Blob     []byte
	Inode    *InodePayload
	Tree     *TreePayload
	Symlink  *SymlinkPayload
	Snapshot *SnapshotPayload
}

// EncodeBlob encodes a raw chunk of file contents: `["blob", bytes]`.
func EncodeBlob(data []byte) ([]byte, error) {
	return msgpack.Marshal([]interface{}{string(TypeBlob), data})
}

// EncodeInode encodes an inode payload. Pass either immediate (file size
// below the inline threshold) or chunklist (otherwise); the caller must set
// exactly one.
func EncodeInode(info InodeInfo, immediate []byte, chunklist []ChunkRef) ([]byte, error) {
	if (immediate == nil) == (chunklist == nil) {
		return nil, fmt.Errorf("codec: exactly one of immediate or chunklist must be set")
	}

	infoMap := inodeInfoToMap(info)

	var contents []interface{}
	if immediate != nil {
		contents = []interface{}{"immediate", immediate}
	} else {
		list := make([]interface{}, len(chunklist))
		for i, c := range chunklist {
			list[i] = []interface{}{c.Offset, c.ObjID}
		}
		contents = []interface{}{"chunklist", list}
	}

	return msgpack.Marshal([]interface{}{string(TypeInode), infoMap, contents})
}

// EncodeTree encodes a directory payload: `["tree", info_map, entries]`.
func EncodeTree(info TreeInfo, entries []TreeEntry) ([]byte, error) {
	infoMap := treeInfoToMap(info)

	list := make([]interface{}, len(entries))
	for i, e := range entries {
		list[i] = []interface{}{e.Name, e.ChildObjID}
	}

	return msgpack.Marshal([]interface{}{string(TypeTree), infoMap, list})
}

// EncodeSnapshot encodes a snapshot payload:
// `["snapshot", {date, root, path}]`.
func EncodeSnapshot(dateUnixSeconds int64, root []byte, path []byte) ([]byte, error) {
	m := map[string]interface{}{
		"date": dateUnixSeconds,
		"root": root,
		"path": path,
	}
	return msgpack.Marshal([]interface{}{string(TypeSnapshot), m})
}

// EncodeSymlink encodes a symlink payload: `["symlink", info_map, target]`.
func EncodeSymlink(info TreeInfo, target []byte) ([]byte, error) {
	infoMap := treeInfoToMap(info)
	return msgpack.Marshal([]interface{}{string(TypeSymlink), infoMap, target})
}

// Decode parses any of the payload shapes and dispatches on the leading
// tag string.
func Decode(data []byte) (*Payload, error) {
	var raw []interface{}
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("codec: malformed payload: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("codec: empty payload")
	}

	tag, ok := raw[0].(string)
	if !ok {
		return nil, fmt.Errorf("codec: payload tag is not a string")
	}

	switch Type(tag) {
	case TypeBlob:
		return decodeBlob(raw)
	case TypeInode:
		return decodeInode(raw)
	case TypeTree:
		return decodeTree(raw)
	case TypeSymlink:
		return decodeSymlink(raw)
	case TypeSnapshot:
		return decodeSnapshot(raw)
	default:
		return nil, fmt.Errorf("codec: unknown payload tag %q", tag)
	}
}

func decodeBlob(raw []interface{}) (*Payload, error) {
	if len(raw) != 2 {
		return nil, fmt.Errorf("codec: blob payload wants 2 elements, got %d", len(raw))
	}
	b, err := asBytes(raw[1])
	if err != nil {
		return nil, fmt.Errorf("codec: blob bytes: %w", err)
	}
	return &Payload{Type: TypeBlob, Blob: b}, nil
}

func decodeInode(raw []interface{}) (*Payload, error) {
	if len(raw) != 3 {
		return nil, fmt.Errorf("codec: inode payload wants 3 elements, got %d", len(raw))
	}

	infoMap, ok := raw[1].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("codec: inode info_map has wrong type")
	}
	info, err := mapToInodeInfo(infoMap)
	if err != nil {
		return nil, err
	}

	contents, ok := raw[2].([]interface{})
	if !ok || len(contents) != 2 {
		return nil, fmt.Errorf("codec: inode contents malformed")
	}
	kind, ok := contents[0].(string)
	if !ok {
		return nil, fmt.Errorf("codec: inode contents kind is not a string")
	}

	inode := &InodePayload{Info: info}
	switch kind {
	case "immediate":
		b, err := asBytes(contents[1])
		if err != nil {
			return nil, fmt.Errorf("codec: inode immediate bytes: %w", err)
		}
		inode.Immediate = b
	case "chunklist":
		list, ok := contents[1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("codec: inode chunklist has wrong type")
		}
		chunks := make([]ChunkRef, len(list))
		for i, item := range list {
			pair, ok := item.([]interface{})
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("codec: chunklist entry %d malformed", i)
			}
			offset, err := asInt64(pair[0])
			if err != nil {
				return nil, fmt.Errorf("codec: chunklist entry %d offset: %w", i, err)
			}
			objID, err := asBytes(pair[1])
			if err != nil {
				return nil, fmt.Errorf("codec: chunklist entry %d objid: %w", i, err)
			}
			chunks[i] = ChunkRef{Offset: offset, ObjID: objID}
		}
		inode.Chunklist = chunks
	default:
		return nil, fmt.Errorf("codec: unknown inode contents kind %q", kind)
	}

	return &Payload{Type: TypeInode, Inode: inode}, nil
}

func decodeTree(raw []interface{}) (*Payload, error) {
	if len(raw) != 3 {
		return nil, fmt.Errorf("codec: tree payload wants 3 elements, got %d", len(raw))
	}

	infoMap, ok := raw[1].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("codec: tree info_map has wrong type")
	}
	info, err := mapToTreeInfo(infoMap)
	if err != nil {
		return nil, err
	}

	list, ok := raw[2].([]interface{})
	if !ok {
		return nil, fmt.Errorf("codec: tree entries has wrong type")
	}
	entries := make([]TreeEntry, len(list))
	for i, item := range list {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("codec: tree entry %d malformed", i)
		}
		name, err := asBytes(pair[0])
		if err != nil {
			return nil, fmt.Errorf("codec: tree entry %d name: %w", i, err)
		}
		childID, err := asBytes(pair[1])
		if err != nil {
			return nil, fmt.Errorf("codec: tree entry %d objid: %w", i, err)
		}
		entries[i] = TreeEntry{Name: name, ChildObjID: childID}
	}

	return &Payload{Type: TypeTree, Tree: &TreePayload{Info: info, Entries: entries}}, nil
}

func decodeSymlink(raw []interface{}) (*Payload, error) {
	if len(raw) != 3 {
		return nil, fmt.Errorf("codec: symlink payload wants 3 elements, got %d", len(raw))
	}
	infoMap, ok := raw[1].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("codec: symlink info_map has wrong type")
	}
	info, err := mapToTreeInfo(infoMap)
	if err != nil {
		return nil, err
	}
	target, err := asBytes(raw[2])
	if err != nil {
		return nil, fmt.Errorf("codec: symlink target: %w", err)
	}
	return &Payload{Type: TypeSymlink, Symlink: &SymlinkPayload{Info: info, Target: target}}, nil
}

func decodeSnapshot(raw []interface{}) (*Payload, error) {
	if len(raw) != 2 {
		return nil, fmt.Errorf("codec: snapshot payload wants 2 elements, got %d", len(raw))
	}
	m, ok := raw[1].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("codec: snapshot map has wrong type")
	}

	date, err := asInt64(m["date"])
	if err != nil {
		return nil, fmt.Errorf("codec: snapshot date: %w", err)
	}
	root, err := asBytes(m["root"])
	if err != nil {
		return nil, fmt.Errorf("codec: snapshot root: %w", err)
	}
	path, err := asBytes(m["path"])
	if err != nil {
		return nil, fmt.Errorf("codec: snapshot path: %w", err)
	}

	return &Payload{Type: TypeSnapshot, Snapshot: &SnapshotPayload{Date: date, Root: root, Path: path}}, nil
}

func inodeInfoToMap(info InodeInfo) map[string]interface{} {
	return map[string]interface{}{
		"size":  info.Size,
		"inode": info.Inode,
		"uid":   info.UID,
		"gid":   info.GID,
		"mode":  info.Mode,
		"mtime": info.MtimeNs,
		"atime": info.AtimeNs,
	}
}

func mapToInodeInfo(m map[string]interface{}) (InodeInfo, error) {
	var info InodeInfo
	var err error
	if info.Size, err = asInt64(m["size"]); err != nil {
		return info, fmt.Errorf("inode info.size: %w", err)
	}
	inode, err := asInt64(m["inode"])
	if err != nil {
		return info, fmt.Errorf("inode info.inode: %w", err)
	}
	info.Inode = uint64(inode)
	uid, err := asInt64(m["uid"])
	if err != nil {
		return info, fmt.Errorf("inode info.uid: %w", err)
	}
	info.UID = uint32(uid)
	gid, err := asInt64(m["gid"])
	if err != nil {
		return info, fmt.Errorf("inode info.gid: %w", err)
	}
	info.GID = uint32(gid)
	mode, err := asInt64(m["mode"])
	if err != nil {
		return info, fmt.Errorf("inode info.mode: %w", err)
	}
	info.Mode = uint32(mode)
	if info.MtimeNs, err = asInt64(m["mtime"]); err != nil {
		return info, fmt.Errorf("inode info.mtime: %w", err)
	}
	if info.AtimeNs, err = asInt64(m["atime"]); err != nil {
		return info, fmt.Errorf("inode info.atime: %w", err)
	}
	return info, nil
}

func treeInfoToMap(info TreeInfo) map[string]interface{} {
	return map[string]interface{}{
		"uid":   info.UID,
		"gid":   info.GID,
		"mode":  info.Mode,
		"mtime": info.MtimeNs,
		"atime": info.AtimeNs,
	}
}

func mapToTreeInfo(m map[string]interface{}) (TreeInfo, error) {
	var info TreeInfo
	uid, err := asInt64(m["uid"])
	if err != nil {
		return info, fmt.Errorf("tree info.uid: %w", err)
	}
	info.UID = uint32(uid)
	gid, err := asInt64(m["gid"])
	if err != nil {
		return info, fmt.Errorf("tree info.gid: %w", err)
	}
	info.GID = uint32(gid)
	mode, err := asInt64(m["mode"])
	if err != nil {
		return info, fmt.Errorf("tree info.mode: %w", err)
	}
	info.Mode = uint32(mode)
	if info.MtimeNs, err = asInt64(m["mtime"]); err != nil {
		return info, fmt.Errorf("tree info.mtime: %w", err)
	}
	if info.AtimeNs, err = asInt64(m["atime"]); err != nil {
		return info, fmt.Errorf("tree info.atime: %w", err)
	}
	return info, nil
}

// asBytes coerces a decoded msgpack value to a byte slice. Names and ids are
// encoded as msgpack bin/str values; the library may hand either back
// depending on whether the source contained valid UTF-8, so both are
// accepted here to preserve raw byte sequences such as invalid-UTF-8
// filenames.
func asBytes(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected bytes, got %T", v)
	}
}

// asInt64 coerces a decoded msgpack numeric value to int64.
func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
