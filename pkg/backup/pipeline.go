package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/coldvault/coldvault/internal/logger"
	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/chunker"
	"github.com/coldvault/coldvault/pkg/codec"
	"github.com/coldvault/coldvault/pkg/coldvaulterr"
	"github.com/coldvault/coldvault/pkg/repository"
)

// backupEntry runs backupEntryWith against the dispatcher's own cache and
// repository, used by the inline executor and directly by tests.
func (p *Pipeline) backupEntry(ctx context.Context, id int64) error {
	return p.backupEntryWith(ctx, p.cache, p.repo, id)
}

// backupEntryWith implements spec.md §4.6's per-entry generator: it
// inspects the live filesystem (or, for directories, only the cache) and
// pushes whatever objects the entry requires, finally recording the
// resulting root object id on the FSEntry row. Every return path either
// calls c.SetObject or c.DeleteFSEntry — leaving obj_id null here is the
// contract violation the caller's postcondition check guards against. c and
// repo are the caller's — the pool executor passes a connection private to
// one worker lane, never the dispatcher's shared one (spec.md §5/§9).
func (p *Pipeline) backupEntryWith(ctx context.Context, c *cache.Cache, repo *repository.Repository, id int64) error {
	entry, err := c.GetFSEntry(ctx, id)
	if err != nil {
		if coldvaulterr.IsNotFound(err) {
			// Already handled by a previous pass (e.g. re-parented away).
			return nil
		}
		return err
	}
	if entry.ObjID != nil {
		return nil
	}

	path := string(entry.Path)
	info, err := os.Lstat(path)
	if err != nil {
		p.logger.Info("entry disappeared before backup", logger.Path(safePathForLog(entry.Path)))
		return c.DeleteFSEntry(ctx, entry.ID)
	}

	switch {
	case info.Mode().IsRegular():
		return p.backupRegularFile(ctx, c, repo, entry, path, info)
	case info.IsDir():
		return p.backupDirectory(ctx, c, repo, entry, info)
	default:
		p.logger.Warn("unsupported file type, not backing up", logger.Path(safePathForLog(entry.Path)), logger.Mode(uint32(info.Mode())))
		return c.DeleteFSEntry(ctx, entry.ID)
	}
}

func statInfo(info os.FileInfo) codec.InodeInfo {
	st, _ := info.Sys().(*syscall.Stat_t)
	var inode, uid, gid uint64
	var atimeNs int64
	if st != nil {
		inode = st.Ino
		uid = uint64(st.Uid)
		gid = uint64(st.Gid)
		atimeNs = st.Atim.Sec*1e9 + st.Atim.Nsec
	}
	return codec.InodeInfo{
		Size:    info.Size(),
		Inode:   inode,
		UID:     uint32(uid),
		GID:     uint32(gid),
		Mode:    uint32(info.Mode()),
		MtimeNs: info.ModTime().UnixNano(),
		AtimeNs: atimeNs,
	}
}

func (p *Pipeline) backupRegularFile(ctx context.Context, c *cache.Cache, repo *repository.Repository, entry *cache.FSEntry, path string, info os.FileInfo) error {
	f, err := os.Open(path)
	if err != nil {
		p.logger.Info("file disappeared or unreadable before backup", logger.Path(safePathForLog(entry.Path)), logger.Err(err))
		return c.DeleteFSEntry(ctx, entry.ID)
	}
	defer f.Close()

	fsInfo := statInfo(info)

	var obj *cache.Object
	if info.Size() < chunker.InlineThreshold {
		data := make([]byte, info.Size())
		if _, err := io.ReadFull(f, data); err != nil {
			p.logger.Info("file changed or disappeared mid-read before backup", logger.Path(safePathForLog(entry.Path)), logger.Err(err))
			return c.DeleteFSEntry(ctx, entry.ID)
		}

		payload, err := codec.EncodeInode(fsInfo, data, nil)
		if err != nil {
			return fmt.Errorf("backup: encode inline inode: %w", err)
		}
		obj, err = repo.PushObject(ctx, codec.TypeInode, payload, nil)
		if err != nil {
			return err
		}
	} else {
		chunks := chunker.New(f)
		var chunklist []codec.ChunkRef
		var children []repository.ChildRef

		for {
			chunk, err := chunks.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				p.logger.Info("file disappeared mid-read before backup", logger.Path(safePathForLog(entry.Path)), logger.Err(err))
				return c.DeleteFSEntry(ctx, entry.ID)
			}

			blobPayload, err := codec.EncodeBlob(chunk.Data)
			if err != nil {
				return fmt.Errorf("backup: encode blob: %w", err)
			}
			blobObj, err := repo.PushObject(ctx, codec.TypeBlob, blobPayload, nil)
			if err != nil {
				return err
			}

			chunklist = append(chunklist, codec.ChunkRef{Offset: chunk.Offset, ObjID: blobObj.ObjID})
			children = append(children, repository.ChildRef{ObjID: blobObj.ObjID})
		}

		payload, err := codec.EncodeInode(fsInfo, nil, chunklist)
		if err != nil {
			return fmt.Errorf("backup: encode chunked inode: %w", err)
		}
		obj, err = repo.PushObject(ctx, codec.TypeInode, payload, children)
		if err != nil {
			return err
		}
	}

	return c.SetObject(ctx, entry.ID, obj.ObjID)
}

func (p *Pipeline) backupDirectory(ctx context.Context, c *cache.Cache, repo *repository.Repository, entry *cache.FSEntry, info os.FileInfo) error {
	children, err := c.ChildrenOf(ctx, entry.ID)
	if err != nil {
		return err
	}

	var missing []string
	for _, child := range children {
		if child.ObjID == nil {
			missing = append(missing, safePathForLog(child.Path))
		}
	}
	if len(missing) > 0 {
		return coldvaulterr.New(coldvaulterr.CodeContractViolation,
			fmt.Sprintf("directory %s depends on unbacked-up children: %s", safePathForLog(entry.Path), strings.Join(missing, ", ")))
	}

	treeInfo := codec.TreeInfo{Mode: uint32(info.Mode())}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		treeInfo.UID = st.Uid
		treeInfo.GID = st.Gid
		treeInfo.AtimeNs = st.Atim.Sec*1e9 + st.Atim.Nsec
	}
	treeInfo.MtimeNs = info.ModTime().UnixNano()

	entries := make([]codec.TreeEntry, len(children))
	refs := make([]repository.ChildRef, len(children))
	for i, child := range children {
		name := filepath.Base(string(child.Path))
		entries[i] = codec.TreeEntry{Name: []byte(name), ChildObjID: child.ObjID}
		refs[i] = repository.ChildRef{ObjID: child.ObjID, Name: toValidUTF8(name)}
	}

	payload, err := codec.EncodeTree(treeInfo, entries)
	if err != nil {
		return fmt.Errorf("backup: encode tree: %w", err)
	}

	obj, err := repo.PushObject(ctx, codec.TypeTree, payload, refs)
	if err != nil {
		return err
	}

	return c.SetObject(ctx, entry.ID, obj.ObjID)
}

// toValidUTF8 best-effort decodes a raw filename for the object_relations
// search index, dropping invalid bytes rather than failing the backup —
// the payload itself still carries the exact original byte sequence.
func toValidUTF8(name string) []byte {
	if utf8.ValidString(name) {
		return []byte(name)
	}
	var b strings.Builder
	for _, r := range name {
		if r != utf8.RuneError {
			b.WriteRune(r)
		}
	}
	return []byte(b.String())
}

// safePathForLog mirrors models.py's printablepath: render a raw path for
// a log line without risking a panic or garbled terminal output.
func safePathForLog(path []byte) string {
	if utf8.Valid(path) {
		return string(path)
	}
	return strings.ToValidUTF8(string(path), "�")
}

