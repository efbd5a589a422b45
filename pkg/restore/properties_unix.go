//go:build unix

package restore

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// setFileProperties restores ownership, mode, and timestamps on a regular
// file or directory. Every step is independent and best-effort: a failure
// partway through (e.g. chown requiring privileges this process lacks)
// still lets the remaining properties get applied, matching
// backathon's _set_file_properties.
func setFileProperties(logger *slog.Logger, path string, uid, gid, mode uint32, atimeNs, mtimeNs int64) {
	if err := os.Chown(path, int(uid), int(gid)); err != nil {
		logger.Warn("could not chown", "path", path, "error", err)
	}
	if err := os.Chmod(path, os.FileMode(mode)); err != nil {
		logger.Warn("could not chmod", "path", path, "error", err)
	}
	if err := os.Chtimes(path, nsToTime(atimeNs), nsToTime(mtimeNs)); err != nil {
		logger.Warn("could not set mtime", "path", path, "error", err)
	}
}

// setSymlinkProperties restores a symlink's own ownership, mode, and
// timestamps without following it, using follow-symlinks=false where the
// host OS supports the operation at all — Linux, notably, has no lchmod
// syscall, so that step is skipped rather than silently chmod-ing the
// symlink's target.
func setSymlinkProperties(logger *slog.Logger, path string, uid, gid, mode uint32, atimeNs, mtimeNs int64) {
	if err := unix.Lchown(path, int(uid), int(gid)); err != nil {
		logger.Warn("could not chown symlink", "path", path, "error", err)
	}

	if err := unix.Fchmodat(unix.AT_FDCWD, path, mode, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		if !errors.Is(err, unix.ENOTSUP) && !errors.Is(err, unix.EOPNOTSUPP) {
			logger.Warn("could not chmod symlink", "path", path, "error", err)
		}
	}

	ts := []unix.Timespec{
		unix.NsecToTimespec(atimeNs),
		unix.NsecToTimespec(mtimeNs),
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		logger.Warn("could not set mtime on symlink", "path", path, "error", err)
	}
}

func nsToTime(ns int64) time.Time {
	return time.Unix(0, ns)
}
