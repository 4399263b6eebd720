package fsOp

import (
	"os"
	"strings"

	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-billy.v4"

	"github.com/powersync-community/powergit/api"
	"github.com/powersync-community/powergit/cache"
)

/*
	Makes dirs recursively so the requested path exists, tolerant of
	concurrent or repeated calls.

	Each path segment is created from the root down.  An "already exists"
	failure for any segment is success; a "parent missing" failure is
	transiently ignorable, since the next root-down iteration creates the
	ancestor that was missing.  Any other error class propagates.
*/
func EnsureDirectory(afs billy.Filesystem, p string) error {
	p = strings.TrimPrefix(cache.Normalize(p), "/")
	if p == "." || p == "" {
		return nil
	}
	segments := strings.Split(p, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		err := afs.MkdirAll(prefix, 0755)
		switch {
		case err == nil:
			continue
		case os.IsExist(err):
			continue // someone else (or an earlier call) won the race.
		case os.IsNotExist(err):
			continue // parent missing; the next iteration's ancestor creates it.
		default:
			return Errorf(api.ErrIO, "mkdir %s: %s", prefix, err)
		}
	}
	return nil
}

/*
	Exists reports whether a path is present on the filesystem.
	A stat failure of any class is treated as "does not exist" -- the
	caller's reaction to a missing file (reprocess the pack) is also the
	safe reaction to an unstatable one.
*/
func Exists(afs billy.Filesystem, p string) bool {
	_, err := afs.Stat(p)
	return err == nil
}
