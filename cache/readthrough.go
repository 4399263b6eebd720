package cache

import (
	"io/ioutil"
	"os"

	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-billy.v4"

	"github.com/powersync-community/powergit/api"
)

/*
	ReadFS is the narrow read surface the rest of the subsystem consumes.
	The real filesystem and the cache decorator both implement it, so the
	cache composes in front of the filesystem at construction time rather
	than anything monkeying with the filesystem object itself.
*/
type ReadFS interface {
	ReadFile(path string) ([]byte, error)
}

/*
	BillyReadFS adapts a billy filesystem to the ReadFS surface.

	A missing file surfaces as api.ErrNotFound so the decorator (and any
	other caller) can distinguish "not there" from genuine I/O trouble
	without sniffing platform error strings.
*/
type BillyReadFS struct {
	FS billy.Basic
}

func (b BillyReadFS) ReadFile(path string) ([]byte, error) {
	f, err := b.FS.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Errorf(api.ErrNotFound, "read %s: %s", path, err)
		}
		return nil, Errorf(api.ErrIO, "read %s: %s", path, err)
	}
	defer f.Close()
	data, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, Errorf(api.ErrIO, "read %s: %s", path, err)
	}
	return data, nil
}

/*
	ReadThrough serves reads from the byte cache first and falls back to
	the real filesystem.  The invariant it maintains: a read immediately
	following a successful write of the same logical path returns the
	written bytes, whether the real filesystem has made them visible yet
	or not.

	Ordering: (a) cache first; (b) on cache miss, real read; (c) if the
	real read reports missing but the cache meanwhile has an entry,
	return the cache entry instead of surfacing the miss.
*/
type ReadThrough struct {
	Cache *ByteCache
	Next  ReadFS
}

func (r ReadThrough) ReadFile(path string) ([]byte, error) {
	if data, ok := r.Cache.Get(path); ok {
		return data, nil
	}
	data, err := r.Next.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if Category(err) == api.ErrNotFound {
		if data, ok := r.Cache.Get(path); ok {
			return data, nil
		}
	}
	return nil, err
}
