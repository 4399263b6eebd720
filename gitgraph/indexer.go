/*
	gitgraph drives the go-git library as this module's "underlying git
	implementation": the Indexer feeds written pack files into a go-git
	object storer, and the Reader answers commit/tree/blob queries
	against whatever has been indexed so far.

	Everything here is a thin, ordering- and error-contract-preserving
	facade; go-git remains the source of truth for object decoding.
*/
package gitgraph

import (
	"bytes"
	"path"
	"strings"

	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-git.v4/plumbing/format/packfile"
	"gopkg.in/src-d/go-git.v4/plumbing/storer"

	"github.com/powersync-community/powergit/api"
	"github.com/powersync-community/powergit/cache"
)

/*
	Indexer parses pack files into a go-git storer so their objects
	become queryable.

	Reads go through the byte-cache-aware read path handed in at
	construction, so a pack whose write the filesystem backend hasn't
	made visible yet is still indexable.
*/
type Indexer struct {
	storer storer.Storer
	src    cache.ReadFS
}

func NewIndexer(st storer.Storer, src cache.ReadFS) *Indexer {
	return &Indexer{storer: st, src: src}
}

func (ix *Indexer) IndexPack(packPath string) error {
	raw, err := ix.src.ReadFile(packPath)
	if err != nil {
		return err
	}
	if err := packfile.UpdateObjectStorage(ix.storer, bytes.NewReader(raw)); err != nil {
		return Errorf(api.ErrIndex, "index pack %s: %s", packPath, err)
	}
	return nil
}

/*
	LoadExisting replays every pack file already durable under dir into
	the storer.  A restarted process calls this once at construction so
	packs the ingestion queue rightly skips (they're in the persisted
	index set) are still queryable.  A missing directory simply means
	nothing has been ingested yet.
*/
func (ix *Indexer) LoadExisting(afs billy.Filesystem, dir string) error {
	infos, err := afs.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".pack") {
			continue
		}
		if err := ix.IndexPack(path.Join(dir, info.Name())); err != nil {
			return err
		}
	}
	return nil
}
