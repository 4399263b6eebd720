package packstore

import (
	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-billy.v4/util"

	"github.com/powersync-community/powergit/api"
	"github.com/powersync-community/powergit/cache"
	"github.com/powersync-community/powergit/fsOp"
)

/*
	Materializes one pack into the filesystem and hands it to the git
	indexer:

	  1. skip entirely if the pack is marked indexed and its file is
	     still present (self-healing otherwise);
	  2. decode the base64 payload;
	  3. write the bytes to the deterministic pack path, retrying the
	     write exactly once after unlinking any stale file;
	  4. register the bytes in the byte cache under every path variant;
	  5. invoke the indexer against the written path;
	  6. evict the cache entries, successfully indexed or not;
	  7. mark the pack indexed.
*/
func (s *Store) processPack(p api.PackDescriptor) error {
	packPath := s.PackPath(p.PackOid)

	if s.set.Contains(p.PackOid) {
		if fsOp.Exists(s.afs, packPath) {
			return nil
		}
		s.set.Remove(p.PackOid)
		s.log.WithField("pack", p.PackOid).Warn("indexed pack missing from filesystem; reindexing")
	}

	raw, err := DecodePackPayload(p.Payload)
	if err != nil {
		return err
	}

	if err := s.writePack(packPath, raw); err != nil {
		return err
	}

	variants := cache.Variants(packPath, s.rootRelative(packPath))
	s.bytes.Put(variants, raw)
	idxErr := s.indexer.IndexPack(packPath)
	// The cache holds at most the pack currently being processed, so
	// eviction happens whether indexing succeeded or not.
	s.bytes.Evict(variants)
	if idxErr != nil {
		if Category(idxErr) != nil {
			return idxErr
		}
		return Errorf(api.ErrIndex, "index pack %s: %s", packPath, idxErr)
	}

	s.set.Add(p.PackOid)
	return nil
}

/*
	Writes pack bytes to their path.  A failed write gets one retry
	after unlinking whatever stale file may be in the way; a second
	failure propagates.
*/
func (s *Store) writePack(packPath string, raw []byte) error {
	if err := util.WriteFile(s.afs, packPath, raw, 0644); err != nil {
		_ = s.afs.Remove(packPath)
		if err = util.WriteFile(s.afs, packPath, raw, 0644); err != nil {
			return Errorf(api.ErrIO, "write pack %s: %s", packPath, err)
		}
	}
	return nil
}
