package packstore

import (
	"bytes"
	"sort"
	"sync"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	"github.com/sirupsen/logrus"

	"github.com/powersync-community/powergit/api"
)

/*
	KV is the durable key-value layer exposed by the host environment.
	The index set reads and writes a single serialized record under a
	fixed key scoped to the store's identity.

	Get reports presence separately from failure; implementations must
	not treat "key absent" as an error.
*/
type KV interface {
	Get(key string) (value []byte, found bool, err error)
	Put(key string, value []byte) error
}

/*
	IndexSet is the durable record of pack oids already successfully
	indexed.  It survives store recreation (e.g. page reload in the
	original deployment; process restart here), so a restarted store
	skips packs whose objects are already on the filesystem.

	The set is a performance optimization, not correctness-critical
	data: the filesystem remains the source of truth for whether a
	pack's objects exist.  Accordingly, restore never fails the caller
	(corrupt or absent records start an empty set) and persistence
	failures are logged and swallowed.

	Invariant: membership implies the pack file exists on the
	filesystem.  The store self-heals violations by removing the entry
	and reprocessing the pack.
*/
type IndexSet struct {
	kv  KV
	key string
	log *logrus.Logger

	mu      sync.Mutex
	members map[string]struct{}
}

/*
	Restores the set from the durable layer.  On a read failure, an
	absent record, or a parse failure, starts from an empty set.
*/
func RestoreIndexSet(kv KV, key string, log *logrus.Logger) *IndexSet {
	s := &IndexSet{
		kv:      kv,
		key:     key,
		log:     log,
		members: make(map[string]struct{}),
	}
	raw, found, err := kv.Get(key)
	if err != nil {
		log.WithField("key", key).WithError(err).Warn("indexed-pack record unreadable; starting empty")
		return s
	}
	if !found {
		return s
	}
	var oids []string
	unmarshaller := refmt.NewUnmarshallerAtlased(json.DecodeOptions{}, bytes.NewReader(raw), api.Atlas)
	if err := unmarshaller.Unmarshal(&oids); err != nil {
		log.WithField("key", key).WithError(err).Warn("indexed-pack record corrupt; starting empty")
		return s
	}
	for _, oid := range oids {
		s.members[oid] = struct{}{}
	}
	return s
}

func (s *IndexSet) Contains(oid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[oid]
	return ok
}

func (s *IndexSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Add records an oid and flushes the set to the durable layer.
func (s *IndexSet) Add(oid string) {
	s.mu.Lock()
	s.members[oid] = struct{}{}
	record := s.snapshotLocked()
	s.mu.Unlock()
	s.persist(record)
}

// Remove drops an oid and flushes the set to the durable layer.
func (s *IndexSet) Remove(oid string) {
	s.mu.Lock()
	delete(s.members, oid)
	record := s.snapshotLocked()
	s.mu.Unlock()
	s.persist(record)
}

func (s *IndexSet) snapshotLocked() []string {
	oids := make([]string, 0, len(s.members))
	for oid := range s.members {
		oids = append(oids, oid)
	}
	sort.Strings(oids)
	return oids
}

/*
	Serializes the record (a json array of oid strings) and writes it
	back.  Write failures are logged, not surfaced: losing the record
	costs re-indexing work on the next restart, nothing more.
*/
func (s *IndexSet) persist(record []string) {
	var buf bytes.Buffer
	marshaller := refmt.NewMarshallerAtlased(json.EncodeOptions{}, &buf, api.Atlas)
	if err := marshaller.Marshal(&record); err != nil {
		s.log.WithField("key", s.key).WithError(err).Warn("could not serialize indexed-pack record")
		return
	}
	if err := s.kv.Put(s.key, buf.Bytes()); err != nil {
		s.log.WithField("key", s.key).WithError(err).Warn("could not persist indexed-pack record")
	}
}
