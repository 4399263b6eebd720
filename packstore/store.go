/*
	packstore drives pack ingestion: it accepts batches of pack
	descriptors from the sync layer, deduplicates them against the
	persisted index set and the in-flight queue, and drains them
	sequentially into the filesystem and the underlying git indexer,
	publishing progress along the way.

	One Store owns one repository's object directory.  There is no
	parallel processing of packs: a single drain is active at a time,
	serializing all writes to the filesystem and all calls into the
	indexer.  Reads (see the gitgraph package) are not serialized
	against writes; they simply observe whatever has been indexed so
	far.
*/
package packstore

import (
	"context"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-billy.v4"

	"github.com/powersync-community/powergit/api"
	"github.com/powersync-community/powergit/cache"
	"github.com/powersync-community/powergit/fsOp"
)

/*
	PackIndexer is the underlying git pack indexer: given the path of a
	pack file already written to the filesystem, it parses the pack and
	makes its objects queryable.  See gitgraph.Indexer for the go-git
	backed implementation.
*/
type PackIndexer interface {
	IndexPack(path string) error
}

/*
	YieldFunc is called between queue items so one drain cannot occupy
	the scheduler indefinitely.  The default hands the processor to the
	runtime; tests inject a no-op to stay deterministic.
*/
type YieldFunc func()

type Options struct {
	FS      billy.Filesystem // Virtual filesystem holding the object store.  Required.
	KV      KV               // Durable layer for the indexed-pack record.  Required.
	Indexer PackIndexer      // Underlying git pack indexer.  Required.
	Cache   *cache.ByteCache // Byte cache shared with the indexer's read path.  Defaults to a private one.
	Root    string           // Git directory root within FS.  Defaults to ".git".
	Yield   YieldFunc        // Scheduling yield between queue items.
	Logger  *logrus.Logger   // Sink for swallowed-failure warnings.
}

type drain struct {
	processed int
	inflight  int // 0 or 1: the pack popped but not yet counted
	err       error
	done      chan struct{}
}

type Store struct {
	afs     billy.Filesystem
	kv      KV
	indexer PackIndexer
	bytes   *cache.ByteCache
	root    string
	yield   YieldFunc
	log     *logrus.Logger
	set     *IndexSet

	mu        sync.Mutex
	dirsReady bool
	queue     []api.PackDescriptor
	pending   map[string]struct{}
	active    *drain
	progress  api.IndexProgress
	subs      map[int]func(api.IndexProgress)
	nextSub   int
}

/*
	New constructs a store.  The store is an explicitly owned object:
	callers hold the single instance for a repository and hand it to
	whatever needs it, rather than any global registration happening
	here.
*/
func New(opts Options) (*Store, error) {
	if opts.FS == nil {
		return nil, Errorf(api.ErrUsage, "packstore: a filesystem is required")
	}
	if opts.KV == nil {
		return nil, Errorf(api.ErrUsage, "packstore: a durable kv layer is required")
	}
	if opts.Indexer == nil {
		return nil, Errorf(api.ErrUsage, "packstore: a pack indexer is required")
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewByteCache()
	}
	if opts.Root == "" {
		opts.Root = ".git"
	}
	if opts.Yield == nil {
		opts.Yield = runtime.Gosched
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	s := &Store{
		afs:     opts.FS,
		kv:      opts.KV,
		indexer: opts.Indexer,
		bytes:   opts.Cache,
		root:    cache.Normalize(opts.Root),
		yield:   opts.Yield,
		log:     opts.Logger,
		pending: make(map[string]struct{}),
		progress: api.IndexProgress{
			Status: api.StatusIdle,
		},
		subs: make(map[int]func(api.IndexProgress)),
	}
	s.set = RestoreIndexSet(opts.KV, "indexed-packs:"+s.root, opts.Logger)
	return s, nil
}

// PackPath returns the deterministic pack file location for an oid.
func (s *Store) PackPath(oid string) string {
	return path.Join(s.root, "objects", "pack", "pack-"+oid+".pack")
}

// ReadFS returns the cache-aware read path collaborators should use to
// read files from this store's filesystem.
func (s *Store) ReadFS() cache.ReadFS {
	return cache.ReadThrough{Cache: s.bytes, Next: cache.BillyReadFS{FS: s.afs}}
}

func (s *Store) Progress() api.IndexProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

/*
	Subscribe registers a progress listener.  The listener is invoked
	synchronously with the current progress before Subscribe returns,
	and again on every subsequent change.  The returned func cancels
	the subscription.
*/
func (s *Store) Subscribe(fn func(api.IndexProgress)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	current := s.progress
	s.mu.Unlock()
	fn(current)
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// publishLocked records the new progress value and returns a closure
// that notifies subscribers.  Callers invoke the closure after
// releasing the store lock, so a listener may call back into the store.
func (s *Store) publishLocked(p api.IndexProgress) func() {
	s.progress = p
	listeners := make([]func(api.IndexProgress), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	return func() {
		for _, fn := range listeners {
			fn(p)
		}
	}
}

/*
	Submit accepts a batch of pack descriptors and blocks until the
	queue is fully drained -- including any packs other callers merge in
	while the drain is running.  A batch that deduplicates to nothing
	returns immediately when no drain is active; an empty batch is the
	idiomatic way to resume a drain that previously stopped on an error.

	The context only governs how long this caller waits: cancelling it
	abandons the wait, but the drain keeps running and its results stay
	durably recorded.
*/
func (s *Store) Submit(ctx context.Context, packs []api.PackDescriptor) error {
	if err := s.ensureLayout(); err != nil {
		return err
	}

	// Earliest-created packs index first so history becomes browsable in
	// commit order as data streams in.  Absent timestamps sort as zero.
	sorted := make([]api.PackDescriptor, len(packs))
	copy(sorted, packs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt != sorted[j].CreatedAt {
			return sorted[i].CreatedAt < sorted[j].CreatedAt
		}
		return sorted[i].PackOid < sorted[j].PackOid
	})

	s.mu.Lock()
	for _, p := range sorted {
		if p.Payload == "" {
			continue
		}
		if _, inflight := s.pending[p.PackOid]; inflight {
			continue
		}
		if s.set.Contains(p.PackOid) {
			if fsOp.Exists(s.afs, s.PackPath(p.PackOid)) {
				continue
			}
			// Marked indexed but the backing file is gone: un-mark and
			// reprocess rather than serving a store with holes in it.
			s.set.Remove(p.PackOid)
			s.log.WithField("pack", p.PackOid).Warn("indexed pack missing from filesystem; reindexing")
		}
		s.queue = append(s.queue, p)
		s.pending[p.PackOid] = struct{}{}
	}

	if len(s.queue) == 0 && s.active == nil {
		s.mu.Unlock()
		return nil
	}

	d := s.active
	var notify func()
	if d == nil {
		d = &drain{done: make(chan struct{})}
		s.active = d
		notify = s.publishLocked(api.IndexProgress{
			Status:    api.StatusIndexing,
			Processed: d.processed,
			Total:     d.processed + len(s.queue),
		})
		go s.runDrain(d)
	} else {
		// Fold this batch into the ongoing drain: recompute the
		// published total so subscribers see the merged workload.
		notify = s.publishLocked(api.IndexProgress{
			Status:    api.StatusIndexing,
			Processed: d.processed,
			Total:     d.processed + d.inflight + len(s.queue),
		})
	}
	s.mu.Unlock()
	notify()

	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return Errorf(api.ErrCancelled, "stopped waiting for indexing: %s", ctx.Err())
	}
}

/*
	Ensures the object directory layout exists.  Runs at most until the
	first success per store lifetime; concurrent callers may race, which
	is harmless since directory creation is idempotent.
*/
func (s *Store) ensureLayout() error {
	s.mu.Lock()
	ready := s.dirsReady
	s.mu.Unlock()
	if ready {
		return nil
	}
	if err := fsOp.EnsureDirectory(s.afs, path.Join(s.root, "objects", "pack")); err != nil {
		return err
	}
	s.mu.Lock()
	s.dirsReady = true
	s.mu.Unlock()
	return nil
}

/*
	One run of the queue from start to empty-or-error.

	Pops one pack, processes it, republishes progress, then yields to
	the scheduler before the next pop, bounding how long a single
	stretch of work can monopolize the host.

	Any processing failure aborts the drain for the whole queue: the
	failed pack is put back at the front, the remaining items are left
	queued, and the next Submit (even with an empty batch) resumes from
	the failure point.
*/
func (s *Store) runDrain(d *drain) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			// Batch counters reset once a drain completes with no
			// further queued work.
			notify := s.publishLocked(api.IndexProgress{Status: api.StatusReady})
			s.active = nil
			s.mu.Unlock()
			notify()
			close(d.done)
			return
		}
		p := s.queue[0]
		s.queue = s.queue[1:]
		d.inflight = 1
		s.mu.Unlock()

		err := s.processPack(p)

		s.mu.Lock()
		d.inflight = 0
		if err != nil {
			s.queue = append([]api.PackDescriptor{p}, s.queue...)
			d.err = err
			notify := s.publishLocked(api.IndexProgress{
				Status:    api.StatusError,
				Processed: d.processed,
				Total:     d.processed + len(s.queue),
				Error:     err.Error(),
			})
			s.active = nil
			s.mu.Unlock()
			notify()
			close(d.done)
			return
		}
		d.processed++
		delete(s.pending, p.PackOid)
		notify := s.publishLocked(api.IndexProgress{
			Status:    api.StatusIndexing,
			Processed: d.processed,
			Total:     d.processed + len(s.queue),
		})
		s.mu.Unlock()
		notify()
		s.yield()
	}
}

// rootRelative rewrites a store path relative to the git root, for
// byte-cache variant registration.
func (s *Store) rootRelative(p string) string {
	n := cache.Normalize(p)
	n = strings.TrimPrefix(n, s.root)
	return strings.TrimPrefix(n, "/")
}
