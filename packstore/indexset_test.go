package packstore

import (
	"errors"
	"io/ioutil"
	"testing"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/src-d/go-billy.v4/memfs"
)

// memKV is the durable layer stand-in for tests.  It survives "store
// recreation" the way indexeddb survives a page reload: the map
// outlives any one IndexSet built over it.
type memKV struct {
	m map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{m: make(map[string][]byte)}
}

func (k *memKV) Get(key string) ([]byte, bool, error) {
	v, ok := k.m[key]
	return v, ok, nil
}

func (k *memKV) Put(key string, value []byte) error {
	k.m[key] = value
	return nil
}

// brokenKV refuses all writes, for the swallow-and-log contract.
type brokenKV struct {
	*memKV
}

func (k brokenKV) Put(key string, value []byte) error {
	return errors.New("quota exceeded")
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = ioutil.Discard
	return log
}

func TestIndexSet(t *testing.T) {
	Convey("IndexSet:", t, func() {
		log := quietLogger()

		Convey("starts empty with no durable record", func() {
			s := RestoreIndexSet(newMemKV(), "indexed-packs:.git", log)
			So(s.Len(), ShouldEqual, 0)
			So(s.Contains("p1"), ShouldBeFalse)
		})
		Convey("starts empty from a corrupt record", func() {
			kv := newMemKV()
			kv.m["indexed-packs:.git"] = []byte("}}not json{{")
			s := RestoreIndexSet(kv, "indexed-packs:.git", log)
			So(s.Len(), ShouldEqual, 0)
		})
		Convey("every mutation persists, and a new set restores it", func() {
			kv := newMemKV()
			s := RestoreIndexSet(kv, "indexed-packs:.git", log)
			s.Add("p1")
			s.Add("p2")

			restored := RestoreIndexSet(kv, "indexed-packs:.git", log)
			So(restored.Contains("p1"), ShouldBeTrue)
			So(restored.Contains("p2"), ShouldBeTrue)
			So(restored.Len(), ShouldEqual, 2)

			s.Remove("p1")
			restored = RestoreIndexSet(kv, "indexed-packs:.git", log)
			So(restored.Contains("p1"), ShouldBeFalse)
			So(restored.Contains("p2"), ShouldBeTrue)
		})
		Convey("keys are scoped: two stores don't see each other's records", func() {
			kv := newMemKV()
			a := RestoreIndexSet(kv, "indexed-packs:a/.git", log)
			a.Add("p1")
			b := RestoreIndexSet(kv, "indexed-packs:b/.git", log)
			So(b.Contains("p1"), ShouldBeFalse)
		})
		Convey("a persist failure is swallowed, not surfaced", func() {
			s := RestoreIndexSet(brokenKV{newMemKV()}, "indexed-packs:.git", log)
			So(func() { s.Add("p1") }, ShouldNotPanic)
			// the in-memory view still updated; only durability was lost.
			So(s.Contains("p1"), ShouldBeTrue)
		})
	})
}

func TestFileKV(t *testing.T) {
	Convey("FileKV:", t, func() {
		kv := FileKV{FS: memfs.New(), Base: ".powergit"}

		Convey("absent keys report not-found without error", func() {
			_, found, err := kv.Get("indexed-packs:.git")
			So(err, ShouldBeNil)
			So(found, ShouldBeFalse)
		})
		Convey("round-trips a record", func() {
			So(kv.Put("indexed-packs:.git", []byte(`["p1"]`)), ShouldBeNil)
			v, found, err := kv.Get("indexed-packs:.git")
			So(err, ShouldBeNil)
			So(found, ShouldBeTrue)
			So(string(v), ShouldEqual, `["p1"]`)
		})
	})
}
