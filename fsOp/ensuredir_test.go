package fsOp

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/src-d/go-billy.v4/memfs"
	"gopkg.in/src-d/go-billy.v4/util"
)

func TestEnsureDirectory(t *testing.T) {
	Convey("EnsureDirectory:", t, func() {
		afs := memfs.New()

		Convey("creates one node", func() {
			So(EnsureDirectory(afs, "dir"), ShouldBeNil)
			stat, err := afs.Stat("dir")
			So(err, ShouldBeNil)
			So(stat.IsDir(), ShouldBeTrue)
		})
		Convey("creates several nodes", func() {
			So(EnsureDirectory(afs, ".git/objects/pack"), ShouldBeNil)
			stat, err := afs.Stat(".git/objects/pack")
			So(err, ShouldBeNil)
			So(stat.IsDir(), ShouldBeTrue)
		})
		Convey("is idempotent", func() {
			So(EnsureDirectory(afs, "a/b/c"), ShouldBeNil)
			So(EnsureDirectory(afs, "a/b/c"), ShouldBeNil)
			stat, err := afs.Stat("a/b/c")
			So(err, ShouldBeNil)
			So(stat.IsDir(), ShouldBeTrue)
		})
		Convey("extends a partially existing path", func() {
			So(EnsureDirectory(afs, "a"), ShouldBeNil)
			So(EnsureDirectory(afs, "a/b/c"), ShouldBeNil)
			stat, err := afs.Stat("a/b/c")
			So(err, ShouldBeNil)
			So(stat.IsDir(), ShouldBeTrue)
		})
		Convey("normalizes sloppy spellings", func() {
			So(EnsureDirectory(afs, "//x//y/"), ShouldBeNil)
			stat, err := afs.Stat("x/y")
			So(err, ShouldBeNil)
			So(stat.IsDir(), ShouldBeTrue)
		})
		Convey("the empty path is a no-op", func() {
			So(EnsureDirectory(afs, ""), ShouldBeNil)
			So(EnsureDirectory(afs, "."), ShouldBeNil)
		})
	})
}

func TestExists(t *testing.T) {
	Convey("Exists:", t, func() {
		afs := memfs.New()
		So(util.WriteFile(afs, "present", []byte("x"), 0644), ShouldBeNil)

		So(Exists(afs, "present"), ShouldBeTrue)
		So(Exists(afs, "absent"), ShouldBeFalse)
	})
}
