package cache

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	Convey("Normalize:", t, func() {
		Convey("collapses duplicate separators", func() {
			So(Normalize("a//b///c"), ShouldEqual, "a/b/c")
		})
		Convey("converts backslashes", func() {
			So(Normalize("a\\b\\c"), ShouldEqual, "a/b/c")
		})
		Convey("preserves a leading slash", func() {
			So(Normalize("/a//b"), ShouldEqual, "/a/b")
		})
		Convey("resolves dot segments", func() {
			So(Normalize("./a/./b"), ShouldEqual, "a/b")
		})
	})
}

func TestVariants(t *testing.T) {
	Convey("Variants:", t, func() {
		Convey("covers both leading-slash spellings of each input", func() {
			vs := Variants(".git/objects/pack/p.pack", "objects/pack/p.pack")
			So(vs, ShouldContain, ".git/objects/pack/p.pack")
			So(vs, ShouldContain, "/.git/objects/pack/p.pack")
			So(vs, ShouldContain, "objects/pack/p.pack")
			So(vs, ShouldContain, "/objects/pack/p.pack")
		})
		Convey("deduplicates overlapping spellings", func() {
			vs := Variants("a/b", "/a//b")
			So(len(vs), ShouldEqual, 2)
		})
	})
}

func TestByteCache(t *testing.T) {
	Convey("ByteCache:", t, func() {
		c := NewByteCache()
		data := []byte("packbytes")
		vs := Variants(".git/objects/pack/p.pack")

		Convey("Get finds an entry under any stored variant", func() {
			c.Put(vs, data)
			for _, spelling := range []string{
				".git/objects/pack/p.pack",
				"/.git/objects/pack/p.pack",
				".git//objects/pack/p.pack",
			} {
				got, ok := c.Get(spelling)
				So(ok, ShouldBeTrue)
				So(got, ShouldResemble, data)
			}
		})
		Convey("Put stores a copy, not the caller's slice", func() {
			c.Put(vs, data)
			data[0] = 'X'
			got, _ := c.Get(".git/objects/pack/p.pack")
			So(got[0], ShouldEqual, byte('p'))
		})
		Convey("Evict removes all variants", func() {
			c.Put(vs, data)
			c.Evict(vs)
			_, ok := c.Get(".git/objects/pack/p.pack")
			So(ok, ShouldBeFalse)
			So(c.Len(), ShouldEqual, 0)
		})
		Convey("Get misses on an unknown path", func() {
			_, ok := c.Get("nope")
			So(ok, ShouldBeFalse)
		})
	})
}
