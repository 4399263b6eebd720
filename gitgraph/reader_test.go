package gitgraph

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/storage/memory"

	"github.com/powersync-community/powergit/api"
	"github.com/powersync-community/powergit/testutil"
)

/*
	Fixture shape:

	  README.md          "hello"
	  src/
	    app.ts           "console.log('app')"
	    lib/
	      util.ts        "export {}"
	  zeta               "last blob, first letter late"
*/
func fixtureRepo() (*memory.Storage, plumbing.Hash) {
	s := memory.NewStorage()
	readme := testutil.MakeBlob(s, "hello")
	app := testutil.MakeBlob(s, "console.log('app')")
	util := testutil.MakeBlob(s, "export {}")
	zeta := testutil.MakeBlob(s, "last blob, first letter late")
	lib := testutil.MakeTree(s, testutil.BlobEntry("util.ts", util))
	src := testutil.MakeTree(s,
		testutil.BlobEntry("app.ts", app),
		testutil.TreeEntry("lib", lib),
	)
	root := testutil.MakeTree(s,
		testutil.BlobEntry("README.md", readme),
		testutil.TreeEntry("src", src),
		testutil.BlobEntry("zeta", zeta),
	)
	commit := testutil.MakeCommit(s, root, "fixture commit")
	return s, commit
}

func TestResolveCommitTree(t *testing.T) {
	Convey("ResolveCommitTree:", t, func() {
		s, commit := fixtureRepo()
		r := NewReader(s)

		Convey("returns the commit's root tree oid", func() {
			treeOid, err := r.ResolveCommitTree(commit.String())
			So(err, ShouldBeNil)
			entries, err := r.ListTree(treeOid)
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 3)
		})
		Convey("an absent commit is not-found", func() {
			_, err := r.ResolveCommitTree(strings.Repeat("0", 39) + "1")
			So(err, errcat.ErrorShouldHaveCategory, api.ErrNotFound)
		})
		Convey("a malformed oid is a usage error", func() {
			_, err := r.ResolveCommitTree("not-an-oid")
			So(err, errcat.ErrorShouldHaveCategory, api.ErrUsage)
		})
	})
}

func TestListTree(t *testing.T) {
	Convey("ListTree:", t, func() {
		s, commit := fixtureRepo()
		r := NewReader(s)
		treeOid, err := r.ResolveCommitTree(commit.String())
		So(err, ShouldBeNil)

		Convey("directories sort before files, then by name", func() {
			entries, err := r.ListTree(treeOid)
			So(err, ShouldBeNil)
			names := []string{}
			for _, e := range entries {
				names = append(names, e.Name)
			}
			So(names, ShouldResemble, []string{"src", "README.md", "zeta"})
			So(entries[0].Type, ShouldEqual, api.EntryTree)
			So(entries[0].Mode, ShouldEqual, "40000")
			So(entries[1].Type, ShouldEqual, api.EntryBlob)
			So(entries[1].Mode, ShouldEqual, "100644")
		})
		Convey("paths are relative to the listed tree", func() {
			entries, err := r.ListTree(treeOid)
			So(err, ShouldBeNil)
			So(entries[0].Path, ShouldEqual, "src")
		})
		Convey("an absent tree is not-found", func() {
			_, err := r.ListTree(strings.Repeat("0", 39) + "1")
			So(err, errcat.ErrorShouldHaveCategory, api.ErrNotFound)
		})
	})
}

func TestListTreeAtPath(t *testing.T) {
	Convey("ListTreeAtPath:", t, func() {
		s, commit := fixtureRepo()
		r := NewReader(s)

		Convey("no segments lists the root", func() {
			entries, err := r.ListTreeAtPath(commit.String(), nil)
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 3)
		})
		Convey("walks nested trees and reports full paths", func() {
			entries, err := r.ListTreeAtPath(commit.String(), []string{"src"})
			So(err, ShouldBeNil)
			names := []string{}
			paths := []string{}
			for _, e := range entries {
				names = append(names, e.Name)
				paths = append(paths, e.Path)
			}
			So(names, ShouldResemble, []string{"lib", "app.ts"})
			So(paths, ShouldResemble, []string{"src/lib", "src/app.ts"})

			entries, err = r.ListTreeAtPath(commit.String(), []string{"src", "lib"})
			So(err, ShouldBeNil)
			So(entries[0].Path, ShouldEqual, "src/lib/util.ts")
		})
		Convey("an absent segment is not-found, naming the segment", func() {
			_, err := r.ListTreeAtPath(commit.String(), []string{"src", "nope"})
			So(err, errcat.ErrorShouldHaveCategory, api.ErrNotFound)
			So(err.Error(), ShouldContainSubstring, "nope")
		})
		Convey("a blob segment is not-a-directory", func() {
			_, err := r.ListTreeAtPath(commit.String(), []string{"README.md"})
			So(err, errcat.ErrorShouldHaveCategory, api.ErrNotADirectory)
		})
	})
}

func TestReadFile(t *testing.T) {
	Convey("ReadFile:", t, func() {
		s, commit := fixtureRepo()
		r := NewReader(s)

		Convey("returns the blob's bytes and oid", func() {
			content, err := r.ReadFile(commit.String(), "src/app.ts")
			So(err, ShouldBeNil)
			So(string(content.Content), ShouldEqual, "console.log('app')")
			So(content.Oid, ShouldNotBeEmpty)

			deep, err := r.ReadFile(commit.String(), "src/lib/util.ts")
			So(err, ShouldBeNil)
			So(string(deep.Content), ShouldEqual, "export {}")
		})
		Convey("tolerates sloppy path spellings", func() {
			content, err := r.ReadFile(commit.String(), "/src//app.ts")
			So(err, ShouldBeNil)
			So(string(content.Content), ShouldEqual, "console.log('app')")
		})
		Convey("reading a directory fails", func() {
			_, err := r.ReadFile(commit.String(), "src")
			So(err, errcat.ErrorShouldHaveCategory, api.ErrIsADirectory)
		})
		Convey("a missing file is not-found", func() {
			_, err := r.ReadFile(commit.String(), "missing.txt")
			So(err, errcat.ErrorShouldHaveCategory, api.ErrNotFound)
		})
		Convey("walking through a blob fails", func() {
			_, err := r.ReadFile(commit.String(), "README.md/x")
			So(err, errcat.ErrorShouldHaveCategory, api.ErrIsADirectory)
		})
		Convey("an empty path is a usage error", func() {
			_, err := r.ReadFile(commit.String(), "")
			So(err, errcat.ErrorShouldHaveCategory, api.ErrUsage)
		})
	})
}
