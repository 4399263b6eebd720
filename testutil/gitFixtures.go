/*
	Fixture helpers for building real git objects in tests.

	Objects are created directly in a go-git storer, and EncodePack
	rolls a set of them into genuine packfile bytes, so ingestion tests
	exercise the same decode path production packs take.  All helpers
	panic on error; they're fixtures, not subjects.
*/
package testutil

import (
	"bytes"
	"time"

	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/filemode"
	"gopkg.in/src-d/go-git.v4/plumbing/format/packfile"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
	"gopkg.in/src-d/go-git.v4/plumbing/storer"
)

var fixtureTime = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

func MakeBlob(s storer.EncodedObjectStorer, content string) plumbing.Hash {
	obj := s.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		panic(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		panic(err)
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return mustSet(s, obj)
}

func MakeTree(s storer.EncodedObjectStorer, entries ...object.TreeEntry) plumbing.Hash {
	tree := &object.Tree{Entries: entries}
	obj := s.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		panic(err)
	}
	return mustSet(s, obj)
}

func BlobEntry(name string, hash plumbing.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: hash}
}

func TreeEntry(name string, hash plumbing.Hash) object.TreeEntry {
	return object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash}
}

func MakeCommit(s storer.EncodedObjectStorer, tree plumbing.Hash, msg string, parents ...plumbing.Hash) plumbing.Hash {
	sig := object.Signature{Name: "fixture", Email: "fixture@powergit.test", When: fixtureTime}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      msg,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	obj := s.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		panic(err)
	}
	return mustSet(s, obj)
}

// EncodePack rolls the given objects (plus whatever deltas the encoder
// decides on) into packfile bytes.
func EncodePack(s storer.EncodedObjectStorer, hashes ...plumbing.Hash) []byte {
	var buf bytes.Buffer
	enc := packfile.NewEncoder(&buf, s, false)
	if _, err := enc.Encode(hashes, 10); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func mustSet(s storer.EncodedObjectStorer, obj plumbing.EncodedObject) plumbing.Hash {
	hash, err := s.SetEncodedObject(obj)
	if err != nil {
		panic(err)
	}
	return hash
}
