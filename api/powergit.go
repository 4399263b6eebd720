/*
	This file is all serializable types used in powergit
	to describe incoming packfiles, indexing progress, and tree listings.
*/
package api

import (
	"github.com/polydawn/refmt/obj/atlas"
)

/*
	PackDescriptor identifies one packfile delivered by the sync layer.

	PackOid is a unique identifier for the pack -- assigned by the sync
	layer, not a content hash of the pack's bytes.  Payload is the raw
	packfile content in base64 (the wire form the sync layer hands us).
	CreatedAt is an ordering hint in unix milliseconds; zero means the
	sync layer delivered no creation metadata, and such packs sort first.

	Descriptors are immutable once received.  Submitting the same
	descriptor twice is harmless; the store indexes each pack exactly once.
*/
type PackDescriptor struct {
	OrgID     string
	RepoID    string
	PackOid   string
	Payload   string
	CreatedAt int64
}

type IndexStatus string

const (
	StatusIdle     = IndexStatus("idle")
	StatusIndexing = IndexStatus("indexing")
	StatusReady    = IndexStatus("ready")
	StatusError    = IndexStatus("error")
)

/*
	IndexProgress is the single mutable progress value owned by a store.

	Processed and Total reflect only the currently active batch; both
	reset to zero once a drain completes with no further queued work.

	Transitions: idle -> indexing (queue starts draining) -> ready (queue
	empties without error) or error (a pack failed) -> back to indexing
	if more work is submitted.
*/
type IndexProgress struct {
	Status    IndexStatus
	Processed int
	Total     int
	Error     string
}

type TreeEntryType string

const (
	EntryTree = TreeEntryType("tree")
	EntryBlob = TreeEntryType("blob")
)

/*
	TreeEntry is one line of a git tree object, as surfaced by the object
	graph reader.  Path is the full path from the tree root the listing
	was requested against.  Mode is git's octal mode string ("40000",
	"100644", ...).

	Entries are produced on demand and never cached by this subsystem;
	the underlying object accessor remains the source of truth.
*/
type TreeEntry struct {
	Type TreeEntryType
	Name string
	Path string
	Oid  string
	Mode string
}

/*
	FileContent is the result of reading one blob through the object
	graph reader: the blob's raw bytes plus its oid, so callers can do
	their own caching or identity checks at a higher layer.
*/
type FileContent struct {
	Oid     string
	Content []byte
}

var Atlas = atlas.MustBuild(
	PackDescriptor_AtlasEntry,
	IndexProgress_AtlasEntry,
	TreeEntry_AtlasEntry,
	FileContent_AtlasEntry,
)

var PackDescriptor_AtlasEntry = atlas.BuildEntry(PackDescriptor{}).StructMap().Autogenerate().Complete()
var IndexProgress_AtlasEntry = atlas.BuildEntry(IndexProgress{}).StructMap().Autogenerate().Complete()
var TreeEntry_AtlasEntry = atlas.BuildEntry(TreeEntry{}).StructMap().Autogenerate().Complete()
var FileContent_AtlasEntry = atlas.BuildEntry(FileContent{}).StructMap().Autogenerate().Complete()
