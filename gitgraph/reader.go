package gitgraph

import (
	"encoding/hex"
	"io/ioutil"
	"sort"
	"strconv"
	"strings"

	. "github.com/warpfork/go-errcat"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/filemode"
	"gopkg.in/src-d/go-git.v4/plumbing/object"
	"gopkg.in/src-d/go-git.v4/plumbing/storer"

	"github.com/powersync-community/powergit/api"
	"github.com/powersync-community/powergit/cache"
)

/*
	Reader resolves commit -> tree -> nested trees -> blob against an
	object storer.

	Every path-walking operation re-derives the tree chain from the
	commit on each call; there is no tree-walk cache here.  Callers
	needing repeated lookups under the same commit cache at a higher
	layer.  A read may observe a partially-indexed store: objects from
	packs not yet processed raise ErrNotFound, and callers surface
	"still indexing" states from the store's progress instead.
*/
type Reader struct {
	storer storer.EncodedObjectStorer
}

func NewReader(st storer.EncodedObjectStorer) *Reader {
	return &Reader{storer: st}
}

// ResolveCommitTree returns the root tree oid of a commit.
func (r *Reader) ResolveCommitTree(commitOid string) (string, error) {
	commit, err := r.commit(commitOid)
	if err != nil {
		return "", err
	}
	return commit.TreeHash.String(), nil
}

/*
	ListTree returns a tree's entries sorted directories-first, then by
	name (case-sensitive ordinal).  That ordering is a presentation
	contract of this subsystem, not anything git requires, and it is
	stable.
*/
func (r *Reader) ListTree(treeOid string) ([]api.TreeEntry, error) {
	hash, err := parseOid(treeOid)
	if err != nil {
		return nil, err
	}
	tree, err := r.tree(hash)
	if err != nil {
		return nil, err
	}
	return listEntries(tree, ""), nil
}

/*
	ListTreeAtPath resolves the commit's root tree and walks each
	segment, requiring every match to be a directory entry.  Fails with
	ErrNotFound naming the first unmatched segment, or ErrNotADirectory
	if a segment resolves to a blob.
*/
func (r *Reader) ListTreeAtPath(commitOid string, segments []string) ([]api.TreeEntry, error) {
	commit, err := r.commit(commitOid)
	if err != nil {
		return nil, err
	}
	tree, err := r.tree(commit.TreeHash)
	if err != nil {
		return nil, err
	}
	base := ""
	for _, segment := range segments {
		entry, ok := findEntry(tree, segment)
		if !ok {
			return nil, Errorf(api.ErrNotFound, "path segment %q not found", segment)
		}
		if entry.Mode != filemode.Dir {
			return nil, Errorf(api.ErrNotADirectory, "%s is not a directory", joinPath(base, segment))
		}
		tree, err = r.tree(entry.Hash)
		if err != nil {
			return nil, err
		}
		base = joinPath(base, segment)
	}
	return listEntries(tree, base), nil
}

/*
	ReadFile walks a slash-separated path from the commit's root tree
	and returns the final blob's bytes and oid.  Fails with ErrNotFound
	for an absent segment, and ErrIsADirectory when the walk needs a
	blob but finds a tree at the final segment -- or the reverse at a
	non-final one.
*/
func (r *Reader) ReadFile(commitOid string, filePath string) (api.FileContent, error) {
	normalized := strings.Trim(cache.Normalize(filePath), "/")
	if normalized == "" || normalized == "." {
		return api.FileContent{}, Errorf(api.ErrUsage, "empty path")
	}
	segments := strings.Split(normalized, "/")

	commit, err := r.commit(commitOid)
	if err != nil {
		return api.FileContent{}, err
	}
	tree, err := r.tree(commit.TreeHash)
	if err != nil {
		return api.FileContent{}, err
	}
	for i, segment := range segments {
		entry, ok := findEntry(tree, segment)
		if !ok {
			return api.FileContent{}, Errorf(api.ErrNotFound, "path segment %q not found", segment)
		}
		if i == len(segments)-1 {
			if entry.Mode == filemode.Dir {
				return api.FileContent{}, Errorf(api.ErrIsADirectory, "%s is a directory", normalized)
			}
			return r.blobContent(entry.Hash)
		}
		if entry.Mode != filemode.Dir {
			return api.FileContent{}, Errorf(api.ErrIsADirectory, "%s: %q is not a directory", normalized, segment)
		}
		tree, err = r.tree(entry.Hash)
		if err != nil {
			return api.FileContent{}, err
		}
	}
	panic("unreachable")
}

func (r *Reader) commit(oid string) (*object.Commit, error) {
	hash, err := parseOid(oid)
	if err != nil {
		return nil, err
	}
	commit, err := object.GetCommit(r.storer, hash)
	if err == plumbing.ErrObjectNotFound {
		return nil, Errorf(api.ErrNotFound, "commit %s not found", oid)
	} else if err != nil {
		return nil, Errorf(api.ErrIO, "read commit %s: %s", oid, err)
	}
	return commit, nil
}

func (r *Reader) tree(hash plumbing.Hash) (*object.Tree, error) {
	tree, err := object.GetTree(r.storer, hash)
	if err == plumbing.ErrObjectNotFound {
		return nil, Errorf(api.ErrNotFound, "tree %s not found", hash)
	} else if err != nil {
		return nil, Errorf(api.ErrIO, "read tree %s: %s", hash, err)
	}
	return tree, nil
}

func (r *Reader) blobContent(hash plumbing.Hash) (api.FileContent, error) {
	blob, err := object.GetBlob(r.storer, hash)
	if err == plumbing.ErrObjectNotFound {
		return api.FileContent{}, Errorf(api.ErrNotFound, "blob %s not found", hash)
	} else if err != nil {
		return api.FileContent{}, Errorf(api.ErrIO, "read blob %s: %s", hash, err)
	}
	reader, err := blob.Reader()
	if err != nil {
		return api.FileContent{}, Errorf(api.ErrIO, "read blob %s: %s", hash, err)
	}
	defer reader.Close()
	content, err := ioutil.ReadAll(reader)
	if err != nil {
		return api.FileContent{}, Errorf(api.ErrIO, "read blob %s: %s", hash, err)
	}
	return api.FileContent{Oid: hash.String(), Content: content}, nil
}

func findEntry(tree *object.Tree, name string) (object.TreeEntry, bool) {
	for _, entry := range tree.Entries {
		if entry.Name == name {
			return entry, true
		}
	}
	return object.TreeEntry{}, false
}

func listEntries(tree *object.Tree, base string) []api.TreeEntry {
	entries := make([]api.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entryType := api.EntryBlob
		if e.Mode == filemode.Dir {
			entryType = api.EntryTree
		}
		entries = append(entries, api.TreeEntry{
			Type: entryType,
			Name: e.Name,
			Path: joinPath(base, e.Name),
			Oid:  e.Hash.String(),
			Mode: strconv.FormatUint(uint64(e.Mode), 8),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type == api.EntryTree
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}

// A git oid must be exactly 40 hex characters.
func parseOid(oid string) (plumbing.Hash, error) {
	if len(oid) != 40 {
		return plumbing.Hash{}, Errorf(api.ErrUsage, "git oids are 40 characters")
	}
	if _, err := hex.DecodeString(oid); err != nil {
		return plumbing.Hash{}, Errorf(api.ErrUsage, "git oids are hex strings")
	}
	return plumbing.NewHash(oid), nil
}
