package packstore

import (
	"io/ioutil"
	"net/url"
	"os"
	"path"

	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/util"
)

/*
	FileKV is the default durable key-value layer: one file per key under
	a base directory on a billy filesystem.  Keys are query-escaped so
	they remain roughly readable as filenames without any normalization
	surprises.
*/
type FileKV struct {
	FS   billy.Filesystem
	Base string
}

func (f FileKV) keyPath(key string) string {
	return path.Join(f.Base, url.QueryEscape(key))
}

func (f FileKV) Get(key string) ([]byte, bool, error) {
	fh, err := f.FS.Open(f.keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer fh.Close()
	data, err := ioutil.ReadAll(fh)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (f FileKV) Put(key string, value []byte) error {
	if err := f.FS.MkdirAll(f.Base, 0755); err != nil && !os.IsExist(err) {
		return err
	}
	return util.WriteFile(f.FS, f.keyPath(key), value, 0644)
}
