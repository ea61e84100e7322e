package object

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Object pairs a key in the bulk download bucket with its place in the
// local cache.
type Object struct {
	Key  string
	Path string
}

// FromURL derives the object for a tile URL such as
// https://opentopography.s3.sdsc.edu/pc-bulk/NZ19_Wellington/tile.laz.
// The first path segment is the bucket and is dropped from the key.
func FromURL(cachePath, rawURL string) (Object, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Object{}, fmt.Errorf("invalid tile URL %q: %w", rawURL, err)
	}
	segments := strings.Split(strings.Trim(path.Clean(u.Path), "/"), "/")
	if len(segments) < 2 {
		return Object{}, fmt.Errorf("tile URL %q has no key below the bucket", rawURL)
	}
	return FromKey(cachePath, strings.Join(segments[1:], "/"))
}

// FromKey places key below cachePath. Keys that would escape the cache are
// rejected.
func FromKey(cachePath, key string) (Object, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return Object{}, errors.New("empty object key")
	}
	return Object{
		Key:  key,
		Path: filepath.Join(cachePath, filepath.FromSlash(key)),
	}, nil
}

// Exists reports whether the object is already in the cache.
func (o Object) Exists() bool {
	info, err := os.Stat(o.Path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
