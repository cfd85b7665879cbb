package smbclient

import (
	"context"
	"io"
	"io/fs"
	"sort"
)

type shareFS struct {
	c    *Client
	ctx  context.Context
	root string
}

// ShareFS returns a read-only fs.FS rooted at dir on the connected share.
// Every operation runs under ctx.
func (c *Client) ShareFS(ctx context.Context, dir string) fs.FS {
	return &shareFS{
		c:    c,
		ctx:  ctx,
		root: normPath(dir),
	}
}

func (sfs *shareFS) path(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return join(sfs.root, normPath(name)), nil
}

func (sfs *shareFS) Open(name string) (fs.File, error) {
	path, err := sfs.path("open", name)
	if err != nil {
		return nil, err
	}

	st, err := sfs.c.FileStat(sfs.ctx, path)
	if err != nil {
		return nil, err
	}

	if st.IsDir() {
		return &dirFile{fs: sfs, path: path, stat: st}, nil
	}

	r := sfs.c.FileReader(path)
	r.ctx = sfs.ctx

	return &regularFile{FileReader: r, stat: st}, nil
}

func (sfs *shareFS) Stat(name string) (fs.FileInfo, error) {
	path, err := sfs.path("stat", name)
	if err != nil {
		return nil, err
	}
	return sfs.c.FileStat(sfs.ctx, path)
}

func (sfs *shareFS) ReadFile(name string) ([]byte, error) {
	path, err := sfs.path("readfile", name)
	if err != nil {
		return nil, err
	}
	return sfs.c.Download(sfs.ctx, path)
}

func (sfs *shareFS) ReadDir(name string) ([]fs.DirEntry, error) {
	path, err := sfs.path("readdir", name)
	if err != nil {
		return nil, err
	}
	return sfs.readDir(path)
}

func (sfs *shareFS) readDir(path string) ([]fs.DirEntry, error) {
	files, err := sfs.c.ListDirectory(sfs.ctx, path, "*")
	if err != nil {
		return nil, err
	}

	dirents := make([]fs.DirEntry, 0, len(files))
	for i := range files {
		if n := files[i].Name(); n == "." || n == ".." {
			continue
		}
		dirents = append(dirents, fs.FileInfoToDirEntry(&files[i].FileStat))
	}

	sort.Slice(dirents, func(i, j int) bool {
		return dirents[i].Name() < dirents[j].Name()
	})

	return dirents, nil
}

type regularFile struct {
	*FileReader
	stat *FileStat
}

func (f *regularFile) Stat() (fs.FileInfo, error) {
	return f.stat, nil
}

type dirFile struct {
	fs   *shareFS
	path string
	stat *FileStat

	entries []fs.DirEntry
	read    bool
}

func (d *dirFile) Stat() (fs.FileInfo, error) {
	return d.stat, nil
}

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: fs.ErrInvalid}
}

func (d *dirFile) Close() error {
	return nil
}

func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.read {
		entries, err := d.fs.readDir(d.path)
		if err != nil {
			return nil, err
		}
		d.entries = entries
		d.read = true
	}

	if n <= 0 {
		entries := d.entries
		d.entries = nil
		return entries, nil
	}

	if len(d.entries) == 0 {
		return nil, io.EOF
	}

	if n > len(d.entries) {
		n = len(d.entries)
	}
	entries := d.entries[:n]
	d.entries = d.entries[n:]
	return entries, nil
}
