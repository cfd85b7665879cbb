package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/smbclient-go/smbclient"
)

// remote runs file commands against one connected share. Paths use forward
// slashes and are relative to cwd.
type remote struct {
	c   *smbclient.Client
	out io.Writer
	err io.Writer
	cwd string
}

func (r *remote) resolve(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = path.Join("/", r.cwd, p)
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (r *remote) ls(ctx context.Context, p, pattern string) error {
	files, err := r.c.ListDirectory(ctx, r.resolve(p), pattern)
	if err != nil {
		return err
	}

	entries := files[:0]
	for _, f := range files {
		if n := f.Name(); n != "." && n != ".." {
			entries = append(entries, f)
		}
	}

	printFiles(r.out, entries)
	return nil
}

func (r *remote) stat(ctx context.Context, p string) error {
	info, err := r.c.FileInfo(ctx, r.resolve(p))
	if err != nil {
		return err
	}
	printInfo(r.out, info)
	return nil
}

func (r *remote) cat(ctx context.Context, p string) error {
	bs, err := r.c.Download(ctx, r.resolve(p))
	if err != nil {
		return err
	}
	_, err = r.out.Write(bs)
	return err
}

func (r *remote) get(ctx context.Context, src, dst string) error {
	name := r.resolve(src)

	st, err := r.c.FileStat(ctx, name)
	if err != nil {
		return err
	}

	if dst == "" {
		dst = path.Base("/" + name)
	}
	if fi, err := os.Stat(dst); err == nil && fi.IsDir() {
		dst = filepath.Join(dst, path.Base("/"+name))
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}

	fr := r.c.FileReader(name)
	defer fr.Close()

	progress := progressPrinter(r.err, st.Name(), st.Size())

	var done int64
	buf := make([]byte, 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			f.Close()
			return err
		}

		n, rerr := fr.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				f.Close()
				return err
			}
			done += int64(n)
			if st.Size() > 0 {
				progress(float64(done) / float64(st.Size()))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			f.Close()
			return rerr
		}
	}
	if st.Size() == 0 {
		progress(1)
	}

	return f.Close()
}

func (r *remote) put(ctx context.Context, src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return err
	}

	if dst == "" {
		dst = filepath.Base(src)
	}
	name := r.resolve(dst)

	if fi.IsDir() {
		return r.c.UploadLocal(ctx, src, name, func(completed int, file string, sent int64) {
			fmt.Fprintf(r.err, "%4d  %s  %d bytes\n", completed, file, sent)
		})
	}

	if ok, err := r.c.ExistDirectory(ctx, name); err == nil && ok {
		name = r.resolve(path.Join(dst, filepath.Base(src)))
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	return r.c.UploadFrom(ctx, f, fi.Size(), name, progressPrinter(r.err, fi.Name(), fi.Size()))
}

func (r *remote) mkdir(ctx context.Context, p string) error {
	return r.c.CreateDirectory(ctx, r.resolve(p))
}

func (r *remote) rm(ctx context.Context, p string) error {
	name := r.resolve(p)
	if !hasGlobMeta(name) {
		return r.c.DeleteFile(ctx, name)
	}

	matches, err := r.c.Glob(ctx, name)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("%s: no match", p)
	}
	for _, m := range matches {
		if err := r.c.DeleteFile(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *remote) rmdir(ctx context.Context, p string) error {
	return r.c.DeleteDirectory(ctx, r.resolve(p))
}

func (r *remote) mv(ctx context.Context, src, dst string) error {
	return r.c.Move(ctx, r.resolve(src), r.resolve(dst))
}

func (r *remote) cd(ctx context.Context, p string) error {
	name := r.resolve(p)
	if name != "" {
		ok, err := r.c.ExistDirectory(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s: not a directory", p)
		}
	}
	r.cwd = name
	return nil
}

func hasGlobMeta(p string) bool {
	return strings.ContainsAny(p, `*?[`)
}
