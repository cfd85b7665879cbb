package smbclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smbclient-go/smbclient/internal/smb2"
	"github.com/smbclient-go/smbclient/internal/smbtest"

	. "github.com/smbclient-go/smbclient/internal/erref"
)

const (
	testHost     = "fileserver"
	testUser     = "alice"
	testPassword = "Passw0rd!"
	testShare    = "share"
)

func newTestServer(t *testing.T) *smbtest.Server {
	t.Helper()

	srv := smbtest.NewServer(testHost)
	srv.AddAccount(testUser, testPassword)
	srv.AddShare(testShare, "Shared files")
	t.Cleanup(srv.Disconnect)

	return srv
}

func dialTest(t *testing.T, srv *smbtest.Server, cfg *Config) *Client {
	t.Helper()

	if cfg == nil {
		cfg = new(Config)
	}
	cfg.Host = testHost

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := NewClient(ctx, NewDirectTransport(srv.Pipe()), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c
}

// connectTest returns a client logged in with the test account and
// connected to the test share.
func connectTest(t *testing.T, srv *smbtest.Server, cfg *Config) *Client {
	t.Helper()

	c := dialTest(t, srv, cfg)

	ctx := context.Background()
	require.NoError(t, c.Login(ctx, testUser, testPassword, ""))
	require.NoError(t, c.ConnectShare(ctx, `\\`+testHost+`\`+testShare))

	return c
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()

	bs := make([]byte, n)
	_, err := rand.Read(bs)
	require.NoError(t, err)
	return bs
}

func names(files []File) []string {
	ns := make([]string, len(files))
	for i, f := range files {
		ns[i] = f.Name()
	}
	return ns
}

func TestScenario(t *testing.T) {
	srv := newTestServer(t)

	data := randomBytes(t, 10<<20)
	require.NoError(t, srv.WriteFile(testShare, "big.bin", data))
	require.NoError(t, srv.MkdirAll(testShare, "docs"))

	c := dialTest(t, srv, nil)
	ctx := context.Background()

	assert.Equal(t, StateNegotiated, c.State())
	assert.Equal(t, "3.1.1", dialectName(c.Dialect()))

	require.NoError(t, c.Login(ctx, testUser, testPassword, "WORKGROUP"))
	assert.Equal(t, StateAuthenticated, c.State())

	require.NoError(t, c.ConnectShare(ctx, `\\`+testHost+`\`+testShare))
	assert.Equal(t, StateTreeConnected, c.State())
	assert.Equal(t, `\\`+testHost+`\`+testShare, c.Share())

	files, err := c.ListDirectory(ctx, "/", "*")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "big.bin", "docs"}, names(files))
	assert.True(t, files[3].IsDir())
	assert.Equal(t, int64(len(data)), files[2].Size())

	got, err := c.Download(ctx, "big.bin")
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, got), "downloaded content differs")

	var fractions []float64
	err = c.Upload(ctx, got, `docs\copy.bin`, func(f float64) { fractions = append(fractions, f) })
	require.NoError(t, err)
	require.NotEmpty(t, fractions)
	assert.Equal(t, 1.0, fractions[len(fractions)-1])

	again, err := c.Download(ctx, "docs/copy.bin")
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, again), "round-tripped content differs")

	stored, ok := srv.ReadFile(testShare, `docs\copy.bin`)
	require.True(t, ok)
	require.True(t, bytes.Equal(data, stored))

	stats := srv.Stats()
	assert.Zero(t, stats.CreditViolations)
	assert.Zero(t, stats.IdViolations)
	assert.Greater(t, stats.MaxCharge, uint16(1), "large reads should be multi-credit")

	require.NoError(t, c.DisconnectShare(ctx))
	assert.Equal(t, StateAuthenticated, c.State())

	require.NoError(t, c.Logoff(ctx))
	assert.Equal(t, StateLoggedOff, c.State())

	require.NoError(t, c.Close())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestLoginFailure(t *testing.T) {
	srv := newTestServer(t)
	c := dialTest(t, srv, nil)

	err := c.Login(context.Background(), testUser, "wrong", "")
	require.Error(t, err)

	var aerr *AuthenticationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, uint32(STATUS_LOGON_FAILURE), aerr.Code)
	assert.Equal(t, StateNegotiated, c.State())

	require.NoError(t, c.Login(context.Background(), testUser, testPassword, ""))
	assert.ErrorIs(t, c.Login(context.Background(), testUser, testPassword, ""), errAlreadyLoggedIn)
}

func TestNotLoggedIn(t *testing.T) {
	srv := newTestServer(t)
	c := dialTest(t, srv, nil)
	ctx := context.Background()

	assert.ErrorIs(t, c.ConnectShare(ctx, testShare), errNotLoggedIn)

	_, err := c.ListDirectory(ctx, "", "")
	assert.ErrorIs(t, err, errNoShare)

	_, err = c.ListShares(ctx)
	assert.ErrorIs(t, err, errNotLoggedIn)

	require.NoError(t, c.Echo(ctx))
}

func TestConnectShare(t *testing.T) {
	srv := newTestServer(t)
	srv.AddShare("other", "")
	require.NoError(t, srv.WriteFile("other", "only-here.txt", []byte("x")))

	c := connectTest(t, srv, nil)
	ctx := context.Background()

	err := c.ConnectShare(ctx, "missing")
	require.Error(t, err)
	assert.True(t, hasStatus(err, STATUS_BAD_NETWORK_NAME))
	assert.Equal(t, StateAuthenticated, c.State(), "the previous tree is gone")

	require.NoError(t, c.TreeConnect(ctx, "other"))
	assert.Equal(t, `\\`+testHost+`\other`, c.Share())

	ok, err := c.ExistFile(ctx, "only-here.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.TreeDisconnect(ctx))
	assert.ErrorIs(t, c.TreeDisconnect(ctx), errNoShare)
}

func TestListShares(t *testing.T) {
	srv := newTestServer(t)
	srv.AddShare("public", "Public files")

	c := connectTest(t, srv, nil)

	shares, err := c.ListShares(context.Background())
	require.NoError(t, err)

	byName := make(map[string]Share)
	for _, s := range shares {
		byName[s.Name] = s
	}
	require.Len(t, byName, 3)

	assert.True(t, byName["share"].IsDisk())
	assert.Equal(t, "Shared files", byName["share"].Comment)
	assert.True(t, byName["public"].IsDisk())
	assert.True(t, byName["IPC$"].IsIPC())
	assert.True(t, byName["IPC$"].IsAdmin())

	// the connected share is untouched
	assert.Equal(t, StateTreeConnected, c.State())
	_, err = c.ListDirectory(context.Background(), "", "")
	assert.NoError(t, err)
}

func TestListSharesFragmented(t *testing.T) {
	srv := newTestServer(t)
	srv.RPCFragmentSize = 16
	for i := 0; i < 60; i++ {
		srv.AddShare(fmt.Sprintf("share%02d", i), fmt.Sprintf("comment for share %d", i))
	}

	c := connectTest(t, srv, nil)

	shares, err := c.ListShares(context.Background())
	require.NoError(t, err)
	assert.Len(t, shares, 62)
}

func TestDirectoryOperations(t *testing.T) {
	srv := newTestServer(t)
	c := connectTest(t, srv, nil)
	ctx := context.Background()

	require.NoError(t, c.CreateDirectory(ctx, "projects"))
	require.NoError(t, c.CreateDirectory(ctx, `projects\2024`))

	err := c.CreateDirectory(ctx, "projects")
	require.Error(t, err)
	assert.True(t, IsExist(err))
	var perr *os.PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "mkdir", perr.Op)

	ok, err := c.ExistDirectory(ctx, "projects/2024")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Upload(ctx, []byte("plan"), `projects\2024\plan.txt`, nil))

	ok, err = c.ExistDirectory(ctx, `projects\2024\plan.txt`)
	require.NoError(t, err)
	assert.False(t, ok)

	files, err := c.ListDirectory(ctx, "projects/2024", "*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"plan.txt"}, names(files))

	files, err = c.ListDirectory(ctx, "projects/2024", "*.doc")
	require.NoError(t, err)
	assert.Empty(t, files)

	err = c.DeleteDirectory(ctx, "projects")
	require.Error(t, err)
	assert.True(t, hasStatus(err, STATUS_DIRECTORY_NOT_EMPTY))

	require.NoError(t, c.Move(ctx, "projects", "archive"))
	assert.True(t, srv.Exists(testShare, `archive\2024\plan.txt`))
	assert.False(t, srv.Exists(testShare, "projects"))

	require.NoError(t, c.DeleteFile(ctx, `archive\2024\plan.txt`))
	require.NoError(t, c.DeleteDirectory(ctx, `archive\2024`))
	require.NoError(t, c.DeleteDirectory(ctx, "archive"))

	_, err = c.ListDirectory(ctx, "archive", "")
	assert.True(t, IsNotExist(err))
}

func TestMove(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.WriteFile(testShare, "a.txt", []byte("a")))
	require.NoError(t, srv.WriteFile(testShare, "b.txt", []byte("b")))

	c := connectTest(t, srv, nil)
	ctx := context.Background()

	err := c.Move(ctx, "a.txt", "b.txt")
	require.Error(t, err)
	var lerr *os.LinkError
	require.ErrorAs(t, err, &lerr)
	assert.True(t, IsExist(err))

	err = c.Rename(ctx, "a.txt", "")
	require.ErrorAs(t, err, &lerr)
	assert.ErrorIs(t, err, os.ErrInvalid)

	err = c.Rename(ctx, "missing.txt", "c.txt")
	require.ErrorAs(t, err, &lerr)
	assert.True(t, IsNotExist(err))

	require.NoError(t, c.Rename(ctx, "a.txt", "c.txt"))

	data, ok := srv.ReadFile(testShare, "c.txt")
	require.True(t, ok)
	assert.Equal(t, []byte("a"), data)
}

func TestExistFileIdempotent(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.WriteFile(testShare, `dir\file.txt`, []byte("hello")))

	c := connectTest(t, srv, nil)
	ctx := context.Background()

	for _, tc := range []struct {
		path string
		want bool
	}{
		{`dir\file.txt`, true},
		{"dir/file.txt", true},
		{"dir", false},
		{"missing.txt", false},
		{`nodir\missing.txt`, false},
	} {
		for i := 0; i < 3; i++ {
			ok, err := c.ExistFile(ctx, tc.path)
			require.NoError(t, err, tc.path)
			assert.Equal(t, tc.want, ok, tc.path)
		}
	}

	// nothing was created or left open
	assert.False(t, srv.Exists(testShare, "missing.txt"))
	got, err := c.Download(ctx, "dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestInvalidPath(t *testing.T) {
	srv := newTestServer(t)
	c := connectTest(t, srv, nil)

	_, err := c.FileStat(context.Background(), `..\escape`)
	var perr *os.PathError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, os.ErrInvalid)
}

func TestFileStatAndInfo(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.WriteFile(testShare, `dir\report.csv`, bytes.Repeat([]byte("a,b\n"), 1000)))

	c := connectTest(t, srv, nil)
	ctx := context.Background()

	st, err := c.FileStat(ctx, "dir/report.csv")
	require.NoError(t, err)
	assert.Equal(t, "report.csv", st.Name())
	assert.Equal(t, int64(4000), st.Size())
	assert.False(t, st.IsDir())
	assert.WithinDuration(t, time.Now(), st.ModTime(), time.Minute)

	st, err = c.FileStat(ctx, "dir")
	require.NoError(t, err)
	assert.True(t, st.IsDir())
	assert.True(t, st.Mode().IsDir())

	info, err := c.FileInfo(ctx, `dir\report.csv`)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), info.EndOfFile)
	assert.Equal(t, uint32(1), info.NumberOfLinks)
	assert.False(t, info.DeletePending)
	assert.NotZero(t, info.IndexNumber)

	_, err = c.FileInfo(ctx, "nope")
	assert.True(t, IsNotExist(err))
}

func TestFileReaderWriter(t *testing.T) {
	srv := newTestServer(t)
	c := connectTest(t, srv, nil)
	ctx := context.Background()

	w := c.FileWriter("notes.txt")
	_, err := w.Write([]byte("hello "))
	require.NoError(t, err)
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)
	_, err = w.WriteAt([]byte("W"), 6)
	require.NoError(t, err)
	require.NoError(t, w.Sync(ctx))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	r := c.FileReader("notes.txt")
	defer r.Close()

	buf := make([]byte, 5)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = r.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "World", string(buf[:n]))

	n, err = r.ReadAt(buf, 9)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "ld", string(buf[:n]))

	_, err = c.FileReader("missing").Read(buf)
	assert.True(t, IsNotExist(err))

	_, err = c.FileReader("").Read(buf)
	assert.True(t, hasStatus(err, STATUS_FILE_IS_A_DIRECTORY))
}

func TestUploadFrom(t *testing.T) {
	srv := newTestServer(t)
	srv.MaxWriteSize = 64 * 1024
	c := connectTest(t, srv, nil)
	ctx := context.Background()

	data := randomBytes(t, 300*1024)

	var calls int
	require.NoError(t, c.UploadFrom(ctx, bytes.NewReader(data), int64(len(data)), "from.bin", func(float64) { calls++ }))
	assert.Equal(t, 5, calls)

	got, ok := srv.ReadFile(testShare, "from.bin")
	require.True(t, ok)
	assert.True(t, bytes.Equal(data, got))

	err := c.UploadFrom(ctx, bytes.NewReader(data[:10]), 20, "short.bin", nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var last float64
	require.NoError(t, c.UploadFrom(ctx, bytes.NewReader(data), 0, "unknown.bin", func(f float64) { last = f }))
	assert.Equal(t, 1.0, last)
}

func TestUploadLocal(t *testing.T) {
	srv := newTestServer(t)
	c := connectTest(t, srv, nil)
	ctx := context.Background()

	root := t.TempDir()
	files := map[string][]byte{
		"a.txt":          []byte("alpha"),
		"sub/b.txt":      []byte("bravo"),
		"sub/deep/c.bin": randomBytes(t, 200*1024),
	}
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	var completed int
	done := make(map[string]int64)
	err := c.UploadLocal(ctx, root, "backup", func(n int, file string, sent int64) {
		completed = n
		done[file] = sent
	})
	require.NoError(t, err)
	assert.Equal(t, len(files), completed)

	for name, data := range files {
		got, ok := srv.ReadFile(testShare, `backup\`+filepath.FromSlash(name))
		require.True(t, ok, name)
		assert.True(t, bytes.Equal(data, got), name)
		assert.Equal(t, int64(len(data)), done[name], name)
	}
	assert.True(t, srv.Exists(testShare, `backup\empty`))

	// uploading again over existing directories
	require.NoError(t, c.UploadLocal(ctx, root, "backup", nil))

	single := filepath.Join(root, "a.txt")
	require.NoError(t, c.UploadLocal(ctx, single, "single.txt", nil))
	got, ok := srv.ReadFile(testShare, "single.txt")
	require.True(t, ok)
	assert.Equal(t, files["a.txt"], got)
}

func TestPendingReads(t *testing.T) {
	srv := newTestServer(t)
	srv.PendingReads = true

	data := randomBytes(t, 3<<20)
	require.NoError(t, srv.WriteFile(testShare, "slow.bin", data))

	c := connectTest(t, srv, nil)

	got, err := c.Download(context.Background(), "slow.bin")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
	assert.Zero(t, srv.Stats().CreditViolations)
}

func TestDisconnectDuringDownload(t *testing.T) {
	srv := newTestServer(t)
	srv.MaxReadSize = 64 * 1024
	srv.DisconnectOnRead = 3

	require.NoError(t, srv.WriteFile(testShare, "big.bin", randomBytes(t, 1<<20)))

	var calls atomic.Int32
	fired := make(chan error, 4)
	c := connectTest(t, srv, &Config{
		OnDisconnect: func(err error) {
			calls.Add(1)
			fired <- err
		},
	})

	_, err := c.Download(context.Background(), "big.bin")
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, IsDisconnected(err))

	select {
	case cbErr := <-fired:
		assert.ErrorAs(t, cbErr, &terr)
	case <-time.After(5 * time.Second):
		t.Fatal("disconnect callback did not fire")
	}

	assert.Equal(t, StateDisconnected, c.State())

	_, err = c.ListDirectory(context.Background(), "", "")
	assert.True(t, IsDisconnected(err))

	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), calls.Load())
}

// A caller waiting for credits when the connection drops gets the
// transport error instead of waiting forever.
func TestDisconnectWithoutCredits(t *testing.T) {
	srv := newTestServer(t)
	srv.MaxReadSize = 64 * 1024
	srv.DisconnectOnRead = 2

	require.NoError(t, srv.WriteFile(testShare, "big.bin", randomBytes(t, 1<<20)))

	c := connectTest(t, srv, &Config{MaxCreditBalance: 1})

	const workers = 4
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := c.Download(context.Background(), "big.bin")
			errs <- err
		}()
	}

	for i := 0; i < workers; i++ {
		select {
		case err := <-errs:
			require.Error(t, err)
			assert.True(t, IsDisconnected(err), "%v", err)
		case <-time.After(5 * time.Second):
			t.Fatalf("download %d still blocked after disconnect", i)
		}
	}

	assert.Equal(t, StateDisconnected, c.State())
}

func TestStrayResponses(t *testing.T) {
	srv := newTestServer(t)
	srv.MaxCredits = 4
	srv.StrayEchoCredits = 8
	require.NoError(t, srv.WriteFile(testShare, "f.txt", []byte("data")))

	c := connectTest(t, srv, &Config{MaxCreditBalance: 64})
	ctx := context.Background()

	require.NoError(t, c.Echo(ctx))
	// responses are dispatched in order, so the strays of the first ECHO
	// have been handled once the second one returns
	require.NoError(t, c.Echo(ctx))

	assert.GreaterOrEqual(t, c.conn.account.balance(), 16, "credits of unmatched responses are granted")

	got, err := c.Download(ctx, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
	assert.Equal(t, StateTreeConnected, c.State())

	stats := srv.Stats()
	assert.Zero(t, stats.CreditViolations)
	assert.Zero(t, stats.IdViolations)
}

func TestStateDuringLogin(t *testing.T) {
	srv := newTestServer(t)

	var once sync.Once
	held := make(chan struct{})
	release := make(chan struct{})
	srv.Hold = func(cmd smb2.Command) {
		if cmd == smb2.SMB2_SESSION_SETUP {
			once.Do(func() { close(held) })
			<-release
		}
	}

	c := dialTest(t, srv, nil)

	errs := make(chan error, 1)
	go func() {
		errs <- c.Login(context.Background(), testUser, testPassword, "")
	}()

	select {
	case <-held:
	case <-time.After(5 * time.Second):
		t.Fatal("SESSION_SETUP did not arrive")
	}

	var (
		state State
		share string
	)
	done := make(chan struct{})
	go func() {
		state = c.State()
		share = c.Share()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		close(release)
		t.Fatal("State and Share blocked during login")
	}

	assert.Equal(t, StateAuthenticating, state)
	assert.Empty(t, share)

	close(release)
	require.NoError(t, <-errs)
	assert.Equal(t, StateAuthenticated, c.State())
}

func TestClosedClient(t *testing.T) {
	srv := newTestServer(t)
	c := connectTest(t, srv, nil)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Download(context.Background(), "x")
	assert.True(t, IsDisconnected(err))
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestCanceledContext(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.WriteFile(testShare, "f.txt", []byte("data")))

	c := connectTest(t, srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Download(ctx, "f.txt")
	require.Error(t, err)
	var cerr *ContextError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, context.Canceled)

	// the connection is still usable
	got, err := c.Download(context.Background(), "f.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}

func TestConcurrentTransfers(t *testing.T) {
	srv := newTestServer(t)
	srv.MaxCredits = 64

	// the first READs wait for each other so that requests overlap on a
	// single CPU too
	const overlap = 2
	var reads atomic.Int32
	together := make(chan struct{})
	srv.Hold = func(cmd smb2.Command) {
		if cmd != smb2.SMB2_READ {
			return
		}
		if reads.Add(1) == overlap {
			close(together)
		}
		select {
		case <-together:
		case <-time.After(10 * time.Second):
		}
	}

	const workers = 12
	files := make([][]byte, workers)
	for i := range files {
		files[i] = randomBytes(t, 1<<20+i*4096)
		require.NoError(t, srv.WriteFile(testShare, fmt.Sprintf("f%02d.bin", i), files[i]))
	}

	c := connectTest(t, srv, &Config{MaxCreditBalance: 32})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			name := fmt.Sprintf("f%02d.bin", i)
			got, err := c.Download(ctx, name)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(files[i], got) {
				errs <- fmt.Errorf("%s: content differs", name)
				return
			}
			if err := c.Upload(ctx, got, "copy-"+name, nil); err != nil {
				errs <- err
			}
			if _, err := c.ListDirectory(ctx, "", "f*"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	stats := srv.Stats()
	assert.Zero(t, stats.CreditViolations, "a request was sent without credits")
	assert.Zero(t, stats.IdViolations, "a message id was reused")
	assert.LessOrEqual(t, stats.MaxCharge, uint16(16))
	assert.GreaterOrEqual(t, stats.MaxOutstanding, overlap)

	for i := range files {
		got, ok := srv.ReadFile(testShare, fmt.Sprintf("copy-f%02d.bin", i))
		require.True(t, ok)
		assert.True(t, bytes.Equal(files[i], got))
	}
}

func TestSmallCreditBalance(t *testing.T) {
	srv := newTestServer(t)

	data := randomBytes(t, 2<<20)
	require.NoError(t, srv.WriteFile(testShare, "f.bin", data))

	c := connectTest(t, srv, &Config{MaxCreditBalance: 2})

	got, err := c.Download(context.Background(), "f.bin")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))

	stats := srv.Stats()
	assert.Zero(t, stats.CreditViolations)
	assert.LessOrEqual(t, stats.MaxCharge, uint16(2))
}

func TestOldDialect(t *testing.T) {
	srv := newTestServer(t)
	srv.Dialect = 0x0202
	srv.Capabilities = 0x00000001 // DFS only, no LARGE_MTU

	data := randomBytes(t, 200*1024)
	require.NoError(t, srv.WriteFile(testShare, "f.bin", data))

	c := connectTest(t, srv, nil)
	assert.Equal(t, "2.0.2", dialectName(c.Dialect()))

	got, err := c.Download(context.Background(), "f.bin")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
	assert.Equal(t, uint16(1), srv.Stats().MaxCharge)
}
