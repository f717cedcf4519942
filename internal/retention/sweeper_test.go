package retention

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	cutoff time.Time
	calls  int
	err    error
}

func (f *fakeLedger) MarkDeletedBefore(_ context.Context, cutoff, _ time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return 1, f.err
}

func touch(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestSweepOnceRemovesExpiredDocuments(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	oldDocx := touch(t, dir, "memo_aaaaaaaa.docx", now.Add(-3*time.Hour))
	oldPDF := touch(t, dir, "memo_aaaaaaaa.pdf", now.Add(-3*time.Hour))
	fresh := touch(t, dir, "memo_bbbbbbbb.docx", now.Add(-time.Minute))
	other := touch(t, dir, "notes.txt", now.Add(-48*time.Hour))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.pdf"), 0o755))

	ledger := &fakeLedger{}
	s := &Sweeper{Dir: dir, MaxAge: time.Hour, Ledger: ledger, Now: func() time.Time { return now }}

	removed, err := s.SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, removed)
	assert.NoFileExists(t, oldDocx)
	assert.NoFileExists(t, oldPDF)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
	assert.DirExists(t, filepath.Join(dir, "old.pdf"))
	assert.Equal(t, 1, ledger.calls)
	assert.Equal(t, now.Add(-time.Hour), ledger.cutoff)
}

func TestSweepOnceDisabled(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "memo_aaaaaaaa.docx", time.Now().Add(-24*time.Hour))

	removed, err := (&Sweeper{Dir: dir}).SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.FileExists(t, path)
}

func TestSweepOnceMissingDir(t *testing.T) {
	s := &Sweeper{Dir: filepath.Join(t.TempDir(), "nope"), MaxAge: time.Minute}
	removed, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSweepOnceReportsLedgerError(t *testing.T) {
	s := &Sweeper{Dir: t.TempDir(), MaxAge: time.Minute, Ledger: &fakeLedger{err: errors.New("db down")}}
	_, err := s.SweepOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, "memo_aaaaaaaa.pdf", time.Now().Add(-time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		(&Sweeper{Dir: dir, MaxAge: time.Minute, Interval: time.Hour}).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
