package sharedfile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func openShared(t *testing.T, dir, name string, content []byte) *SharedFile {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	return New(f)
}

func TestPreadZeroLenIsError(t *testing.T) {
	dir := t.TempDir()
	sf := openShared(t, dir, "a.bin", []byte("hello"))
	defer sf.Close()

	var called bool
	sf.Pread(nil, 0, 0, func(_ *SharedFile, data []byte, err error) {
		called = true
		require.Error(t, err)
		require.Nil(t, data)
	})
	require.True(t, called)
}

func TestPwriteZeroLenIsNoopSuccess(t *testing.T) {
	dir := t.TempDir()
	sf := openShared(t, dir, "b.bin", []byte("hello"))
	defer sf.Close()

	var n int
	var err error
	sf.Pwrite(nil, WriteOptions{}, 0, nil, func(_ *SharedFile, got int, gotErr error) {
		n, err = got, gotErr
	})
	require.NoError(t, err)
	require.Zero(t, n)
}

// TestPreadContinuesCorrectlyAtNonzeroOffset is the regression test for
// the prefix-length-vs-absolute-offset indexing bug: reading at a
// nonzero offset must land the transferred bytes at the front of the
// caller's buffer, not at buf[pos:], which would run past the end of a
// len-sized buffer whenever pos >= len.
func TestPreadContinuesCorrectlyAtNonzeroOffset(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 64)
	for i := range content {
		content[i] = byte(i)
	}
	sf := openShared(t, dir, "c.bin", content)
	defer sf.Close()

	const offset = 40 // offset >= the read length below
	const length = 8
	var data []byte
	var err error
	sf.Pread(nil, offset, length, func(_ *SharedFile, got []byte, gotErr error) {
		data, err = got, gotErr
	})
	require.NoError(t, err)
	require.Equal(t, content[offset:offset+length], data)
}

// TestPwriteContinuesCorrectlyAtNonzeroOffset mirrors the read-side
// regression for Pwrite: the bytes written at a large offset must be
// exactly the caller's payload, not a slice indexed off the end of it.
func TestPwriteContinuesCorrectlyAtNonzeroOffset(t *testing.T) {
	dir := t.TempDir()
	sf := openShared(t, dir, "d.bin", make([]byte, 128))
	defer sf.Close()

	const offset = 100 // offset >= len(payload)
	payload := []byte("taskflow")

	var n int
	var err error
	sf.Pwrite(nil, WriteOptions{Kind: WriteSync}, offset, payload, func(_ *SharedFile, got int, gotErr error) {
		n, err = got, gotErr
	})
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	readBack := make([]byte, len(payload))
	f, ferr := os.Open(filepath.Join(dir, "d.bin"))
	require.NoError(t, ferr)
	defer f.Close()
	_, rerr := f.ReadAt(readBack, offset)
	require.NoError(t, rerr)
	require.Equal(t, payload, readBack)
}

// TestFpreadIntoOffsetBuffer verifies Fpread lands the transferred
// bytes at bufOffset within the caller's buffer and leaves the rest
// untouched, unlike Pread which always returns a freshly allocated
// slice starting at index zero.
func TestFpreadIntoOffsetBuffer(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 64)
	for i := range content {
		content[i] = byte(i)
	}
	sf := openShared(t, dir, "g.bin", content)
	defer sf.Close()

	const fileOffset = 40
	const length = 8
	const bufOffset = 3
	buf := make([]byte, bufOffset+length+5)
	for i := range buf {
		buf[i] = 0xAA
	}

	var n int
	var err error
	sf.Fpread(nil, buf, bufOffset, fileOffset, length, func(_ *SharedFile, got int, gotErr error) {
		n, err = got, gotErr
	})
	require.NoError(t, err)
	require.Equal(t, length, n)
	require.Equal(t, content[fileOffset:fileOffset+length], buf[bufOffset:bufOffset+length])
	require.Equal(t, byte(0xAA), buf[0])
	require.Equal(t, byte(0xAA), buf[bufOffset+length])
}

func TestFpreadRejectsBufferTooSmall(t *testing.T) {
	dir := t.TempDir()
	sf := openShared(t, dir, "h.bin", []byte("hello world"))
	defer sf.Close()

	buf := make([]byte, 4)
	var called bool
	sf.Fpread(nil, buf, 2, 0, 4, func(_ *SharedFile, n int, err error) {
		called = true
		require.Error(t, err)
		require.Zero(t, n)
	})
	require.True(t, called)
}

func TestConcurrentPreadsFromClonedHandles(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 4096)
	for i := range content {
		content[i] = byte(i % 256)
	}
	sf := openShared(t, dir, "e.bin", content)
	defer sf.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		offset := int64(i * 16)
		clone := sf.Clone()
		wg.Add(1)
		go func(offset int64, h *SharedFile) {
			defer wg.Done()
			defer h.Close()
			var data []byte
			var err error
			h.Pread(nil, offset, 16, func(_ *SharedFile, got []byte, gotErr error) {
				data, err = got, gotErr
			})
			require.NoError(t, err)
			require.Equal(t, content[offset:offset+16], data)
		}(offset, clone)
	}
	wg.Wait()
}

func TestRefcountClosesOnlyAfterLastHandle(t *testing.T) {
	dir := t.TempDir()
	sf := openShared(t, dir, "f.bin", []byte("data"))
	clone := sf.Clone()

	require.NoError(t, sf.Close())

	// The underlying descriptor must still be usable through clone.
	var data []byte
	var err error
	clone.Pread(nil, 0, 4, func(_ *SharedFile, got []byte, gotErr error) {
		data, err = got, gotErr
	})
	require.NoError(t, err)
	require.Equal(t, []byte("data"), data)

	require.NoError(t, clone.Close())
}
