// Package asyncfile provides a sequential, owned asynchronous file
// engine: every open, read, write, rename, and remove runs as a task
// submitted through a Submitter (typically a worker.Pool), and a
// multi-chunk read or write resubmits itself as a fresh task between
// chunks rather than blocking a worker goroutine on a long transfer.
package asyncfile

import (
	"errors"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	taskflowerrors "github.com/taskflow-go/taskflow/pkg/errors"
	"github.com/taskflow-go/taskflow/pkg/task"
)

// Submitter is the subset of worker.Pool the file engine dispatches
// through. Declared locally, as timingwheel.Submitter is, so this
// package never imports worker.
type Submitter interface {
	Submit(typ task.Type, priority uint64, label string, thunk task.Thunk)
}

// Reference priority values for each file operation.
const (
	OpenPriority   uint64 = 10
	ReadPriority   uint64 = 100
	WritePriority  uint64 = 60
	RenamePriority uint64 = 30
	RemovePriority uint64 = 10
)

const (
	openLabel   = "open async file"
	readLabel   = "read async file"
	writeLabel  = "write async file"
	renameLabel = "rename async file"
	removeLabel = "remove async file"
)

// defaultBlockSize is used when the filesystem's preferred I/O block
// size can't be determined.
const defaultBlockSize = 8192

// OpenMode selects which combination of read/write/append/create flags
// Open uses, mirroring the reference design's AsynFileOptions. The
// payload is a block-count multiplier applied to the filesystem's
// preferred I/O block size to size the file's internal buffer.
type OpenMode struct {
	flag   int
	blocks int
}

func OnlyRead(blocks int) OpenMode   { return OpenMode{os.O_RDONLY, blocks} }
func OnlyWrite(blocks int) OpenMode  { return OpenMode{os.O_WRONLY | os.O_CREATE, blocks} }
func OnlyAppend(blocks int) OpenMode { return OpenMode{os.O_WRONLY | os.O_APPEND | os.O_CREATE, blocks} }
func ReadAppend(blocks int) OpenMode {
	return OpenMode{os.O_RDWR | os.O_APPEND | os.O_CREATE, blocks}
}
func ReadWrite(blocks int) OpenMode { return OpenMode{os.O_RDWR | os.O_CREATE, blocks} }

// WriteKind selects what durability guarantee a Write call makes once
// the bytes have been transferred.
type WriteKind int

const (
	// WriteNone returns as soon as the bytes are written to the OS buffer.
	WriteNone WriteKind = iota
	// WriteFlush flushes the Go-level buffer (a no-op for *os.File,
	// kept for symmetry with the reference design's buffered writer).
	WriteFlush
	// WriteSync calls Sync (fsync) after writing.
	WriteSync
	// WriteSyncAll is identical to WriteSync for a plain *os.File; the
	// reference design distinguishes sync_data from sync_all only for
	// filesystems where metadata and data syncs are separate calls.
	WriteSyncAll
)

// WriteOptions controls what durability guarantee a Write performs once
// its bytes have landed in the kernel.
type WriteOptions struct {
	Kind WriteKind
}

// ReadCallback receives the bytes read, or a non-nil error. A clean EOF
// with zero bytes transferred is reported as a nil error with a
// zero-length slice, matching invariant S2.
type ReadCallback func(data []byte, err error)

// WriteCallback receives the number of bytes written, or a non-nil
// error.
type WriteCallback func(n int, err error)

// OpenCallback receives the opened File, or a non-nil error.
type OpenCallback func(f *File, err error)

// RenameCallback receives the rename outcome.
type RenameCallback func(from, to string, err error)

// RemoveCallback receives the remove outcome.
type RemoveCallback func(err error)

// File is an owned asynchronous file: reads and writes against it are
// sequenced one at a time by the caller (use SharedFile for concurrent
// positional access from multiple goroutines).
type File struct {
	inner      *os.File
	bufferSize int
}

// Open opens path under mode and submits the work to sub at
// OpenPriority. callback runs on whichever worker services the task.
func Open(sub Submitter, path string, mode OpenMode, callback OpenCallback) {
	fn := func() {
		f, err := os.OpenFile(path, mode.flag, 0644)
		if err != nil {
			callback(nil, taskflowerrors.New(taskflowerrors.KindOpenFailed, "open", err))
			return
		}
		blocks := mode.blocks
		if blocks <= 0 {
			blocks = 1
		}
		callback(&File{inner: f, bufferSize: blockSize(f) * blocks}, nil)
	}
	submit(sub, OpenPriority, openLabel, fn)
}

// Rename renames from to to and submits the work to sub at
// RenamePriority.
func Rename(sub Submitter, from, to string, callback RenameCallback) {
	fn := func() {
		err := os.Rename(from, to)
		if err != nil {
			err = taskflowerrors.New(taskflowerrors.KindIO, "rename", err)
		}
		callback(from, to, err)
	}
	submit(sub, RenamePriority, renameLabel, fn)
}

// Remove removes path and submits the work to sub at RemovePriority.
func Remove(sub Submitter, path string, callback RemoveCallback) {
	fn := func() {
		err := os.Remove(path)
		if err != nil {
			err = taskflowerrors.New(taskflowerrors.KindIO, "remove", err)
		}
		callback(err)
	}
	submit(sub, RemovePriority, removeLabel, fn)
}

// Close closes the underlying file descriptor.
func (f *File) Close() error { return f.inner.Close() }

// Size returns the file's current length.
func (f *File) Size() (int64, error) {
	info, err := f.inner.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ModifiedTime returns how long ago the file was last modified.
func (f *File) ModifiedTime() (time.Duration, error) {
	info, err := f.inner.Stat()
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}

// IsSymlink reports whether the path this File was opened from is a
// symlink. Since Open follows symlinks transparently, this is almost
// always false for a successfully opened File; it is kept for parity
// with the reference design's metadata inspectors.
func (f *File) IsSymlink() (bool, error) {
	info, err := f.inner.Stat()
	if err != nil {
		return false, err
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

// IsFile reports whether the underlying descriptor refers to a regular
// file, as opposed to a directory, device, or other special file.
func (f *File) IsFile() (bool, error) {
	info, err := f.inner.Stat()
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// IsOnlyRead reports whether no write permission bit is set for owner,
// group, or other.
func (f *File) IsOnlyRead() (bool, error) {
	info, err := f.inner.Stat()
	if err != nil {
		return false, err
	}
	return info.Mode().Perm()&0222 == 0, nil
}

// AccessedTime returns how long ago the file was last read, derived
// from the platform stat's atime field since os.FileInfo exposes only
// ModTime.
func (f *File) AccessedTime() (time.Duration, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(int(f.inner.Fd()), &stat); err != nil {
		return 0, err
	}
	return time.Since(time.Unix(stat.Atim.Sec, stat.Atim.Nsec)), nil
}

// CreatedTime returns how long ago the file's inode was last changed.
// Linux's stat(2) has no true birth-time field; ctime (metadata
// change time) is the closest available approximation and is what the
// reference design's platforms fall back to as well.
func (f *File) CreatedTime() (time.Duration, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(int(f.inner.Fd()), &stat); err != nil {
		return 0, err
	}
	return time.Since(time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)), nil
}

// Read transfers up to len bytes starting at pos in chunks of at most
// the file's buffer size, resubmitting itself as a fresh task after
// each full chunk until len bytes have been transferred; a short chunk
// is treated as EOF and ends the transfer. sub may be nil, in which case the
// continuation runs inline on the calling goroutine instead of being
// resubmitted — useful for tests and for callers driving their own
// executor.
func (f *File) Read(sub Submitter, pos int64, length int, callback ReadCallback) {
	if length <= 0 {
		callback(nil, nil)
		return
	}
	size := length
	if f.bufferSize > 0 && f.bufferSize < size {
		size = f.bufferSize
	}
	buf := make([]byte, length)
	f.readChunk(sub, buf, pos, 0, size, callback)
}

// readChunk reads into buf[written:written+want] at absolute file
// offset pos. want is this chunk's size (at most bufferSize); the
// total target length is len(buf). A full chunk with more of the
// target remaining resubmits itself for the next chunk; a short chunk
// means EOF.
func (f *File) readChunk(sub Submitter, buf []byte, pos int64, written, want int, callback ReadCallback) {
	fn := func() {
		n, err := f.inner.ReadAt(buf[written:written+want], pos)
		switch {
		case err != nil && isEINTR(err):
			f.readChunk(sub, buf, pos, written, want, callback)
		case err != nil && err != io.EOF:
			callback(nil, taskflowerrors.New(taskflowerrors.KindIO, "read", err))
		case n < want:
			// Short read: EOF. Hand back whatever prefix was
			// transferred rather than treating it as an error.
			callback(buf[:written+n], nil)
		case written+n >= len(buf):
			// Target length fully transferred.
			callback(buf[:written+n], nil)
		default:
			// Full chunk, more of the target remains: resubmit.
			nextWritten := written + n
			nextWant := f.bufferSize
			if remaining := len(buf) - nextWritten; nextWant <= 0 || nextWant > remaining {
				nextWant = remaining
			}
			f.readChunk(sub, buf, pos+int64(n), nextWritten, nextWant, callback)
		}
	}
	submit(sub, ReadPriority, readLabel, fn)
}

// Write transfers bytes starting at pos, resubmitting itself as a
// fresh task between short writes. Once every byte has landed, opts
// selects what durability guarantee (if any) to apply before callback
// runs.
func (f *File) Write(sub Submitter, opts WriteOptions, pos int64, bytes []byte, callback WriteCallback) {
	if len(bytes) == 0 {
		callback(0, nil)
		return
	}
	f.writeChunk(sub, opts, bytes, pos, 0, callback)
}

// writeChunk writes bytes[written:] at absolute file offset pos,
// indexing the buffer by the prefix-length already written rather than
// by absolute offset — the buffer and the file do not share an origin
// once pos is nonzero, so indexing by pos here would run off the end
// of bytes for any write beginning past len(bytes). See sharedfile's
// pwrite, which historically got this wrong, for the regression this
// guards against.
func (f *File) writeChunk(sub Submitter, opts WriteOptions, bytes []byte, pos int64, written int, callback WriteCallback) {
	fn := func() {
		n, err := f.inner.WriteAt(bytes[written:], pos)
		switch {
		case err != nil && isEINTR(err):
			f.writeChunk(sub, opts, bytes, pos, written, callback)
		case n == 0 && err == nil:
			callback(0, taskflowerrors.New(taskflowerrors.KindWriteZero, "write", nil))
		case err != nil:
			callback(0, taskflowerrors.New(taskflowerrors.KindIO, "write", err))
		case written+n < len(bytes):
			f.writeChunk(sub, opts, bytes, pos+int64(n), written+n, callback)
		default:
			total := written + n
			if syncErr := f.applySync(opts); syncErr != nil {
				callback(0, taskflowerrors.New(taskflowerrors.KindIO, "sync", syncErr))
				return
			}
			callback(total, nil)
		}
	}
	submit(sub, WritePriority, writeLabel, fn)
}

func (f *File) applySync(opts WriteOptions) error {
	switch opts.Kind {
	case WriteNone, WriteFlush:
		return nil
	case WriteSync, WriteSyncAll:
		return f.inner.Sync()
	default:
		return nil
	}
}

// submit dispatches fn through sub if non-nil, otherwise runs it
// inline. A nil Submitter lets tests and simple callers exercise the
// engine without a worker pool.
func submit(sub Submitter, priority uint64, label string, fn task.Thunk) {
	if sub == nil {
		fn()
		return
	}
	sub.Submit(task.Sync, priority, label, fn)
}

// isEINTR reports whether err is the POSIX EINTR signal-interruption
// error, which the file engine retries internally and never surfaces
// to a caller.
func isEINTR(err error) bool {
	return errors.Is(err, unix.EINTR)
}
