// Package sharedfile provides a refcounted, positional asynchronous
// file safe for concurrent readers and writers: unlike asyncfile.File,
// a SharedFile may have multiple pread/pwrite calls in flight at once,
// each identified purely by the (pos, len) the caller passes rather
// than by file-engine-owned cursor state.
package sharedfile

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	taskflowerrors "github.com/taskflow-go/taskflow/pkg/errors"
	"github.com/taskflow-go/taskflow/pkg/task"
)

// Submitter is the subset of worker.Pool the shared file dispatches
// through.
type Submitter interface {
	Submit(typ task.Type, priority uint64, label string, thunk task.Thunk)
}

const (
	ReadPriority  uint64 = 100
	WritePriority uint64 = 60
)

const (
	readLabel  = "shared read async file"
	writeLabel = "shared write async file"
)

// WriteKind mirrors asyncfile.WriteKind.
type WriteKind int

const (
	WriteNone WriteKind = iota
	WriteFlush
	WriteSync
	WriteSyncAll
)

// WriteOptions controls the durability guarantee a Pwrite applies once
// every byte has landed.
type WriteOptions struct {
	Kind WriteKind
}

// ReadCallback receives the bytes read, or a non-nil error.
type ReadCallback func(f *SharedFile, data []byte, err error)

// FpreadCallback receives the number of bytes transferred into the
// caller's buffer, or a non-nil error.
type FpreadCallback func(f *SharedFile, n int, err error)

// WriteCallback receives the number of bytes written, or a non-nil
// error.
type WriteCallback func(f *SharedFile, n int, err error)

// SharedFile is a refcounted handle onto an open file, safe to pass to
// multiple concurrent Pread/Pwrite callers. The refcount mirrors the
// reference design's Arc<AsyncFile>: New increments it to 1 and every
// Clone bumps it further; the underlying descriptor closes once the
// last clone is dropped via Close.
type SharedFile struct {
	inner *os.File
	refs  *int32
}

// New wraps f as a SharedFile with an initial refcount of 1.
func New(f *os.File) *SharedFile {
	refs := int32(1)
	return &SharedFile{inner: f, refs: &refs}
}

// Clone returns a new handle onto the same underlying file, bumping
// the shared refcount.
func (f *SharedFile) Clone() *SharedFile {
	atomic.AddInt32(f.refs, 1)
	return &SharedFile{inner: f.inner, refs: f.refs}
}

// Close drops this handle's share of the refcount, closing the
// underlying descriptor once the last handle is closed.
func (f *SharedFile) Close() error {
	if atomic.AddInt32(f.refs, -1) == 0 {
		return f.inner.Close()
	}
	return nil
}

// Pread atomically reads len bytes starting at pos. len == 0 is
// reported as an error, matching the reference design (a SharedFile
// read implies a caller-supplied length; zero is never meaningful for
// a positional shared read the way it is for asyncfile.File.Read,
// which serves a single owned cursor and treats zero as "nothing to
// do").
func (f *SharedFile) Pread(sub Submitter, pos int64, length int, callback ReadCallback) {
	if length <= 0 {
		callback(f, nil, taskflowerrors.New(taskflowerrors.KindIO, "pread", errors.New("pread failed, invalid len")))
		return
	}
	buf := make([]byte, length)
	f.preadContinue(sub, buf, pos, 0, callback)
}

// preadContinue reads into buf[written:] at absolute file offset pos,
// indexing the destination slice by the prefix-length already
// transferred (written), not by the absolute file offset. An earlier
// draft of this continuation indexed by pos directly, which works only
// when pos == written (i.e. the read started at offset 0) — once a
// caller reads starting at a nonzero offset, buf[pos:...] runs past
// the end of a len-sized buffer or silently reads into the wrong
// region. See TestPreadContinuesCorrectlyAtNonzeroOffset for the
// regression this guards against.
func (f *SharedFile) preadContinue(sub Submitter, buf []byte, pos int64, written int, callback ReadCallback) {
	fn := func() {
		n, err := f.inner.ReadAt(buf[written:], pos)
		switch {
		case err != nil && isEINTR(err):
			f.preadContinue(sub, buf, pos, written, callback)
		case err != nil && err != io.EOF:
			callback(f, nil, taskflowerrors.New(taskflowerrors.KindIO, "pread", err))
		case written+n >= len(buf):
			callback(f, buf, nil)
		case err == io.EOF:
			// Short read at EOF: hand back the transferred prefix.
			callback(f, buf[:written+n], nil)
		default:
			f.preadContinue(sub, buf, pos+int64(n), written+n, callback)
		}
	}
	submit(sub, ReadPriority, readLabel, fn)
}

// Fpread reads length bytes starting at file offset pos into buf,
// starting at bufOffset, rather than allocating its own buffer as
// Pread does. This lets a caller reuse a single scratch buffer across
// many concurrent positional reads instead of paying one allocation
// per call — the companion operation the reference design calls
// fpread, distinct from pread precisely because it takes ownership of
// neither the buffer nor its lifetime.
func (f *SharedFile) Fpread(sub Submitter, buf []byte, bufOffset int, pos int64, length int, callback FpreadCallback) {
	if length <= 0 {
		callback(f, 0, taskflowerrors.New(taskflowerrors.KindIO, "fpread", errors.New("fpread failed, invalid len")))
		return
	}
	if bufOffset < 0 || bufOffset+length > len(buf) {
		callback(f, 0, taskflowerrors.New(taskflowerrors.KindIO, "fpread", errors.New("fpread failed, buffer too small for buf_offset+len")))
		return
	}
	f.fpreadContinue(sub, buf, bufOffset, length, pos, 0, callback)
}

// fpreadContinue reads into buf[bufOffset+written : bufOffset+target]
// at absolute file offset pos. written is the prefix-length already
// transferred into the caller's buffer, kept separate from bufOffset
// so a short read resubmits against the correct remaining window
// instead of restarting at bufOffset — the same prefix-length
// discipline preadContinue uses, applied to a caller-owned buffer.
func (f *SharedFile) fpreadContinue(sub Submitter, buf []byte, bufOffset, target int, pos int64, written int, callback FpreadCallback) {
	fn := func() {
		n, err := f.inner.ReadAt(buf[bufOffset+written:bufOffset+target], pos)
		switch {
		case err != nil && isEINTR(err):
			f.fpreadContinue(sub, buf, bufOffset, target, pos, written, callback)
		case err != nil && err != io.EOF:
			callback(f, 0, taskflowerrors.New(taskflowerrors.KindIO, "fpread", err))
		case written+n >= target:
			callback(f, written+n, nil)
		case err == io.EOF:
			// Short read at EOF: report whatever prefix transferred.
			callback(f, written+n, nil)
		default:
			f.fpreadContinue(sub, buf, bufOffset, target, pos+int64(n), written+n, callback)
		}
	}
	submit(sub, ReadPriority, readLabel, fn)
}

// Pwrite atomically writes bytes starting at pos. A zero-length bytes
// is a no-op success, matching the reference design.
func (f *SharedFile) Pwrite(sub Submitter, opts WriteOptions, pos int64, bytes []byte, callback WriteCallback) {
	if len(bytes) == 0 {
		callback(f, 0, nil)
		return
	}
	f.pwriteContinue(sub, opts, bytes, pos, 0, callback)
}

// pwriteContinue writes bytes[written:] at absolute file offset pos.
// written is the prefix-length already written, not the absolute file
// offset: indexing by pos (as the reference implementation's
// pwrite_continue does) is a bug whenever pos is nonzero, since
// bytes[pos:] runs off the end of a short write buffer or writes the
// wrong suffix. See TestPwriteContinuesCorrectlyAtNonzeroOffset.
func (f *SharedFile) pwriteContinue(sub Submitter, opts WriteOptions, bytes []byte, pos int64, written int, callback WriteCallback) {
	fn := func() {
		n, err := f.inner.WriteAt(bytes[written:], pos)
		switch {
		case err != nil && isEINTR(err):
			f.pwriteContinue(sub, opts, bytes, pos, written, callback)
		case n == 0 && err == nil:
			callback(f, 0, taskflowerrors.New(taskflowerrors.KindWriteZero, "pwrite", nil))
		case err != nil:
			callback(f, 0, taskflowerrors.New(taskflowerrors.KindIO, "pwrite", err))
		case written+n < len(bytes):
			f.pwriteContinue(sub, opts, bytes, pos+int64(n), written+n, callback)
		default:
			total := written + n
			if syncErr := f.applySync(opts); syncErr != nil {
				callback(f, 0, taskflowerrors.New(taskflowerrors.KindIO, "sync", syncErr))
				return
			}
			callback(f, total, nil)
		}
	}
	submit(sub, WritePriority, writeLabel, fn)
}

func (f *SharedFile) applySync(opts WriteOptions) error {
	switch opts.Kind {
	case WriteNone, WriteFlush:
		return nil
	case WriteSync, WriteSyncAll:
		return f.inner.Sync()
	default:
		return nil
	}
}

func submit(sub Submitter, priority uint64, label string, fn task.Thunk) {
	if sub == nil {
		fn()
		return
	}
	sub.Submit(task.Sync, priority, label, fn)
}

func isEINTR(err error) bool {
	return errors.Is(err, unix.EINTR)
}
