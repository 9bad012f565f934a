// Package chunkreader reads files as a sequence of bounded-size blocks
// without loading them into memory.
package chunkreader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashsafe/hashsafe/internal/ratelimit"
)

// DefaultBlockSize balances syscall count against memory per run (1 MiB).
const DefaultBlockSize = 1024 * 1024

// ErrIsDirectory is returned by Open when the path names a directory.
var ErrIsDirectory = errors.New("is a directory")

// Block is a run of bytes read at Offset. Data aliases the reader's
// buffer and is only valid until the next call to Next.
type Block struct {
	Offset int64
	Data   []byte
}

// Len returns the number of bytes in the block.
func (b Block) Len() int {
	return len(b.Data)
}

// Reader yields the blocks of a single file in order.
// It owns the underlying file and is not safe for concurrent use.
type Reader struct {
	file   *os.File
	src    io.Reader
	buf    []byte
	offset int64
	size   int64
	sized  bool
	eof    bool
	closed bool

	blockSize int
	limiter   *ratelimit.Limiter
	ctx       context.Context
	stop      func() bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithBlockSize sets the upper bound of each block. Values <= 0 are ignored.
func WithBlockSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.blockSize = n
		}
	}
}

// WithContext ties the reader to ctx. When ctx is done a blocked open or
// read of a pipe, FIFO or terminal returns early with an error; throttled
// reads stop waiting.
func WithContext(ctx context.Context) Option {
	return func(r *Reader) {
		r.ctx = ctx
	}
}

// WithLimiter throttles reads through l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(r *Reader) {
		r.limiter = l
	}
}

func newReader(opts []Option) *Reader {
	r := &Reader{blockSize: DefaultBlockSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open opens path for block reading.
func Open(path string, opts ...Option) (*Reader, error) {
	r := newReader(opts)
	f, err := openFile(r.ctx, path)
	if err != nil {
		return nil, err
	}
	if err := r.attach(f); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// FromFile wraps an already open file. The Reader takes ownership of f.
// The total size is known only when f is a non-empty regular file.
func FromFile(f *os.File, opts ...Option) (*Reader, error) {
	r := newReader(opts)
	if err := r.attach(f); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) attach(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &os.PathError{Op: "open", Path: f.Name(), Err: ErrIsDirectory}
	}

	r.file = f
	// procfs and sysfs files report size 0 but have content
	if info.Mode().IsRegular() && info.Size() > 0 {
		r.size = info.Size()
		r.sized = true
	}

	if r.ctx != nil {
		// Pollable files (pipes, FIFOs, terminals) wake from a blocked Read
		// once the deadline passes; regular files never block for long.
		r.stop = context.AfterFunc(r.ctx, func() {
			_ = f.SetReadDeadline(time.Now())
		})
	}

	r.buf = make([]byte, r.blockSize)
	r.src = r.limiter.Reader(r.ctx, f)
	return nil
}

type openResult struct {
	f   *os.File
	err error
}

// openFile opens path. Opening a FIFO blocks until a writer appears, so
// for anything but regular files and directories the open runs on its own
// goroutine and is abandoned when ctx is done. A file opened after that
// is closed straight away.
func openFile(ctx context.Context, path string) (*os.File, error) {
	if ctx == nil {
		return os.Open(path)
	}
	if info, err := os.Stat(path); err != nil || info.Mode().IsRegular() || info.IsDir() {
		return os.Open(path)
	}

	ch := make(chan openResult)
	go func() {
		f, err := os.Open(path)
		select {
		case ch <- openResult{f, err}:
		case <-ctx.Done():
			if f != nil {
				f.Close()
			}
		}
	}()

	select {
	case res := <-ch:
		return res.f, res.err
	case <-ctx.Done():
		return nil, &os.PathError{Op: "open", Path: path, Err: ctx.Err()}
	}
}

// Name returns the name of the underlying file.
func (r *Reader) Name() string {
	return r.file.Name()
}

// Size returns the file size and whether it is known up front.
func (r *Reader) Size() (int64, bool) {
	return r.size, r.sized
}

// Next returns the next block. It returns io.EOF once the input is
// exhausted. Every block but the last is exactly the block size long.
// Read errors are returned as-is and are not retried.
func (r *Reader) Next() (Block, error) {
	if r.closed {
		return Block{}, os.ErrClosed
	}
	if r.eof {
		return Block{}, io.EOF
	}

	n, err := io.ReadFull(r.src, r.buf)
	switch {
	case err == io.EOF:
		r.eof = true
		return Block{}, io.EOF
	case err == io.ErrUnexpectedEOF:
		r.eof = true
	case err != nil:
		return Block{}, fmt.Errorf("read %s at offset %d: %w", r.file.Name(), r.offset+int64(n), err)
	}

	blk := Block{Offset: r.offset, Data: r.buf[:n]}
	r.offset += int64(n)
	return blk, nil
}

// Close releases the file. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.buf = nil
	if r.stop != nil {
		r.stop()
	}
	return r.file.Close()
}

// Closed reports whether Close has been called.
func (r *Reader) Closed() bool {
	return r.closed
}
