// Package codec implements the gzip, deflate, brotli, and identity content
// codecs used to encode/decode response bodies, including a streaming
// decoder for each that consumes a lazy byte sequence.
//
// The buffer-pooling approach (a bounded free list of writers, reset-and-return
// rather than allocate-per-call) is carried over from odac-run-odac's
// compressionResponseWriter, which pools gzip/brotli/zstd writers the same
// way under high request volume.
package codec

import (
	"bytes"
	"compress/flate"
	"context"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"netstack/internal/errs"
	"netstack/internal/types"
)

// Name identifies one of the four supported codecs.
type Name string

const (
	Identity Name = "identity"
	Gzip     Name = "gzip"
	Deflate  Name = "deflate"
	Brotli   Name = "br"
)

var (
	gzipWriterPool = newPool(func() any { return gzip.NewWriter(io.Discard) })
	flateWriterPool = newPool(func() any {
		w, _ := flate.NewWriter(io.Discard, flate.DefaultCompression)
		return w
	})
	brotliWriterPool = newPool(func() any { return brotli.NewWriterLevel(io.Discard, 4) })
)

// pool is a tiny free list backed by a buffered channel (capacity 64): get
// falls back to newFn when the list is empty, and put drops the value when it
// is full.
type pool struct {
	get func() any
	put func(any)
	ch  chan any
}

func newPool(newFn func() any) *pool {
	p := &pool{ch: make(chan any, 64)}
	p.get = func() any {
		select {
		case v := <-p.ch:
			return v
		default:
			return newFn()
		}
	}
	p.put = func(v any) {
		select {
		case p.ch <- v:
		default:
		}
	}
	return p
}

// Encode compresses data with the named codec.
func Encode(name Name, data []byte) ([]byte, error) {
	switch name {
	case Identity, "":
		return data, nil
	case Gzip:
		var buf bytes.Buffer
		w := gzipWriterPool.get().(*gzip.Writer)
		w.Reset(&buf)
		defer func() {
			w.Reset(io.Discard)
			gzipWriterPool.put(w)
		}()
		if _, err := w.Write(data); err != nil {
			return nil, errs.Protocol(string(Gzip), err.Error())
		}
		if err := w.Close(); err != nil {
			return nil, errs.Protocol(string(Gzip), err.Error())
		}
		return buf.Bytes(), nil
	case Deflate:
		var buf bytes.Buffer
		w := flateWriterPool.get().(*flate.Writer)
		w.Reset(&buf)
		defer func() {
			w.Reset(io.Discard)
			flateWriterPool.put(w)
		}()
		if _, err := w.Write(data); err != nil {
			return nil, errs.Protocol(string(Deflate), err.Error())
		}
		if err := w.Close(); err != nil {
			return nil, errs.Protocol(string(Deflate), err.Error())
		}
		return buf.Bytes(), nil
	case Brotli:
		var buf bytes.Buffer
		w := brotliWriterPool.get().(*brotli.Writer)
		w.Reset(&buf)
		defer func() {
			w.Reset(io.Discard)
			brotliWriterPool.put(w)
		}()
		if _, err := w.Write(data); err != nil {
			return nil, errs.Protocol(string(Brotli), err.Error())
		}
		if err := w.Close(); err != nil {
			return nil, errs.Protocol(string(Brotli), err.Error())
		}
		return buf.Bytes(), nil
	default:
		return nil, errs.Protocol(string(name), "unknown codec")
	}
}

// Decode decompresses a whole buffer encoded with the named codec.
func Decode(name Name, data []byte) ([]byte, error) {
	switch name {
	case Identity, "":
		return data, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errs.Protocol(string(Gzip), err.Error())
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errs.Protocol(string(Gzip), err.Error())
		}
		return out, nil
	case Deflate:
		r := flate.NewReader(bytes.NewReader(data))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errs.Protocol(string(Deflate), err.Error())
		}
		return out, nil
	case Brotli:
		r := brotli.NewReader(bytes.NewReader(data))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, errs.Protocol(string(Brotli), err.Error())
		}
		return out, nil
	default:
		return nil, errs.Protocol(string(name), "unknown codec")
	}
}

// StreamDecoder consumes an incoming lazy byte sequence and produces a lazy
// sequence of decoded chunks. gzip/deflate flush whatever has been decoded
// after each input chunk is fed in; brotli's format requires the complete
// input before it can decode anything, so its streaming decoder buffers the
// upstream and decodes once on end-of-stream (matching stream.rs).
type StreamDecoder struct {
	name  Name
	input types.ByteStream

	// incremental state for gzip/deflate
	pending    bytes.Buffer // raw bytes fed so far, re-decoded fresh each step
	gzipBuf    bytes.Buffer
	flateBuf   bytes.Buffer
	done       bool

	// brotli/identity buffering
	collected bytes.Buffer
	collectedDone bool
	emittedOnce   bool
}

func NewStreamDecoder(name Name, input types.ByteStream) *StreamDecoder {
	return &StreamDecoder{name: name, input: input}
}

// Next returns the next decoded chunk, or io.EOF when exhausted.
func (d *StreamDecoder) Next(ctx context.Context) ([]byte, error) {
	switch d.name {
	case Identity, "":
		return d.input.Next(ctx)
	case Gzip, Deflate:
		return d.nextIncremental(ctx)
	case Brotli:
		return d.nextBuffered(ctx)
	default:
		return nil, errs.Protocol(string(d.name), "unknown streaming codec")
	}
}

// nextIncremental feeds one more upstream chunk into the raw buffer and
// re-runs the decoder over everything seen so far, emitting only the newly
// produced suffix. This gives "flush decoded bytes on each input chunk"
// semantics without requiring seekable decoder internals.
func (d *StreamDecoder) nextIncremental(ctx context.Context) ([]byte, error) {
	if d.done {
		return nil, io.EOF
	}
	chunk, err := d.input.Next(ctx)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if err == io.EOF {
		d.done = true
	} else {
		d.pending.Write(chunk)
	}

	var decoded []byte
	var decErr error
	switch d.name {
	case Gzip:
		r, rerr := gzip.NewReader(bytes.NewReader(d.pending.Bytes()))
		if rerr != nil {
			if d.done {
				return nil, errs.Protocol(string(Gzip), rerr.Error())
			}
			// Incomplete header so far; wait for more input.
			return d.advanceOrEOF(ctx)
		}
		decoded, decErr = io.ReadAll(r)
		r.Close()
	case Deflate:
		r := flate.NewReader(bytes.NewReader(d.pending.Bytes()))
		decoded, decErr = io.ReadAll(r)
		r.Close()
	}
	if decErr != nil && d.done {
		return nil, errs.Protocol(string(d.name), decErr.Error())
	}

	var out []byte
	switch d.name {
	case Gzip:
		if len(decoded) > d.gzipBuf.Len() {
			out = decoded[d.gzipBuf.Len():]
			d.gzipBuf.Reset()
			d.gzipBuf.Write(decoded)
		}
	case Deflate:
		if len(decoded) > d.flateBuf.Len() {
			out = decoded[d.flateBuf.Len():]
			d.flateBuf.Reset()
			d.flateBuf.Write(decoded)
		}
	}

	if len(out) == 0 {
		return d.advanceOrEOF(ctx)
	}
	return out, nil
}

func (d *StreamDecoder) advanceOrEOF(ctx context.Context) ([]byte, error) {
	if d.done {
		return nil, io.EOF
	}
	return d.nextIncremental(ctx)
}

func (d *StreamDecoder) nextBuffered(ctx context.Context) ([]byte, error) {
	if d.emittedOnce {
		return nil, io.EOF
	}
	if !d.collectedDone {
		for {
			chunk, err := d.input.Next(ctx)
			if err == io.EOF {
				d.collectedDone = true
				break
			}
			if err != nil {
				return nil, err
			}
			d.collected.Write(chunk)
		}
	}
	d.emittedOnce = true
	if d.collected.Len() == 0 {
		return nil, io.EOF
	}
	out, err := Decode(Brotli, d.collected.Bytes())
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *StreamDecoder) Close() error {
	return d.input.Close()
}
