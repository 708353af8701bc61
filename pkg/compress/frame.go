// pkg/compress/frame.go

package compress

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrame bounds the raw size of a frame accepted by a Reader.
const maxFrame = 64 << 20

// Writer compresses every Write into one frame: raw length and compressed
// length as big-endian uint32, followed by the compressed bytes.
type Writer struct {
	w   io.Writer
	c   Compressor
	buf []byte
}

func NewWriter(w io.Writer, c Compressor) *Writer {
	return &Writer{w: w, c: c}
}

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) > maxFrame {
		n, err := w.Write(p[:maxFrame])
		if err != nil {
			return n, err
		}
		m, err := w.Write(p[maxFrame:])
		return n + m, err
	}
	need := 8 + w.c.CompressBound(len(p))
	if cap(w.buf) < need {
		w.buf = make([]byte, need)
	}
	buf := w.buf[:need]
	n, err := w.c.Compress(buf[8:], p)
	if err != nil {
		return 0, fmt.Errorf("%s compress: %s", w.c.Name(), err)
	}
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(p)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(n))
	if _, err = w.w.Write(buf[:8+n]); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Reader decodes the frames written by a Writer.
type Reader struct {
	r    io.Reader
	c    Compressor
	hdr  [8]byte
	in   []byte
	out  []byte
	left []byte
}

func NewReader(r io.Reader, c Compressor) *Reader {
	return &Reader{r: r, c: c}
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(r.left) == 0 {
		if err := r.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.left)
	r.left = r.left[n:]
	return n, nil
}

func (r *Reader) next() error {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("truncated frame header")
		}
		return err
	}
	raw := int(binary.BigEndian.Uint32(r.hdr[0:4]))
	size := int(binary.BigEndian.Uint32(r.hdr[4:8]))
	if raw > maxFrame || size > r.c.CompressBound(maxFrame) {
		return fmt.Errorf("invalid frame: %d %d", raw, size)
	}
	if cap(r.in) < size {
		r.in = make([]byte, size)
	}
	if cap(r.out) < raw {
		r.out = make([]byte, raw)
	}
	in := r.in[:size]
	if _, err := io.ReadFull(r.r, in); err != nil {
		return fmt.Errorf("read frame of %d bytes: %s", size, err)
	}
	n, err := r.c.Decompress(r.out[:raw], in)
	if err != nil {
		return fmt.Errorf("%s decompress: %s", r.c.Name(), err)
	}
	if n != raw {
		return fmt.Errorf("frame of %d bytes decompressed into %d", raw, n)
	}
	r.left = r.out[:n]
	return nil
}
