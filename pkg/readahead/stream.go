// pkg/readahead/stream.go

package readahead

import "io"

// Stream reads a Reader through the io interfaces.
type Stream struct {
	r   *Reader
	buf []byte
}

func NewStream(r *Reader) *Stream {
	return &Stream{r: r}
}

func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(s.buf) == 0 {
		data, err := s.r.Read()
		if err != nil {
			return 0, err
		}
		s.buf = data
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// WriteTo writes the rest of the file into w without copying chunks.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		if len(s.buf) == 0 {
			data, err := s.r.Read()
			if err == io.EOF {
				return total, nil
			}
			if err != nil {
				return total, err
			}
			s.buf = data
		}
		n, err := w.Write(s.buf)
		total += int64(n)
		s.buf = s.buf[n:]
		if err != nil {
			return total, err
		}
	}
}

func (s *Stream) Close() error {
	s.buf = nil
	return s.r.Close()
}
