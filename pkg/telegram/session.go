package telegram

import "github.com/sirupsen/logrus"

// Source hands out bytes that have already arrived. TryRead must not block and
// returns 0 when nothing is available.
type Source interface {
	TryRead(p []byte) int
}

// Session drives the line extractor and decoder over a non-blocking source.
type Session struct {
	extractor *LineExtractor
	decoder   *Decoder
	chunk     []byte
	log       logrus.FieldLogger
}

func NewSession(decoder *Decoder, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		extractor: NewLineExtractor(MaxLineLength),
		decoder:   decoder,
		chunk:     make([]byte, 256),
		log:       log.WithField("component", "session"),
	}
}

// Poll decodes buffered lines until one carries a valid checksum or the source
// runs dry. Bytes after a valid telegram stay buffered for the next call.
func (s *Session) Poll(src Source) Result {
	var res Result
	for {
		line, ok := s.extractor.Next()
		if !ok {
			if src == nil {
				return res
			}
			n := src.TryRead(s.chunk)
			if n == 0 {
				return res
			}
			s.extractor.Feed(s.chunk[:n])
			continue
		}

		lr := s.decoder.DecodeLine(line)
		res.Lines++
		if lr.Changed {
			res.Updated++
		}

		switch lr.Role {
		case RoleEndValid:
			res.Complete, res.Valid = true, true
			return res
		case RoleEndInvalid:
			res.Complete, res.Valid = true, false
			res.Invalid++
			s.log.WithFields(logrus.Fields{
				"expected": lr.ExpectedCRC,
				"computed": lr.ComputedCRC,
			}).Debug("checksum mismatch, waiting for next telegram")
		}
	}
}

// Reset drops buffered bytes and the running checksum, e.g. after input was
// lost. Decoding picks up again at the next start line.
func (s *Session) Reset() {
	s.extractor.Reset()
	s.decoder.Reset()
}

// Pending reports bytes buffered but not yet decoded.
func (s *Session) Pending() int {
	return s.extractor.Pending()
}

// SliceSource serves a fixed byte slice, e.g. a captured telegram file.
type SliceSource struct {
	data []byte
}

func NewSliceSource(data []byte) *SliceSource {
	return &SliceSource{data: data}
}

func (s *SliceSource) TryRead(p []byte) int {
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n
}

func (s *SliceSource) Len() int {
	return len(s.data)
}
