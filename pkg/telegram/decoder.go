package telegram

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/sirupsen/logrus"
)

// Decoder decodes a telegram one line at a time. It keeps the running checksum
// between lines and writes extracted values into the readings store.
type Decoder struct {
	registry *Registry
	store    *readings.Store
	crc      uint16
	log      logrus.FieldLogger
}

// NewDecoder binds a registry to a store built from the same field list.
func NewDecoder(registry *Registry, store *readings.Store, log logrus.FieldLogger) (*Decoder, error) {
	if registry.Len() != store.Len() {
		return nil, fmt.Errorf("store holds %d readings, registry defines %d fields", store.Len(), registry.Len())
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Decoder{
		registry: registry,
		store:    store,
		log:      log.WithField("component", "decoder"),
	}, nil
}

// RunningCRC is the checksum accumulated since the last start line.
func (d *Decoder) RunningCRC() uint16 {
	return d.crc
}

// Reset forgets the running checksum.
func (d *Decoder) Reset() {
	d.crc = 0
}

// DecodeLine processes one line, including its trailing newline.
func (d *Decoder) DecodeLine(line []byte) LineResult {
	res := LineResult{Role: RoleData}

	start := bytes.LastIndexByte(line, StartMarker)
	end := bytes.LastIndexByte(line, EndMarker)

	switch {
	case start >= 0:
		// Checksum coverage always begins at the start marker.
		d.crc = CRC16(0, line[start:])
		res.Role = RoleStart

	case end >= 0:
		d.crc = CRC16(d.crc, line[end:end+1])
		res.ComputedCRC = d.crc
		expected, ok := parseChecksum(line[end+1:])
		res.ExpectedCRC = expected
		if ok && expected == d.crc {
			res.Role = RoleEndValid
		} else {
			res.Role = RoleEndInvalid
		}
		d.log.WithFields(logrus.Fields{
			"expected": fmt.Sprintf("%04X", res.ExpectedCRC),
			"computed": fmt.Sprintf("%04X", res.ComputedCRC),
		}).Debugf("telegram end, %s", res.Role)
		d.crc = 0

	default:
		d.crc = CRC16(d.crc, line)
	}

	d.extract(line, &res)
	return res
}

func (d *Decoder) extract(line []byte, res *LineResult) {
	i, ok := d.registry.Match(line)
	if !ok {
		return
	}
	def := d.registry.Field(i)
	res.Matched = true
	res.Field = def.Name

	value, ok := ExtractValue(line, def.StartChar, def.EndChar)
	if !ok {
		d.log.WithField("field", def.Name).Tracef("no value in %q", bytes.TrimRight(line, "\r\n"))
		return
	}
	res.Extracted = true
	res.Value = value
	res.Changed = d.store.Update(i, value)
	if res.Changed {
		d.log.WithFields(logrus.Fields{"field": def.Name, "value": value}).Trace("reading changed")
	}
}

// ExtractValue reads the number between the rightmost startChar and the rightmost
// endChar of line. With endChar '*' the value is scaled by 1000.
// The literal must be digits with at most one decimal point.
func ExtractValue(line []byte, startChar, endChar byte) (int64, bool) {
	body := bytes.TrimRight(line, "\r\n")

	s := bytes.LastIndexByte(body, startChar)
	e := bytes.LastIndexByte(body, endChar)
	if s < 0 || e < 0 || e-s-1 <= 0 {
		return 0, false
	}
	literal := body[s+1 : e]
	if len(literal) > maxValueLength {
		return 0, false
	}
	return parseScaled(literal, endChar == UnitChar)
}

// parseScaled computes floor(v) or floor(1000*v) of a non-negative decimal literal
// without going through floating point.
func parseScaled(literal []byte, kilo bool) (int64, bool) {
	var whole, frac int64
	fracDigits, digits := 0, 0
	seenDot := false

	for _, c := range literal {
		switch {
		case c == '.':
			if seenDot {
				return 0, false
			}
			seenDot = true
		case c >= '0' && c <= '9':
			digits++
			if !seenDot {
				whole = whole*10 + int64(c-'0')
			} else if kilo && fracDigits < 3 {
				frac = frac*10 + int64(c-'0')
				fracDigits++
			}
		default:
			return 0, false
		}
	}
	if digits == 0 {
		return 0, false
	}
	if !kilo {
		return whole, true
	}
	for ; fracDigits < 3; fracDigits++ {
		frac *= 10
	}
	return whole*1000 + frac, true
}

// parseChecksum reads the 4 hex digits following the end marker.
func parseChecksum(b []byte) (uint16, bool) {
	if len(b) < checksumDigits {
		return 0, false
	}
	v, err := strconv.ParseUint(string(b[:checksumDigits]), 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
