package telegram

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

var arcTable = crc16.MakeTable(crc16.CRC16_ARC)

// ValidateTelegram checks the CRC of a fully buffered telegram, from the '/'
// through the '!' and the 4 hex digits after it.
func ValidateTelegram(telegram []byte) bool {
	start := bytes.IndexByte(telegram, StartMarker)
	end := bytes.LastIndexByte(telegram, EndMarker)
	if start < 0 || end < start || len(telegram) < end+1+checksumDigits {
		return false
	}

	givenCRC := strings.ToUpper(string(telegram[end+1 : end+1+checksumDigits]))
	calcCRC := crc16.Checksum(telegram[start:end+1], arcTable)
	return givenCRC == fmt.Sprintf("%04X", calcCRC)
}

// SplitTelegrams cuts a capture into complete telegrams. Bytes before the first
// start line and an unterminated trailing telegram are dropped.
func SplitTelegrams(capture []byte) [][]byte {
	var (
		out        [][]byte
		buffer     bytes.Buffer
		inTelegram bool
	)

	reader := bufio.NewReader(bytes.NewReader(capture))
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if bytes.HasPrefix(line, []byte{StartMarker}) {
				buffer.Reset()
				buffer.Write(line)
				inTelegram = true
			} else if inTelegram {
				buffer.Write(line)
				if bytes.HasPrefix(bytes.TrimSpace(line), []byte{EndMarker}) {
					out = append(out, bytes.Clone(buffer.Bytes()))
					buffer.Reset()
					inTelegram = false
				}
			}
		}
		if err != nil {
			return out
		}
	}
}
