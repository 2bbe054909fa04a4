package telegram

const (
	// MaxLineLength caps a single line, excluding its newline. Longer lines are truncated.
	MaxLineLength = 1024
	// MaxFields bounds the registry size.
	MaxFields = 32

	StartMarker byte = '/'
	EndMarker   byte = '!'

	DefaultStartChar byte = '('
	DefaultEndChar   byte = ')'
	// UnitChar as end delimiter means a kilo-unit suffix follows the value.
	UnitChar byte = '*'

	crcPolynomial  = 0xA001
	checksumDigits = 4
	// Longest numeric literal accepted between delimiters.
	maxValueLength = 15
)

// FieldDefinition describes one reading and how to find it in a telegram line.
type FieldDefinition struct {
	// Name is the stable identifier used downstream, e.g. "actual_consumption".
	Name string
	// Code is the line prefix identifying the field, e.g. "1-0:1.7.0".
	Code      string
	StartChar byte
	EndChar   byte
}

// LineRole is the part a line plays in telegram framing.
type LineRole int

const (
	RoleData LineRole = iota
	RoleStart
	RoleEndValid
	RoleEndInvalid
)

func (r LineRole) String() string {
	switch r {
	case RoleData:
		return "data"
	case RoleStart:
		return "start"
	case RoleEndValid:
		return "end_valid"
	case RoleEndInvalid:
		return "end_invalid"
	default:
		return "unknown"
	}
}

// LineResult reports what decoding a single line did.
type LineResult struct {
	Role LineRole
	// Field is the name of the matched definition, empty when no code matched.
	Field     string
	Matched   bool
	Extracted bool
	Value     int64
	Changed   bool
	// Checksums are only set for end lines.
	ExpectedCRC uint16
	ComputedCRC uint16
}

// Result is the outcome of one Session.Poll.
type Result struct {
	// Complete is set when an end line was seen.
	Complete bool
	// Valid is set when the telegram that completed had a matching checksum.
	Valid   bool
	Lines   int
	Updated int
	// Invalid counts end lines whose checksum did not match.
	Invalid int
}
