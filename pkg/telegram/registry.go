package telegram

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrInvalidField  = errors.New("invalid field definition")
	ErrDuplicateCode = errors.New("duplicate field code")
	ErrDuplicateName = errors.New("duplicate field name")
	ErrTooManyFields = errors.New("too many fields")
)

// Registry is the ordered, read-only list of known fields.
type Registry struct {
	fields []FieldDefinition
}

// NewRegistry validates defs and builds a registry from them.
// Zero delimiters default to '(' and ')'.
func NewRegistry(defs []FieldDefinition) (*Registry, error) {
	if len(defs) > MaxFields {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyFields, len(defs), MaxFields)
	}

	fields := make([]FieldDefinition, 0, len(defs))
	codes := make(map[string]int, len(defs))
	names := make(map[string]int, len(defs))

	for i, def := range defs {
		if def.StartChar == 0 {
			def.StartChar = DefaultStartChar
		}
		if def.EndChar == 0 {
			def.EndChar = DefaultEndChar
		}

		switch {
		case def.Name == "":
			return nil, fmt.Errorf("field %d: %w: empty name", i, ErrInvalidField)
		case def.Code == "":
			return nil, fmt.Errorf("field %d (%s): %w: empty code", i, def.Name, ErrInvalidField)
		case def.EndChar != DefaultEndChar && def.EndChar != UnitChar:
			return nil, fmt.Errorf("field %d (%s): %w: end char %q", i, def.Name, ErrInvalidField, def.EndChar)
		case def.StartChar == def.EndChar:
			return nil, fmt.Errorf("field %d (%s): %w: start and end char are both %q", i, def.Name, ErrInvalidField, def.StartChar)
		}

		if prev, ok := codes[def.Code]; ok {
			return nil, fmt.Errorf("field %d (%s): %w %s, already used by field %d", i, def.Name, ErrDuplicateCode, def.Code, prev)
		}
		if prev, ok := names[def.Name]; ok {
			return nil, fmt.Errorf("field %d: %w %s, already used by field %d", i, ErrDuplicateName, def.Name, prev)
		}
		codes[def.Code] = i
		names[def.Name] = i
		fields = append(fields, def)
	}

	return &Registry{fields: fields}, nil
}

// MustNewRegistry is NewRegistry for static definitions known to be valid.
func MustNewRegistry(defs []FieldDefinition) *Registry {
	r, err := NewRegistry(defs)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Len() int {
	return len(r.fields)
}

func (r *Registry) Field(i int) FieldDefinition {
	return r.fields[i]
}

// Fields returns a copy of the definitions in registry order.
func (r *Registry) Fields() []FieldDefinition {
	out := make([]FieldDefinition, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Match returns the index of the first definition whose code prefixes line.
func (r *Registry) Match(line []byte) (int, bool) {
	for i, f := range r.fields {
		if bytes.HasPrefix(line, []byte(f.Code)) {
			return i, true
		}
	}
	return -1, false
}

// DefaultFields lists the readouts published out of the box, one entry per slot.
// Add further codes through the [[fields]] config tables.
func DefaultFields() []FieldDefinition {
	return []FieldDefinition{
		// 1-0:2.8.1(000992.992*kWh) returned, low tariff
		{Name: "received_tarif_1", Code: "1-0:2.8.1", EndChar: UnitChar},
		// 1-0:2.8.2(000560.157*kWh) returned, high tariff
		{Name: "received_tarif_2", Code: "1-0:2.8.2", EndChar: UnitChar},
		// 1-0:1.7.0(00.424*kW)
		{Name: "actual_consumption", Code: "1-0:1.7.0", EndChar: UnitChar},
		// 1-0:2.7.0(00.000*kW)
		{Name: "actual_received", Code: "1-0:2.7.0", EndChar: UnitChar},
		// 1-0:22.7.0(00.378*kW) per phase return
		{Name: "instant_power_return_l1", Code: "1-0:22.7.0", EndChar: UnitChar},
		{Name: "instant_power_return_l2", Code: "1-0:42.7.0", EndChar: UnitChar},
		{Name: "instant_power_return_l3", Code: "1-0:62.7.0", EndChar: UnitChar},
		// 1-0:31.7.0(002*A)
		{Name: "instant_power_current_l1", Code: "1-0:31.7.0", EndChar: UnitChar},
		{Name: "instant_power_current_l2", Code: "1-0:51.7.0", EndChar: UnitChar},
		{Name: "instant_power_current_l3", Code: "1-0:71.7.0", EndChar: UnitChar},
		// 1-0:32.7.0(232.0*V)
		{Name: "instant_voltage_l1", Code: "1-0:32.7.0", EndChar: UnitChar},
		{Name: "instant_voltage_l2", Code: "1-0:52.7.0", EndChar: UnitChar},
		{Name: "instant_voltage_l3", Code: "1-0:72.7.0", EndChar: UnitChar},
		// 0-0:96.14.0(0001)
		{Name: "actual_tarif_group", Code: "0-0:96.14.0"},
		// 0-1:24.2.3(150531200000S)(00811.923*m3) Belgian gas
		{Name: "gas_meter_m3", Code: "0-1:24.2.3", EndChar: UnitChar},
	}
}
