package telegram

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultFieldsAreValid(t *testing.T) {
	r, err := NewRegistry(DefaultFields())
	require.NoError(t, err)
	require.Equal(t, 15, r.Len())
	require.Equal(t, "received_tarif_1", r.Names()[0])
	require.Equal(t, "gas_meter_m3", r.Names()[r.Len()-1])
}

func TestNewRegistry_DefaultsDelimiters(t *testing.T) {
	r := MustNewRegistry([]FieldDefinition{{Name: "tarif", Code: "0-0:96.14.0"}})
	f := r.Field(0)
	require.Equal(t, DefaultStartChar, f.StartChar)
	require.Equal(t, DefaultEndChar, f.EndChar)
}

func TestNewRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name string
		defs []FieldDefinition
		err  error
	}{
		{
			name: "duplicate code",
			defs: []FieldDefinition{
				{Name: "consumption_tarif_1", Code: "1-0:1.8.1"},
				{Name: "received_tarif_1", Code: "1-0:1.8.1"},
			},
			err: ErrDuplicateCode,
		},
		{
			name: "duplicate name",
			defs: []FieldDefinition{
				{Name: "a", Code: "1-0:1.8.1"},
				{Name: "a", Code: "1-0:1.8.2"},
			},
			err: ErrDuplicateName,
		},
		{
			name: "empty code",
			defs: []FieldDefinition{{Name: "a"}},
			err:  ErrInvalidField,
		},
		{
			name: "empty name",
			defs: []FieldDefinition{{Code: "1-0:1.8.1"}},
			err:  ErrInvalidField,
		},
		{
			name: "unsupported end char",
			defs: []FieldDefinition{{Name: "a", Code: "1-0:1.8.1", EndChar: ']'}},
			err:  ErrInvalidField,
		},
		{
			name: "same start and end",
			defs: []FieldDefinition{{Name: "a", Code: "1-0:1.8.1", StartChar: '*', EndChar: '*'}},
			err:  ErrInvalidField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewRegistry_TooMany(t *testing.T) {
	defs := make([]FieldDefinition, MaxFields+1)
	for i := range defs {
		defs[i] = FieldDefinition{Name: fmt.Sprintf("f%d", i), Code: fmt.Sprintf("1-0:%d.7.0", i)}
	}
	_, err := NewRegistry(defs)
	require.ErrorIs(t, err, ErrTooManyFields)

	_, err = NewRegistry(defs[:MaxFields])
	require.NoError(t, err)
}

func TestRegistryMatch(t *testing.T) {
	r := MustNewRegistry([]FieldDefinition{
		{Name: "short", Code: "1-0:1.8"},
		{Name: "long", Code: "1-0:1.8.1"},
		{Name: "return", Code: "1-0:2.7.0"},
	})

	i, ok := r.Match([]byte("1-0:1.8.1(000992.992*kWh)\r\n"))
	require.True(t, ok)
	require.Equal(t, "short", r.Field(i).Name, "first match wins")

	i, ok = r.Match([]byte("1-0:2.7.0(00.000*kW)\r\n"))
	require.True(t, ok)
	require.Equal(t, 2, i)

	_, ok = r.Match([]byte("1-0:22.7.0(00.000*kW)\r\n"))
	require.False(t, ok)

	_, ok = r.Match([]byte("1-0"))
	require.False(t, ok)
}

func TestRegistryFieldsIsCopy(t *testing.T) {
	r := MustNewRegistry(DefaultFields())
	fields := r.Fields()
	fields[0].Name = "changed"
	require.Equal(t, "received_tarif_1", r.Field(0).Name)
}
