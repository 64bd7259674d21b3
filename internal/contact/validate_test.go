package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		want  []string
	}{
		{
			name:  "valid without phone",
			input: Input{Name: "Ana", Email: "ana@example.com", Message: "Hola"},
		},
		{
			name:  "empty phone string is fine",
			input: Input{Name: "Ana", Email: "ana@example.com", Phone: "", Message: "Hola"},
		},
		{
			name:  "falsy phone is ignored",
			input: Input{Name: "Ana", Email: "ana@example.com", Phone: float64(0), Message: "Hola"},
		},
		{
			name:  "email without at sign",
			input: Input{Name: "Ana", Email: "not-an-email", Message: "Hola"},
			want:  []string{"El email es válido y requerido"},
		},
		{
			name:  "blank name and message",
			input: Input{Name: "   ", Email: "ana@example.com", Message: "\n"},
			want:  []string{"El nombre es requerido", "El mensaje es requerido"},
		},
		{
			name:  "wrong types",
			input: Input{Name: float64(3), Email: true, Phone: float64(600000000), Message: []any{"x"}},
			want: []string{
				"El nombre es requerido",
				"El email es válido y requerido",
				"El teléfono debe ser texto",
				"El mensaje es requerido",
			},
		},
		{
			name:  "everything missing",
			input: Input{},
			want:  []string{"El nombre es requerido", "El email es válido y requerido", "El mensaje es requerido"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.input))
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition("new", "read"))
	assert.True(t, CanTransition("new", "archived"))
	assert.True(t, CanTransition("read", "deleted"))
	assert.True(t, CanTransition("archived", "deleted"))

	assert.False(t, CanTransition("archived", "read"))
	assert.False(t, CanTransition("read", "new"))
	assert.False(t, CanTransition("deleted", "new"))
	assert.False(t, CanTransition("deleted", "archived"))
}
