package contact

import (
	"strings"
)

// Input is a contact form submission as decoded from JSON. Fields stay untyped so a
// number sent as a name is reported instead of failing the whole decode.
type Input struct {
	Name    any `json:"name"`
	Email   any `json:"email"`
	Phone   any `json:"phone"`
	Message any `json:"message"`
}

// ValidationError lists every problem of a submission, in field order.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid contact message: " + strings.Join(e.Problems, "; ")
}

// Validate returns the problems of in; an empty result means it can be stored.
func Validate(in Input) []string {
	var problems []string
	if s, ok := in.Name.(string); !ok || strings.TrimSpace(s) == "" {
		problems = append(problems, "El nombre es requerido")
	}
	if s, ok := in.Email.(string); !ok || !strings.Contains(s, "@") {
		problems = append(problems, "El email es válido y requerido")
	}
	if _, ok := in.Phone.(string); !ok && truthy(in.Phone) {
		problems = append(problems, "El teléfono debe ser texto")
	}
	if s, ok := in.Message.(string); !ok || strings.TrimSpace(s) == "" {
		problems = append(problems, "El mensaje es requerido")
	}
	return problems
}

// truthy treats null, false, 0 and "" as absent.
func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case float64:
		return value != 0
	case string:
		return value != ""
	default:
		return true
	}
}
