package workflow

import (
	"errors"
	"testing"
)

const validWorkflowJSON = `{
  "id": "wf-bens",
  "name": "Pedidos de Bens",
  "version": 1,
  "initialState": "NOVO",
  "states": [
    {"key": "NOVO", "label": "Novo", "type": "normal", "transitions": [{"to": "EM_ANALISE", "event": "analisar"}]},
    {"key": "EM_ANALISE", "label": "Em análise", "type": "normal", "transitions": [{"to": "RESOLVIDO", "event": "resolver"}, {"to": "NOVO", "event": "devolver"}]},
    {"key": "RESOLVIDO", "label": "Resolvido", "type": "terminal"}
  ]
}`

func TestParseValidDefinition(t *testing.T) {
	def, err := Parse(validWorkflowJSON)
	if err != nil {
		t.Fatalf("Parse devolveu erro: %v", err)
	}

	if def.InitialState != "NOVO" {
		t.Errorf("InitialState = %q, esperado NOVO", def.InitialState)
	}
	if len(def.States) != 3 {
		t.Errorf("len(States) = %d, esperado 3", len(def.States))
	}
	if !def.IsTerminal("RESOLVIDO") {
		t.Error("RESOLVIDO deveria ser terminal")
	}
	if def.IsTerminal("NOVO") {
		t.Error("NOVO não deveria ser terminal")
	}
}

func TestParseRejectsIncoherentDefinitions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"json malformado", `{"initialState": "NOVO"`},
		{"sem estados", `{"initialState": "NOVO", "states": []}`},
		{"initial desconhecido", `{"initialState": "X", "states": [{"key": "NOVO"}]}`},
		{"transição pendurada", `{"initialState": "NOVO", "states": [{"key": "NOVO", "transitions": [{"to": "FANTASMA"}]}]}`},
		{"terminal com saída", `{"initialState": "A", "states": [{"key": "A", "type": "terminal", "transitions": [{"to": "A"}]}]}`},
		{"estado duplicado", `{"initialState": "A", "states": [{"key": "A"}, {"key": "A"}]}`},
		{"tipo desconhecido", `{"initialState": "A", "states": [{"key": "A", "type": "misterioso"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.raw); !errors.Is(err, ErrDefinicaoInvalida) {
				t.Errorf("Parse(%s) err = %v, esperado ErrDefinicaoInvalida", tc.name, err)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		if _, err := Parse(raw); !errors.Is(err, ErrDefinicaoVazia) {
			t.Errorf("Parse(%q) err = %v, esperado ErrDefinicaoVazia", raw, err)
		}
	}
}

func TestCanTransition(t *testing.T) {
	def, err := Parse(validWorkflowJSON)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		from, to string
		want     bool
	}{
		{"NOVO", "EM_ANALISE", true},
		{"EM_ANALISE", "RESOLVIDO", true},
		{"EM_ANALISE", "NOVO", true},
		{"NOVO", "RESOLVIDO", false},
		{"RESOLVIDO", "NOVO", false},
		{"INEXISTENTE", "NOVO", false},
	}

	for _, tc := range tests {
		if got := def.CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, esperado %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestInitialStateLenient(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"válido", `{"initialState": "NOVO", "states": [{"key": "NOVO"}]}`, "NOVO"},
		{"com espaços", `{"initialState": "  TRIAGEM  "}`, "TRIAGEM"},
		{"vazio", "", ""},
		{"espaços", "   ", ""},
		{"malformado", `{"initialState":`, ""},
		{"sem campo", `{"states": []}`, ""},
		{"campo em branco", `{"initialState": "   "}`, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := InitialState(tc.raw); got != tc.want {
				t.Errorf("InitialState = %q, esperado %q", got, tc.want)
			}
		})
	}
}
