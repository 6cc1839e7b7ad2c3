package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Tipos de estado reconhecidos numa definição.
const (
	StateTypeNormal   = "normal"
	StateTypeTerminal = "terminal"
)

var (
	// ErrDefinicaoVazia indica ausência de JSON de workflow.
	ErrDefinicaoVazia = errors.New("definição de workflow vazia")
	// ErrDefinicaoInvalida indica JSON malformado ou incoerente.
	ErrDefinicaoInvalida = errors.New("definição de workflow inválida")
)

// Transition liga um estado de origem a um destino através de um evento.
type Transition struct {
	To    string `json:"to"`
	Event string `json:"event"`
}

// State descreve um nó da máquina de estados.
type State struct {
	Key         string       `json:"key"`
	Label       string       `json:"label"`
	Type        string       `json:"type"`
	Transitions []Transition `json:"transitions"`
}

// Definition é a máquina de estados associada a um tipo de pedido.
type Definition struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Version      int     `json:"version"`
	InitialState string  `json:"initialState"`
	States       []State `json:"states"`
}

// Parse valida estruturalmente o JSON (schema) e depois a coerência
// referencial da máquina. Usado no registo/edição de tipos de pedido, onde
// uma definição incoerente deve ser rejeitada.
func Parse(raw string) (*Definition, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrDefinicaoVazia
	}

	if err := validateSchema(trimmed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDefinicaoInvalida, err)
	}

	var def Definition
	if err := json.Unmarshal([]byte(trimmed), &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDefinicaoInvalida, err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return &def, nil
}

// Validate verifica a coerência referencial: estado inicial declarado,
// transições a apontar para chaves existentes e estados terminais sem saídas.
func (d *Definition) Validate() error {
	if len(d.States) == 0 {
		return fmt.Errorf("%w: sem estados declarados", ErrDefinicaoInvalida)
	}

	keys := make(map[string]struct{}, len(d.States))
	for _, st := range d.States {
		key := strings.TrimSpace(st.Key)
		if key == "" {
			return fmt.Errorf("%w: estado sem chave", ErrDefinicaoInvalida)
		}
		if _, dup := keys[key]; dup {
			return fmt.Errorf("%w: estado %q duplicado", ErrDefinicaoInvalida, key)
		}
		keys[key] = struct{}{}
	}

	initial := strings.TrimSpace(d.InitialState)
	if initial == "" {
		return fmt.Errorf("%w: initialState em falta", ErrDefinicaoInvalida)
	}
	if _, ok := keys[initial]; !ok {
		return fmt.Errorf("%w: initialState %q não corresponde a nenhum estado", ErrDefinicaoInvalida, initial)
	}

	for _, st := range d.States {
		if st.Type == StateTypeTerminal && len(st.Transitions) > 0 {
			return fmt.Errorf("%w: estado terminal %q tem transições de saída", ErrDefinicaoInvalida, st.Key)
		}
		for _, tr := range st.Transitions {
			to := strings.TrimSpace(tr.To)
			if _, ok := keys[to]; !ok {
				return fmt.Errorf("%w: transição de %q para estado desconhecido %q", ErrDefinicaoInvalida, st.Key, tr.To)
			}
		}
	}

	return nil
}

// State devolve o estado com a chave indicada.
func (d *Definition) State(key string) (*State, bool) {
	for i := range d.States {
		if d.States[i].Key == key {
			return &d.States[i], true
		}
	}
	return nil, false
}

// IsTerminal indica se a chave corresponde a um estado terminal.
func (d *Definition) IsTerminal(key string) bool {
	st, ok := d.State(key)
	return ok && st.Type == StateTypeTerminal
}

// CanTransition verifica se existe uma transição declarada de from para to.
func (d *Definition) CanTransition(from, to string) bool {
	st, ok := d.State(from)
	if !ok {
		return false
	}
	for _, tr := range st.Transitions {
		if tr.To == to {
			return true
		}
	}
	return false
}

// InitialState extrai de forma leniente o estado inicial de um JSON de
// workflow. Qualquer falha de parsing ou campo vazio devolve "", deixando o
// fallback ao chamador: uma definição em falta nunca pode bloquear a
// submissão de um pedido.
func InitialState(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	var doc struct {
		InitialState string `json:"initialState"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return ""
	}

	return strings.TrimSpace(doc.InitialState)
}
