package instituicao

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSemFolha indica um ficheiro sem folhas de cálculo utilizáveis.
var ErrSemFolha = errors.New("ficheiro sem folha de cálculo")

// colunas reconhecidas no cabeçalho, por nome normalizado.
var headerAliases = map[string]string{
	"codigo ea":     "codigo_ea",
	"codigoea":      "codigo_ea",
	"nome":          "nome",
	"distrito":      "distrito",
	"concelho":      "concelho",
	"morada":        "morada",
	"codigo postal": "codigo_postal",
	"email":         "email",
	"telefone":      "telefone",
}

// ImportResult resume uma importação de instituições.
type ImportResult struct {
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Upserter é o subconjunto do repositório usado pela importação.
type Upserter interface {
	UpsertByCodigoEA(ctx context.Context, i *Instituicao) (bool, error)
}

// Service importa e consulta instituições.
type Service struct {
	store Upserter
}

// NewService cria o serviço de importação.
func NewService(store Upserter) *Service {
	return &Service{store: store}
}

// ImportXLSX lê a primeira folha do ficheiro e faz upsert linha a linha
// pelo código EA. Linhas inválidas são contadas e reportadas, nunca
// interrompem a importação.
func (s *Service) ImportXLSX(ctx context.Context, r io.Reader) (*ImportResult, error) {
	rows, err := ParseXLSX(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for n, i := range rows {
		if strings.TrimSpace(i.CodigoEA) == "" || strings.TrimSpace(i.Nome) == "" {
			result.Skipped++
			result.Errors = append(result.Errors,
				fmt.Sprintf("linha %d: código EA e nome são obrigatórios", n+2))
			continue
		}

		inserted, err := s.store.UpsertByCodigoEA(ctx, &i)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("linha %d: %v", n+2, err))
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

// ParseXLSX extrai instituições da primeira folha. A primeira linha é o
// cabeçalho; colunas desconhecidas são ignoradas.
func ParseXLSX(r io.Reader) ([]Instituicao, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("abrir ficheiro: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrSemFolha
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ler folha %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	fields := map[int]string{}
	for col, name := range rows[0] {
		if field, ok := headerAliases[normalizeHeader(name)]; ok {
			fields[col] = field
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("cabeçalho sem colunas reconhecidas")
	}

	var out []Instituicao
	for _, row := range rows[1:] {
		var i Instituicao
		empty := true
		for col, field := range fields {
			if col >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[col])
			if value != "" {
				empty = false
			}
			switch field {
			case "codigo_ea":
				i.CodigoEA = value
			case "nome":
				i.Nome = value
			case "distrito":
				i.Distrito = value
			case "concelho":
				i.Concelho = value
			case "morada":
				i.Morada = value
			case "codigo_postal":
				i.CodigoPostal = value
			case "email":
				i.Email = value
			case "telefone":
				i.Telefone = value
			}
		}
		if !empty {
			out = append(out, i)
		}
	}
	return out, nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(
		"ó", "o", "ç", "c", "á", "a", "é", "e", "í", "i", "ã", "a", "-", " ",
	)
	name = replacer.Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
