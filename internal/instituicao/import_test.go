package instituicao

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildSheet(t *testing.T, header []string, rows [][]string) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatal(err)
	}
	for n, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, n+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestParseXLSXMapeiaColunasPorNome(t *testing.T) {
	buf := buildSheet(t,
		[]string{"Código EA", "Nome", "Concelho", "Email", "Ignorada"},
		[][]string{
			{"EA001", "Banco Alimentar de Lisboa", "Lisboa", "geral@ba.pt", "x"},
			{"EA002", "Cáritas de Coimbra", "Coimbra", "", "y"},
		},
	)

	rows, err := ParseXLSX(buf)
	if err != nil {
		t.Fatalf("ParseXLSX: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("linhas = %d, esperado 2", len(rows))
	}
	if rows[0].CodigoEA != "EA001" || rows[0].Nome != "Banco Alimentar de Lisboa" {
		t.Errorf("primeira linha = %+v", rows[0])
	}
	if rows[0].Email != "geral@ba.pt" || rows[0].Concelho != "Lisboa" {
		t.Errorf("colunas mal mapeadas: %+v", rows[0])
	}
	if rows[1].Email != "" {
		t.Errorf("email da segunda linha = %q, esperado vazio", rows[1].Email)
	}
}

func TestParseXLSXSemColunasReconhecidas(t *testing.T) {
	buf := buildSheet(t, []string{"A", "B"}, [][]string{{"1", "2"}})

	if _, err := ParseXLSX(buf); err == nil {
		t.Fatal("esperado erro de cabeçalho")
	}
}

type stubUpserter struct {
	seen    map[string]bool
	failFor string
}

func (s *stubUpserter) UpsertByCodigoEA(_ context.Context, i *Instituicao) (bool, error) {
	if i.CodigoEA == s.failFor {
		return false, errors.New("erro simulado")
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	inserted := !s.seen[i.CodigoEA]
	s.seen[i.CodigoEA] = true
	return inserted, nil
}

func TestImportXLSXContaInseridasAtualizadasEIgnoradas(t *testing.T) {
	buf := buildSheet(t,
		[]string{"CodigoEA", "Nome"},
		[][]string{
			{"EA001", "Banco Alimentar"},
			{"EA001", "Banco Alimentar (atualizado)"},
			{"", "Sem código"},
			{"EA666", "Falha no upsert"},
		},
	)

	store := &stubUpserter{failFor: "EA666"}
	result, err := NewService(store).ImportXLSX(context.Background(), buf)
	if err != nil {
		t.Fatalf("ImportXLSX: %v", err)
	}

	if result.Inserted != 1 || result.Updated != 1 || result.Skipped != 2 {
		t.Errorf("resultado = %+v", result)
	}
	if len(result.Errors) != 2 {
		t.Errorf("erros = %v", result.Errors)
	}
}
