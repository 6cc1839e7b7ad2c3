package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/entrajuda/emergencia/internal/db"
	"github.com/entrajuda/emergencia/internal/geo"
	"github.com/entrajuda/emergencia/internal/pedido"
)

// Workflow registado por omissão para o tipo de apoio em bens.
const workflowBensPadrao = `{
  "id": "apoio-bens",
  "name": "Apoio em Bens",
  "version": 1,
  "initialState": "NOVO",
  "states": [
    {"key": "NOVO", "label": "Novo", "type": "normal",
     "transitions": [{"to": "EM_ANALISE", "event": "analisar"}]},
    {"key": "EM_ANALISE", "label": "Em análise", "type": "normal",
     "transitions": [
       {"to": "EM_ENTREGA", "event": "aprovar"},
       {"to": "RECUSADO", "event": "recusar"}
     ]},
    {"key": "EM_ENTREGA", "label": "Em entrega", "type": "normal",
     "transitions": [{"to": "RESOLVIDO", "event": "entregar"}]},
    {"key": "RESOLVIDO", "label": "Resolvido", "type": "terminal"},
    {"key": "RECUSADO", "label": "Recusado", "type": "terminal"}
  ]
}`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar à base de dados")
	}
	defer pool.Close()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "tipos":
		if err := runTipos(ctx, pedido.NewRepository(pool)); err != nil {
			log.Fatal().Err(err).Msg("falha a registar tipos de pedido")
		}
	case "geo":
		if err := runGeo(ctx, geo.NewRepository(pool), args); err != nil {
			log.Fatal().Err(err).Msg("falha a carregar dados geográficos")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `uso:
  seed tipos                       regista o tipo de apoio em bens com o workflow padrão
  seed geo -csv <ficheiro>         carrega distritos, concelhos e códigos postais de um CSV
                                   (colunas: distrito, concelho, freguesia, codigo_postal)`)
}

// runTipos garante que o tipo de apoio em bens existe.
func runTipos(ctx context.Context, repo *pedido.Repository) error {
	_, err := repo.GetTipoPedidoByTableName(ctx, pedido.TableNamePedidosBens)
	if err == nil {
		log.Info().Msg("tipo de apoio em bens já registado")
		return nil
	}
	if !errors.Is(err, pedido.ErrTipoNotFound) {
		return err
	}

	tipo := &pedido.TipoPedido{
		Name:      "Apoio em Bens",
		Workflow:  workflowBensPadrao,
		TableName: pedido.TableNamePedidosBens,
	}
	if err := repo.CreateTipoPedido(ctx, tipo); err != nil {
		return err
	}
	log.Info().Int64("id", tipo.ID).Msg("tipo de apoio em bens registado")
	return nil
}

// runGeo importa a hierarquia geográfica de um CSV com cabeçalho.
func runGeo(ctx context.Context, repo *geo.Repository, args []string) error {
	fs := flag.NewFlagSet("geo", flag.ExitOnError)
	csvPath := fs.String("csv", "", "caminho do ficheiro CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *csvPath == "" {
		return errors.New("indique -csv")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 4

	if _, err := reader.Read(); err != nil { // cabeçalho
		return fmt.Errorf("ler cabeçalho: %w", err)
	}

	distritos := map[string]int64{}
	concelhos := map[string]int64{}
	imported, skipped := 0, 0

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		distritoNome := strings.TrimSpace(record[0])
		concelhoNome := strings.TrimSpace(record[1])
		freguesia := strings.TrimSpace(record[2])
		codigoRaw := strings.TrimSpace(record[3])

		numero, err := geo.NormalizarCodigoPostal(codigoRaw)
		if err != nil {
			log.Warn().Str("codigo", codigoRaw).Msg("código postal ignorado")
			skipped++
			continue
		}

		distritoID, ok := distritos[distritoNome]
		if !ok {
			d, err := findOrCreateDistrito(ctx, repo, distritoNome)
			if err != nil {
				return err
			}
			distritoID = d
			distritos[distritoNome] = d
		}

		concelhoKey := distritoNome + "/" + concelhoNome
		concelhoID, ok := concelhos[concelhoKey]
		if !ok {
			c, err := findOrCreateConcelho(ctx, repo, concelhoNome, distritoID)
			if err != nil {
				return err
			}
			concelhoID = c
			concelhos[concelhoKey] = c
		}

		cp := geo.CodigoPostal{Numero: numero, Freguesia: freguesia, ConcelhoID: concelhoID}
		if err := repo.UpsertCodigoPostal(ctx, cp); err != nil {
			return fmt.Errorf("código postal %d: %w", numero, err)
		}
		imported++
	}

	log.Info().Int("importados", imported).Int("ignorados", skipped).
		Msg("carregamento geográfico concluído")
	return nil
}

func findOrCreateDistrito(ctx context.Context, repo *geo.Repository, nome string) (int64, error) {
	existing, err := repo.ListDistritos(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range existing {
		if strings.EqualFold(d.Nome, nome) {
			return d.ID, nil
		}
	}

	d, err := repo.CreateDistrito(ctx, nome)
	if err != nil {
		return 0, err
	}
	return d.ID, nil
}

func findOrCreateConcelho(ctx context.Context, repo *geo.Repository, nome string, distritoID int64) (int64, error) {
	existing, err := repo.ListConcelhos(ctx, &distritoID)
	if err != nil {
		return 0, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Nome, nome) {
			return c.ID, nil
		}
	}

	c, err := repo.CreateConcelho(ctx, nome, distritoID, nil)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}
