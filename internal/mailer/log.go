package mailer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EmailLog é o registo de auditoria de um envio (sem corpo).
type EmailLog struct {
	ID         int64     `json:"id"`
	SentAt     time.Time `json:"sent_at"`
	Recipients string    `json:"recipients"`
	Subject    string    `json:"subject"`
}

// LogRepository persiste o histórico de envios.
type LogRepository struct {
	pool *pgxpool.Pool
}

// NewLogRepository cria o repositório de logs de email.
func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Append regista um envio. O histórico nunca é alterado ou apagado.
func (r *LogRepository) Append(ctx context.Context, recipients, subject string) error {
	const query = `INSERT INTO email_logs (recipients, subject) VALUES ($1, $2)`

	_, err := r.pool.Exec(ctx, query, recipients, subject)
	return err
}

// List devolve os envios mais recentes.
func (r *LogRepository) List(ctx context.Context, limit, offset int) ([]EmailLog, error) {
	const query = `
        SELECT id, sent_at, recipients, subject
        FROM email_logs
        ORDER BY sent_at DESC
        LIMIT $1 OFFSET $2
    `

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []EmailLog
	for rows.Next() {
		var l EmailLog
		if err := rows.Scan(&l.ID, &l.SentAt, &l.Recipients, &l.Subject); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}
