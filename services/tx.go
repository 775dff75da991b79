package services

import (
	"context"
	"database/sql"

	"github.com/playerhoods/match-system/repositories"
)

// Tx — минимальный интерфейс транзакции. Сервисы видят транзакцию
// только как SQLExecutor с Commit/Rollback, что позволяет подменять
// *sql.Tx в тестах.
type Tx interface {
	repositories.SQLExecutor
	Commit() error
	Rollback() error
}

type TxBeginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}

type sqlTxBeginner struct {
	db *sql.DB
}

// NewSQLTxBeginner оборачивает *sql.DB в TxBeginner.
func NewSQLTxBeginner(db *sql.DB) TxBeginner {
	return sqlTxBeginner{db: db}
}

func (b sqlTxBeginner) BeginTx(ctx context.Context) (Tx, error) {
	return b.db.BeginTx(ctx, nil)
}
