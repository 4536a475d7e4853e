package notification

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/uts-dev/notification/pkg/migration"
)

// migrationsFS は埋め込みのマイグレーションSQLファイル。
//
//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if err := migration.Run(db, migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
