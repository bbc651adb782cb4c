package db

import (
	"gorm.io/gorm"

	catalogue "github.com/fenwicklabs/coderunner/internal/domain/catalogue"
	executions "github.com/fenwicklabs/coderunner/internal/domain/executions"
	sessions "github.com/fenwicklabs/coderunner/internal/domain/sessions"
)

func AutoMigrateAll(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&catalogue.Language{},
		&sessions.Session{},
		&executions.Execution{},
	); err != nil {
		return err
	}

	// FK: sessions.language_id restricts language deletion; executions.session_id
	// cascades on session delete.
	if err := gdb.Exec(`
		DO $$ BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'fk_sessions_language'
			) THEN
				ALTER TABLE sessions
					ADD CONSTRAINT fk_sessions_language
					FOREIGN KEY (language_id) REFERENCES languages(id)
					ON DELETE RESTRICT;
			END IF;
		END $$;
	`).Error; err != nil {
		return err
	}
	if err := gdb.Exec(`
		DO $$ BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_constraint WHERE conname = 'fk_executions_session'
			) THEN
				ALTER TABLE executions
					ADD CONSTRAINT fk_executions_session
					FOREIGN KEY (session_id) REFERENCES sessions(id)
					ON DELETE CASCADE;
			END IF;
		END $$;
	`).Error; err != nil {
		return err
	}

	return nil
}
