package db

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS job_cards (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		service_status VARCHAR(20) NOT NULL DEFAULT 'check-in',
		sop_template_id VARCHAR(64),
		sop_progress NUMERIC(5,2) NOT NULL DEFAULT 0,
		promised_ready_at TIMESTAMPTZ,
		payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_by_user_id UUID NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_job_cards_status CHECK (service_status IN ('check-in', 'inspect', 'prep', 'service', 'qc', 'billing', 'pickup')),
		CONSTRAINT chk_job_cards_payment CHECK (payment_status IN ('pending', 'partial', 'paid')),
		CONSTRAINT chk_job_cards_progress CHECK (sop_progress >= 0 AND sop_progress <= 100)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_job_cards_service_status ON job_cards (service_status);`,
	`CREATE INDEX IF NOT EXISTS idx_job_cards_promised_ready_at ON job_cards (promised_ready_at) WHERE service_status <> 'pickup';`,
	`CREATE TABLE IF NOT EXISTS sop_checklist_entries (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		job_card_id UUID NOT NULL REFERENCES job_cards(id) ON DELETE CASCADE,
		step_id VARCHAR(64) NOT NULL,
		position INT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		completed_checkpoints JSONB NOT NULL DEFAULT '[]'::jsonb,
		photos JSONB NOT NULL DEFAULT '[]'::jsonb,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_sop_checklist_step UNIQUE (job_card_id, step_id)
	);`,
	`CREATE TABLE IF NOT EXISTS sop_override_records (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		job_card_id UUID NOT NULL REFERENCES job_cards(id) ON DELETE RESTRICT,
		from_status VARCHAR(20) NOT NULL,
		to_status VARCHAR(20) NOT NULL,
		reason TEXT NOT NULL,
		bypassed_step_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
		actor_user_id UUID NOT NULL,
		actor_role VARCHAR(50) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sop_override_records_job_card ON sop_override_records (job_card_id, created_at);`,
	// журнал обходов только на добавление
	`CREATE OR REPLACE FUNCTION forbid_override_record_changes()
	RETURNS TRIGGER AS $$
	BEGIN
		RAISE EXCEPTION 'sop_override_records is append-only';
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_sop_override_records_append_only') THEN
			CREATE TRIGGER trg_sop_override_records_append_only
				BEFORE UPDATE OR DELETE ON sop_override_records
				FOR EACH ROW
				EXECUTE PROCEDURE forbid_override_record_changes();
		END IF;
	END
	$$;`,
	`CREATE OR REPLACE FUNCTION set_updated_at()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_job_cards_updated_at') THEN
			CREATE TRIGGER trg_job_cards_updated_at
				BEFORE UPDATE ON job_cards
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_sop_checklist_entries_updated_at') THEN
			CREATE TRIGGER trg_sop_checklist_entries_updated_at
				BEFORE UPDATE ON sop_checklist_entries
				FOR EACH ROW
				EXECUTE PROCEDURE set_updated_at();
		END IF;
	END
	$$;`,
}

func Migrate(db *gorm.DB, log zerolog.Logger) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	log.Info().Int("statements", len(migrationStatements)).Msg("migrations applied")
	return nil
}
