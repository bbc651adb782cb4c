package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	catalogue "github.com/fenwicklabs/coderunner/internal/domain/catalogue"
	executions "github.com/fenwicklabs/coderunner/internal/domain/executions"
	sessions "github.com/fenwicklabs/coderunner/internal/domain/sessions"
)

func SeedLanguage(tb testing.TB, ctx context.Context, tx *gorm.DB, runtime string) *catalogue.Language {
	tb.Helper()
	l := &catalogue.Language{
		ID:                 uuid.New(),
		Name:               runtime,
		Runtime:            runtime,
		Version:            "0",
		FileName:           "main.src",
		RunCmdTemplate:     "true",
		DefaultTimeLimitMs: 5000,
		DefaultMemoryMB:    256,
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed language: %v", err)
	}
	return l
}

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, languageID uuid.UUID) *sessions.Session {
	tb.Helper()
	s := &sessions.Session{
		ID:         uuid.New(),
		LanguageID: languageID,
		SourceCode: "",
		Status:     string(sessions.StatusActive),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

func SeedExecution(tb testing.TB, ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, status executions.Status) *executions.Execution {
	tb.Helper()
	e := &executions.Execution{
		ID:        uuid.New(),
		SessionID: sessionID,
		Status:    string(status),
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed execution: %v", err)
	}
	return e
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrInt(v int) *int { return &v }
