package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/annonces/internal/config"
	"github.com/JonMunkholm/annonces/internal/core"
	"github.com/google/uuid"
)

// newTestPostgres connects to DATABASE_URL and skips the test when it is
// not set. Runs saved through the returned store are deleted on cleanup.
func newTestPostgres(t *testing.T) (*Postgres, *[]string) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, config.DatabaseConfig{
		URL:             url,
		MaxConns:        2,
		MinConns:        1,
		MaxConnLifetime: time.Minute,
		MaxConnIdleTime: time.Minute,
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	pg := NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	// a second call must be a no-op on existing tables
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		t.Fatalf("EnsureSchema() again error = %v", err)
	}

	var ids []string
	t.Cleanup(func() {
		for _, id := range ids {
			pool.Exec(context.Background(), `DELETE FROM validation_runs WHERE id = $1`, id)
		}
		pool.Close()
	})
	return pg, &ids
}

func pgTestRun(createdAt time.Time) *core.Run {
	return &core.Run{
		ID:        uuid.New().String(),
		SchemaKey: "poliris-1.04",
		FileName:  "annonces.txt",
		Encoding:  "windows-1252",
		ClientIP:  "198.51.100.7",
		UserAgent: "agency-export/2.1",
		Lines:     3,
		Errors:    2,
		Warnings:  1,
		Status:    core.RunInvalid,
		CreatedAt: createdAt,
		Duration:  42 * time.Millisecond,
		Report: &core.Report{
			SchemaKey:     "poliris-1.04",
			Encoding:      "windows-1252",
			Lines:         3,
			Shape:         core.Shape{Regime: core.RegimeSporadic, Expected: 334},
			DuplicateKeys: 1,
			Findings: []core.Finding{
				{LineNumber: 2, BusinessKey: "A-2", Rank: 2, FieldName: "Référence agence", Code: core.CodeDuplicateKey, Severity: core.SeverityError, Message: "Reference used 2 times, on lines 2, 3.", RawValue: "'A-2'"},
				{LineNumber: 3, BusinessKey: "A-2", Rank: 2, FieldName: "Référence agence", Code: core.CodeDuplicateKey, Severity: core.SeverityError, Message: "Reference used 2 times, on lines 2, 3.", RawValue: "'A-2'"},
				{LineNumber: 3, BusinessKey: "A-2", Rank: 11, FieldName: "Prix", Code: core.CodeMisalignment, Severity: core.SeverityWarning, Message: "Value looks like text.", RawValue: "'Appartement'"},
			},
		},
	}
}

// ============================================================================
// Postgres round trip
// ============================================================================

func TestPostgres_SaveAndGet(t *testing.T) {
	pg, ids := newTestPostgres(t)
	ctx := context.Background()

	want := pgTestRun(time.Date(2099, 1, 2, 3, 4, 5, 0, time.UTC))
	if err := pg.SaveRun(ctx, want); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	*ids = append(*ids, want.ID)

	got, err := pg.GetRun(ctx, want.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}

	if got.ID != want.ID || got.FileName != want.FileName || got.Encoding != want.Encoding {
		t.Errorf("run = %+v", got)
	}
	if got.ClientIP != want.ClientIP || got.UserAgent != want.UserAgent {
		t.Errorf("client = %q / %q", got.ClientIP, got.UserAgent)
	}
	if got.Lines != 3 || got.Errors != 2 || got.Warnings != 1 || got.Status != core.RunInvalid {
		t.Errorf("summary = %+v", got)
	}
	if got.Duration != want.Duration || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("duration/created = %v / %v", got.Duration, got.CreatedAt)
	}

	if got.Report == nil {
		t.Fatal("report missing")
	}
	if got.Report.Shape != want.Report.Shape || got.Report.DuplicateKeys != 1 {
		t.Errorf("shape/duplicates = %+v / %d", got.Report.Shape, got.Report.DuplicateKeys)
	}
	if len(got.Report.Findings) != len(want.Report.Findings) {
		t.Fatalf("findings = %d, want %d", len(got.Report.Findings), len(want.Report.Findings))
	}
	for i, f := range want.Report.Findings {
		if got.Report.Findings[i] != f {
			t.Errorf("finding %d = %+v, want %+v", i, got.Report.Findings[i], f)
		}
	}
}

func TestPostgres_GetRunNotFound(t *testing.T) {
	pg, _ := newTestPostgres(t)
	ctx := context.Background()

	for _, id := range []string{uuid.New().String(), "not-a-uuid"} {
		if _, err := pg.GetRun(ctx, id); !errors.Is(err, core.ErrRunNotFound) {
			t.Errorf("GetRun(%q) error = %v, want ErrRunNotFound", id, err)
		}
	}
}

func TestPostgres_SaveRunRejectsBadID(t *testing.T) {
	pg, _ := newTestPostgres(t)

	run := pgTestRun(time.Now())
	run.ID = "run-1"
	if err := pg.SaveRun(context.Background(), run); err == nil {
		t.Error("SaveRun() with a non-UUID id expected error")
	}
}

func TestPostgres_ListRunsNewestFirst(t *testing.T) {
	pg, ids := newTestPostgres(t)
	ctx := context.Background()

	older := pgTestRun(time.Date(2099, 6, 1, 0, 0, 0, 0, time.UTC))
	newer := pgTestRun(time.Date(2099, 6, 2, 0, 0, 0, 0, time.UTC))
	newer.ClientIP = "" // stored as NULL
	newer.Report.Findings = nil

	for _, run := range []*core.Run{older, newer} {
		if err := pg.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
		*ids = append(*ids, run.ID)
	}

	runs, err := pg.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.ID || runs[1].ID != older.ID {
		t.Fatalf("ListRuns() order = %v", runs)
	}
	if runs[0].Report != nil {
		t.Error("ListRuns() should not load reports")
	}
	if runs[0].ClientIP != "" {
		t.Errorf("client ip = %q, want empty", runs[0].ClientIP)
	}

	got, err := pg.GetRun(ctx, newer.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Report == nil || got.Report.Findings == nil || len(got.Report.Findings) != 0 {
		t.Errorf("findings = %v, want empty", got.Report)
	}
}

func TestPostgres_Ping(t *testing.T) {
	pg, _ := newTestPostgres(t)
	if err := pg.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
