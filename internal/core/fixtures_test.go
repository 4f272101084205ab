package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/annonces/internal/schema"
)

const testSchemaKey = "test-8"

// testRegistry is a small listing schema with one rule of every type.
func testRegistry(t testing.TB) *schema.Registry {
	t.Helper()
	reg, err := schema.New(schema.Definition{
		Key:   testSchemaKey,
		Label: "Test listings",
		Dialect: schema.Dialect{
			FieldCount:        8,
			KeyRank:           2,
			Delimiter:         "!#",
			Quote:             '"',
			QuoteRequired:     true,
			DropTrailingEmpty: true,
			DateLayout:        "2/1/2006",
		},
		Rules: []schema.FieldRule{
			{Rank: 1, Name: "Identifiant agence", Type: schema.TypeInteger, Mandatory: true},
			{Rank: 2, Name: "Référence", Type: schema.TypeText, Mandatory: true},
			{Rank: 3, Name: "Type d'annonce", Type: schema.TypeEnum, Mandatory: true,
				AllowedValues: []string{"Vente", "Location", "Viager", "Cession de bail"}},
			{Rank: 4, Name: "Prix", Type: schema.TypeDecimal, Mandatory: true},
			{Rank: 5, Name: "CP", Type: schema.TypePostalCode, Mandatory: true},
			{Rank: 6, Name: "Date de disponibilité", Type: schema.TypeDate},
			{Rank: 7, Name: "Loyer CC", Type: schema.TypeEnum, AllowedValues: []string{"OUI", "NON"}, MaxLength: 3},
			{Rank: 8, Name: "Titre", Type: schema.TypeText, MaxLength: 10},
		},
	})
	if err != nil {
		t.Fatalf("schema.New() error = %v", err)
	}
	return reg
}

// registerTestSchema makes testRegistry available through the catalog.
func registerTestSchema(t testing.TB) *schema.Registry {
	t.Helper()
	reg := testRegistry(t)
	schema.Replace(reg)
	return reg
}

// validValues returns a row that passes every check.
func validValues(ref string) []string {
	return []string{"1234", ref, "Vente", "250000,50", "75011", "15/09/2024", "OUI", "Studio"}
}

// record renders values as one quoted, delimited line.
func record(values ...string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, "!#")
}

// with returns a copy of values with position i replaced.
func with(values []string, i int, v string) []string {
	out := append([]string(nil), values...)
	out[i] = v
	return out
}

// testLine tokenizes text as line number n.
func testLine(reg *schema.Registry, n int, text string) Line {
	return Line{Number: n, Text: text, Tokens: SplitFields(text, reg.Dialect())}
}

// codes lists finding codes in order.
func codes(findings []Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Code
	}
	return out
}

// memoryRunStore is a minimal RunStore for service tests.
type memoryRunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	err  error
}

func newMemoryRunStore() *memoryRunStore {
	return &memoryRunStore{runs: make(map[string]*Run)}
}

func (m *memoryRunStore) SaveRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs[run.ID] = run
	return nil
}

func (m *memoryRunStore) GetRun(_ context.Context, id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func (m *memoryRunStore) ListRuns(_ context.Context, limit int) ([]*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
