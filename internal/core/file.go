package core

// file.go drives a whole-file validation in two passes.
//
// Pass 1 reads every line once to gather the facts that need full-file
// visibility: per-line token counts (for the structure regime) and the
// business-key index (for duplicates). Pass 2 validates each line against
// those facts. Pass 2 is independent per line and may run on several
// workers; findings are merged back in file order.

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/annonces/internal/schema"
	"golang.org/x/sync/errgroup"
)

// FileValidator validates complete files against one schema version.
// A FileValidator holds no per-run state and can be reused concurrently.
type FileValidator struct {
	reg     *schema.Registry
	decoder *Decoder
	policy  Plausibility
	workers int
	rows    *RowValidator
}

// FileOption configures a FileValidator.
type FileOption func(*FileValidator)

// WithDecoder overrides the decoder built from the schema's encodings.
func WithDecoder(d *Decoder) FileOption {
	return func(v *FileValidator) { v.decoder = d }
}

// WithPlausibility sets the misalignment advisory policy.
func WithPlausibility(p Plausibility) FileOption {
	return func(v *FileValidator) { v.policy = p }
}

// WithWorkers validates rows on n goroutines. n <= 1 keeps pass 2 sequential.
func WithWorkers(n int) FileOption {
	return func(v *FileValidator) { v.workers = n }
}

// NewFileValidator creates a validator for reg.
func NewFileValidator(reg *schema.Registry, opts ...FileOption) (*FileValidator, error) {
	v := &FileValidator{
		reg:     reg,
		policy:  DefaultPlausibility(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.decoder == nil {
		dec, err := NewDecoder(reg.Dialect().Encodings...)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", reg.Key(), err)
		}
		v.decoder = dec
	}
	v.rows = NewRowValidator(reg, NewFieldValidator(reg, v.policy))
	return v, nil
}

// Schema returns the registry this validator checks against.
func (v *FileValidator) Schema() *schema.Registry {
	return v.reg
}

// Validate decodes data and validates every line. The only errors are
// fatal ones (no usable encoding); data problems are findings.
func (v *FileValidator) Validate(data []byte) (*Report, error) {
	return v.ValidateContext(context.Background(), data)
}

// ValidateContext is Validate with cancellation: row validation stops and
// ctx.Err() is returned once ctx is done.
func (v *FileValidator) ValidateContext(ctx context.Context, data []byte) (*Report, error) {
	text, enc, err := v.decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	report, err := v.validateText(ctx, text)
	if err != nil {
		return nil, err
	}
	report.Encoding = enc
	return report, nil
}

// ValidateText validates already decoded text.
func (v *FileValidator) ValidateText(text string) *Report {
	report, _ := v.validateText(context.Background(), text)
	return report
}

func (v *FileValidator) validateText(ctx context.Context, text string) (*Report, error) {
	d := v.reg.Dialect()
	lines := SplitLines(text)
	tokenize(lines, d)

	// pass 1
	counts := make([]int, len(lines))
	for i, l := range lines {
		counts[i] = len(l.Tokens)
	}
	shape := AnalyzeStructure(counts, v.reg.Len())
	dup := BuildDuplicateIndex(lines, d)

	report := &Report{
		SchemaKey:     v.reg.Key(),
		Columns:       v.reg.Columns(),
		Lines:         len(lines),
		Shape:         shape,
		DuplicateKeys: dup.Duplicates(),
		Rows:          make([]NormalizedRow, len(lines)),
		Findings:      []Finding{},
	}
	if f, ok := shape.FileFinding(); ok {
		report.Findings = append(report.Findings, f)
	}

	// pass 2
	results, err := v.validateRows(ctx, lines, shape, dup)
	if err != nil {
		return nil, err
	}
	for i, res := range results {
		report.Rows[i] = res.Row
		report.Findings = append(report.Findings, res.Findings...)
	}
	return report, nil
}

// validateRows runs pass 2. Only cancellation of ctx can fail it.
func (v *FileValidator) validateRows(ctx context.Context, lines []Line, shape Shape, dup DuplicateIndex) ([]RowResult, error) {
	results := make([]RowResult, len(lines))
	if v.workers <= 1 || len(lines) < 2*v.workers {
		for i, l := range lines {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = v.rows.ValidateRow(l, shape, dup)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	chunk := (len(lines) + v.workers - 1) / v.workers
	for start := 0; start < len(lines); start += chunk {
		start := start
		end := min(start+chunk, len(lines))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = v.rows.ValidateRow(lines[i], shape, dup)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
