// Package reconcile runs a user's transactions through dedup, recurrence
// detection and risk scoring, and hands the records to a Repository.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/recon/internal/dedup"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/normalize"
	"github.com/cleared-dev/recon/internal/recurrence"
	"github.com/cleared-dev/recon/internal/risk"
)

// ErrEmptyUser is returned when a run has no user id.
var ErrEmptyUser = errors.New("user id is required")

// Input is one user's reconciliation request.
type Input struct {
	UserID   string
	New      []model.RawTransaction
	Existing []model.RawTransaction
	AsOf     civil.Date // zero means the latest transaction date
}

// Report is the outcome of one user's run.
type Report struct {
	RunID         string                     `json:"run_id"`
	UserID        string                     `json:"user_id"`
	StartedAt     time.Time                  `json:"started_at"`
	Dedup         dedup.Stats                `json:"dedup"`
	Unique        []model.RawTransaction     `json:"unique"`
	Duplicates    []dedup.Match              `json:"duplicates"`
	Subscriptions []model.SubscriptionRecord `json:"subscriptions"`
	Bills         []model.BillRecord         `json:"bills"`
	Outcomes      []recurrence.Outcome       `json:"outcomes"`
	Assessments   []model.RiskAssessment     `json:"assessments"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithParallelism bounds the number of users RunAll processes at once.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// Engine wires the pure components to a Repository.
type Engine struct {
	norm        *normalize.Normalizer
	dedup       *dedup.Deduplicator
	classifier  *recurrence.Classifier
	scorer      *risk.Scorer
	repo        Repository
	log         zerolog.Logger
	parallelism int
	now         func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(norm *normalize.Normalizer, dd *dedup.Deduplicator, cl *recurrence.Classifier, sc *risk.Scorer, repo Repository, opts ...Option) *Engine {
	e := &Engine{
		norm:        norm,
		dedup:       dd,
		classifier:  cl,
		scorer:      sc,
		repo:        repo,
		log:         zerolog.Nop(),
		parallelism: 4,
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run reconciles one user's batch. Dedup completes before classification and
// scoring, which only see the unique incoming records.
func (e *Engine) Run(ctx context.Context, in Input) (*Report, error) {
	if in.UserID == "" {
		return nil, ErrEmptyUser
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &Report{
		RunID:     uuid.NewString(),
		UserID:    in.UserID,
		StartedAt: e.now().UTC(),
	}
	log := e.log.With().Str("run_id", rep.RunID).Str("user_id", in.UserID).Logger()

	dr := e.dedup.FindDuplicates(in.New, in.Existing)
	rep.Dedup = dr.Stats
	rep.Unique = dr.Unique
	rep.Duplicates = dr.Matches

	existing := e.norm.NormalizeAll(in.Existing)
	unique := e.norm.NormalizeAll(dr.Unique)
	history := make([]model.NormalizedTransaction, 0, len(existing)+len(unique))
	history = append(history, existing...)
	history = append(history, unique...)

	det := e.classifier.Detect(in.UserID, history, in.AsOf)
	rep.Subscriptions = det.Subscriptions
	rep.Bills = det.Bills
	rep.Outcomes = det.Outcomes

	// Records from earlier runs only: a charge must not become its own baseline.
	known, err := e.knownRecurring(ctx, in.UserID)
	if err != nil {
		log.Error().Err(err).Msg("loading recurring records")
		return nil, err
	}

	if err := e.persist(ctx, det); err != nil {
		log.Error().Err(err).Msg("persisting detections")
		return nil, err
	}

	inputs := make([]risk.Input, 0, len(unique))
	for _, u := range unique {
		ri := risk.Input{Candidate: u, Category: u.Raw.Category}
		if r, ok := known[u.Merchant]; ok {
			ri.Signals = &risk.Signals{Recurring: &r}
		}
		inputs = append(inputs, ri)
	}
	rep.Assessments = e.scorer.ScoreAll(inputs)

	log.Info().
		Int("total_new", rep.Dedup.TotalNew).
		Int("duplicates", rep.Dedup.DuplicateCount).
		Float64("dedup_rate", rep.Dedup.DeduplicationRate).
		Int("subscriptions", len(rep.Subscriptions)).
		Int("bills", len(rep.Bills)).
		Int("anomalies", countAnomalies(rep.Assessments)).
		Msg("reconciliation complete")
	return rep, nil
}

// RunAll reconciles several users in parallel. Reports are index-aligned with inputs.
func (e *Engine) RunAll(ctx context.Context, inputs []Input) ([]*Report, error) {
	reports := make([]*Report, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			rep, err := e.Run(ctx, in)
			if err != nil {
				return fmt.Errorf("user %s: %w", in.UserID, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (e *Engine) persist(ctx context.Context, det recurrence.Detection) error {
	for _, s := range det.Subscriptions {
		if err := e.repo.UpsertSubscription(ctx, s); err != nil {
			return fmt.Errorf("upserting subscription %s: %w", s.Merchant, err)
		}
	}
	for _, b := range det.Bills {
		if err := e.repo.UpsertBill(ctx, b); err != nil {
			return fmt.Errorf("upserting bill %s: %w", b.Merchant, err)
		}
	}
	return nil
}

// knownRecurring loads the user's stored records keyed by merchant.
func (e *Engine) knownRecurring(ctx context.Context, userID string) (map[string]risk.Recurring, error) {
	subs, err := e.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	bills, err := e.repo.ListBills(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}

	known := make(map[string]risk.Recurring, len(subs)+len(bills))
	for _, b := range bills {
		known[b.Merchant] = risk.Recurring{Kind: model.KindBill, Amount: b.Amount}
	}
	for _, s := range subs {
		known[s.Merchant] = risk.Recurring{Kind: model.KindSubscription, Amount: s.Amount}
	}
	return known, nil
}

func countAnomalies(as []model.RiskAssessment) int {
	n := 0
	for _, a := range as {
		if a.IsAnomaly {
			n++
		}
	}
	return n
}
