// Package seed fills a guestbook store with demo entries. Intended for
// development and tests only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"
	"unicode/utf8"

	"senbon/internal/models"
	"senbon/internal/repository"
	"senbon/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// SeedOptions controls how many entries of each state are created.
type SeedOptions struct {
	Approved int
	Pending  int
	Rejected int
	// MaxDays spreads created_at over the last MaxDays days.
	MaxDays int
	// Seed makes the generated content reproducible when non-zero.
	Seed int64
}

// Result reports what was inserted.
type Result struct {
	Approved int
	Pending  int
	Rejected int
}

// Total is the number of inserted entries.
func (r Result) Total() int { return r.Approved + r.Pending + r.Rejected }

// Seeder writes fake entries through a GuestbookRepository, so it works
// against either store.
type Seeder struct {
	repo  repository.GuestbookRepository
	opts  SeedOptions
	faker *gofakeit.Faker
	rng   *rand.Rand
	now   time.Time
}

func NewSeeder(repo repository.GuestbookRepository, opts SeedOptions) *Seeder {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}
	return &Seeder{
		repo:  repo,
		opts:  opts,
		faker: gofakeit.New(seed),
		rng:   rand.New(rand.NewSource(seed)),
		now:   time.Now().UTC(),
	}
}

// BuildEntry returns an unsaved entry with realistic content.
func (s *Seeder) BuildEntry(status models.EntryStatus) *models.GuestbookEntry {
	message := s.faker.Sentence(s.rng.Intn(18) + 3)
	if utf8.RuneCountInString(message) > models.MaxMessageLength {
		message = string([]rune(message)[:models.MaxMessageLength])
	}

	back := time.Duration(s.rng.Intn(s.opts.MaxDays*24*60)) * time.Minute
	e := &models.GuestbookEntry{
		Name:                 service.NormalizeName(s.faker.Name()),
		Message:              message,
		CreatedAt:            s.now.Add(-back).Truncate(time.Microsecond),
		SubmitterFingerprint: service.Fingerprint(s.faker.IPv4Address()),
	}
	switch status {
	case models.StatusApproved:
		e.Approved = true
	case models.StatusRejected:
		e.Rejected = true
		t := e.CreatedAt.Add(time.Hour)
		e.UpdatedAt = &t
	}
	return e
}

// Run inserts the configured number of entries.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var res Result
	plan := []struct {
		status models.EntryStatus
		n      int
		count  *int
	}{
		{models.StatusApproved, s.opts.Approved, &res.Approved},
		{models.StatusPending, s.opts.Pending, &res.Pending},
		{models.StatusRejected, s.opts.Rejected, &res.Rejected},
	}

	for _, p := range plan {
		for i := 0; i < p.n; i++ {
			if err := s.repo.Insert(ctx, s.BuildEntry(p.status)); err != nil {
				return res, fmt.Errorf("insert %s entry: %w", p.status, err)
			}
			*p.count++
		}
	}
	return res, nil
}
