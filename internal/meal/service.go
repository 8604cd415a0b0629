package meal

import (
	"context"
	"log"
	"time"

	"github.com/oklog/ulid/v2"

	"mealcheck/internal/apperr"
	"mealcheck/internal/metrics"
	"mealcheck/internal/retry"
	"mealcheck/internal/storage"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	return ulid.Make().String(), nil
}

// Roster lists the athletes a coach can see, in listing order.
type Roster interface {
	ListAthletes(ctx context.Context) ([]Athlete, error)
}

// OrphanReporter hands off an object whose record write failed and whose
// immediate delete also failed.
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, key string) error
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	Policy       *Policy
	Location     *time.Location
	Clock        Clock
	IDs          IDGen
	Orphans      OrphanReporter
	Reads        retry.Policy
	WriteTimeout time.Duration
	MaxRangeDays int
}

// Service coordinates uploads and the athlete/coach views.
type Service struct {
	repo         Repository
	objects      storage.ObjectStore
	roster       Roster
	policy       *Policy
	loc          *time.Location
	clock        Clock
	ids          IDGen
	orphans      OrphanReporter
	reads        retry.Policy
	writeTimeout time.Duration
	maxRangeDays int
}

// NewService creates a service over the record, object and roster boundaries.
func NewService(repo Repository, objects storage.ObjectStore, roster Roster, opts Options) *Service {
	s := &Service{
		repo:         repo,
		objects:      objects,
		roster:       roster,
		policy:       opts.Policy,
		loc:          opts.Location,
		clock:        opts.Clock,
		ids:          opts.IDs,
		orphans:      opts.Orphans,
		reads:        opts.Reads,
		writeTimeout: opts.WriteTimeout,
		maxRangeDays: opts.MaxRangeDays,
	}
	if s.policy == nil {
		s.policy = DefaultPolicy()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.ids == nil {
		s.ids = ulidGen{}
	}
	return s
}

// Today is the team-local calendar date right now.
func (s *Service) Today() string {
	return LocalDate(s.clock.Now(), s.loc)
}

// Upload is one photo submission attempt.
type Upload struct {
	AthleteID   string
	Meal        string
	ContentType string
	Data        []byte
}

// Receipt is returned for an accepted upload.
type Receipt struct {
	Submission Submission `json:"submission"`
	Replaced   bool       `json:"replaced"`
	ImageURL   string     `json:"image_url"`
}

// Submit gates the upload through the policy, then writes the object and
// upserts the record. A rejected or empty upload writes nothing.
func (s *Service) Submit(ctx context.Context, in Upload) (Receipt, error) {
	meal, err := ParseType(in.Meal)
	if err != nil {
		return Receipt{}, apperr.Invalid(err.Error())
	}
	if in.AthleteID == "" {
		return Receipt{}, apperr.Invalid("athlete id required")
	}
	if len(in.Data) == 0 {
		metrics.Submissions.WithLabelValues(string(meal), "missing_input").Inc()
		return Receipt{}, apperr.MissingInput("no file supplied")
	}

	now := s.clock.Now()
	date := LocalDate(now, s.loc)

	// The window alone decides rejection; nothing is read for a closed meal.
	decision := s.policy.Evaluate(meal, now.In(s.loc), nil)
	if !decision.Accepted {
		metrics.Submissions.WithLabelValues(string(meal), "rejected").Inc()
		return Receipt{}, apperr.PolicyRejected(decision.Reason)
	}

	existing, err := retry.Value(ctx, s.reads, func(ctx context.Context) (*Submission, error) {
		return s.repo.Get(ctx, in.AthleteID, date, meal)
	})
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("database").Inc()
		return Receipt{}, apperr.Unavailable("meal records", err)
	}
	decision.Replaces = existing != nil

	id := ""
	if existing != nil {
		id = existing.ID
	} else if id, err = s.ids.New(); err != nil {
		return Receipt{}, apperr.Internal("generate id")
	}

	key := storage.Key(in.AthleteID, date, string(meal))
	var obj storage.Object
	err = retry.Once(ctx, s.writeTimeout, func(ctx context.Context) error {
		var err error
		obj, err = s.objects.Put(ctx, key, in.Data, in.ContentType)
		return err
	})
	if err != nil {
		metrics.Submissions.WithLabelValues(string(meal), "failed").Inc()
		metrics.ExternalFailures.WithLabelValues("object_store").Inc()
		return Receipt{}, apperr.Unavailable("photo storage", err)
	}

	var saved Submission
	err = retry.Once(ctx, s.writeTimeout, func(ctx context.Context) error {
		var err error
		saved, err = s.repo.Upsert(ctx, Submission{
			ID:           id,
			AthleteID:    in.AthleteID,
			Date:         date,
			Meal:         meal,
			ImageKey:     obj.Key,
			ImageVersion: obj.Version,
			Late:         decision.Late,
		})
		return err
	})
	if err != nil {
		metrics.Submissions.WithLabelValues(string(meal), "failed").Inc()
		metrics.ExternalFailures.WithLabelValues("database").Inc()
		s.compensate(ctx, key, existing)
		return Receipt{}, apperr.Unavailable("meal records", err)
	}

	outcome := "on_time"
	if saved.Late {
		outcome = "late"
	}
	metrics.Submissions.WithLabelValues(string(meal), outcome).Inc()
	if decision.Replaces {
		metrics.Replacements.Inc()
	}
	url, _ := s.ImageURL(saved)
	return Receipt{Submission: saved, Replaced: decision.Replaces, ImageURL: url}, nil
}

// compensate undoes the object write after a failed upsert. When a previous
// record exists it still references key, so the object stays.
func (s *Service) compensate(ctx context.Context, key string, existing *Submission) {
	if existing != nil {
		log.Printf("[WARN] record write failed for %s; previous record kept at version %s", key, existing.ImageVersion)
		return
	}
	ctx = context.WithoutCancel(ctx)
	err := retry.Once(ctx, s.writeTimeout, func(ctx context.Context) error {
		return s.objects.Delete(ctx, key)
	})
	if err == nil {
		metrics.Orphans.WithLabelValues("compensated").Inc()
		return
	}
	log.Printf("[WARN] delete of orphan %s failed: %v", key, err)
	if s.orphans == nil {
		metrics.Orphans.WithLabelValues("dropped").Inc()
		return
	}
	if err := s.orphans.ReportOrphan(ctx, key); err != nil {
		log.Printf("[ERROR] orphan %s not queued: %v", key, err)
		metrics.Orphans.WithLabelValues("dropped").Inc()
		return
	}
	metrics.Orphans.WithLabelValues("queued").Inc()
}

// ImageURL resolves the versioned URL for a record. ok is false when the
// object store cannot produce one; views render a broken image then.
func (s *Service) ImageURL(sub Submission) (url string, ok bool) {
	u, err := s.objects.URL(sub.ImageKey, sub.ImageVersion)
	if err != nil {
		log.Printf("[WARN] resolve image %s: %v", sub.ImageKey, err)
		return "", false
	}
	return u, true
}

// TodayFor is the athlete self-view for the current local date.
func (s *Service) TodayFor(ctx context.Context, athleteID string) (DayView, error) {
	date := s.Today()
	records, err := retry.Value(ctx, s.reads, func(ctx context.Context) ([]Submission, error) {
		return s.repo.ListForAthlete(ctx, athleteID, date)
	})
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("database").Inc()
		return DayView{}, apperr.Unavailable("meal records", err)
	}
	return Day(date, records), nil
}

// Athletes returns the roster. An empty roster is not an error.
func (s *Service) Athletes(ctx context.Context) ([]Athlete, error) {
	roster, err := retry.Value(ctx, s.reads, s.roster.ListAthletes)
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("database").Inc()
		return nil, apperr.Unavailable("roster", err)
	}
	if roster == nil {
		roster = []Athlete{}
	}
	return roster, nil
}

// RangeReport is the coach view over a date range.
type RangeReport struct {
	Range    Range            `json:"range"`
	Tally    Tally            `json:"tally"`
	Athletes []AthleteSummary `json:"athletes"`
	Roster   []Athlete        `json:"-"`
	Records  []Submission     `json:"-"`
}

// RangeStatus re-reads roster and records for [from, to] and aggregates them.
func (s *Service) RangeStatus(ctx context.Context, from, to string) (RangeReport, error) {
	if from == "" {
		from = s.Today()
	}
	rng, err := ParseRange(from, to, s.maxRangeDays)
	if err != nil {
		return RangeReport{}, apperr.Invalid(err.Error())
	}
	roster, err := s.Athletes(ctx)
	if err != nil {
		return RangeReport{}, err
	}
	records, err := retry.Value(ctx, s.reads, func(ctx context.Context) ([]Submission, error) {
		return s.repo.ListRange(ctx, rng)
	})
	if err != nil {
		metrics.ExternalFailures.WithLabelValues("database").Inc()
		return RangeReport{}, apperr.Unavailable("meal records", err)
	}
	summaries := Summarize(roster, records)
	return RangeReport{
		Range:    rng,
		Tally:    Count(summaries),
		Athletes: summaries,
		Roster:   roster,
		Records:  records,
	}, nil
}
