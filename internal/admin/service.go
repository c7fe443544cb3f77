package admin

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=admin_test

type analyticsRepo interface {
	UserCounts(ctx context.Context, newSince time.Time) (UserCounts, error)
	WorkoutCounts(ctx context.Context, weekStart time.Time) (WorkoutCounts, error)
	UsersPerLevel(ctx context.Context) ([]LevelCount, error)
	TopExercises(ctx context.Context, limit int) ([]ExerciseCount, error)
	WorkoutsPerWeek(ctx context.Context, from, to time.Time) (map[time.Time]int, error)
	UserActivity(ctx context.Context, weekStart time.Time) ([]UserActivity, error)
	WorkoutDates(ctx context.Context) (map[int][]time.Time, error)
}

const (
	overviewCacheKey = "analytics::overview"
	cacheSize        = 1024 * 1024
)

type Service struct {
	repo     analyticsRepo
	cache    *freecache.Cache
	cacheTTL time.Duration
	location *time.Location
	NowFunc  func() time.Time
}

func NewService(repo analyticsRepo, cacheTTL time.Duration, location *time.Location) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		repo:     repo,
		cache:    freecache.NewCache(cacheSize),
		cacheTTL: cacheTTL,
		location: location,
		NowFunc:  time.Now,
	}
}

func (s *Service) today() time.Time {
	return progress.CivilDate(s.NowFunc().In(s.location))
}

// Overview returns the platform summary, served from the in-process cache
// while it is fresh.
func (s *Service) Overview(ctx context.Context) (_ *Overview, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.admin.overview")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if cached, err := s.cache.Get([]byte(overviewCacheKey)); err == nil {
		overview := &Overview{}
		if err := json.Unmarshal(cached, overview); err == nil {
			log.Tracef("analytics overview found in cache")
			return overview, nil
		}
		log.Errorf("failed to unmarshal cached analytics overview: %s", err)
	}

	overview, err := s.buildOverview(ctx)
	if err != nil {
		return nil, err
	}

	if expire := int(s.cacheTTL.Seconds()); expire > 0 {
		overviewBytes, err := json.Marshal(overview)
		if err != nil {
			log.Errorf("marshal analytics overview: %s", err)
		} else if err := s.cache.Set([]byte(overviewCacheKey), overviewBytes, expire); err != nil {
			log.Errorf("failed to cache analytics overview: %s", err)
		}
	}

	return overview, nil
}

func (s *Service) buildOverview(ctx context.Context) (*Overview, error) {
	today := s.today()
	weekStart := progress.WeekStart(today)
	firstWeek := weekStart.AddDate(0, 0, -7*(overviewWeeks-1))
	// users register at an instant, so the week starts at local midnight
	newSince := time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, s.location)

	overview := &Overview{
		GeneratedAt: s.NowFunc().UTC(),
		WeekStart:   weekStart.Format(workouts.DateLayout),
	}
	var perWeek map[time.Time]int

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		overview.Users, err = s.repo.UserCounts(gCtx, newSince)
		return err
	})
	g.Go(func() (err error) {
		overview.Workouts, err = s.repo.WorkoutCounts(gCtx, weekStart)
		return err
	})
	g.Go(func() (err error) {
		overview.UsersPerLevel, err = s.repo.UsersPerLevel(gCtx)
		return err
	})
	g.Go(func() (err error) {
		overview.TopExercises, err = s.repo.TopExercises(gCtx, topExercisesLimit)
		return err
	})
	g.Go(func() (err error) {
		perWeek, err = s.repo.WorkoutsPerWeek(gCtx, firstWeek, weekStart.AddDate(0, 0, 6))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	overview.WorkoutsPerWeek = make([]WeekCount, 0, overviewWeeks)
	for i := 0; i < overviewWeeks; i++ {
		week := firstWeek.AddDate(0, 0, 7*i)
		overview.WorkoutsPerWeek = append(overview.WorkoutsPerWeek, WeekCount{
			WeekStart: week.Format(workouts.DateLayout),
			Workouts:  perWeek[week],
		})
	}

	return overview, nil
}

// UserActivity lists every user with their training activity, the most
// active users of the current week first.
func (s *Service) UserActivity(ctx context.Context) (_ []UserActivity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.admin.useractivity")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	today := s.today()
	activity, err := s.repo.UserActivity(ctx, progress.WeekStart(today))
	if err != nil {
		return nil, err
	}
	dates, err := s.repo.WorkoutDates(ctx)
	if err != nil {
		return nil, err
	}

	for i := range activity {
		activity[i].CurrentStreak = progress.CurrentStreak(dates[activity[i].UserID], today)
	}

	sort.SliceStable(activity, func(i, j int) bool {
		if activity[i].WorkoutsThisWeek != activity[j].WorkoutsThisWeek {
			return activity[i].WorkoutsThisWeek > activity[j].WorkoutsThisWeek
		}
		return strings.ToLower(activity[i].Name) < strings.ToLower(activity[j].Name)
	})
	return activity, nil
}
