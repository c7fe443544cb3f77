package workouts

import (
	"context"
	"fmt"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/levels"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=workouts_test

type workoutsRepo interface {
	Add(ctx context.Context, workout Workout) (*Workout, error)
	Update(ctx context.Context, workout Workout) (*Workout, error)
	Get(ctx context.Context, id int) (*Workout, error)
	List(ctx context.Context, params ListParams) ([]Workout, int, error)
	Delete(ctx context.Context, id int) error
	ExerciseNames(ctx context.Context, userID int) ([]string, error)
}

type userLevelGetter interface {
	GetByUserID(ctx context.Context, userID int) (*levels.Level, error)
}

type Service struct {
	repo           workoutsRepo
	levels         userLevelGetter
	metricsManager *metrics.Manager
}

func NewService(repo workoutsRepo, levels userLevelGetter, metricsManager *metrics.Manager) *Service {
	return &Service{
		repo:           repo,
		levels:         levels,
		metricsManager: metricsManager,
	}
}

// Create logs a workout for userID.
func (s *Service) Create(ctx context.Context, userID int, req WorkoutRequest) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("user.id", userID))

	workout, err := req.ToWorkout(userID)
	if err != nil {
		return nil, err
	}
	if err := s.resolveWorkoutDay(ctx, &workout); err != nil {
		return nil, err
	}

	added, err := s.repo.Add(ctx, workout)
	if err != nil {
		return nil, fmt.Errorf("add workout: %w", err)
	}

	s.metricsManager.CounterWorkoutsLogged.Inc()
	log.Debugf("user %d logged workout %d", userID, added.ID)
	return added, nil
}

// resolveWorkoutDay checks that the linked day belongs to the user's level
// and fills in the default name.
func (s *Service) resolveWorkoutDay(ctx context.Context, workout *Workout) error {
	if workout.WorkoutDayID == nil {
		if workout.Name == "" {
			workout.Name = defaultWorkoutName
		}
		return nil
	}

	level, err := s.levels.GetByUserID(ctx, workout.UserID)
	if err != nil {
		return fmt.Errorf("get user level: %w", err)
	}
	if level == nil {
		return ErrWorkoutDayNotInLevel
	}
	day := level.WorkoutDay(*workout.WorkoutDayID)
	if day == nil {
		return ErrWorkoutDayNotInLevel
	}

	if workout.Name == "" {
		workout.Name = day.Name
	}
	workout.WorkoutDayName = day.Name
	return nil
}

// Get returns the workout if the principal owns it or is an admin. Other
// users get ErrWorkoutNotFound.
func (s *Service) Get(ctx context.Context, principal *auth.Principal, id int) (*Workout, error) {
	workout, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if workout.UserID != principal.UserID && !principal.IsAdmin() {
		return nil, ErrWorkoutNotFound
	}
	return workout, nil
}

// owned returns the workout only when userID owns it.
func (s *Service) owned(ctx context.Context, userID, id int) (*Workout, error) {
	workout, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if workout.UserID != userID {
		return nil, ErrWorkoutNotFound
	}
	return workout, nil
}

func (s *Service) List(ctx context.Context, params ListParams) ([]Workout, int, error) {
	return s.repo.List(ctx, params)
}

// Update replaces the owner's workout with the request contents.
func (s *Service) Update(ctx context.Context, userID, id int, req WorkoutRequest) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workout.id", id))

	existing, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	workout, err := req.ToWorkout(userID)
	if err != nil {
		return nil, err
	}
	workout.ID = existing.ID
	workout.CreatedAt = existing.CreatedAt

	// a day kept from a level the user has since left stays valid
	keepsDay := workout.WorkoutDayID != nil && existing.WorkoutDayID != nil &&
		*workout.WorkoutDayID == *existing.WorkoutDayID
	if keepsDay {
		if workout.Name == "" {
			workout.Name = existing.WorkoutDayName
		}
		if workout.Name == "" {
			workout.Name = defaultWorkoutName
		}
	} else if err := s.resolveWorkoutDay(ctx, &workout); err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, workout)
}

func (s *Service) Delete(ctx context.Context, userID, id int) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ExerciseNames(ctx context.Context, userID int) ([]string, error) {
	return s.repo.ExerciseNames(ctx, userID)
}
