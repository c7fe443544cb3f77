package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2beens/gymtracker/internal/workouts"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=backup_test

const (
	FolderName = "gymtracker-backup"
	// number of workouts in one backup file
	workoutsFileChunkSize = 350
)

type store interface {
	FindFolder(ctx context.Context, name string) (string, error)
	CreateFolder(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, id string) error
	ListFiles(ctx context.Context, folderID string) ([]File, error)
	Upload(ctx context.Context, folderID, name string, content []byte) (string, error)
	Share(ctx context.Context, fileID, email string) (string, error)
}

type workoutsSource interface {
	ListAll(ctx context.Context, params workouts.ListAllParams) ([]workouts.Workout, error)
}

// Service exports workouts as chunked JSON files into the backups folder.
type Service struct {
	store       store
	workouts    workoutsSource
	readerEmail string
	folderID    string
}

// NewService finds the backups folder, creating it when missing.
func NewService(ctx context.Context, store store, source workoutsSource, readerEmail string) (*Service, error) {
	s := &Service{
		store:       store,
		workouts:    source,
		readerEmail: readerEmail,
	}

	folderID, err := store.FindFolder(ctx, FolderName)
	if err != nil {
		return nil, err
	}
	if folderID == "" {
		log.Println("root backups folder not found, recreating ...")
		if folderID, err = s.createFolder(ctx); err != nil {
			return nil, err
		}
		log.Printf("new root backups folder created: %s", folderID)
	} else {
		log.Printf("found backups folder ID: %s", folderID)
	}
	s.folderID = folderID

	return s, nil
}

func (s *Service) FolderID() string {
	return s.folderID
}

func (s *Service) createFolder(ctx context.Context) (string, error) {
	folderID, err := s.store.CreateFolder(ctx, FolderName)
	if err != nil {
		return "", fmt.Errorf("create root backups folder: %w", err)
	}
	if err := s.share(ctx, folderID); err != nil {
		return folderID, fmt.Errorf("share root backups folder: %w", err)
	}
	return folderID, nil
}

func (s *Service) share(ctx context.Context, fileID string) error {
	if s.readerEmail == "" {
		return nil
	}
	permissionID, err := s.store.Share(ctx, fileID, s.readerEmail)
	if err != nil {
		return err
	}
	log.Debugf("permission %s created for %s", permissionID, fileID)
	return nil
}

// Reinit drops the backups folder and backs up every workout again.
func (s *Service) Reinit(ctx context.Context, baseTime time.Time) error {
	log.Println("workouts backup reinit starting ...")

	if err := s.store.Delete(ctx, s.folderID); err != nil {
		return fmt.Errorf("delete backups folder: %w", err)
	}

	folderID, err := s.createFolder(ctx)
	if err != nil {
		return err
	}
	log.Printf("new root backups folder created: %s", folderID)
	s.folderID = folderID

	return s.DoBackup(ctx, baseTime)
}

// DoBackup uploads the workouts created after the newest backup file. An
// empty folder gets a full initial backup.
func (s *Service) DoBackup(ctx context.Context, baseTime time.Time) error {
	files, err := s.store.ListFiles(ctx, s.folderID)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		log.Println("backups empty, creating initial backup files ...")
		all, err := s.workouts.ListAll(ctx, workouts.ListAllParams{})
		if err != nil {
			return fmt.Errorf("get workouts: %w", err)
		}
		baseName := fmt.Sprintf("initial-%s", baseTime.Format(workouts.DateLayout))
		if err := s.backupWorkouts(ctx, all, baseName); err != nil {
			return err
		}
		log.Printf("initial backup of %d workouts created", len(all))
		return nil
	}

	lastCreatedAt := time.Time{}
	names := make(map[string]bool, len(files))
	for _, f := range files {
		log.Debugf(" -- [%v]: %s (%s)", f.CreatedAt, f.Name, f.ID)
		names[f.Name] = true
		if f.CreatedAt.After(lastCreatedAt) {
			lastCreatedAt = f.CreatedAt
		}
	}

	toBackup, err := s.workouts.ListAll(ctx, workouts.ListAllParams{CreatedAfter: lastCreatedAt})
	if err != nil {
		return fmt.Errorf("get next backup workouts: %w", err)
	}
	if len(toBackup) == 0 {
		log.Println("no new workouts to backup, done")
		return nil
	}

	log.Printf(" ---- backing up %d workouts since %v", len(toBackup), lastCreatedAt)

	baseName := nextBaseName(fmt.Sprintf("workouts-%s", baseTime.Format(workouts.DateLayout)), names)
	if err := s.backupWorkouts(ctx, toBackup, baseName); err != nil {
		return err
	}

	log.Printf("next backup since %v successfully saved: %s", lastCreatedAt, baseName)
	return nil
}

// nextBaseName appends a counter to base until no chunk file name collides
// with an existing backup.
func nextBaseName(base string, existing map[string]bool) string {
	name := base
	for counter := 2; existing[chunkFileName(name, 1)]; counter++ {
		name = fmt.Sprintf("%s-%d", base, counter)
	}
	return name
}

func chunkFileName(baseName string, chunk int) string {
	return fmt.Sprintf("%s_%d.json", baseName, chunk)
}

func (s *Service) backupWorkouts(ctx context.Context, all []workouts.Workout, baseName string) error {
	for chunk, from := 1, 0; from < len(all); chunk, from = chunk+1, from+workoutsFileChunkSize {
		to := min(from+workoutsFileChunkSize, len(all))
		name := chunkFileName(baseName, chunk)

		content, err := json.Marshal(all[from:to])
		if err != nil {
			return fmt.Errorf("%s: marshal workouts: %w", name, err)
		}

		log.Printf("%s: uploading %d workouts [from %d to %d] ...", name, to-from, from, to)
		fileID, err := s.store.Upload(ctx, s.folderID, name, content)
		if err != nil {
			return err
		}
		if err := s.share(ctx, fileID); err != nil {
			return fmt.Errorf("%s: share: %w", name, err)
		}
		log.Printf("%s: backup file saved: %s", name, fileID)
	}
	return nil
}
