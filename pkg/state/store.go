// Package state persists the history of build results
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/apkforge/apkforge/pkg/logger"
	"github.com/apkforge/apkforge/pkg/types"
)

const (
	// DatabaseFile is the history file name inside the state directory
	DatabaseFile = "history.db"

	// buildsBucket holds one nested bucket per project
	buildsBucket = "builds"

	// keyLayout is fixed width so keys sort chronologically.
	keyLayout = "2006-01-02T15:04:05.000000000Z"
)

var (
	// ErrNoHistory indicates a project has no recorded builds
	ErrNoHistory = errors.New("no recorded builds")

	// ErrInvalidResult indicates a result that cannot be stored
	ErrInvalidResult = errors.New("invalid build result")
)

// Store keeps build results in a bbolt database
type Store struct {
	db     *bbolt.DB
	logger logger.Logger
}

// Open opens or creates the history database in dir
func Open(dir string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := filepath.Join(dir, DatabaseFile)
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(buildsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}

	log.Debug("Opened build history", logger.WithField("path", path))
	return &Store{db: db, logger: log}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record appends a build result to its project's history
func (s *Store) Record(result *types.BuildResult) error {
	if result == nil || result.Project == "" {
		return fmt.Errorf("%w: missing project name", ErrInvalidResult)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode build result: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		project, err := tx.Bucket([]byte(buildsBucket)).CreateBucketIfNotExists([]byte(result.Project))
		if err != nil {
			return err
		}
		return project.Put(recordKey(result), data)
	})
	if err != nil {
		return fmt.Errorf("failed to record build %s: %w", result.ID, err)
	}
	return nil
}

// History returns up to limit results of project, newest first. A limit of
// zero or less returns everything.
func (s *Store) History(project string, limit int) ([]*types.BuildResult, error) {
	var results []*types.BuildResult

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(buildsBucket)).Bucket([]byte(project))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r types.BuildResult
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt record %s/%s: %w", project, k, err)
			}
			results = append(results, &r)
			if limit > 0 && len(results) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Latest returns the most recent result of project
func (s *Store) Latest(project string) (*types.BuildResult, error) {
	results, err := s.History(project, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoHistory, project)
	}
	return results[0], nil
}

// Projects lists every project with recorded builds, sorted by name
func (s *Store) Projects() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(buildsBucket)).ForEach(func(k, v []byte) error {
			// nested buckets have nil values
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	return names, err
}

// Clear removes the history of project, or of every project when project is empty
func (s *Store) Clear(project string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if project != "" {
			err := tx.Bucket([]byte(buildsBucket)).DeleteBucket([]byte(project))
			if errors.Is(err, bbolt.ErrBucketNotFound) {
				return nil
			}
			return err
		}

		if err := tx.DeleteBucket([]byte(buildsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(buildsBucket))
		return err
	})
}

func recordKey(r *types.BuildResult) []byte {
	return []byte(r.StartedAt.UTC().Format(keyLayout) + "/" + r.ID)
}
