package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/factwise/schema-mapper/internal/config"
	"github.com/factwise/schema-mapper/internal/domain"
	"github.com/factwise/schema-mapper/internal/pkg/logger"
)

// ErrNotFound is returned when a session, template, or object does not
// exist in the backing store.
var ErrNotFound = errors.New("not found")

// Roles for uploaded files. The role is embedded in the object key so the
// two files of one session stay distinguishable.
const (
	RoleClient   = "client"
	RoleTemplate = "template"
)

// Storage persists uploaded files, processed exports, sessions, and
// mapping templates. In local mode everything lives under LocalPath with
// an in-memory index; in aws mode files go to S3 and records to a
// single DynamoDB table.
type Storage struct {
	config config.StorageConfig
	mu     sync.RWMutex

	// AWS backend (optional)
	aws *AWSStorage

	sessions  map[string]*domain.Session
	templates map[string]*domain.MappingTemplate
}

// New creates a Storage instance for the configured backend.
func New(cfg config.StorageConfig) (*Storage, error) {
	s := &Storage{
		config:    cfg,
		sessions:  make(map[string]*domain.Session),
		templates: make(map[string]*domain.MappingTemplate),
	}

	ctx := context.Background()

	switch cfg.Type {
	case "aws":
		awsStorage, err := NewAWSStorage(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing AWS storage: %w", err)
		}
		s.aws = awsStorage

	case "local":
		for _, dir := range []string{"uploads", "processed", "sessions", "templates"} {
			if err := os.MkdirAll(filepath.Join(cfg.LocalPath, dir), 0755); err != nil {
				return nil, fmt.Errorf("creating storage directory: %w", err)
			}
		}
		if err := s.loadFromDisk(); err != nil {
			logger.Warn("could not load existing data", "error", err)
		}

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	return s, nil
}

// ==================== Objects ====================

// SaveUpload stores an uploaded file and returns its object key. Keys are
// prefixed with a fresh UUID so repeated uploads of the same filename
// never collide.
func (s *Storage) SaveUpload(ctx context.Context, filename, role string, content []byte) (string, error) {
	ext := filepath.Ext(filename)
	key := fmt.Sprintf("uploads/%s_%s%s", uuid.New().String(), role, ext)

	if s.aws != nil {
		if err := s.aws.PutObject(ctx, s.config.UploadBucket, key, content); err != nil {
			return "", err
		}
		return key, nil
	}
	if err := s.writeObjectFile(key, content); err != nil {
		return "", err
	}
	return key, nil
}

// GetObject retrieves a stored object's bytes by key.
func (s *Storage) GetObject(ctx context.Context, key string) ([]byte, error) {
	if s.aws != nil {
		return s.aws.GetObject(ctx, s.bucketFor(key), key)
	}

	data, err := os.ReadFile(s.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// SaveProcessed stores a processed export under the session's prefix and
// returns its object key.
func (s *Storage) SaveProcessed(ctx context.Context, sessionID, filename string, content []byte) (string, error) {
	key := fmt.Sprintf("processed/%s/%s", sessionID, filename)

	if s.aws != nil {
		if err := s.aws.PutObject(ctx, s.config.ProcessedBucket, key, content); err != nil {
			return "", err
		}
		return key, nil
	}
	if err := s.writeObjectFile(key, content); err != nil {
		return "", err
	}
	return key, nil
}

// PresignDownload returns a time-limited download URL for an object. In
// local mode the URL is a file path; there is nothing to expire.
func (s *Storage) PresignDownload(ctx context.Context, key string) (string, error) {
	if s.aws != nil {
		return s.aws.PresignGet(ctx, s.bucketFor(key), key, s.config.PresignExpiry())
	}

	path := s.objectPath(key)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file://" + abs, nil
}

// bucketFor maps an object key prefix to the bucket that holds it.
func (s *Storage) bucketFor(key string) string {
	if strings.HasPrefix(key, "processed/") {
		return s.config.ProcessedBucket
	}
	return s.config.UploadBucket
}

func (s *Storage) objectPath(key string) string {
	// Keys are server-generated but flatten anyway so a stored key can
	// never escape the storage root.
	clean := filepath.Join("/", filepath.FromSlash(key))
	return filepath.Join(s.config.LocalPath, clean)
}

func (s *Storage) writeObjectFile(key string, content []byte) error {
	path := s.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0644)
}

// ==================== Sessions ====================

// CreateSession persists a new session. ID and timestamps are assigned
// here if the caller left them empty.
func (s *Storage) CreateSession(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	if s.aws != nil {
		return s.aws.PutSession(ctx, session, s.config.SessionTTL())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return s.saveToFile("sessions", session.ID, session)
}

// GetSession loads a session by ID.
func (s *Storage) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	if s.aws != nil {
		return s.aws.GetSession(ctx, id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

// UpdateSession overwrites an existing session and bumps UpdatedAt.
func (s *Storage) UpdateSession(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = time.Now().UTC()

	if s.aws != nil {
		return s.aws.PutSession(ctx, session, s.config.SessionTTL())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	s.sessions[session.ID] = session
	return s.saveToFile("sessions", session.ID, session)
}

// DeleteSession removes a session. Deleting a missing session is not an
// error.
func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	if s.aws != nil {
		return s.aws.DeleteSession(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return s.deleteFile("sessions", id)
}

// ==================== Templates ====================

// SaveTemplate persists a mapping template, assigning an ID and
// timestamps when missing.
func (s *Storage) SaveTemplate(ctx context.Context, tpl *domain.MappingTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now

	if s.aws != nil {
		return s.aws.PutTemplate(ctx, tpl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[tpl.ID] = tpl
	return s.saveToFile("templates", tpl.ID, tpl)
}

// GetTemplate loads a template by ID.
func (s *Storage) GetTemplate(ctx context.Context, id string) (*domain.MappingTemplate, error) {
	if s.aws != nil {
		return s.aws.GetTemplate(ctx, id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	tpl, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tpl, nil
}

// ListTemplates returns all templates, newest first.
func (s *Storage) ListTemplates(ctx context.Context) ([]*domain.MappingTemplate, error) {
	var templates []*domain.MappingTemplate

	if s.aws != nil {
		var err error
		templates, err = s.aws.ListTemplates(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		s.mu.RLock()
		for _, tpl := range s.templates {
			templates = append(templates, tpl)
		}
		s.mu.RUnlock()
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].CreatedAt.After(templates[j].CreatedAt)
	})
	return templates, nil
}

// DeleteTemplate removes a template by ID.
func (s *Storage) DeleteTemplate(ctx context.Context, id string) error {
	if s.aws != nil {
		return s.aws.DeleteTemplate(ctx, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return ErrNotFound
	}
	delete(s.templates, id)
	return s.deleteFile("templates", id)
}

// IncrementTemplateUsage bumps a template's usage counter. Failures are
// non-fatal for callers, so a missing template is reported but tolerable.
func (s *Storage) IncrementTemplateUsage(ctx context.Context, id string) error {
	tpl, err := s.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	tpl.UsageCount++
	return s.SaveTemplate(ctx, tpl)
}

// ==================== Local persistence ====================

// saveToFile writes a record as indented JSON. Caller holds the lock.
func (s *Storage) saveToFile(category, key string, data interface{}) error {
	dir := filepath.Join(s.config.LocalPath, category)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	safeKey := filepath.Base(key)
	path := filepath.Join(dir, safeKey+".json")

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// deleteFile removes a record file. Missing files are ignored.
func (s *Storage) deleteFile(category, key string) error {
	safeKey := filepath.Base(key)
	path := filepath.Join(s.config.LocalPath, category, safeKey+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// loadFromDisk restores sessions and templates into the in-memory index.
// Expired sessions are dropped on the way in.
func (s *Storage) loadFromDisk() error {
	cutoff := time.Now().UTC().Add(-s.config.SessionTTL())

	sessionsDir := filepath.Join(s.config.LocalPath, "sessions")
	if entries, err := os.ReadDir(sessionsDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(sessionsDir, entry.Name()))
			if err != nil {
				continue
			}
			var session domain.Session
			if err := json.Unmarshal(data, &session); err == nil && session.ID != "" {
				if session.CreatedAt.Before(cutoff) {
					continue
				}
				s.sessions[session.ID] = &session
			}
		}
	}

	templatesDir := filepath.Join(s.config.LocalPath, "templates")
	if entries, err := os.ReadDir(templatesDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(templatesDir, entry.Name()))
			if err != nil {
				continue
			}
			var tpl domain.MappingTemplate
			if err := json.Unmarshal(data, &tpl); err == nil && tpl.ID != "" {
				s.templates[tpl.ID] = &tpl
			}
		}
	}

	return nil
}
