package mapping

import (
	"context"

	"github.com/factwise/schema-mapper/internal/domain"
)

// ObjectStore holds uploaded files and processed exports. Missing objects
// are reported with storage.ErrNotFound.
type ObjectStore interface {
	// SaveUpload stores an uploaded file under a fresh key and returns it.
	SaveUpload(ctx context.Context, filename, role string, content []byte) (string, error)

	// GetObject returns a stored object's bytes.
	GetObject(ctx context.Context, key string) ([]byte, error)

	// SaveProcessed stores an export under the session's prefix.
	SaveProcessed(ctx context.Context, sessionID, filename string, content []byte) (string, error)

	// PresignDownload returns a time-limited URL for an object.
	PresignDownload(ctx context.Context, key string) (string, error)
}

// SessionStore persists mapping sessions. Implementations must be safe
// for concurrent use.
type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
}

// TemplateStore persists reusable mapping templates.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, tpl *domain.MappingTemplate) error
	GetTemplate(ctx context.Context, id string) (*domain.MappingTemplate, error)
	ListTemplates(ctx context.Context) ([]*domain.MappingTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
	IncrementTemplateUsage(ctx context.Context, id string) error
}
