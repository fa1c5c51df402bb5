package store

import (
	"context"
	"errors"
	"time"

	"github.com/adityakurhade/finsight/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
// The durable store is the long-lived owner of every analysis record; the
// Redis cache only shadows it.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreateAnalysis(ctx context.Context, analysis *models.Analysis) error
	GetAnalysisByTaskID(ctx context.Context, taskID uuid.UUID) (*models.Analysis, error)
	UpdateAnalysisStatus(ctx context.Context, taskID uuid.UUID, status string, opts ...AnalysisUpdateOption) error
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]*models.Analysis, int, error)
	GetAnalysisStats(ctx context.Context, userID *uuid.UUID) (*models.AnalysisStats, error)
	DeleteAnalysis(ctx context.Context, taskID uuid.UUID) error
}

// AnalysisFilter narrows ListAnalyses. Conditions combine with AND.
type AnalysisFilter struct {
	UserID *uuid.UUID
	Status string
	Limit  int
	Offset int
}

// AnalysisUpdate collects the optional fields of an UpdateAnalysisStatus
// call. Exported so fake stores in other packages can apply the options.
type AnalysisUpdate struct {
	Result       *string
	ErrorMessage *string
	CompletedAt  *time.Time
}

type AnalysisUpdateOption func(*AnalysisUpdate)

func WithResult(result string) AnalysisUpdateOption {
	return func(p *AnalysisUpdate) {
		p.Result = &result
	}
}

func WithErrorMessage(msg string) AnalysisUpdateOption {
	return func(p *AnalysisUpdate) {
		p.ErrorMessage = &msg
	}
}

// WithCompletedAt carries an already-known completion timestamp, used by the
// reconciliation backfill so the durable row matches the cache snapshot.
func WithCompletedAt(t time.Time) AnalysisUpdateOption {
	return func(p *AnalysisUpdate) {
		p.CompletedAt = &t
	}
}
