package activity

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/database"
)

// Type enumerates the recorded events
type Type string

const (
	TypeLoginSuccess        Type = "login_success"
	TypeProfileUpdated      Type = "profile_updated"
	TypePasswordChanged     Type = "password_changed"
	TypeAvatarUpdated       Type = "avatar_updated"
	TypeWorkspaceCreated    Type = "workspace_created"
	TypeWorkspaceUpdated    Type = "workspace_updated"
	TypeWorkspaceDeleted    Type = "workspace_deleted"
	TypeMemberAdded         Type = "member_added"
	TypeMemberRoleChanged   Type = "member_role_changed"
	TypeMemberStatusChanged Type = "member_status_changed"
	TypeMemberRemoved       Type = "member_removed"
	TypeOwnerReplaced       Type = "owner_replaced"
	TypeEnvironmentUpdated  Type = "environment_updated"
	TypeEnvironmentDeleted  Type = "environment_deleted"
	TypeEnvironmentTested   Type = "environment_tested"
)

// Recorder appends activities. Record never fails the caller.
type Recorder interface {
	Record(ctx context.Context, ownerID string, workspaceID *string, typ Type, message string, metadata map[string]any)
}

// FailureObserver is notified when an activity could not be written
type FailureObserver interface {
	ActivityWriteFailed(activityType string)
}

// Service records and lists activities
type Service struct {
	db       database.Database
	logger   *zap.Logger
	observer FailureObserver
}

// NewService creates an activity service; observer may be nil
func NewService(db database.Database, logger *zap.Logger, observer FailureObserver) *Service {
	return &Service{
		db:       db,
		logger:   logger.Named("activity"),
		observer: observer,
	}
}

// Record writes an activity synchronously. Errors are logged and counted, never returned.
func (s *Service) Record(ctx context.Context, ownerID string, workspaceID *string, typ Type, message string, metadata map[string]any) {
	a := &database.Activity{
		OwnerID:     ownerID,
		WorkspaceID: workspaceID,
		Type:        string(typ),
		Message:     message,
		CreatedAt:   now(),
	}
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			s.logger.Warn("dropping unencodable activity metadata", zap.String("type", string(typ)), zap.Error(err))
		} else {
			a.Metadata = string(data)
		}
	}

	if err := s.db.CreateActivity(ctx, a); err != nil {
		s.logger.Error("failed to record activity",
			zap.String("type", string(typ)),
			zap.String("owner_id", ownerID),
			zap.Error(err))
		if s.observer != nil {
			s.observer.ActivityWriteFailed(string(typ))
		}
	}
}

// Nop is a Recorder that drops every activity
type Nop struct{}

func (Nop) Record(context.Context, string, *string, Type, string, map[string]any) {}
