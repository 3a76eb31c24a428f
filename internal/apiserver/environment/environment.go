package environment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	"github.com/amoylab/wshub/internal/common/cnst"
	"github.com/amoylab/wshub/pkg/trace"
)

// MaskedPassword is shown instead of the stored password. Sending it back on
// update keeps the stored secret.
const MaskedPassword = "********"

const (
	StatusUnknown   = "unknown"
	StatusConnected = "connected"
	StatusFailed    = "failed"
)

var (
	ErrNotFound        = errors.New("environment not found")
	ErrUnsupportedKind = errors.New("unsupported database kind")
	ErrInvalid         = errors.New("invalid environment")
)

// Input is a create or update request
type Input struct {
	Kind     string `json:"kind"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
	Options  string `json:"options"`
	Timeout  int    `json:"timeout"`
}

// View is an environment as returned to clients
type View struct {
	*database.Environment
	Password string `json:"password"`
}

// TestObserver is notified of every connection test
type TestObserver interface {
	EnvironmentTested(kind, status string)
}

// Service manages the per-workspace environment
type Service struct {
	db       database.Database
	sealer   *Sealer
	dialer   Dialer
	timeout  time.Duration
	recorder activity.Recorder
	observer TestObserver
	logger   *zap.Logger
	tracer   *trace.Builder
}

// NewService creates an environment service; recorder and observer may be nil
func NewService(db database.Database, sealer *Sealer, dialer Dialer, timeout time.Duration, recorder activity.Recorder, observer TestObserver, logger *zap.Logger) *Service {
	if recorder == nil {
		recorder = activity.Nop{}
	}
	if dialer == nil {
		dialer = SQLDialer{}
	}
	return &Service{
		db:       db,
		sealer:   sealer,
		dialer:   dialer,
		timeout:  timeout,
		recorder: recorder,
		observer: observer,
		logger:   logger.Named("environment"),
		tracer:   trace.Tracer(cnst.TraceEnvironment),
	}
}

// Get returns the masked environment of ws
func (s *Service) Get(ctx context.Context, actor rbac.Actor, ws *database.Workspace) (*View, error) {
	if err := rbac.CanView(actor); err != nil {
		return nil, err
	}
	env, err := s.load(ctx, ws.ID)
	if err != nil {
		return nil, err
	}
	return mask(env), nil
}

// Save creates or replaces the environment of ws. The cached test result is
// reset whenever connection settings change.
func (s *Service) Save(ctx context.Context, actor rbac.Actor, ws *database.Workspace, in Input) (*View, error) {
	if err := rbac.CanManageEnvironment(actor); err != nil {
		return nil, err
	}
	if err := s.normalize(&in); err != nil {
		return nil, err
	}

	var env *database.Environment
	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		existing, err := s.db.GetEnvironment(ctx, ws.ID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}

		env = &database.Environment{WorkspaceID: ws.ID, Status: StatusUnknown}
		if existing != nil {
			cp := *existing
			env = &cp
		}

		sealed := env.Password
		if in.Password != MaskedPassword {
			if sealed, err = s.sealer.Seal(in.Password); err != nil {
				return err
			}
		}

		if existing == nil || existing.Kind != in.Kind || existing.Host != in.Host ||
			existing.Port != in.Port || existing.Username != in.Username ||
			existing.DatabaseName != in.Database || existing.Options != in.Options ||
			existing.Password != sealed {
			env.Status = StatusUnknown
			env.LastTestedAt = nil
			env.LastError = ""
		}

		env.Kind = in.Kind
		env.Host = in.Host
		env.Port = in.Port
		env.Username = in.Username
		env.Password = sealed
		env.DatabaseName = in.Database
		env.Options = in.Options
		env.Timeout = in.Timeout
		env.UpdatedBy = &actor.UserID
		return s.db.SaveEnvironment(ctx, env)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, actor.UserID, &ws.ID, activity.TypeEnvironmentUpdated,
		"Environment updated", map[string]any{"kind": env.Kind, "host": env.Host})
	return mask(env), nil
}

// Delete removes the environment of ws
func (s *Service) Delete(ctx context.Context, actor rbac.Actor, ws *database.Workspace) error {
	if err := rbac.CanManageEnvironment(actor); err != nil {
		return err
	}
	if err := s.db.DeleteEnvironment(ctx, ws.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.recorder.Record(ctx, actor.UserID, &ws.ID, activity.TypeEnvironmentDeleted, "Environment deleted", nil)
	return nil
}

// Test dials the stored target and caches the outcome. A failed connection is
// a result, not an error.
func (s *Service) Test(ctx context.Context, actor rbac.Actor, ws *database.Workspace) (*View, error) {
	if err := rbac.CanManageEnvironment(actor); err != nil {
		return nil, err
	}
	env, err := s.load(ctx, ws.ID)
	if err != nil {
		return nil, err
	}
	err = s.runTest(ctx, env)
	if errors.Is(err, database.ErrStale) {
		// settings changed or the environment was deleted while dialing;
		// the outcome belongs to settings that no longer exist
		return s.Get(ctx, actor, ws)
	}
	if err != nil {
		return nil, err
	}
	s.recorder.Record(ctx, actor.UserID, &ws.ID, activity.TypeEnvironmentTested,
		"Environment connection "+env.Status, map[string]any{"status": env.Status})
	return mask(env), nil
}

// Retest re-runs the connection test of a stored environment on behalf of the
// server itself. No activity is recorded. The error wraps database.ErrStale
// when env was changed or deleted during the test and the outcome was dropped.
func (s *Service) Retest(ctx context.Context, env *database.Environment) (string, error) {
	if err := s.runTest(ctx, env); err != nil {
		return "", err
	}
	return env.Status, nil
}

// runTest dials env and stores the outcome on it. Only the outcome columns are
// persisted, and only if env has not been saved or deleted in the meantime.
func (s *Service) runTest(ctx context.Context, env *database.Environment) error {
	password, err := s.sealer.Open(env.Password)
	if err != nil {
		return fmt.Errorf("opening stored password: %w", err)
	}
	options, err := url.ParseQuery(env.Options)
	if err != nil {
		return fmt.Errorf("%w: options: %v", ErrInvalid, err)
	}

	timeout := s.timeout
	if env.Timeout > 0 {
		timeout = time.Duration(env.Timeout) * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scope := s.tracer.Start(pingCtx, "environment.test").WithAttrs(
		attribute.String(cnst.AttrEnvKind, env.Kind),
		attribute.String("server.address", env.Host),
	)
	pingErr := s.dialer.Ping(scope.Ctx, Target{
		Kind:     env.Kind,
		Host:     env.Host,
		Port:     env.Port,
		Username: env.Username,
		Password: password,
		Database: env.DatabaseName,
		Options:  options,
	})
	scope.Finish(pingErr)

	tested := time.Now()
	env.LastTestedAt = &tested
	if pingErr != nil {
		env.Status = StatusFailed
		env.LastError = pingErr.Error()
		s.logger.Info("environment connection test failed",
			zap.String("workspace_id", env.WorkspaceID), zap.String("kind", env.Kind), zap.Error(pingErr))
	} else {
		env.Status = StatusConnected
		env.LastError = ""
	}
	if err := s.db.RecordEnvironmentTest(ctx, env); err != nil {
		if errors.Is(err, database.ErrStale) {
			s.logger.Debug("dropping outcome of a changed environment", zap.String("workspace_id", env.WorkspaceID))
		}
		return err
	}

	if s.observer != nil {
		s.observer.EnvironmentTested(env.Kind, env.Status)
	}
	return nil
}

func (s *Service) load(ctx context.Context, workspaceID string) (*database.Environment, error) {
	env, err := s.db.GetEnvironment(ctx, workspaceID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return env, err
}

func (s *Service) normalize(in *Input) error {
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.Host = strings.TrimSpace(in.Host)
	if _, ok := driverNames[in.Kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, in.Kind)
	}
	if in.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalid)
	}
	if in.Port == 0 {
		in.Port = defaultPorts[in.Kind]
	}
	if in.Port < 1 || in.Port > 65535 {
		return fmt.Errorf("%w: port out of range", ErrInvalid)
	}
	if in.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalid)
	}
	if _, err := url.ParseQuery(in.Options); err != nil {
		return fmt.Errorf("%w: options: %v", ErrInvalid, err)
	}
	return nil
}

func mask(env *database.Environment) *View {
	v := &View{Environment: env}
	if env.Password != "" {
		v.Password = MaskedPassword
	}
	return v
}
