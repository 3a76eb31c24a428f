package handler

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/environment"
	"github.com/amoylab/wshub/internal/apiserver/membership"
	"github.com/amoylab/wshub/internal/auth/jwt"
	authstore "github.com/amoylab/wshub/internal/auth/storage"
	"github.com/amoylab/wshub/internal/i18n"
	"github.com/amoylab/wshub/internal/storage"
)

const (
	minPasswordLength = 8
	defaultAvatarMax  = 2 << 20
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// AuthObserver counts authentication events
type AuthObserver interface {
	AuthEvent(event string)
}

// Options wires the handler to its collaborators
type Options struct {
	DB           database.Database
	JWT          *jwt.Service
	Sessions     authstore.Store
	Members      *membership.Service
	Activities   *activity.Service
	Environments *environment.Service
	Avatars      storage.Storage
	Observer     AuthObserver
	RefreshTTL   time.Duration
	MaxAvatar    int64
	Logger       *zap.Logger
}

// Handler serves the REST API
type Handler struct {
	db         database.Database
	jwtService *jwt.Service
	sessions   authstore.Store
	members    *membership.Service
	activities *activity.Service
	envs       *environment.Service
	avatars    storage.Storage
	observer   AuthObserver
	refreshTTL time.Duration
	maxAvatar  int64
	logger     *zap.Logger
	now        func() time.Time
}

// NewHandler creates a new API handler
func NewHandler(opts Options) *Handler {
	registerJSONFieldNames()

	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	if opts.MaxAvatar <= 0 {
		opts.MaxAvatar = defaultAvatarMax
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		db:         opts.DB,
		jwtService: opts.JWT,
		sessions:   opts.Sessions,
		members:    opts.Members,
		activities: opts.Activities,
		envs:       opts.Environments,
		avatars:    opts.Avatars,
		observer:   opts.Observer,
		refreshTTL: opts.RefreshTTL,
		maxAvatar:  opts.MaxAvatar,
		logger:     opts.Logger.Named("handler"),
		now:        time.Now,
	}
}

func (h *Handler) authEvent(event string) {
	if h.observer != nil {
		h.observer.AuthEvent(event)
	}
}

var registerOnce sync.Once

// registerJSONFieldNames makes validation errors report json field names
func registerJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// bindJSON decodes the body into req. Validation failures are answered with
// 422 and a per-field map, malformed bodies with 400.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			fields[fe.Field()] = rule
		}
		i18n.RespondWithError(c, i18n.ErrValidation.WithFields(fields))
		return false
	}
	i18n.RespondWithError(c, i18n.ErrBadRequest)
	return false
}
