package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amoylab/wshub/internal/apiserver/activity"
	"github.com/amoylab/wshub/internal/apiserver/database"
	"github.com/amoylab/wshub/internal/apiserver/environment"
	"github.com/amoylab/wshub/internal/apiserver/membership"
	"github.com/amoylab/wshub/internal/apiserver/rbac"
	jsvc "github.com/amoylab/wshub/internal/auth/jwt"
	authstore "github.com/amoylab/wshub/internal/auth/storage"
	"github.com/amoylab/wshub/internal/common/config"
	"github.com/amoylab/wshub/internal/i18n"
	"github.com/amoylab/wshub/internal/storage"
)

const testPassword = "password123"

func mustNewJWTService() *jsvc.Service {
	s, _ := jsvc.NewService(jsvc.Config{SecretKey: "this-is-a-very-long-secret-key-for-testing", Duration: time.Hour})
	return s
}

type fakeDialer struct {
	mu   sync.Mutex
	err  error
	last environment.Target
}

func (f *fakeDialer) Ping(_ context.Context, t environment.Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = t
	return f.err
}

type eventCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (e *eventCounter) AuthEvent(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts[event]++
}

func (e *eventCounter) get(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counts[event]
}

type testServer struct {
	t        *testing.T
	db       database.Database
	jwt      *jsvc.Service
	router   *gin.Engine
	sessions *authstore.MemoryStorage
	dialer   *fakeDialer
	events   *eventCounter
	handler  *Handler
	users    map[string]*database.User
	ws       *database.Workspace
}

// newTestServer seeds root (platform admin), alice (owner of acme),
// carol (author), bob (member) and dave (no membership)
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	i18n.SetTranslator(nil)

	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, database.InitPlatformRoles(ctx, db))
	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	s := &testServer{
		t:        t,
		db:       db,
		jwt:      mustNewJWTService(),
		sessions: authstore.NewMemoryStorage(),
		dialer:   &fakeDialer{},
		events:   &eventCounter{counts: map[string]int{}},
		users:    map[string]*database.User{},
	}
	for _, u := range []struct{ name, role string }{
		{"root", rbac.PlatformAdminName},
		{"alice", rbac.PlatformUserName},
		{"bob", rbac.PlatformUserName},
		{"carol", rbac.PlatformUserName},
		{"dave", rbac.PlatformUserName},
	} {
		role, err := db.GetRoleByName(ctx, u.role)
		require.NoError(t, err)
		user := &database.User{Username: u.name, DisplayName: u.name, Password: string(hashed), RoleID: &role.ID, IsActive: true}
		require.NoError(t, db.CreateUser(ctx, user))
		s.users[u.name] = user
	}

	recorder := activity.NewService(db, zap.NewNop(), nil)
	members := membership.NewService(db, recorder, nil, zap.NewNop())
	sealer, err := environment.NewSealer("", 0)
	require.NoError(t, err)
	avatars, err := storage.NewDiskStorage(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	s.handler = NewHandler(Options{
		DB:           db,
		JWT:          s.jwt,
		Sessions:     s.sessions,
		Members:      members,
		Activities:   recorder,
		Environments: environment.NewService(db, sealer, s.dialer, time.Second, recorder, nil, zap.NewNop()),
		Avatars:      avatars,
		Observer:     s.events,
		RefreshTTL:   time.Hour,
		MaxAvatar:    64 << 10,
		Logger:       zap.NewNop(),
	})

	s.router = gin.New()
	s.router.Use(i18n.LanguageMiddleware())
	s.handler.RegisterRoutes(s.router.Group("/api"))

	ws, err := members.CreateWorkspace(ctx, s.users["root"].ID, &database.Workspace{Name: "Acme"}, s.users["alice"].ID)
	require.NoError(t, err)
	owner, err := members.Actor(ctx, s.users["alice"].ID, rbac.PlatformUser, ws, false)
	require.NoError(t, err)
	_, err = members.AddMember(ctx, owner, ws, s.users["carol"].ID, rbac.RoleAuthor)
	require.NoError(t, err)
	_, err = members.AddMember(ctx, owner, ws, s.users["bob"].ID, rbac.RoleMember)
	require.NoError(t, err)
	s.ws = ws
	return s
}

func (s *testServer) token(name string) string {
	s.t.Helper()
	u := s.users[name]
	role := rbac.PlatformUserName
	if name == "root" {
		role = rbac.PlatformAdminName
	}
	tok, err := s.jwt.GenerateToken(u.ID, u.Username, role)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) as(name string) func(method, path string, body any) *httptest.ResponseRecorder {
	tok := s.token(name)
	return func(method, path string, body any) *httptest.ResponseRecorder {
		return s.do(method, path, tok, body)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]any](t, w)
	code, _ := body["code"].(string)
	return code
}

func (s *testServer) memberCount() int {
	s.t.Helper()
	ws, err := s.db.GetWorkspaceBySlug(context.Background(), s.ws.Slug)
	require.NoError(s.t, err)
	n, err := s.db.CountActiveMembers(context.Background(), ws.ID)
	require.NoError(s.t, err)
	require.Equal(s.t, int(n), ws.MemberCount, "member_count drifted from active memberships")
	return ws.MemberCount
}
