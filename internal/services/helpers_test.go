package services

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"useraccounts/internal/metrics"
	"useraccounts/internal/models"
	"useraccounts/internal/repositories"
)

const strongPassword = "Strong1!"

type testEnv struct {
	store  *repositories.MemoryStore
	hasher PasswordHasher
	links  *LinkSigner
	users  UserService
	resets PasswordResetService
	auth   AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repositories.NewMemoryStore()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	links := NewLinkSigner("test-secret", "useraccounts", "http://localhost:8000", DefaultLinkTTLs())
	notifier := NewNotifier("account_events")
	m := metrics.New(prometheus.NewRegistry())
	l := zap.NewNop()

	return &testEnv{
		store:  store,
		hasher: hasher,
		links:  links,
		users:  NewUserService(store, hasher, DefaultPasswordPolicy(), links, notifier, m, l),
		resets: NewPasswordResetService(store, hasher, DefaultPasswordPolicy(), links, notifier, m, l),
		auth:   NewAuthService(store, hasher, m, l),
	}
}

func (e *testEnv) register(t *testing.T, email string) *RegistrationResult {
	t.Helper()
	res, err := e.users.Register(context.Background(), models.RegisterRequest{Email: email, Password: strongPassword})
	require.NoError(t, err)
	return res
}

func (e *testEnv) registerActive(t *testing.T, email string) *models.User {
	t.Helper()
	res := e.register(t, email)
	_, err := e.users.Activate(context.Background(), tokenFromLink(t, res.ActivationLink))
	require.NoError(t, err)
	u, err := e.users.GetUserByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	return u
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)
	return tok
}

func (e *testEnv) lastEvent(t *testing.T) (models.OutboxEvent, models.Notification) {
	t.Helper()
	events := e.store.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]

	var n models.Notification
	require.NoError(t, json.Unmarshal(last.Payload, &n))
	return last, n
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
}
