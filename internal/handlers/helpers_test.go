package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/netcraft/internal/clock"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/repository/postgres"
	"github.com/nkiryanov/netcraft/internal/service/auth"
	"github.com/nkiryanov/netcraft/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/netcraft/internal/service/mailer"
	"github.com/nkiryanov/netcraft/internal/service/otp"
	"github.com/nkiryanov/netcraft/internal/service/passwordreset"
	"github.com/nkiryanov/netcraft/internal/service/project"
	"github.com/nkiryanov/netcraft/internal/service/revocation"
	"github.com/nkiryanov/netcraft/internal/service/user"
	"github.com/nkiryanov/netcraft/internal/testutil"
)

// Sender that remembers messages instead of sending
type inboxSender struct {
	messages []mailer.ResetCodeMessage
}

func (s *inboxSender) SendResetCode(_ context.Context, msg mailer.ResetCodeMessage) error {
	s.messages = append(s.messages, msg)
	return nil
}

func (s *inboxSender) last(t *testing.T) mailer.ResetCodeMessage {
	require.NotEmpty(t, s.messages, "no reset code was sent")
	return s.messages[len(s.messages)-1]
}

type testApp struct {
	url   string
	auth  *auth.AuthService
	inbox *inboxSender
	now   *time.Time
}

// Run http server with production services bound to rolled back transaction
func withApp(pg testutil.PostgresContainer, t *testing.T, fn func(app testApp)) {
	testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
		now := time.Now().UTC()
		clk := clock.Func(func() time.Time { return now })
		l := logger.NewNoOpLogger()

		storage := postgres.NewStorage(tx)

		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret", Clock: clk})
		require.NoError(t, err, "token manager should be created without errors")

		ledger := revocation.NewLedger(storage.RevokedToken(), l)
		users := user.NewService(user.DefaultHasher, storage)

		authService, err := auth.NewService(auth.Config{Clock: clk}, tokenManager, ledger, users, l)
		require.NoError(t, err, "auth service starting error")

		inbox := &inboxSender{}
		codes := otp.New(storage, l, otp.WithClock(clk))
		resets := passwordreset.NewService(passwordreset.Config{Clock: clk}, storage, codes, users, inbox, l)
		projects := project.NewService(storage, l)

		srv := httptest.NewServer(NewRouter(authService, users, resets, projects, l))
		defer srv.Close()

		fn(testApp{url: srv.URL, auth: authService, inbox: inbox, now: &now})
	})
}

type testResponse struct {
	*http.Response
	Body string
}

// Make request. Options allow to set headers and cookies
func doRequest(t *testing.T, method string, url string, body string, opts ...func(r *http.Request)) testResponse {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	return testResponse{Response: resp, Body: string(data)}
}

func withBearer(resp testResponse) func(r *http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", resp.Header.Get("Authorization"))
	}
}

func withRefreshCookie(resp testResponse) func(r *http.Request) {
	return func(r *http.Request) {
		for _, c := range resp.Cookies() {
			if c.Name == "refreshtoken" {
				r.AddCookie(c)
			}
		}
	}
}

const registerBody = `{
	"nickname": "nkiryanov",
	"email": "nk@example.com",
	"password": "Password123",
	"first_name": "Nikita",
	"last_name": "K"
}`

func register(t *testing.T, app testApp) testResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, app.url+"/api/auth/register", registerBody)
	require.Equalf(t, http.StatusCreated, resp.StatusCode, "register failed. Body: %s", resp.Body)
	return resp
}
