package callback

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/credstore"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/providers"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/session"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/mocks"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/requester"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var ada = models.UserProfile{Email: "ada@example.com", DisplayName: "Ada Lovelace"}

type fixture struct {
	exchanger   *mocks.MockExchanger
	manager     *session.Manager
	transitions []models.CallbackState
	mu          sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := credstore.NewStore(credstore.NewMemoryBackend())
	return &fixture{
		exchanger: mocks.NewMockExchanger(ctrl),
		manager:   session.NewManager(context.Background(), store),
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Exchanger: f.exchanger,
		Session:   f.manager,
		OnTransition: func(s models.CallbackState) {
			f.mu.Lock()
			f.transitions = append(f.transitions, s)
			f.mu.Unlock()
		},
	}
}

func (f *fixture) seen() []models.CallbackState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CallbackState(nil), f.transitions...)
}

func failureOf(t *testing.T, out models.CallbackOutcome) *Failure {
	t.Helper()
	require.Equal(t, models.CallbackFailed, out.State)
	var f *Failure
	require.True(t, errors.As(out.Err, &f))
	return f
}

func TestHandler_CodeExchangeSucceeds(t *testing.T) {
	f := newFixture(t)
	f.exchanger.EXPECT().
		Exchange(gomock.Any(), providers.ExchangeRequest{Code: "abc", State: "xyz"}).
		Return(&providers.ExchangeResult{AccessToken: "tok_1", User: &ada}, nil).
		Times(1)

	h := NewHandler(Params{Code: "abc", State: "xyz"}, f.deps())
	out := h.Run(context.Background())

	require.Equal(t, models.CallbackSucceeded, out.State)
	assert.Equal(t, "Authentication successful! Redirecting...", out.Message())
	assert.Equal(t, "/", out.RedirectTo)
	assert.Equal(t, 2*time.Second, out.RedirectAfter)
	require.NotNil(t, out.Credential)
	assert.Equal(t, ada, out.Credential.Profile)
	assert.Equal(t, 24*time.Hour, out.Credential.ExpiresAt.Sub(out.Credential.IssuedAt))
	assert.True(t, out.Credential.Valid(time.Now()))

	token, ok := f.manager.GetToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, "tok_1", token)
	user, _ := f.manager.CurrentUser()
	assert.Equal(t, ada, user)

	assert.Equal(t, []models.CallbackState{models.CallbackExchangingCode, models.CallbackSucceeded}, f.seen())
	assert.Equal(t, models.CallbackSucceeded, h.State())
}

func TestHandler_ProviderError(t *testing.T) {
	f := newFixture(t)

	out := NewHandler(Params{Error: "access_denied", ErrorDescription: "user said no"}, f.deps()).Run(context.Background())

	failure := failureOf(t, out)
	assert.Equal(t, KindProviderError, failure.Kind)
	assert.Contains(t, out.Message(), "access_denied")
	assert.False(t, f.manager.IsAuthenticated())
	assert.Equal(t, []models.CallbackState{models.CallbackFailed}, f.seen())
}

func TestHandler_ErrorWinsOverCode(t *testing.T) {
	f := newFixture(t)

	out := NewHandler(Params{Error: "server_error", Code: "abc", Token: "tok"}, f.deps()).Run(context.Background())

	assert.Equal(t, KindProviderError, failureOf(t, out).Kind)
	assert.False(t, f.manager.IsAuthenticated())
}

func TestHandler_DirectToken(t *testing.T) {
	jwtToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "ada@example.com",
		"name":  "Ada Lovelace",
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		wantProfile models.UserProfile
	}{
		{name: "jwt claims", token: jwtToken, wantProfile: ada},
		{name: "opaque token", token: "tok_direct", wantProfile: models.UserProfile{DisplayName: "User"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			out := NewHandler(Params{Token: tt.token, Code: "ignored"}, f.deps()).Run(context.Background())

			require.Equal(t, models.CallbackSucceeded, out.State)
			token, ok := f.manager.GetToken(context.Background())
			require.True(t, ok)
			assert.Equal(t, tt.token, token)

			user, ok := f.manager.CurrentUser()
			require.True(t, ok)
			assert.Equal(t, tt.wantProfile, user)
			assert.Equal(t, []models.CallbackState{models.CallbackSucceeded}, f.seen())
		})
	}
}

func TestHandler_MissingCode(t *testing.T) {
	f := newFixture(t)

	out := NewHandler(Params{State: "xyz"}, f.deps()).Run(context.Background())

	failure := failureOf(t, out)
	assert.Equal(t, KindMissingCode, failure.Kind)
	assert.Equal(t, "No authorization code received", out.Message())
	assert.False(t, f.manager.IsAuthenticated())
}

func TestHandler_ExchangeFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "missing access token",
			err:      errors.Join(providers.ErrMalformedResponse, providers.ErrNoAccessToken),
			wantKind: KindMalformedResponse,
			wantMsg:  "No access token received",
		},
		{
			name:     "non-2xx",
			err:      &requester.HTTPError{Method: http.MethodPost, URL: "/auth/google/callback", StatusCode: 400},
			wantKind: KindExchangeHTTP,
			wantMsg:  "Authentication failed: HTTP error! status: 400",
		},
		{
			name:     "network",
			err:      &requester.NetworkError{Method: http.MethodPost, URL: "/auth/google/callback", Err: errors.New("connection refused")},
			wantKind: KindExchangeHTTP,
			wantMsg:  "Authentication failed: could not reach the authentication server",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.exchanger.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(nil, tt.err).Times(1)

			out := NewHandler(Params{Code: "abc"}, f.deps()).Run(context.Background())

			failure := failureOf(t, out)
			assert.Equal(t, tt.wantKind, failure.Kind)
			assert.Equal(t, tt.wantMsg, out.Message())
			assert.ErrorIs(t, out.Err, tt.err)
			assert.False(t, f.manager.IsAuthenticated())
			_, ok := f.manager.GetToken(context.Background())
			assert.False(t, ok)
			assert.Equal(t, []models.CallbackState{models.CallbackExchangingCode, models.CallbackFailed}, f.seen())
		})
	}
}

func TestHandler_RunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.exchanger.EXPECT().
		Exchange(gomock.Any(), gomock.Any()).
		Return(&providers.ExchangeResult{AccessToken: "tok_1", User: &ada}, nil).
		Times(1)

	h := NewHandler(Params{Code: "abc"}, f.deps())

	var wg sync.WaitGroup
	outcomes := make([]models.CallbackOutcome, 5)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = h.Run(context.Background())
		}(i)
	}
	wg.Wait()

	for _, out := range outcomes {
		assert.Equal(t, models.CallbackSucceeded, out.State)
	}
}

func TestHandler_GuardSharesExchangeAcrossHandlers(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.exchanger.EXPECT().
		Exchange(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req providers.ExchangeRequest) (*providers.ExchangeResult, error) {
			<-release
			return &providers.ExchangeResult{AccessToken: "tok_1", User: &ada}, nil
		}).
		Times(1)

	deps := f.deps()
	deps.Guard = NewGuard()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := NewHandler(Params{Code: "abc"}, deps).Run(context.Background())
			assert.Equal(t, models.CallbackSucceeded, out.State)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// The code is spent once its exchange completed.
	out := NewHandler(Params{Code: "abc"}, deps).Run(context.Background())
	assert.Equal(t, KindCodeReused, failureOf(t, out).Kind)
	assert.ErrorIs(t, out.Err, ErrCodeUsed)
}

func TestHandler_UsedCodeAfterLogoutDoesNotSignIn(t *testing.T) {
	f := newFixture(t)
	f.exchanger.EXPECT().
		Exchange(gomock.Any(), providers.ExchangeRequest{Code: "abc123", State: "xyz"}).
		Return(&providers.ExchangeResult{AccessToken: "tok_1", User: &ada}, nil).
		Times(1)

	deps := f.deps()
	deps.Guard = NewGuard()
	params := Params{Code: "abc123", State: "xyz"}

	out := NewHandler(params, deps).Run(context.Background())
	require.Equal(t, models.CallbackSucceeded, out.State)

	f.manager.Logout(context.Background())

	// The same redirect reloaded from history.
	out = NewHandler(params, deps).Run(context.Background())
	fail := failureOf(t, out)
	assert.Equal(t, KindCodeReused, fail.Kind)
	assert.Equal(t, "Authentication failed: this sign-in link was already used", out.Message())

	assert.False(t, f.manager.IsAuthenticated())
	_, ok := f.manager.GetToken(context.Background())
	assert.False(t, ok)
}

func TestHandler_FailedExchangeSpendsCode(t *testing.T) {
	f := newFixture(t)
	f.exchanger.EXPECT().
		Exchange(gomock.Any(), gomock.Any()).
		Return(nil, &requester.HTTPError{Method: http.MethodPost, URL: "http://api/auth/google/callback", StatusCode: http.StatusBadRequest}).
		Times(1)

	deps := f.deps()
	deps.Guard = NewGuard()

	out := NewHandler(Params{Code: "abc"}, deps).Run(context.Background())
	assert.Equal(t, KindExchangeHTTP, failureOf(t, out).Kind)

	out = NewHandler(Params{Code: "abc"}, deps).Run(context.Background())
	assert.Equal(t, KindCodeReused, failureOf(t, out).Kind)
}

func TestGuard_CancelledExchangeDoesNotSpendCode(t *testing.T) {
	g := NewGuard()
	calls := 0
	fn := func(context.Context) (*providers.ExchangeResult, error) {
		calls++
		if calls == 1 {
			return nil, context.DeadlineExceeded
		}
		return &providers.ExchangeResult{AccessToken: "tok_1"}, nil
	}

	_, err := g.Do(context.Background(), "abc", fn)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	res, err := g.Do(context.Background(), "abc", fn)
	require.NoError(t, err)
	assert.Equal(t, "tok_1", res.AccessToken)

	_, err = g.Do(context.Background(), "abc", fn)
	assert.ErrorIs(t, err, ErrCodeUsed)
	assert.Equal(t, 2, calls)
}

func TestHandler_AbandonedRunDoesNotLogin(t *testing.T) {
	t.Run("closed", func(t *testing.T) {
		f := newFixture(t)
		started := make(chan struct{})
		f.exchanger.EXPECT().
			Exchange(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, req providers.ExchangeRequest) (*providers.ExchangeResult, error) {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			}).
			Times(1)

		h := NewHandler(Params{Code: "abc"}, f.deps())
		go func() {
			<-started
			h.Close()
		}()
		out := h.Run(context.Background())

		assert.Equal(t, KindAbandoned, failureOf(t, out).Kind)
		assert.False(t, f.manager.IsAuthenticated())
	})

	t.Run("context cancelled after exchange", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		f.exchanger.EXPECT().
			Exchange(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, providers.ExchangeRequest) (*providers.ExchangeResult, error) {
				cancel()
				return &providers.ExchangeResult{AccessToken: "tok_1", User: &ada}, nil
			}).
			Times(1)

		out := NewHandler(Params{Code: "abc"}, f.deps()).Run(ctx)

		assert.Equal(t, KindAbandoned, failureOf(t, out).Kind)
		assert.False(t, f.manager.IsAuthenticated())
		_, ok := f.manager.GetToken(context.Background())
		assert.False(t, ok)
	})
}

type stubVerifier struct {
	profile models.UserProfile
	err     error
}

func (s stubVerifier) Verify(context.Context, string) (models.UserProfile, error) {
	return s.profile, s.err
}

func TestHandler_ProfileFromExchange(t *testing.T) {
	grace := models.UserProfile{Email: "grace@example.com", DisplayName: "Grace Hopper"}

	tests := []struct {
		name     string
		result   *providers.ExchangeResult
		verifier IDVerifier
		want     models.UserProfile
	}{
		{
			name:     "user object wins",
			result:   &providers.ExchangeResult{AccessToken: "tok", User: &ada, IDToken: "id"},
			verifier: stubVerifier{profile: grace},
			want:     ada,
		},
		{
			name:     "verified id token",
			result:   &providers.ExchangeResult{AccessToken: "tok", IDToken: "id"},
			verifier: stubVerifier{profile: grace},
			want:     grace,
		},
		{
			name:     "unverifiable id token falls back to placeholder",
			result:   &providers.ExchangeResult{AccessToken: "tok", IDToken: "id"},
			verifier: stubVerifier{err: errors.New("bad signature")},
			want:     models.UserProfile{DisplayName: "User"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.exchanger.EXPECT().Exchange(gomock.Any(), gomock.Any()).Return(tt.result, nil).Times(1)

			deps := f.deps()
			deps.Verifier = tt.verifier
			out := NewHandler(Params{Code: "abc"}, deps).Run(context.Background())

			require.Equal(t, models.CallbackSucceeded, out.State)
			user, _ := f.manager.CurrentUser()
			assert.Equal(t, tt.want, user)
		})
	}
}

func TestParseParams(t *testing.T) {
	q := url.Values{
		"code":              {"abc"},
		"state":             {"xyz"},
		"error":             {"access_denied"},
		"error_description": {"nope"},
		"token":             {"tok"},
	}
	assert.Equal(t, Params{
		Code:             "abc",
		State:            "xyz",
		Error:            "access_denied",
		ErrorDescription: "nope",
		Token:            "tok",
	}, ParseParams(q))
}
