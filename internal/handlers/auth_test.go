package handlers_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/vparshin/authgate/internal/handlers"
	"github.com/vparshin/authgate/internal/handlers/middleware"
	"github.com/vparshin/authgate/internal/logger"
	"github.com/vparshin/authgate/internal/repository/postgres"
	"github.com/vparshin/authgate/internal/service/auth"
	"github.com/vparshin/authgate/internal/service/auth/tokenmanager"
	"github.com/vparshin/authgate/internal/testutil"
)

func Test_AuthHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Run http server with the full production router on top of a rolled back tx
	withServer := func(dbpool *pgxpool.Pool, accessTTL, refreshTTL time.Duration, t *testing.T, fn func(url string, s *auth.AuthService)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			tm, err := tokenmanager.New(tokenmanager.Config{
				AccessSecretKey:  "test-access-key",
				RefreshSecretKey: "test-refresh-key",
				AccessTTL:        accessTTL,
				RefreshTTL:       refreshTTL,
			})
			require.NoError(t, err, "token manager should be created without errors")

			s, err := auth.NewService(auth.Config{}, tm, postgres.NewStorage(tx))
			require.NoError(t, err, "auth service should be created without errors")

			router := handlers.NewRouter(
				handlers.NewAuth(s, logger.NewNoOpLogger()),
				middleware.AuthMiddleware(tm),
				middleware.LoggerMiddleware(logger.NewNoOpLogger()),
			)
			srv := httptest.NewServer(router)
			defer srv.Close()

			fn(srv.URL, s)
		})
	}

	postJSON := func(t *testing.T, url string, data string) (*http.Response, string) {
		t.Helper()
		resp, err := http.Post(url, "application/json", strings.NewReader(data))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck
		return resp, string(body)
	}

	register := func(t *testing.T, url string) {
		t.Helper()
		resp, body := postJSON(t, url+"/v1/api/register", `{"email": "a@b.com", "username": "alice", "password": "secret"}`)
		require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
	}

	t.Run("register ok", func(t *testing.T) {
		withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
			resp, body := postJSON(t, url+"/v1/api/register", `{"email": "a@b.com", "username": "alice", "password": "secret"}`)

			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"message": "New user created"
				}`, body)
		})
	})

	t.Run("register fail if username taken", func(t *testing.T) {
		withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
			register(t, url)

			resp, body := postJSON(t, url+"/v1/api/register", `{"email": "other@b.com", "username": "alice", "password": "other"}`)

			require.Equalf(t, http.StatusConflict, resp.StatusCode, "not expected code. Body: %s", body)
		})
	})

	t.Run("register fail on invalid input", func(t *testing.T) {
		withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
			resp, body := postJSON(t, url+"/v1/api/register", `{"email": "not-an-email", "username": "alice", "password": "secret"}`)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, "validation_failed")
		})
	})

	t.Run("login ok", func(t *testing.T) {
		withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
			register(t, url)

			resp, body := postJSON(t, url+"/v1/api/login", `{"username": "alice", "password": "secret"}`)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, "accessToken", "access token should be in the response body")

			require.Equal(t, 1, len(resp.Cookies()), "exactly one cookie with refresh token expected")
			cookie := resp.Cookies()[0]
			require.Equal(t, "jwt", cookie.Name)
			require.True(t, cookie.HttpOnly, "refresh cookie should be HttpOnly")
			require.Equal(t, "/", cookie.Path, "refresh cookie should be available on / path")
			require.Equal(t, http.SameSiteStrictMode, cookie.SameSite, "refresh cookie should be SameSite Strict")
			require.InDelta(t, (24 * time.Hour).Seconds(), cookie.MaxAge, 1, "max age should be refresh TTL with 1 second delta")
			require.NotEmpty(t, cookie.Value, "refresh cookie should not be empty")
		})
	})

	t.Run("login fail on missing fields", func(t *testing.T) {
		withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
			register(t, url)

			resp, body := postJSON(t, url+"/v1/api/login", `{"username": "alice"}`)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
		})
	})

	t.Run("login fail on wrong password", func(t *testing.T) {
		withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
			register(t, url)

			resp, body := postJSON(t, url+"/v1/api/login", `{"username": "alice", "password": "wrong"}`)

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			require.NotContains(t, body, "accessToken", "no token may leak on failed login")
		})
	})

	t.Run("refresh", func(t *testing.T) {
		login := func(t *testing.T, url string) (accessBody string, refreshCookie *http.Cookie) {
			t.Helper()
			resp, body := postJSON(t, url+"/v1/api/login", `{"username": "alice", "password": "secret"}`)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Equal(t, 1, len(resp.Cookies()))
			return body, resp.Cookies()[0]
		}

		doRefresh := func(t *testing.T, url string, cookie *http.Cookie) (*http.Response, string) {
			t.Helper()
			req, err := http.NewRequest(http.MethodPost, url+"/v1/api/refresh", nil)
			require.NoError(t, err)
			if cookie != nil {
				req.AddCookie(cookie)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() // nolint:errcheck
			return resp, string(body)
		}

		t.Run("ok with valid cookie", func(t *testing.T) {
			withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
				register(t, url)
				_, cookie := login(t, url)

				resp, body := doRefresh(t, url, cookie)

				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
				require.Contains(t, body, "accessToken", "new access token should be in the response body")
			})
		})

		t.Run("unauthorized without cookie", func(t *testing.T) {
			withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
				resp, body := doRefresh(t, url, nil)

				require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			})
		})

		t.Run("forbidden with unknown cookie", func(t *testing.T) {
			withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
				resp, body := doRefresh(t, url, &http.Cookie{Name: "jwt", Value: "never-issued"})

				require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)
			})
		})

		t.Run("forbidden with superseded cookie", func(t *testing.T) {
			withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
				register(t, url)
				_, first := login(t, url)
				_, _ = login(t, url) // second login supersedes the first session

				resp, body := doRefresh(t, url, first)

				require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)
			})
		})
	})

	t.Run("protected resource", func(t *testing.T) {
		getMe := func(t *testing.T, url string, authHeader string) (*http.Response, string) {
			t.Helper()
			req, err := http.NewRequest(http.MethodGet, url+"/v1/api/me", nil)
			require.NoError(t, err)
			if authHeader != "" {
				req.Header.Set("Authorization", authHeader)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() // nolint:errcheck
			return resp, string(body)
		}

		t.Run("ok with valid access token", func(t *testing.T) {
			withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
				register(t, url)
				pair, err := s.Login(t.Context(), "alice", "secret", "")
				require.NoError(t, err)

				resp, body := getMe(t, url, "Bearer "+pair.Access.Value)

				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
				require.JSONEq(t, `
					{
						"username": "alice"
					}`, body)
			})
		})

		t.Run("unauthorized without header", func(t *testing.T) {
			withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
				resp, body := getMe(t, url, "")

				require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			})
		})

		t.Run("forbidden with tampered token", func(t *testing.T) {
			withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
				register(t, url)
				pair, err := s.Login(t.Context(), "alice", "secret", "")
				require.NoError(t, err)

				resp, body := getMe(t, url, "Bearer "+pair.Access.Value+"tampered")

				require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)
			})
		})

		t.Run("forbidden after access token expired, refresh revives", func(t *testing.T) {
			// Issue already expired access tokens, so no sleeping in tests
			withServer(pg.Pool, -time.Second, 24*time.Hour, t, func(url string, s *auth.AuthService) {
				register(t, url)
				pair, err := s.Login(t.Context(), "alice", "secret", "")
				require.NoError(t, err)

				resp, body := getMe(t, url, "Bearer "+pair.Access.Value)
				require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)

				// The refresh token still works and yields a new access token
				access, err := s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err)
				require.NotEmpty(t, access.Value)
			})
		})
	})

	t.Run("health", func(t *testing.T) {
		withServer(pg.Pool, time.Minute, 24*time.Hour, t, func(url string, s *auth.AuthService) {
			resp, err := http.Get(url + "/health")
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() // nolint:errcheck

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, "ok", string(body))
		})
	})
}
