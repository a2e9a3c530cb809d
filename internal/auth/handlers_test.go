package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type handlerFixture struct {
	serviceFixture
	codec  *CookieCodec
	router chi.Router
}

func newHandlerFixture(t *testing.T) handlerFixture {
	t.Helper()

	f := newServiceFixture(t)
	codec := mustCookieCodec(t, 0x42)
	h := NewHandler(slog.New(slog.DiscardHandler), f.svc, codec)

	r := chi.NewRouter()
	r.Use(Middleware(f.svc.tokens))
	r.Mount("/auth", h.Routes())

	return handlerFixture{serviceFixture: f, codec: codec, router: r}
}

func (f handlerFixture) do(t *testing.T, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func responseCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

func TestHandler_SignUp(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/signup",
		`{"username":"navid","password":"a fine password 42!","passwordCheck":"a fine password 42!"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Username string `json:"username"`
		KDFSalt  string `json:"pbkdf2_salt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "navid", body.Username)
	require.Len(t, body.KDFSalt, 64)

	// Same username again conflicts.
	rec = f.do(t, http.MethodPost, "/auth/signup",
		`{"username":"navid","password":"a fine password 42!","passwordCheck":"a fine password 42!"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_SignUp_RejectsBadBodies(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "nope"},
		{"unknown field", `{"username":"navid","password":"a fine password 42!","passwordCheck":"a fine password 42!","admin":true}`},
		{"trailing data", `{"username":"navid","password":"a fine password 42!","passwordCheck":"a fine password 42!"}{}`},
		{"weak password", `{"username":"navid","password":"short","passwordCheck":"short"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := f.do(t, http.MethodPost, "/auth/signup", tc.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}
}

func TestHandler_SignIn(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/signup",
		`{"username":"navid","password":"a fine password 42!","passwordCheck":"a fine password 42!"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/signin",
		`{"username":"navid","password":"a fine password 42!"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)

	// The access token in the body verifies against the access key.
	_, err := f.svc.tokens.VerifyAccess(body.Token)
	require.NoError(t, err)

	// The cookie holds an encrypted refresh token, not the access token.
	cookie := responseCookie(t, rec)
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(cookie)
	refresh, ok := f.codec.Read(req)
	require.True(t, ok)
	require.NotEqual(t, body.Token, refresh)
	_, err = f.svc.tokens.VerifyRefresh(refresh)
	require.NoError(t, err)
}

func TestHandler_SignIn_WrongCredentials(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	rec := f.do(t, http.MethodPost, "/auth/signup",
		`{"username":"navid","password":"a fine password 42!","passwordCheck":"a fine password 42!"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, body := range []string{
		`{"username":"navid","password":"wrong password 42!"}`,
		`{"username":"nobody","password":"a fine password 42!"}`,
	} {
		rec = f.do(t, http.MethodPost, "/auth/signin", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Nil(t, responseCookie(t, rec))
	}
}

func TestHandler_Refresh(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	f.do(t, http.MethodPost, "/auth/signup",
		`{"username":"navid","password":"a fine password 42!","passwordCheck":"a fine password 42!"}`)
	signedIn := f.do(t, http.MethodPost, "/auth/signin",
		`{"username":"navid","password":"a fine password 42!"}`)
	require.Equal(t, http.StatusOK, signedIn.Code)
	cookie := responseCookie(t, signedIn)
	require.NotNil(t, cookie)

	// No cookie: unauthorized.
	rec := f.do(t, http.MethodPost, "/auth/refresh", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// With the cookie: a new access token and a replaced cookie.
	rec = f.do(t, http.MethodPost, "/auth/refresh", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, rec.Code)
	replaced := responseCookie(t, rec)
	require.NotNil(t, replaced)
	require.NotEqual(t, cookie.Value, replaced.Value)

	// Replaying the redeemed cookie: reuse. Unauthorized, cookie expired.
	rec = f.do(t, http.MethodPost, "/auth/refresh", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	cleared := responseCookie(t, rec)
	require.NotNil(t, cleared)
	require.Negative(t, cleared.MaxAge)
}

func TestHandler_Logout(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	f.do(t, http.MethodPost, "/auth/signup",
		`{"username":"navid","password":"a fine password 42!","passwordCheck":"a fine password 42!"}`)
	signedIn := f.do(t, http.MethodPost, "/auth/signin",
		`{"username":"navid","password":"a fine password 42!"}`)
	require.Equal(t, http.StatusOK, signedIn.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(signedIn.Body.Bytes(), &body))
	cookie := responseCookie(t, signedIn)

	// Logout requires a bearer token.
	rec := f.do(t, http.MethodPost, "/auth/logout", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/logout", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+body.Token)
		r.AddCookie(cookie)
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	cleared := responseCookie(t, rec)
	require.NotNil(t, cleared)
	require.Negative(t, cleared.MaxAge)

	// The session is gone: the old cookie no longer refreshes.
	rec = f.do(t, http.MethodPost, "/auth/refresh", "", func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
