package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validToken = "good-token"

func newFakeAuthService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/validate":
			if r.Header.Get("Authorization") != "Bearer "+validToken {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":17,"name":"alice","roles":["USER","ADMIN"]}`)
		case "/login":
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			if string(body) != `{"username":"alice","password":"secret"}` {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
				return
			}
			_, _ = io.WriteString(w, `{"jwtToken":"`+validToken+`"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sessionCookie(value string) *http.Cookie {
	return &http.Cookie{Name: CookieName, Value: value}
}

func TestAuth_MissingCookie(t *testing.T) {
	auth := newFakeAuthService(t)
	products := newFakeBackend(t, http.StatusOK, `[]`)
	gw := newTestGateway(t, config.BackendURLs{Auth: auth.URL, ProductRead: products.URL})

	rec := gw.do(t, http.MethodGet, "/api/products", "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]any{"error": "Unauthorized"}, decodeBody(t, rec))
	assert.Zero(t, products.callCount())
}

func TestAuth_RejectedToken(t *testing.T) {
	auth := newFakeAuthService(t)
	orders := newFakeBackend(t, http.StatusOK, `[]`)
	gw := newTestGateway(t, config.BackendURLs{Auth: auth.URL, OrderRead: orders.URL})

	rec := gw.do(t, http.MethodGet, "/api/orders", "", sessionCookie("forged"))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, orders.callCount())
}

func TestAuth_AuthServiceUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()
	orders := newFakeBackend(t, http.StatusOK, `[]`)
	gw := newTestGateway(t, config.BackendURLs{Auth: url, OrderRead: orders.URL})

	rec := gw.do(t, http.MethodGet, "/api/orders", "", sessionCookie(validToken))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ProductWriteForwardsIdentity(t *testing.T) {
	auth := newFakeAuthService(t)
	writes := newFakeBackend(t, http.StatusCreated, `{"id":5}`)
	gw := newTestGateway(t, config.BackendURLs{Auth: auth.URL, ProductWrite: writes.URL})

	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(`{"name":"mug"}`))
	req.Header.Set("X-User-ID", "999")
	req.AddCookie(sessionCookie(validToken))
	rec := httptest.NewRecorder()
	gw.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	call := writes.lastCall(t)
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "/", call.Path)
	assert.Equal(t, `{"name":"mug"}`, call.Body)
	assert.Equal(t, "17", call.Header.Get("X-User-ID"))
	assert.Equal(t, "alice", call.Header.Get("X-User-Name"))
	assert.Equal(t, "USER,ADMIN", call.Header.Get("X-User-Roles"))
}

func TestAuth_ProductRoutes(t *testing.T) {
	auth := newFakeAuthService(t)
	reads := newFakeBackend(t, http.StatusOK, `{}`)
	writes := newFakeBackend(t, http.StatusOK, `{}`)
	gw := newTestGateway(t, config.BackendURLs{Auth: auth.URL, ProductRead: reads.URL, ProductWrite: writes.URL})
	cookie := sessionCookie(validToken)

	gw.do(t, http.MethodGet, "/api/products/3", "", cookie)
	assert.Equal(t, "/3", reads.lastCall(t).Path)
	assert.Empty(t, reads.lastCall(t).Header.Get("X-User-ID"))

	gw.do(t, http.MethodPut, "/api/products/3", `{"price":2}`, cookie)
	assert.Equal(t, http.MethodPut, writes.lastCall(t).Method)
	assert.Equal(t, "/3", writes.lastCall(t).Path)
	assert.Equal(t, "17", writes.lastCall(t).Header.Get("X-User-ID"))

	gw.do(t, http.MethodDelete, "/api/products/3", "", cookie)
	assert.Equal(t, http.MethodDelete, writes.lastCall(t).Method)
	assert.Equal(t, "USER,ADMIN", writes.lastCall(t).Header.Get("X-User-Roles"))
}

func TestAuth_OrderRoutes(t *testing.T) {
	auth := newFakeAuthService(t)
	orders := newFakeBackend(t, http.StatusOK, `[]`)
	gw := newTestGateway(t, config.BackendURLs{Auth: auth.URL, OrderRead: orders.URL})
	cookie := sessionCookie(validToken)

	rec := gw.do(t, http.MethodGet, "/api/orders/o1", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/o1", orders.lastCall(t).Path)

	gw.do(t, http.MethodGet, "/api/orders/user/u1", "", cookie)
	assert.Equal(t, "/user/u1", orders.lastCall(t).Path)
}

func TestAuth_CartRoutesArePublic(t *testing.T) {
	carts := newFakeBackend(t, http.StatusOK, `{}`)
	gw := newTestGateway(t, config.BackendURLs{CartCRUD: carts.URL})

	rec := gw.do(t, http.MethodGet, "/api/cart/u1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	auth := newFakeAuthService(t)
	gw := newTestGateway(t, config.BackendURLs{Auth: auth.URL})

	rec := gw.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, validToken, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
	assert.Equal(t, "/", cookies[0].Path)
}

func TestLogin_FailureSetsNoCookie(t *testing.T) {
	auth := newFakeAuthService(t)
	gw := newTestGateway(t, config.BackendURLs{Auth: auth.URL})

	rec := gw.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, rec)["message"])
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_CookieAuthenticatesNextRequest(t *testing.T) {
	auth := newFakeAuthService(t)
	orders := newFakeBackend(t, http.StatusOK, `[]`)
	gw := newTestGateway(t, config.BackendURLs{Auth: auth.URL, OrderRead: orders.URL})

	login := gw.do(t, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"secret"}`)
	cookies := login.Result().Cookies()
	require.Len(t, cookies, 1)

	rec := gw.do(t, http.MethodGet, "/api/orders", "", cookies[0])
	assert.Equal(t, http.StatusOK, rec.Code)
}
