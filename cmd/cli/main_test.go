package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iho/betledger/internal/adapter/http/middleware"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/auth"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
	header http.Header
}

func newAPI(t *testing.T, status int, response string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var seen []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   string(body),
			header: r.Header.Clone(),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEntriesGet(t *testing.T) {
	srv, seen := newAPI(t, http.StatusOK, `{"id":"e1","status":"PENDING"}`)

	out, err := execute(t, "--url", srv.URL, "--token", "tok", "entries", "get", "e1")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if out != "{\n  \"id\": \"e1\",\n  \"status\": \"PENDING\"\n}\n" {
		t.Fatalf("unexpected output:\n%s", out)
	}

	req := (*seen)[0]
	if req.method != http.MethodGet || req.path != "/api/v1/entries/e1" {
		t.Fatalf("unexpected request %s %s", req.method, req.path)
	}
	if got := req.header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", got)
	}
	if req.header.Get(middleware.IdempotencyKeyHeader) != "" {
		t.Fatal("GET must not carry an idempotency key")
	}
}

func TestEntriesList(t *testing.T) {
	srv, seen := newAPI(t, http.StatusOK, `{"entries":[],"total":0}`)

	if _, err := execute(t, "--url", srv.URL, "entries", "list", "--user", "u1", "--type", "deposit", "--limit", "5"); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if got := (*seen)[0].query; got != "limit=5&type=DEPOSIT&user_id=u1" {
		t.Fatalf("unexpected query %q", got)
	}
}

func TestWithdrawalActions(t *testing.T) {
	for _, action := range []string{"confirm", "cancel", "fail"} {
		t.Run(action, func(t *testing.T) {
			srv, seen := newAPI(t, http.StatusOK, `{"id":"w1"}`)

			_, err := execute(t, "--url", srv.URL, "--as-user", "op-1", "--as-role", "operator",
				"withdrawals", action, "w1", "--reason", "bank batch 7")
			if err != nil {
				t.Fatalf("command failed: %v", err)
			}

			req := (*seen)[0]
			if req.method != http.MethodPost || req.path != "/api/v1/withdrawals/w1/"+action {
				t.Fatalf("unexpected request %s %s", req.method, req.path)
			}
			if req.header.Get(middleware.UserIDHeader) != "op-1" || req.header.Get(middleware.UserRoleHeader) != "operator" {
				t.Fatalf("identity headers missing: %v", req.header)
			}
			if req.header.Get(middleware.IdempotencyKeyHeader) == "" {
				t.Fatal("expected an idempotency key")
			}
			var body map[string]string
			if err := json.Unmarshal([]byte(req.body), &body); err != nil || body["reason"] != "bank batch 7" {
				t.Fatalf("unexpected body %q", req.body)
			}
		})
	}
}

func TestUsersAdjust(t *testing.T) {
	srv, seen := newAPI(t, http.StatusOK, `{"user_id":"u1"}`)

	if _, err := execute(t, "--url", srv.URL, "users", "adjust", "u1", "120.50", "--reason", "chargeback"); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	req := (*seen)[0]
	if req.method != http.MethodPut || req.path != "/api/v1/admin/users/u1/balance" {
		t.Fatalf("unexpected request %s %s", req.method, req.path)
	}
	if req.body != `{"balance":"120.5","reason":"chargeback"}` {
		t.Fatalf("unexpected body %s", req.body)
	}

	if _, err := execute(t, "--url", srv.URL, "users", "adjust", "u1", "abc", "--reason", "x"); err == nil {
		t.Fatal("expected invalid balance to fail")
	}
}

func TestAuditCmd(t *testing.T) {
	srv, seen := newAPI(t, http.StatusOK, `{"data":[]}`)

	if _, err := execute(t, "--url", srv.URL, "audit", "--action", "balance.adjust", "--resource", "user/u1", "--limit", "5"); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	req := (*seen)[0]
	if req.path != "/api/v1/admin/audit" {
		t.Fatalf("unexpected path %s", req.path)
	}
	if req.query != "action=balance.adjust&limit=5&resource_id=u1&resource_type=user" {
		t.Fatalf("unexpected query %q", req.query)
	}

	if _, err := execute(t, "--url", srv.URL, "audit", "--resource", "u1"); err == nil {
		t.Fatal("expected malformed resource to fail")
	}
}

func TestEntriesHistory(t *testing.T) {
	srv, seen := newAPI(t, http.StatusOK, `{"entry":{"id":"e1"},"audit":[],"events":[]}`)

	if _, err := execute(t, "--url", srv.URL, "entries", "history", "e1"); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if got := (*seen)[0].path; got != "/api/v1/admin/entries/e1/history" {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestEntriesSettle(t *testing.T) {
	for _, action := range []string{"cancel", "fail"} {
		t.Run(action, func(t *testing.T) {
			srv, seen := newAPI(t, http.StatusOK, `{"id":"d1"}`)

			if _, err := execute(t, "--url", srv.URL, "--as-user", "op-1", "--as-role", "operator", "entries", action, "d1", "--reason", "charge expired"); err != nil {
				t.Fatalf("command failed: %v", err)
			}
			req := (*seen)[0]
			if req.method != http.MethodPost || req.path != "/api/v1/admin/entries/d1/"+action {
				t.Fatalf("unexpected request %s %s", req.method, req.path)
			}
			if !strings.Contains(req.body, "charge expired") {
				t.Fatalf("unexpected body %q", req.body)
			}
		})
	}
}

func TestUsersConsistencyDrift(t *testing.T) {
	srv, _ := newAPI(t, http.StatusOK, `{"user_id":"u1","consistent":false}`)

	out, err := execute(t, "--url", srv.URL, "users", "consistency", "u1")
	if err == nil || !strings.Contains(err.Error(), "drift") {
		t.Fatalf("expected drift error, got %v", err)
	}
	if !strings.Contains(out, `"consistent": false`) {
		t.Fatalf("expected report to be printed, got %q", out)
	}
}

func TestAPIErrorsSurface(t *testing.T) {
	srv, _ := newAPI(t, http.StatusUnprocessableEntity, `{"error":"policy violation","message":"daily cap reached","reason":"daily_limit_exceeded"}`)

	_, err := execute(t, "--url", srv.URL, "withdrawals", "confirm", "w1")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"422", "daily cap reached", "daily_limit_exceeded"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestTokenCmd(t *testing.T) {
	out, err := execute(t, "token", "--user-id", "admin-1", "--role", "admin", "--secret", "s3cret", "--ttl", "5m")
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}

	claims, err := auth.NewJWTManager("s3cret", time.Minute).Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	p := claims.Principal()
	if p.ID != "admin-1" || p.Role != domain.RoleAdmin {
		t.Fatalf("unexpected principal %+v", p)
	}

	if _, err := execute(t, "token", "--user-id", "x", "--role", "root", "--secret", "s"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
	if _, err := execute(t, "token", "--user-id", "x", "--secret", ""); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}
	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}
