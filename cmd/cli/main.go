package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/betledger/internal/adapter/http/middleware"
	"github.com/iho/betledger/internal/domain"
	"github.com/iho/betledger/internal/infrastructure/auth"
)

const maxResponseBody = 1 << 20

type options struct {
	baseURL string
	token   string
	userID  string
	role    string
	timeout time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "betledger-cli",
		Short:         "Betledger operator CLI",
		Long:          `A command line interface for settling entries and inspecting balances through the Betledger API.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("BETLEDGER_URL", "http://localhost:8080"), "Base URL of the Betledger API")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("BETLEDGER_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().StringVar(&opts.userID, "as-user", "", "X-User-ID to send when the server runs without auth")
	rootCmd.PersistentFlags().StringVar(&opts.role, "as-role", string(domain.RoleAdmin), "X-User-Role to send with --as-user")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(entriesCmd(opts), withdrawalsCmd(opts), usersCmd(opts), auditCmd(opts), tokenCmd())
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func entriesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Ledger entry lookups",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one ledger entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, http.MethodGet, "/api/v1/entries/"+url.PathEscape(args[0]), nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <reference>",
		Short: "Show a PIX deposit by external reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, http.MethodGet, "/api/v1/pix/status/"+url.PathEscape(args[0]), nil)
		},
	})

	var (
		listUser   string
		listType   string
		listStatus string
		listLimit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if listUser != "" {
				q.Set("user_id", listUser)
			}
			if listType != "" {
				q.Set("type", strings.ToUpper(listType))
			}
			if listStatus != "" {
				q.Set("status", strings.ToUpper(listStatus))
			}
			q.Set("limit", fmt.Sprint(listLimit))
			return opts.call(cmd, http.MethodGet, "/api/v1/entries?"+q.Encode(), nil)
		},
	}
	list.Flags().StringVar(&listUser, "user", "", "User id (required for operators)")
	list.Flags().StringVar(&listType, "type", "", "Entry type filter")
	list.Flags().StringVar(&listStatus, "status", "", "Entry status filter")
	list.Flags().IntVar(&listLimit, "limit", 20, "Page size")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "history <id>",
		Short: "Show an entry with its audit trail and emitted events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, http.MethodGet, "/api/v1/admin/entries/"+url.PathEscape(args[0])+"/history", nil)
		},
	})

	for _, action := range []struct {
		name  string
		short string
	}{
		{"cancel", "Cancel any pending entry, e.g. an abandoned deposit"},
		{"fail", "Fail any pending entry, e.g. an expired deposit charge"},
	} {
		var reason string
		sub := &cobra.Command{
			Use:   action.name + " <id>",
			Short: action.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "/api/v1/admin/entries/" + url.PathEscape(args[0]) + "/" + action.name
				return opts.call(cmd, http.MethodPost, path, map[string]string{"reason": reason})
			},
		}
		sub.Flags().StringVar(&reason, "reason", "", "Note stored on the entry")
		cmd.AddCommand(sub)
	}

	return cmd
}

func auditCmd(opts *options) *cobra.Command {
	var (
		actor    string
		action   string
		resource string
		since    time.Duration
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audited operator actions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if actor != "" {
				q.Set("user_id", actor)
			}
			if action != "" {
				q.Set("action", action)
			}
			if resource != "" {
				kind, id, ok := strings.Cut(resource, "/")
				if !ok || kind == "" || id == "" {
					return fmt.Errorf("--resource must look like type/id, got %q", resource)
				}
				q.Set("resource_type", kind)
				q.Set("resource_id", id)
			}
			if since > 0 {
				q.Set("from", time.Now().Add(-since).UTC().Format(time.RFC3339))
			}
			q.Set("limit", fmt.Sprint(limit))
			return opts.call(cmd, http.MethodGet, "/api/v1/admin/audit?"+q.Encode(), nil)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "Only actions by this user id")
	cmd.Flags().StringVar(&action, "action", "", "Action filter, e.g. balance.adjust")
	cmd.Flags().StringVar(&resource, "resource", "", "Resource as type/id, e.g. user/u1")
	cmd.Flags().DurationVar(&since, "since", 0, "Only actions newer than this")
	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	return cmd
}

func withdrawalsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdrawals",
		Short: "Settle pending withdrawals",
	}

	for _, action := range []struct {
		name  string
		short string
	}{
		{"confirm", "Mark a paid-out withdrawal completed"},
		{"cancel", "Cancel a pending withdrawal and release its reservation"},
		{"fail", "Fail a pending withdrawal and release its reservation"},
	} {
		var reason string
		sub := &cobra.Command{
			Use:   action.name + " <id>",
			Short: action.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "/api/v1/withdrawals/" + url.PathEscape(args[0]) + "/" + action.name
				return opts.call(cmd, http.MethodPost, path, map[string]string{"reason": reason})
			},
		}
		sub.Flags().StringVar(&reason, "reason", "", "Note stored on the entry")
		cmd.AddCommand(sub)
	}

	return cmd
}

func usersCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Account administration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show an account and its stored balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, http.MethodGet, "/api/v1/admin/users/"+url.PathEscape(args[0]), nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "consistency <id>",
		Short: "Compare the stored balance with the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if err := opts.do(cmd, http.MethodGet, "/api/v1/admin/users/"+url.PathEscape(args[0])+"/consistency", nil, &raw); err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), raw); err != nil {
				return err
			}
			var report struct {
				Consistent bool `json:"consistent"`
			}
			if err := json.Unmarshal(raw, &report); err != nil {
				return fmt.Errorf("decode report: %w", err)
			}
			if !report.Consistent {
				return errors.New("balance drift detected")
			}
			return nil
		},
	})

	var reason string
	adjust := &cobra.Command{
		Use:   "adjust <id> <balance>",
		Short: "Set a balance through an adjustment entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid balance %q: %w", args[1], err)
			}
			body := map[string]any{"balance": target, "reason": reason}
			return opts.call(cmd, http.MethodPut, "/api/v1/admin/users/"+url.PathEscape(args[0])+"/balance", body)
		},
	}
	adjust.Flags().StringVar(&reason, "reason", "", "Why the balance changes")
	_ = adjust.MarkFlagRequired("reason")
	cmd.AddCommand(adjust)

	cmd.AddCommand(&cobra.Command{
		Use:   "status <id> <ACTIVE|INACTIVE|BLOCKED>",
		Short: "Change an account's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"status": strings.ToUpper(args[1])}
			return opts.call(cmd, http.MethodPut, "/api/v1/admin/users/"+url.PathEscape(args[0])+"/status", body)
		},
	})

	return cmd
}

// tokenCmd signs a token locally so the first admin can reach the API
// before any token-issuing account exists.
func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with the server's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("JWT secret is required (--secret or JWT_SECRET)")
			}
			r := domain.Role(strings.ToLower(role))
			if !r.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := auth.NewJWTManager(secret, ttl).Generate(&domain.Principal{ID: userID, Role: r})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user-id", "", "Subject of the token")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "player, operator or admin")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC secret")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

// call performs a request and pretty-prints the JSON response.
func (o *options) call(cmd *cobra.Command, method, path string, body any) error {
	var out json.RawMessage
	if err := o.do(cmd, method, path, body, &out); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

// do performs a request and decodes the body into out. Non-2xx
// responses become errors carrying the server's message.
func (o *options) do(cmd *cobra.Command, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(o.baseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPut {
		req.Header.Set(middleware.IdempotencyKeyHeader, uuid.NewString())
	}
	switch {
	case o.token != "":
		req.Header.Set("Authorization", "Bearer "+o.token)
	case o.userID != "":
		req.Header.Set(middleware.UserIDHeader, o.userID)
		req.Header.Set(middleware.UserRoleHeader, o.role)
	}

	resp, err := (&http.Client{Timeout: o.timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Reason  string `json:"reason"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg := apiErr.Error
			if apiErr.Message != "" {
				msg += ": " + apiErr.Message
			}
			if apiErr.Reason != "" {
				msg += " (" + apiErr.Reason + ")"
			}
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, msg)
		}
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, truncate(string(raw), 200))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func printJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, werr := fmt.Fprintln(w, string(raw))
		return werr
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
