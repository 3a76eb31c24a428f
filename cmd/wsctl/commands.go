package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/amoylab/wshub/internal/common/cnst"
	"github.com/amoylab/wshub/pkg/apiclient"
)

type envFunc func() *cli

func newLoginCmd(env envFunc) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env()
			reader := bufio.NewReader(c.in)
			if username == "" {
				fmt.Fprint(c.out, "Username: ")
				line, err := reader.ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read username: %w", err)
				}
				username = strings.TrimSpace(line)
			}
			if username == "" {
				return errors.New("username is required")
			}
			if password == "" {
				fmt.Fprint(c.out, "Password: ")
				p, err := readPassword(c.in, reader)
				fmt.Fprintln(c.out)
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = p
			}
			if password == "" {
				return errors.New("password is required")
			}

			if err := c.session.Login(cmd.Context(), apiclient.Credentials{Username: username, Password: password}); err != nil {
				return err
			}
			user := c.session.State().User
			if c.jsonMode {
				return c.printJSON(user)
			}
			fmt.Fprintf(c.out, "Logged in as %s (%s)\n", user.Username, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password, prompted when omitted")
	return cmd
}

// readPassword reads without echo from a terminal, otherwise one line
func readPassword(in io.Reader, reader *bufio.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		return string(b), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd(env envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session and forget the tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env()
			if c.tokens.Token() != "" || c.tokens.RefreshToken() != "" {
				if err := c.client.Account().Logout(cmd.Context()); err != nil {
					c.logger.Sugar().Debugf("server logout failed: %v", err)
				}
			}
			c.session.Logout()
			fmt.Fprintln(c.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(env envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env()
			if err := c.requireLogin(); err != nil {
				return err
			}
			user, err := c.client.Account().Profile(cmd.Context())
			if err != nil {
				return err
			}
			c.session.UpdateUser(user)
			if c.jsonMode {
				return c.printJSON(user)
			}

			w := c.table()
			fmt.Fprintf(w, "ID\t%s\n", user.ID)
			fmt.Fprintf(w, "Username\t%s\n", user.Username)
			fmt.Fprintf(w, "Name\t%s\n", user.DisplayName)
			fmt.Fprintf(w, "Email\t%s\n", user.Email)
			fmt.Fprintf(w, "Role\t%s\n", user.Role)
			if claims, ok := apiclient.ParseToken(c.tokens.Token()); ok && claims.ExpiresAt > 0 {
				fmt.Fprintf(w, "Token expires\t%s\n", claims.Expiry().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func newWorkspacesCmd(env envFunc) *cobra.Command {
	var (
		all            bool
		page, pageSize int
		search         string
	)
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "List your workspaces, or every workspace with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env()
			if err := c.requireLogin(); err != nil {
				return err
			}

			var list []apiclient.Workspace
			var footer string
			if all {
				res, err := c.client.Admin().ListWorkspaces(cmd.Context(), apiclient.WorkspaceQuery{Page: page, PageSize: pageSize, Search: search})
				if err != nil {
					return err
				}
				if c.jsonMode {
					return c.printJSON(res)
				}
				list = res.Items
				footer = fmt.Sprintf("page %d, %d of %d workspaces", res.Page, len(res.Items), res.Total)
			} else {
				res, err := c.client.Account().Workspaces(cmd.Context())
				if err != nil {
					return err
				}
				if c.jsonMode {
					return c.printJSON(res)
				}
				list = res
			}

			if len(list) == 0 {
				fmt.Fprintln(c.out, "No workspaces found")
				return nil
			}
			w := c.table()
			fmt.Fprintln(w, "SLUG\tNAME\tROLE\tMEMBERS\tACTIVE")
			for _, ws := range list {
				role := ws.Role
				if role == "" {
					role = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", ws.Slug, ws.Name, role, ws.MemberCount, ws.IsActive)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if footer != "" {
				fmt.Fprintln(c.out, footer)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every workspace (admin)")
	cmd.Flags().IntVar(&page, "page", 1, "page number with --all")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "page size with --all")
	cmd.Flags().StringVar(&search, "search", "", "filter by name or slug with --all")
	return cmd
}

func (c *cli) members(slug string, admin bool) *apiclient.MembersAPI {
	if admin {
		return c.client.Admin().Members(slug)
	}
	return c.client.Workspace(slug).Members()
}

func newMembersCmd(env envFunc) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "members <slug>",
		Short: "List the members of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env()
			if err := c.requireLogin(); err != nil {
				return err
			}
			members, err := c.members(args[0], admin).List(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonMode {
				return c.printJSON(members)
			}

			w := c.table()
			fmt.Fprintln(w, "USER ID\tUSERNAME\tNAME\tROLE\tACTIVE\tJOINED")
			for _, m := range members {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
					m.UserID, m.Username, m.DisplayName, m.Role, m.IsActive, m.JoinedAt.Format(time.DateOnly))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "use the platform admin endpoints")
	return cmd
}

func newReplaceOwnerCmd(env envFunc) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "replace-owner <slug> <user-id>",
		Short: "Transfer ownership of a workspace to an active member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env()
			if err := c.requireLogin(); err != nil {
				return err
			}
			res, err := c.members(args[0], admin).ReplaceOwner(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if c.jsonMode {
				return c.printJSON(res)
			}
			fmt.Fprintf(c.out, "Ownership of %s transferred to %s\n", args[0], memberName(res.NewOwner))
			if res.PreviousOwner != nil {
				fmt.Fprintf(c.out, "%s is now %s\n", memberName(res.PreviousOwner), res.PreviousOwner.Role)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "use the platform admin endpoints")
	return cmd
}

func memberName(m *apiclient.Member) string {
	if m == nil {
		return "-"
	}
	if m.Username != "" {
		return m.Username
	}
	return m.UserID
}

func newActivitiesCmd(env envFunc) *cobra.Command {
	var (
		slug   string
		admin  bool
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "Show your activity log, or a workspace's with --slug",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env()
			if err := c.requireLogin(); err != nil {
				return err
			}
			page := apiclient.PageRequest{Limit: limit, Cursor: cursor}

			var (
				res *apiclient.ActivityPage
				err error
			)
			switch {
			case slug != "" && admin:
				res, err = c.client.Admin().WorkspaceActivities(cmd.Context(), slug, page)
			case slug != "":
				res, err = c.client.Workspace(slug).Activities(cmd.Context(), page)
			default:
				res, err = c.client.Account().Activities(cmd.Context(), page)
			}
			if err != nil {
				return err
			}
			if c.jsonMode {
				return c.printJSON(res)
			}

			if len(res.Items) == 0 {
				fmt.Fprintln(c.out, "No activities")
				return nil
			}
			w := c.table()
			fmt.Fprintln(w, "TIME\tTYPE\tMESSAGE")
			for _, a := range res.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\n", a.CreatedAt.Local().Format(time.DateTime), a.Type, a.Message)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if res.NextCursor != "" {
				fmt.Fprintf(c.out, "more: --cursor %s\n", res.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "workspace slug")
	cmd.Flags().BoolVar(&admin, "admin", false, "use the platform admin endpoints with --slug")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size, at most 100")
	cmd.Flags().StringVar(&cursor, "cursor", "", "continue from a previous page")
	return cmd
}

func newHealthCmd(env envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API server is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env()
			if !c.client.HealthCheck(cmd.Context()) {
				return fmt.Errorf("%s is unavailable", c.cfg.BaseURL)
			}
			fmt.Fprintln(c.out, "ok")
			return nil
		},
	}
}

func (c *cli) requireLogin() error {
	if c.tokens.Token() == "" && c.tokens.RefreshToken() == "" {
		return errNotLoggedIn
	}
	return nil
}

var errNotLoggedIn = errors.New("not logged in, run `" + cnst.CommandName + " login`")

func (c *cli) table() *tabwriter.Writer {
	return tabwriter.NewWriter(c.out, 0, 0, 3, ' ', 0)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeError turns client errors into a single line for the terminal
func describeError(err error) string {
	var (
		authErr *apiclient.AuthError
		valErr  *apiclient.ValidationError
		netErr  *apiclient.NetworkError
		apiErr  *apiclient.APIError
	)
	switch {
	case errors.As(err, &authErr):
		if authErr.Code == "session_expired" {
			return "session expired, run `" + cnst.CommandName + " login`"
		}
		return authErr.Error()
	case errors.As(err, &valErr):
		if len(valErr.Fields) == 0 {
			return valErr.Error()
		}
		parts := make([]string, 0, len(valErr.Fields))
		for _, field := range slices.Sorted(maps.Keys(valErr.Fields)) {
			parts = append(parts, field+": "+valErr.Fields[field])
		}
		return valErr.Error() + " (" + strings.Join(parts, ", ") + ")"
	case errors.As(err, &netErr):
		if netErr.Timeout {
			return "request timed out: " + netErr.URL
		}
		return "cannot reach " + netErr.URL
	case errors.As(err, &apiErr):
		return apiErr.Message + " [" + strconv.Itoa(apiErr.Status) + "]"
	}
	return err.Error()
}
