package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/baselume-ledger/internal/auth"
	"github.com/baselume-ledger/internal/config"
	"github.com/baselume-ledger/internal/domain"
)

var (
	apiURL     string
	apiToken   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "ledgerctl",
	Short:         "Operate a baselume score ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("LEDGER_API", "http://localhost:8080"), "Ledger server base URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("LEDGER_TOKEN"), "Bearer token for write endpoints")

	rootCmd.AddCommand(dayCmd, playerCmd, topCmd, statsCmd, mintCmd, championsCmd, tokenCmd, submitCmd, linkMinterCmd, issueTokenCmd)

	topCmd.Flags().Int("limit", 10, "Number of players to show")
	topCmd.Flags().Int64("day", -1, "Show the ranking of one day instead of the lifetime ranking")
	championsCmd.Flags().Uint64("from", 0, "First day")
	championsCmd.Flags().Uint64("to", 0, "Last day (defaults to today)")

	issueTokenCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Server configuration holding the JWT secret")
	issueTokenCmd.Flags().String("role", auth.RoleSubmitter, "Token role (owner or submitter)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// printData pretty-prints an API payload
func printData(w io.Writer, data json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// get runs a read request and prints the result
func get(cmd *cobra.Command, path string) error {
	data, err := newClient(apiURL, apiToken).do(cmd.Context(), http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return printData(cmd.OutOrStdout(), data)
}

func post(cmd *cobra.Command, path string, body interface{}) error {
	data, err := newClient(apiURL, apiToken).do(cmd.Context(), http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return printData(cmd.OutOrStdout(), data)
}

func parseDay(s string) (uint64, error) {
	day, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q", s)
	}
	return day, nil
}

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Show the current day index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return get(cmd, "/day")
	},
}

var playerCmd = &cobra.Command{
	Use:   "player ADDRESS",
	Short: "Show a player's scores and tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := domain.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return get(cmd, "/players/"+addr.String())
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the leaderboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		day, _ := cmd.Flags().GetInt64("day")
		q := url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
		if day >= 0 {
			return get(cmd, fmt.Sprintf("/days/%d/top?%s", day, q))
		}
		return get(cmd, "/leaderboard/top?"+q)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats DAY",
	Short: "Show the statistics of a day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDay(args[0])
		if err != nil {
			return err
		}
		return get(cmd, fmt.Sprintf("/days/%d/stats", day))
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint DAY",
	Short: "Mint the champion token of a finished day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDay(args[0])
		if err != nil {
			return err
		}
		return post(cmd, fmt.Sprintf("/days/%d/mint", day), nil)
	},
}

var championsCmd = &cobra.Command{
	Use:   "champions",
	Short: "List minted champions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if cmd.Flags().Changed("from") {
			from, _ := cmd.Flags().GetUint64("from")
			q.Set("from", strconv.FormatUint(from, 10))
		}
		if cmd.Flags().Changed("to") {
			to, _ := cmd.Flags().GetUint64("to")
			q.Set("to", strconv.FormatUint(to, 10))
		}
		path := "/champions"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		return get(cmd, path)
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token ID",
	Short: "Show a champion token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid token id %q", args[0])
		}
		return get(cmd, fmt.Sprintf("/tokens/%d", id))
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit PLAYER SCORE GAME_ID",
	Short: "Record a score (requires a submitter token)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid score %q", args[1])
		}
		return post(cmd, "/scores", domain.ScoreSubmission{
			Player: args[0],
			Score:  score,
			GameID: args[2],
		})
	},
}

var linkMinterCmd = &cobra.Command{
	Use:   "link-minter ADDRESS",
	Short: "Link the champion minter (requires an owner token)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return post(cmd, "/admin/minter", map[string]string{"minter": args[0]})
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token ADDRESS",
	Short: "Sign an API token with the server's secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		if role != auth.RoleOwner && role != auth.RoleSubmitter {
			return fmt.Errorf("unknown role %q", role)
		}
		addr, err := domain.ParseAddress(args[0])
		if err != nil {
			return err
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		token, err := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL).Issue(addr, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
