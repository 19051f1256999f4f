package main

import (
	"context"
	"discord-moderator/audit"
	"discord-moderator/bot"
	"discord-moderator/config"
	"discord-moderator/dashboard"
	"discord-moderator/handlers"
	"discord-moderator/model"
	"discord-moderator/utils"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "discord-moderator",
	Short: "AI chat moderation bot for Discord",
	RunE:  runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and moderate messages (default)",
	RunE:  runBot,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print recent audit log entries from the local database",
	RunE:  runAudit,
}

var (
	noDashboard bool

	auditLimit int
	auditType  string
	auditUser  string
	auditStats string
	auditJSON  bool
)

func init() {
	runCmd.Flags().BoolVar(&noDashboard, "no-dashboard", false, "Do not start the web dashboard")
	rootCmd.Flags().BoolVar(&noDashboard, "no-dashboard", false, "Do not start the web dashboard")

	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Number of entries to print")
	auditCmd.Flags().StringVarP(&auditType, "type", "t", "", "Only entries of this type (mod_action, ai_analysis, bot_event, error)")
	auditCmd.Flags().StringVarP(&auditUser, "user", "u", "", "Only entries about this user id")
	auditCmd.Flags().StringVar(&auditStats, "stats", "", "Print aggregate statistics over this window (e.g. 24h, 7d) instead of entries")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print JSON")

	rootCmd.AddCommand(runCmd, auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	b, err := bot.New(cfg)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	defer b.Close()

	handlers.Register(b)

	var dash *dashboard.Server
	switch {
	case noDashboard:
	case cfg.DashboardPassword == "":
		log.Println("Info: DASHBOARD_PASSWORD not set, dashboard disabled")
	default:
		dash, err = dashboard.NewServer(dashboard.Config{
			Addr:      cfg.DashboardAddr,
			Password:  cfg.DashboardPassword,
			JWTSecret: cfg.JWTSecret,
		}, dashboard.Deps{
			Bot:      b,
			Rules:    b.Store,
			Audit:    b.AuditStore,
			Bans:     b.Bans,
			Warnings: b.Ledger,
			Feed:     b.Feed,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := dash.Start(); err != nil {
				log.Printf("[Dashboard] Server stopped: %v", err)
			}
		}()
	}

	if err := b.Run(); err != nil {
		return err
	}

	if dash != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dash.Shutdown(ctx); err != nil {
			log.Printf("[Dashboard] Shutdown error: %v", err)
		}
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	store, err := audit.OpenStore(filepath.Join(config.DataDir(), "audit.db"))
	if err != nil {
		return err
	}
	defer store.Close()
	out := cmd.OutOrStdout()

	if auditStats != "" {
		span, err := utils.ParseDuration(auditStats)
		if err != nil {
			return err
		}
		stats, err := store.Stats(time.Now().Add(-span))
		if err != nil {
			return err
		}
		if auditJSON {
			return printJSON(out, stats)
		}
		fmt.Fprintf(out, "%d entries since %s\n", stats.Total, stats.Since.Format(time.RFC3339))
		for k, n := range stats.ByType {
			fmt.Fprintf(out, "  type %-12s %d\n", k, n)
		}
		for k, n := range stats.ByAction {
			fmt.Fprintf(out, "  action %-10s %d\n", k, n)
		}
		return nil
	}

	entries, err := store.Query(model.AuditQuery{
		Type:   model.AuditType(auditType),
		UserID: auditUser,
		Limit:  auditLimit,
	})
	if err != nil {
		return err
	}
	if auditJSON {
		return printJSON(out, entries)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tACTION\tUSER\tREASON")
	for _, e := range entries {
		user := e.Username
		if user == "" {
			user = e.UserID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Type, e.Action, user, oneLine(e.Reason, 80))
	}
	return w.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return string(r)
}
