package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"refdash/internal/analytics"
	"refdash/internal/apiclient"
	"refdash/internal/cmdlog"
	"refdash/internal/config"
	"refdash/internal/directory"
	"refdash/internal/export"
	"refdash/internal/jobs"
	"refdash/internal/logging"
	"refdash/internal/metrics"
	"refdash/internal/session"
	"refdash/internal/store/sqlitestore"
	"refdash/internal/theme"
	"refdash/internal/web"
)

const defaultConfigPath = "./refdash.yaml"

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "login":
		cmdLogin()
	case "logout":
		cmdLogout()
	case "users":
		cmdUsers()
	case "referrals":
		cmdReferrals()
	case "search":
		cmdSearch()
	case "export":
		cmdExport()
	case "browse":
		cmdBrowse()
	case "serve":
		cmdServe()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: refdash <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./refdash.yaml")
	fmt.Println("  login       Exchange admin email/password for a session token")
	fmt.Println("  logout      Forget the stored session token")
	fmt.Println("  users       Show one page of the user directory")
	fmt.Println("  referrals   Show one page of a user's referrals")
	fmt.Println("  search      Scan the directory for a wallet address substring")
	fmt.Println("  export      Write users as CSV (one page or -all)")
	fmt.Println("  browse      Interactive directory browser")
	fmt.Println("  serve       Serve the browser over HTTP")
}

// app bundles what every API-calling command needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *sqlitestore.DB
	sess   *session.Session
	client *apiclient.HTTPClient
}

func fail(err error) {
	fmt.Println("error:", err)
	os.Exit(1)
}

// loadConfig reads path, falling back to defaults and env when the file does not exist.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		cfg.ResolveEnv()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

func mustLoadApp(ctx context.Context, cfgPath string) *app {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fail(err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fail(err)
	}
	metrics.StartServer(cfg.Metrics.Addr)
	db, err := sqlitestore.Open(cfg.Storage.DBPath)
	if err != nil {
		fail(err)
	}
	sess := session.New(db, logger)
	if err := sess.Init(ctx); err != nil {
		fail(err)
	}
	if cfg.Credentials.Token != "" {
		if err := sess.Set(ctx, cfg.Credentials.Token); err != nil {
			fail(err)
		}
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		sess:   sess,
		client: apiclient.NewHTTPClient(cfg.API, sess, logger),
	}
}

func (a *app) close() {
	_ = a.logger.Sync()
	_ = a.db.Close()
}

func (a *app) browser() *directory.Browser {
	b := directory.New(a.client, a.cfg.Browse, a.logger)
	b.OnAuthRequired(func() {
		fmt.Println("session expired or missing; run: refdash login")
	})
	a.sess.OnClear(b.SessionCleared)
	if !a.sess.Authenticated() {
		a.logger.Warn("no usable session credential, requests will fail until login")
	}
	return b
}

// run executes f as a counted, logged command and exits on failure.
func (a *app) run(name string, f func() error) {
	err := cmdlog.Run(a.logger, name, f)
	a.close()
	if err != nil {
		fail(err)
	}
}

func cmdInit() {
	out := flag.NewFlagSet("init", flag.ExitOnError)
	path := out.String("path", defaultConfigPath, "path to write config")
	_ = out.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		fail(err)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

func cmdLogin() {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	email := fs.String("email", "", "admin email (default from config or REFDASH_EMAIL)")
	password := fs.String("password", "", "admin password (default from config or REFDASH_PASSWORD)")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := mustLoadApp(ctx, *cfgPath)
	if *email == "" {
		*email = a.cfg.Credentials.Email
	}
	if *password == "" {
		*password = a.cfg.Credentials.Password
	}
	a.run("login", func() error {
		if _, err := a.client.Login(ctx, *email, *password); err != nil {
			return err
		}
		fmt.Println("Logged in as", *email)
		return nil
	})
}

func cmdLogout() {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := mustLoadApp(ctx, *cfgPath)
	a.run("logout", func() error {
		if err := a.sess.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	})
}

func cmdUsers() {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	page := fs.Int("page", 1, "directory page (1-indexed)")
	status := fs.String("status", "all", "reward status filter: all, pending, not_eligible, none")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := mustLoadApp(ctx, *cfgPath)
	a.run("users", func() error {
		b := a.browser()
		if err := b.SetStatusFilter(*status); err != nil {
			return err
		}
		if err := b.ChangePage(ctx, *page); err != nil {
			return err
		}
		v := b.View()
		printView(v)
		s := analytics.Summarize(v.Users())
		fmt.Printf("shown=%d reward=%s referrals=%d completed_both=%d\n", s.Users, s.TotalReward.String(), s.TotalReferrals, s.CompletedBoth)
		return nil
	})
}

func cmdReferrals() {
	fs := flag.NewFlagSet("referrals", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	address := fs.String("address", "", "wallet address of the referrer")
	page := fs.Int("page", 1, "referral page (1-indexed)")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := mustLoadApp(ctx, *cfgPath)
	a.run("referrals", func() error {
		rp, err := a.client.ListReferrals(ctx, *address, *page, a.cfg.Browse.ReferralPageSize)
		if err != nil {
			return err
		}
		fmt.Printf("%s referred %d users (page %d/%d)\n", *address, rp.TotalReferred, rp.CurrentPage, rp.TotalPages)
		if len(rp.Users) == 0 {
			fmt.Println("  no referrals found for this page")
		}
		for _, u := range rp.Users {
			printUser("  ", u)
		}
		printLinks(directory.ReferralLinks(rp.CurrentPage, rp.TotalPages))
		return nil
	})
}

func cmdSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	query := fs.String("q", "", "wallet address substring (case-insensitive)")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := mustLoadApp(ctx, *cfgPath)
	a.run("search", func() error {
		if *query == "" {
			return errors.New("empty query")
		}
		b := a.browser()
		if _, err := b.SearchNow(ctx, *query); err != nil {
			return err
		}
		printView(b.View())
		return nil
	})
}

func cmdExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	all := fs.Bool("all", false, "export every page of the directory")
	page := fs.Int("page", 1, "page to export when -all is not set")
	out := fs.String("out", "users_export.csv", "output file, - for stdout")
	_ = fs.Parse(os.Args[2:])
	ctx := context.Background()
	a := mustLoadApp(ctx, *cfgPath)
	a.run("export", func() error {
		w := os.Stdout
		if *out != "-" {
			f, err := os.Create(*out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if *all {
			res, err := jobs.ExportAllUsers(ctx, a.db, a.client, w, a.cfg.Browse.PageSize, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "exported %d users from %d pages\n", res.Users, res.Pages)
			return nil
		}
		b := a.browser()
		if err := b.ChangePage(ctx, *page); err != nil {
			return err
		}
		return export.WriteUsers(w, b.View().Users())
	})
}

func cmdServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", defaultConfigPath, "config path")
	addr := fs.String("addr", "", "listen address (default from config)")
	_ = fs.Parse(os.Args[2:])
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a := mustLoadApp(ctx, *cfgPath)
	if *addr == "" {
		*addr = a.cfg.Server.Addr
	}
	a.run("serve", func() error {
		b := a.browser()
		if err := b.ChangePage(ctx, 1); err != nil {
			a.logger.Warn("initial page load failed", zap.Error(err))
		}
		r := web.NewRouter(b, a.client, a.db, a.cfg.Browse.PageSize, a.logger)
		return web.ServeAndWait(ctx, *addr, r, a.logger)
	})
}
