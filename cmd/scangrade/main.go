package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"scangrade/internal/directory"
	"scangrade/internal/handler"
	appI18n "scangrade/internal/i18n"
	"scangrade/internal/library"
	"scangrade/internal/model"
	"scangrade/internal/raster"
	"scangrade/internal/report"
	"scangrade/internal/report/sheets"
	"scangrade/internal/report/xlsx"
	"scangrade/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scangrade",
		Short: "Template grading server for scanned worksheets",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `scangrade --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "scangrade.db", "SQLite database path")
	f.String("templates-dir", "templates", "Directory for template JSON files")
	f.String("uploads-dir", "uploads", "Directory for uploaded documents and rendered pages")
	f.String("static-dir", "", "Directory with the static editor UI (empty = API only)")
	f.StringP("lang", "l", "ru", "UI language (en, ru)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.Int64("max-upload-mb", 32, "Maximum upload size in megabytes")
	f.String("poppler-bin", "", "Directory with poppler binaries (empty = $PATH)")
	f.Int("render-dpi", 150, "PDF render resolution")
	f.String("directory-credentials", "", "Service account JSON for the user directory sheet")
	f.String("directory-spreadsheet", "", "Spreadsheet ID of the user directory (empty = local users only)")
	f.String("directory-range", "Users!A:C", "Cell range of the user directory")
	f.Duration("directory-ttl", 5*time.Minute, "User directory cache lifetime")
	f.String("report-backend", "none", "Report sink (none, sheets, xlsx)")
	f.String("report-credentials", "", "Service account JSON for the report spreadsheet")
	f.String("report-spreadsheet", "", "Spreadsheet ID for the report")
	f.String("report-sheet", "Results", "Sheet name inside the report workbook")
	f.String("report-file", "report.xlsx", "Local workbook path for the xlsx backend")
	f.Bool("rewrite-header", false, "Overwrite a mismatched report header row")
	f.String("admin-password", "", "Initial admin password (or set SCANGRADE_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the template inventory as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("templates-dir", "templates", "Directory for template JSON files")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SCANGRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("scangrade")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/scangrade")
	v.AddConfigPath("/etc/scangrade")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lib, err := library.New(v.GetString("templates-dir"), v.GetString("uploads-dir"))
	if err != nil {
		return fmt.Errorf("open template library: %w", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	dir, err := buildDirectory(ctx, v)
	if err != nil {
		return fmt.Errorf("connect user directory: %w", err)
	}

	sink, err := buildSink(ctx, v)
	if err != nil {
		return fmt.Errorf("configure report sink: %w", err)
	}

	ras := &raster.Poppler{
		BinDir: v.GetString("poppler-bin"),
		DPI:    v.GetInt("render-dpi"),
	}

	h := handler.New(lib, db, dir, sink, ras, handler.Config{
		SecureCookies:  v.GetBool("secure-cookies"),
		MaxUploadBytes: v.GetInt64("max-upload-mb") << 20,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	if staticDir := v.GetString("static-dir"); staticDir != "" {
		fs := http.FileServer(http.Dir(staticDir))
		r.Handle("/*", fs)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"templates_dir", v.GetString("templates-dir"),
		"uploads_dir", v.GetString("uploads-dir"),
		"lang", lang,
		"directory", v.GetString("directory-spreadsheet") != "",
		"report_backend", v.GetString("report-backend"),
	)
	return http.ListenAndServe(addr, r)
}

// buildDirectory connects the remote user directory when a spreadsheet is
// configured. Without one, login falls back to the local user table.
func buildDirectory(ctx context.Context, v *viper.Viper) (*directory.Directory, error) {
	spreadsheetID := v.GetString("directory-spreadsheet")
	if spreadsheetID == "" {
		return nil, nil
	}
	fetcher, err := directory.NewSheetsFetcher(ctx,
		v.GetString("directory-credentials"),
		spreadsheetID,
		v.GetString("directory-range"),
	)
	if err != nil {
		return nil, err
	}
	return directory.New(fetcher, v.GetDuration("directory-ttl")), nil
}

func buildSink(ctx context.Context, v *viper.Viper) (report.Sink, error) {
	switch backend := strings.ToLower(v.GetString("report-backend")); backend {
	case "", "none":
		return nil, nil
	case "sheets":
		s, err := sheets.New(ctx,
			v.GetString("report-credentials"),
			v.GetString("report-spreadsheet"),
			v.GetString("report-sheet"),
			v.GetBool("rewrite-header"),
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "xlsx":
		return xlsx.New(
			v.GetString("report-file"),
			v.GetString("report-sheet"),
			v.GetBool("rewrite-header"),
		), nil
	default:
		return nil, fmt.Errorf("unknown report backend %q", backend)
	}
}

// templateSummary is one line of the export inventory.
type templateSummary struct {
	ID        string    `json:"template_id"`
	Name      string    `json:"name,omitempty"`
	Fields    int       `json:"fields"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lib, err := library.New(v.GetString("templates-dir"), os.TempDir())
	if err != nil {
		return fmt.Errorf("open template library: %w", err)
	}

	templates, err := lib.ListTemplates()
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}

	summaries := make([]templateSummary, 0, len(templates))
	for _, tpl := range templates {
		summaries = append(summaries, templateSummary{
			ID:        tpl.ID,
			Name:      tpl.Name,
			Fields:    len(tpl.Fields),
			CreatedBy: tpl.CreatedBy,
			CreatedAt: tpl.CreatedAt,
		})
	}

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or SCANGRADE_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
