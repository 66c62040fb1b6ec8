package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"calllog_viewer/internal/calls"
	"calllog_viewer/internal/config"
	"calllog_viewer/internal/controller"
	"calllog_viewer/internal/logger"
	"calllog_viewer/internal/mango"
	"calllog_viewer/internal/repo"
	"calllog_viewer/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "serve":
		err = serve(ctx, cfg)
	case "print":
		err = printCalls(ctx, cfg, os.Args[2:])
	case "migrate":
		err = migrate(ctx, cfg)
	case "grade":
		err = setGrade(ctx, cfg, os.Args[2:])
	default:
		err = fmt.Errorf("unknown mode: %s (use: serve | print | migrate | grade)", mode)
	}
	if err != nil {
		logger.Error("run failed", zap.String("mode", mode), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func openGrades(ctx context.Context, cfg config.Config) (*pgxpool.Pool, *repo.GradesRepository, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is empty")
	}
	pool, err := repo.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return pool, repo.NewGradesRepository(pool), nil
}

func serve(ctx context.Context, cfg config.Config) error {
	var grades controller.GradeSource
	if cfg.DatabaseURL != "" {
		pool, repository, err := openGrades(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := repository.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		grades = repository
	} else {
		logger.Info("DATABASE_URL is empty, grades disabled")
	}

	api := server.New(mango.NewClient(cfg.MangoBaseURL, cfg.MangoToken, cfg.HTTPTimeout), grades, server.Options{
		PageSize:    cfg.PageSize,
		Location:    cfg.Location,
		SessionTTL:  cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
	})
	defer api.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + 30*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown: start")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("shutdown: done")
		return nil
	})
	return g.Wait()
}

var rangeNames = map[string]calls.DateRange{
	"3d":    calls.RangeThreeDays,
	"week":  calls.RangeWeek,
	"month": calls.RangeMonth,
	"year":  calls.RangeYear,
}

var callTypeNames = map[string]mango.CallType{
	"all": mango.CallTypeAll,
	"out": mango.CallTypeOutbound,
	"in":  mango.CallTypeInbound,
}

// printCalls renders one page to stdout. Args: [range] [call type] [page].
func printCalls(ctx context.Context, cfg config.Config, args []string) error {
	r, t, page := calls.RangeThreeDays, mango.CallTypeAll, 0
	if len(args) > 0 {
		v, ok := rangeNames[strings.ToLower(args[0])]
		if !ok {
			return fmt.Errorf("unknown range %q (use: 3d | week | month | year)", args[0])
		}
		r = v
	}
	if len(args) > 1 {
		v, ok := callTypeNames[strings.ToLower(args[1])]
		if !ok {
			return fmt.Errorf("unknown call type %q (use: all | in | out)", args[1])
		}
		t = v
	}
	if len(args) > 2 {
		n, err := cast.ToIntE(args[2])
		if err != nil || n < 0 {
			return fmt.Errorf("bad page %q", args[2])
		}
		page = n
	}

	c := controller.New(mango.NewClient(cfg.MangoBaseURL, cfg.MangoToken, cfg.HTTPTimeout), controller.Options{
		PageSize: cfg.PageSize,
		Location: cfg.Location,
		Session:  "cli",
	})
	defer c.Close()

	if err := c.SelectDateRange(r); err != nil {
		return err
	}
	if err := c.SetCallType(t); err != nil {
		return err
	}
	for i := 0; i < page; i++ {
		if err := c.Wait(ctx); err != nil {
			return err
		}
		if !c.NextPage() {
			break
		}
	}
	if err := c.Wait(ctx); err != nil {
		return err
	}

	return renderView(os.Stdout, c.Snapshot())
}

func renderView(out io.Writer, v controller.View) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s · %s · Всего: %s · Стр. %d\n", v.CallTypeTitle, v.DateRangeTitle, v.TotalTitle, v.Page+1)
	for _, g := range v.Groups {
		if g.Title != "" {
			fmt.Fprintf(tw, "\n%s\n", g.Title)
		}
		for _, row := range g.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				row.CallTitle, row.TimeOfDay, row.Person.FullName, row.CallDetails,
				row.Source, row.GradeLabel, row.Duration)
		}
	}
	return tw.Flush()
}

func migrate(ctx context.Context, cfg config.Config) error {
	pool, repository, err := openGrades(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := repository.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrate: done")
	return nil
}

// setGrade stores one grade. Without arguments it lists the latest grades.
func setGrade(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return listGrades(ctx, cfg)
	}
	if len(args) != 2 {
		return errors.New("usage: grade <call_id> <good|normal|bad|none>")
	}
	id, err := cast.ToInt64E(args[0])
	if err != nil {
		return fmt.Errorf("bad call id %q: %w", args[0], err)
	}
	g, ok := calls.ParseGrade(args[1])
	if !ok {
		return fmt.Errorf("unknown grade %q", args[1])
	}

	pool, repository, err := openGrades(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := repository.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := repository.UpsertGrades(ctx, []repo.GradeRow{{CallID: id, Grade: g}}); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	logger.Info("grade saved", zap.Int64("call_id", id), zap.String("grade", string(g)))
	return nil
}

func listGrades(ctx context.Context, cfg config.Config) error {
	pool, repository, err := openGrades(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	rows, err := repository.ListGrades(ctx, 100)
	if err != nil {
		return fmt.Errorf("list grades: %w", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.CallID, r.Grade.Label(), r.UpdatedAt.In(cfg.Location).Format("02.01.06 15:04"))
	}
	return tw.Flush()
}
