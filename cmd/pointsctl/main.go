// pointsctl is a terminal client for the sustainability dashboard API.
//
// Usage:
//
//	pointsctl [-env FILE] kpi                  Print the KPI summary
//	pointsctl [-env FILE] usage                Print monthly usage
//	pointsctl [-env FILE] co2                  Print the CO2 trend
//	pointsctl [-env FILE] products             List redeemable products
//	pointsctl [-env FILE] balance              Print the points balance
//	pointsctl [-env FILE] history [-limit N]   Print the points history
//	pointsctl [-env FILE] redeem -product ID   Redeem a product
//	pointsctl [-env FILE] watch                Follow KPI and balance until interrupted
//
// Configuration comes from the environment (see internal/config).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/internal/app"
	"github.com/unkn0wn-root/swrcache/internal/config"
	"github.com/unkn0wn-root/swrcache/model"
	"github.com/unkn0wn-root/swrcache/mutation"
	"github.com/unkn0wn-root/swrcache/resource"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "pointsctl: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: pointsctl [-env FILE] <command> [flags]

Commands:
  kpi                  Print the KPI summary
  usage                Print monthly usage
  co2                  Print the CO2 trend
  products             List redeemable products
  balance              Print the points balance
  history [-limit N]   Print the points history
  redeem -product ID   Redeem a product
  watch                Follow KPI and balance until interrupted`)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("pointsctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	envFile := global.String("env", "", "dotenv file to load")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		return errUsage
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(sctx)
	}()

	cat := a.Catalog
	switch cmd {
	case "kpi":
		return printOnce(ctx, out, cat.KPISummary())
	case "usage":
		return printOnce(ctx, out, cat.MonthlyUsage())
	case "co2":
		return printOnce(ctx, out, cat.CO2Trend())
	case "products":
		return printOnce(ctx, out, cat.Products())
	case "balance":
		return printOnce(ctx, out, cat.PointsBalance(cfg.UserID))
	case "history":
		fs := flag.NewFlagSet("history", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		limit := fs.Int("limit", 0, "number of records")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		return printOnce(ctx, out, cat.PointsHistory(*limit))
	case "redeem":
		fs := flag.NewFlagSet("redeem", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		productID := fs.String("product", "", "product id")
		if err := fs.Parse(rest); err != nil || *productID == "" {
			return errUsage
		}
		return redeem(ctx, out, a, *productID)
	case "watch":
		return watch(ctx, out, a, cfg)
	default:
		return errUsage
	}
}

func printOnce[T any](ctx context.Context, out io.Writer, r *resource.Resource[T]) error {
	snap, err := r.Get(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, snap.Value)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func redeem(ctx context.Context, out io.Writer, a *app.App, productID string) error {
	products, err := a.Catalog.Products().Get(ctx)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	var product *model.Product
	for i := range products.Value {
		if products.Value[i].ID == productID {
			product = &products.Value[i]
			break
		}
	}
	if product == nil {
		return fmt.Errorf("product %q not found", productID)
	}
	// a confirmed balance lets the redeemer refuse without a round trip
	if _, err := a.Catalog.PointsBalance("").Get(ctx); err != nil {
		return fmt.Errorf("load balance: %w", err)
	}

	o, err := a.Redeemer.Redeem(ctx, *product)
	switch {
	case errors.Is(err, mutation.ErrInsufficientFunds):
		return fmt.Errorf("not enough points for %s", productID)
	case errors.Is(err, mutation.ErrOutOfStock), errors.Is(err, mutation.ErrProductInactive):
		return fmt.Errorf("%s cannot be redeemed: %w", productID, err)
	case err != nil:
		return fmt.Errorf("redeem %s (%s): %w", productID, o.Phase, err)
	}
	return writeJSON(out, o.Result)
}

func watch(ctx context.Context, out io.Writer, a *app.App, cfg *config.Config) error {
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(a), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger("metrics").Error("metrics server failed", swrcache.Fields{"err": err})
			}
		}()
		defer srv.Close()
	}

	lines := make(chan string, 16)
	emit := func(s string) {
		select {
		case lines <- s:
		default: // slow terminal; drop
		}
	}

	kpi := a.Catalog.KPISummary().Watch(func(s resource.Snapshot[model.KPISummary]) {
		if s.HasValue && !s.IsLoading {
			emit(fmt.Sprintf("kpi users=%d active=%d co2=%.1fkg", s.Value.TotalUsers, s.Value.ActiveUsers, s.Value.TotalCO2ReductionKg))
		}
	})
	defer kpi.Close()
	bal := a.Catalog.PointsBalance(cfg.UserID).Watch(func(s resource.Snapshot[model.Balance]) {
		switch {
		case s.Err != nil:
			emit("balance error: " + s.Err.Error())
		case s.HasValue && !s.IsLoading:
			emit(fmt.Sprintf("balance %d", s.Value.CurrentBalance))
		}
	})
	defer bal.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case l := <-lines:
			fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), l)
		}
	}
}

func metricsMux(a *app.App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.MetricsHandler())
	return mux
}
