package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/conorfennell/flashdeck/internal/config"
	"github.com/conorfennell/flashdeck/internal/digest"
	"github.com/conorfennell/flashdeck/internal/flashcards"
	"github.com/conorfennell/flashdeck/internal/importer"
	"github.com/conorfennell/flashdeck/internal/storage"
	"github.com/conorfennell/flashdeck/internal/web"
)

const usage = `Usage:
  flashdeck serve [flags]
  flashdeck import --deck ID --user EMAIL [flags] SOURCE

Run "flashdeck <command> --help" for the flags of a command.
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "serve":
		err = serve(ctx, os.Args[2:])
	case "import":
		err = runImport(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("flashdeck failed", "error", err)
		os.Exit(1)
	}
}

// setup parses args, installs the logger and returns an open service.
func setup(ctx context.Context, flags *pflag.FlagSet, args []string) (*config.Config, *storage.Handle, *flashcards.Service, error) {
	if err := flags.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(slog.New(cfg.Log.Handler(os.Stderr)))

	handle := storage.NewHandle(cfg.DB.Driver, cfg.DB.DSN)
	db, err := handle.Get(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	svc := flashcards.NewService(db, flashcards.WithClock(utcNow))
	return cfg, handle, svc, nil
}

// utcNow keeps review dates in UTC calendar days whatever the host zone.
func utcNow() time.Time {
	return time.Now().UTC()
}

func serve(ctx context.Context, args []string) error {
	cfg, handle, svc, err := setup(ctx, config.Flags("serve"), args)
	if err != nil {
		return err
	}
	defer handle.Close()

	if cfg.Digest.Enabled {
		d := digest.New(svc, digest.LogNotifier{})
		if err := d.Start(ctx, cfg.Digest.Interval); err != nil {
			return err
		}
		defer d.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           web.NewServer(svc, cfg.HTTP.UserHeader),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", cfg.HTTP.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(ctx context.Context, args []string) error {
	flags := config.Flags("import")
	deckID := flags.String("deck", "", "Deck to import into")
	user := flags.String("user", "", "Owner of the deck")

	cfg, handle, svc, err := setup(ctx, flags, args)
	if err != nil {
		return err
	}
	defer handle.Close()

	if *deckID == "" || *user == "" || flags.NArg() != 1 {
		return fmt.Errorf("import needs --deck, --user and exactly one SOURCE")
	}

	path, err := importer.Resolve(ctx, flags.Arg(0), cfg.Import.CacheDir)
	if err != nil {
		return err
	}
	inputs, loadErr := importer.Load(path)
	if loadErr != nil && len(inputs) == 0 {
		return loadErr
	}
	if loadErr != nil {
		slog.Warn("Some files could not be read", "error", loadErr)
	}

	result, err := svc.ImportCards(ctx, *user, *deckID, inputs)
	if err != nil {
		return err
	}
	fmt.Printf("Processed %d cards: %d created, %d skipped, %d errors.\n",
		result.Processed, result.Created, result.Skipped, len(result.Errors))
	if len(result.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range result.Errors {
			fmt.Printf("- %s\n", e)
		}
	}
	return nil
}
