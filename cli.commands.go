package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cliOptions holds the flags shared by the commands of one root command.
type cliOptions struct {
	configFile string
	verbose    bool

	listGenre string
	listTitle string

	bookTitle  string
	bookAuthor string
	bookYear   string
	bookGenre  string
	bookRating string

	exportOutput string
}

// NewRootCommand builds the booklist command tree.
func NewRootCommand() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "booklist",
		Short: "booklist - a persistent catalog of books",
		Long: `booklist keeps a catalog of books (title, author, year, genre, rating)
in a single JSON blob stored in memory, redis or boltdb.

Run "booklist serve" to start the HTTP API, or use the other
commands to work on the configured catalog directly.`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", GitTag, GitCommit, BuildTime),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", DefaultConfigFile, "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  opts.runServe,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the books of the catalog",
		Long: `Print the books of the catalog, one per line, in stored order.

Use --genre to keep only the books of a genre and --title to print
the first book with an exact title.`,
		Args: cobra.NoArgs,
		RunE: opts.runList,
	}
	listCmd.Flags().StringVar(&opts.listGenre, "genre", "", "Keep only the books of this genre")
	listCmd.Flags().StringVar(&opts.listTitle, "title", "", "Print the first book with this title")

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE:  opts.runAdd,
	}

	editCmd := &cobra.Command{
		Use:   "edit <uuid>",
		Short: "Edit a book of the catalog",
		Long: `Edit a book of the catalog. Only the given flags replace
the current values, the uuid is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: opts.runEdit,
	}

	for _, cmd := range []*cobra.Command{addCmd, editCmd} {
		cmd.Flags().StringVar(&opts.bookTitle, "title", "", "Book title")
		cmd.Flags().StringVar(&opts.bookAuthor, "author", "", "Book author")
		cmd.Flags().StringVar(&opts.bookYear, "year", "", "Publication year")
		cmd.Flags().StringVar(&opts.bookGenre, "genre", "", "Book genre")
		cmd.Flags().StringVar(&opts.bookRating, "rating", "", "Rating from 0 to 10")
	}

	removeCmd := &cobra.Command{
		Use:   "remove <uuid>",
		Short: "Remove a book from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  opts.runRemove,
	}

	sortCmd := &cobra.Command{
		Use:   "sort <rating|year|genre>",
		Short: "Reorder the stored catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  opts.runSort,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as a JSON array",
		Args:  cobra.NoArgs,
		RunE:  opts.runExport,
	}
	exportCmd.Flags().StringVarP(&opts.exportOutput, "output", "o", ExportFileName, `Output file ("-" for standard output)`)

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the catalog with the books of a JSON file",
		Long: `Replace the catalog with the books of a JSON array file.
Use "-" to read the array from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: opts.runImport,
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(sortCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	return rootCmd
}

func (opts *cliOptions) runServe(cmd *cobra.Command, args []string) error {
	config, err := LoadAndInitConfigs(opts.configFile, GitCommit, GitTag, BuildTime)
	if err != nil {
		return fmt.Errorf("failed to setup app configuration: %w", err)
	}
	app, err := NewApp(config)
	if err != nil {
		return fmt.Errorf("application failed to initialized: %w", err)
	}
	if err = app.Run(); err != nil {
		return fmt.Errorf("application exited. check logs for more details: %w", err)
	}
	return nil
}

// ErrMemoryBackendCLI is returned by catalog commands configured with the
// memory backend, whose content would vanish when the command exits.
var ErrMemoryBackendCLI = errors.New("catalog commands need a persistent storage backend (bolt or redis), memory is configured")

// withCatalog opens the configured catalog, runs fn, then releases the backend.
func (opts *cliOptions) withCatalog(cmd *cobra.Command, fn func(ctx context.Context, store *CatalogStore) error) error {
	config, err := LoadAndInitConfigs(opts.configFile, GitCommit, GitTag, BuildTime)
	if err != nil {
		return fmt.Errorf("failed to setup app configuration: %w", err)
	}
	if config.Storage.Backend == BackendMemory {
		return ErrMemoryBackendCLI
	}

	logger := zap.NewNop()
	if opts.verbose {
		zapConfig := zap.NewDevelopmentConfig()
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zapConfig.OutputPaths = []string{"stderr"}
		if logger, err = zapConfig.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	defer func() { _ = logger.Sync() }()

	backend, err := OpenBackend(logger, config)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fn(ctx, NewCatalogStore(logger, backend.Blobs, config.Catalog, NewIDsHandler()))
}

// bookRecord sets on rec the book flags given on the command line.
func (opts *cliOptions) bookRecord(cmd *cobra.Command, rec BookRecord) BookRecord {
	values := map[string]string{
		"title":  opts.bookTitle,
		"author": opts.bookAuthor,
		"year":   opts.bookYear,
		"genre":  opts.bookGenre,
		"rating": opts.bookRating,
	}
	for name, value := range values {
		if cmd.Flags().Changed(name) {
			rec[name] = value
		}
	}
	return rec
}

func printBooks(w io.Writer, books []Book) {
	for _, book := range books {
		fmt.Fprintln(w, book.String())
	}
}

func (opts *cliOptions) runList(cmd *cobra.Command, args []string) error {
	return opts.withCatalog(cmd, func(ctx context.Context, store *CatalogStore) error {
		out := cmd.OutOrStdout()
		if cmd.Flags().Changed("title") {
			book, err := store.FindByTitle(ctx, opts.listTitle)
			if err != nil {
				return err
			}
			printBooks(out, []Book{book})
			return nil
		}

		var books []Book
		var err error
		if cmd.Flags().Changed("genre") {
			books, err = store.FilterByGenre(ctx, opts.listGenre)
		} else {
			books, err = store.Load(ctx)
		}
		if err != nil {
			return err
		}
		printBooks(out, books)
		return nil
	})
}

func (opts *cliOptions) runAdd(cmd *cobra.Command, args []string) error {
	return opts.withCatalog(cmd, func(ctx context.Context, store *CatalogStore) error {
		book, err := store.Add(ctx, opts.bookRecord(cmd, BookRecord{}))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), book.UUID)
		return nil
	})
}

func (opts *cliOptions) runEdit(cmd *cobra.Command, args []string) error {
	return opts.withCatalog(cmd, func(ctx context.Context, store *CatalogStore) error {
		current, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		book, err := store.Update(ctx, args[0], opts.bookRecord(cmd, current.Record()))
		if err != nil {
			return err
		}
		printBooks(cmd.OutOrStdout(), []Book{book})
		return nil
	})
}

func (opts *cliOptions) runRemove(cmd *cobra.Command, args []string) error {
	return opts.withCatalog(cmd, func(ctx context.Context, store *CatalogStore) error {
		return store.Remove(ctx, args[0])
	})
}

func (opts *cliOptions) runSort(cmd *cobra.Command, args []string) error {
	return opts.withCatalog(cmd, func(ctx context.Context, store *CatalogStore) error {
		sorted, err := store.SortBy(ctx, args[0])
		if err != nil {
			return err
		}
		if !sorted {
			fmt.Fprintf(cmd.ErrOrStderr(), "unknown sort key %q. nothing changed.\n", args[0])
		}
		return nil
	})
}

func (opts *cliOptions) runExport(cmd *cobra.Command, args []string) error {
	return opts.withCatalog(cmd, func(ctx context.Context, store *CatalogStore) error {
		data, err := store.Export(ctx)
		if err != nil {
			return err
		}
		if opts.exportOutput == "-" {
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		return os.WriteFile(opts.exportOutput, data, 0o644)
	})
}

func (opts *cliOptions) runImport(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxRequestBodySize))
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	return opts.withCatalog(cmd, func(ctx context.Context, store *CatalogStore) error {
		report, err := store.Import(ctx, data)
		for _, rejection := range report.Rejected {
			fmt.Fprintf(cmd.ErrOrStderr(), "record %d rejected: %s\n", rejection.Index, rejection.Reason)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d books imported\n", report.Imported)
		return nil
	})
}
