package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sjsage522/producttracker/internal/browser"
	"sjsage522/producttracker/internal/extractor"
	"sjsage522/producttracker/internal/gateway"
	"sjsage522/producttracker/internal/normalize"
	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/internal/scheduler"
	"sjsage522/producttracker/internal/store"
	"sjsage522/producttracker/internal/transfer"
	"sjsage522/producttracker/logger"
	"sjsage522/producttracker/services/worker"
)

// listTitleWidth is the title column width of the table output
const listTitleWidth = 60

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// serveCmd exposes the message contract over HTTP and runs the retention worker
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the message API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			return withServices(ctx, func(s *Services) error {
				go worker.NewCleanupWorker(s.Products, s.Publisher, cfg.CleanupInterval).Start(ctx)

				srv := &http.Server{
					Addr:              cfg.ListenAddr,
					Handler:           s.Gateway.Router(),
					ReadHeaderTimeout: 10 * time.Second,
				}
				serveErr := make(chan error, 1)
				go func() {
					serveErr <- srv.ListenAndServe()
				}()
				logger.Default.Info().Str("addr", cfg.ListenAddr).Msg("Serving message API")

				select {
				case <-ctx.Done():
					logger.Default.Info().Msg("Shutting down gracefully...")
				case err := <-serveErr:
					if !errors.Is(err, http.ErrServerClosed) {
						return err
					}
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
}

// watchCmd attaches to a running Chrome and tracks products in its open tabs
func watchCmd() *cobra.Command {
	var match string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Track products in the tabs of a running Chrome",
		Long: `Attach to Chrome started with --remote-debugging-port and extract products
from every open tab as you browse. Set CHROME_DEBUG_URL to point at it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			return withServices(ctx, func(s *Services) error {
				b, err := browser.Attach(ctx, cfg.ChromeDebugURL)
				if err != nil {
					return err
				}
				defer b.Close()

				tabs, err := b.Tabs(ctx, match)
				if err != nil {
					return err
				}
				if len(tabs) == 0 {
					return fmt.Errorf("no open tabs match %q", match)
				}

				go worker.NewCleanupWorker(s.Products, s.Publisher, cfg.CleanupInterval).Start(ctx)

				chain := extractor.NewDefaultChain()
				opts := scheduler.Options{SettleDelay: cfg.SettleDelay, PollInterval: cfg.PollInterval}

				var wg sync.WaitGroup
				for _, tab := range tabs {
					tab := tab
					w := scheduler.New(tab, chain, s.Gateway, opts)
					wg.Add(1)
					go func() {
						defer wg.Done()
						if err := w.Run(ctx); err != nil && ctx.Err() == nil {
							logger.ForScheduler().Warn().Err(err).Str("tab", tab.ID()).Msg("Watcher stopped")
						}
					}()
					logger.Default.Info().Str("tab", tab.ID()).Str("title", tab.Title()).Msg("Watching tab")
				}
				wg.Wait()
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&match, "match", "", "only watch tabs whose URL contains this text")
	return cmd
}

// extractCmd runs the extractor chain over a saved HTML page
func extractCmd() *cobra.Command {
	var (
		file    string
		pageURL string
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a product from a saved HTML page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			doc, err := page.FromBytes(pageURL, data, "")
			if err != nil {
				return err
			}

			d := extractor.NewDefaultChain().Resolve(doc)
			if d == nil {
				return errors.New("no product found")
			}
			d.Image = normalize.Image(d.Image, doc)
			if d.URL == "" {
				d.URL = pageURL
			}
			if !save {
				return printJSON(cmd.OutOrStdout(), d)
			}

			return withServices(cmd.Context(), func(s *Services) error {
				result, err := s.Gateway.SaveProduct(cmd.Context(), *d)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "HTML file to read, - for stdin")
	cmd.Flags().StringVarP(&pageURL, "url", "u", "", "URL the page was loaded from")
	cmd.Flags().BoolVar(&save, "save", false, "save the product instead of printing it")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// listCmd prints saved products
func listCmd() *cobra.Command {
	var (
		filter product.Filter
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved products, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(s *Services) error {
				resp, err := s.Gateway.Handle(cmd.Context(), gateway.Request{Type: gateway.TypeQueryProducts, Filter: &filter})
				if err != nil {
					return err
				}
				records := resp.([]product.Record)
				if limit > 0 && len(records) > limit {
					records = records[:limit]
				}
				return printRecords(cmd.OutOrStdout(), records, asJSON)
			})
		},
	}

	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "only products whose title or description contains this text")
	cmd.Flags().StringVarP(&filter.Site, "site", "s", "", "only products from this site")
	cmd.Flags().StringVar((*string)(&filter.SortBy), "sort", string(product.SortDateDesc),
		"date-desc, date-asc, price-desc, price-asc, name-asc or name-desc")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of products (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// searchCmd prints products matching a query
func searchCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search saved products by title and description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(s *Services) error {
				resp, err := s.Gateway.Handle(cmd.Context(), gateway.Request{Type: gateway.TypeSearchProducts, Query: args[0]})
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), resp.([]product.Record), asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// sitesCmd prints the sites products were saved from
func sitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List the sites products were saved from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(s *Services) error {
				resp, err := s.Gateway.Handle(cmd.Context(), gateway.Request{Type: gateway.TypeGetUniqueSites})
				if err != nil {
					return err
				}
				for _, site := range resp.([]string) {
					fmt.Fprintln(cmd.OutOrStdout(), site)
				}
				return nil
			})
		},
	}
}

// deleteCmd removes products by id
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete products by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := gateway.Request{Type: gateway.TypeDeleteProducts, ProductIDs: args}
			if len(args) == 1 {
				req = gateway.Request{Type: gateway.TypeDeleteProduct, ProductID: args[0]}
			}
			return withServices(cmd.Context(), func(s *Services) error {
				if _, err := s.Gateway.Handle(cmd.Context(), req); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d product(s)\n", len(args))
				return nil
			})
		},
	}
}

// clearCmd empties the collection
func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			return withServices(cmd.Context(), func(s *Services) error {
				if _, err := s.Gateway.Handle(cmd.Context(), gateway.Request{Type: gateway.TypeClearAll}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All products cleared")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

// cleanupCmd runs one retention sweep
func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove products older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(s *Services) error {
				resp, err := s.Gateway.Handle(cmd.Context(), gateway.Request{Type: gateway.TypeCleanup})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d product(s)\n", resp.(store.CleanupResult).Removed)
				return nil
			})
		},
	}
}

// usageCmd reports storage usage
func usageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(s *Services) error {
				resp, err := s.Gateway.Handle(cmd.Context(), gateway.Request{Type: gateway.TypeGetStorageUsage})
				if err != nil {
					return err
				}
				usage := resp.(store.Usage)
				fmt.Fprintf(cmd.OutOrStdout(), "%d product(s), %s of %s\n",
					usage.ProductCount, usage.FormattedSize, store.FormatBytes(usage.Quota))
				return nil
			})
		},
	}
}

// settingsCmd shows or changes the settings
func settingsCmd() *cobra.Command {
	var (
		retention int
		tracking  bool
		debug     bool
		enable    []string
		disable   []string
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd.Context(), func(s *Services) error {
				ctx := cmd.Context()
				flags := cmd.Flags()

				var patch store.SettingsPatch
				changed := false
				if flags.Changed("retention") {
					patch.RetentionDays = &retention
					changed = true
				}
				if flags.Changed("tracking") {
					patch.TrackingEnabled = &tracking
					changed = true
				}
				if flags.Changed("debug") {
					patch.DebugMode = &debug
					changed = true
				}
				if len(enable) > 0 || len(disable) > 0 {
					current, err := s.Settings.Get(ctx)
					if err != nil {
						return err
					}
					sites := make(map[string]bool, len(current.EnabledSites))
					for site, on := range current.EnabledSites {
						sites[site] = on
					}
					if err := toggleSites(sites, enable, true); err != nil {
						return err
					}
					if err := toggleSites(sites, disable, false); err != nil {
						return err
					}
					patch.EnabledSites = sites
					changed = true
				}

				req := gateway.Request{Type: gateway.TypeGetSettings}
				if changed {
					req = gateway.Request{Type: gateway.TypeUpdateSettings, Settings: &patch}
				}
				resp, err := s.Gateway.Handle(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}

	cmd.Flags().IntVar(&retention, "retention", store.DefaultRetentionDays, "days to keep products (0 = forever)")
	cmd.Flags().BoolVar(&tracking, "tracking", true, "enable or disable tracking")
	cmd.Flags().BoolVar(&debug, "debug", false, "log duplicate checks")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "sites to enable ("+strings.Join(toggleableSites(), ", ")+")")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "sites to disable")
	return cmd
}

func toggleableSites() []string {
	return append(extractor.SupportedSites(), store.OtherSite)
}

func toggleSites(sites map[string]bool, names []string, on bool) error {
	valid := toggleableSites()
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		known := false
		for _, v := range valid {
			if v == name {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown site %q (expected one of %s)", name, strings.Join(valid, ", "))
		}
		sites[name] = on
	}
	return nil
}

// exportCmd writes the collection as JSON or CSV
func exportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export saved products as JSON or CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q", format)
			}

			return withServices(cmd.Context(), func(s *Services) error {
				resp, err := s.Gateway.Handle(cmd.Context(), gateway.Request{Type: gateway.TypeGetProducts})
				if err != nil {
					return err
				}
				records := resp.([]product.Record)

				w := cmd.OutOrStdout()
				if output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}

				if format == "csv" {
					err = transfer.WriteCSV(w, records)
				} else {
					err = transfer.WriteJSON(w, records, time.Now())
				}
				if err != nil {
					return err
				}
				if output != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d product(s) to %s\n", len(records), output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

// importCmd merges products from a JSON or CSV export
func importCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import products from a JSON or CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = "json"
				if strings.EqualFold(filepath.Ext(args[0]), ".csv") {
					format = "csv"
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var parsed transfer.Result
			switch strings.ToLower(format) {
			case "csv":
				parsed, err = transfer.ReadCSV(f)
			case "json":
				parsed, err = transfer.ReadJSON(f)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return err
			}
			for _, warning := range parsed.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			if len(parsed.Products) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No valid products to import")
				return nil
			}

			return withServices(cmd.Context(), func(s *Services) error {
				resp, err := s.Gateway.Handle(cmd.Context(), gateway.Request{Type: gateway.TypeImportProducts, Products: parsed.Products})
				if err != nil {
					return err
				}
				result := resp.(store.ImportResult)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d product(s), skipped %d existing, %d warning(s)\n",
					result.Imported, result.Skipped, len(parsed.Warnings))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "json or csv (default from the file extension)")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecords(w io.Writer, records []product.Record, asJSON bool) error {
	if asJSON {
		return printJSON(w, records)
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No products")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSAVED\tSITE\tPRICE\tTITLE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			time.UnixMilli(r.SavedAt).Local().Format("2006-01-02 15:04"),
			r.Site,
			r.Price,
			normalize.Truncate(r.Title, listTitleWidth),
		)
	}
	return tw.Flush()
}
