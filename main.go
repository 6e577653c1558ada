package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/briangreenhill/tourguide/cache"
	"github.com/briangreenhill/tourguide/internal/config"
	"github.com/briangreenhill/tourguide/ranking"
)

const version = "v0.1.0"

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	if err := runCLI(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("tourguide")
	}
}

func runCLI(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(stdout)
		return nil
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage(stdout)
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, "TourGuide "+version)
	case "rank":
		return runRank(args[1:], stdin, stdout)
	case "cache":
		return runCache(args[1:], stdout)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tourguide <command> [options]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  rank FILE            Rank saved routes read from a JSON file (- for stdin)")
	fmt.Fprintln(w, "    --sort FIELD       created_date, upvotes, views, sites or cost (default upvotes)")
	fmt.Fprintln(w, "    --order DIR        asc or desc (default desc)")
	fmt.Fprintln(w, "    --json             Print JSON instead of a table")
	fmt.Fprintln(w, "  cache stats          Show cache usage")
	fmt.Fprintln(w, "  cache clear          Remove every cached entry")
	fmt.Fprintln(w, "  version              Show version")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  CACHE_BACKEND        file, badger or memory (default file)")
	fmt.Fprintln(w, "  CACHE_DIR            Cache directory (default ~/.tourguide_cache)")
}

type rankedRoute struct {
	ranking.RouteSummary
	Statistics ranking.Statistics `json:"statistics"`
}

func runRank(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("rank", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sortBy := fs.String("sort", string(ranking.FieldUpvotes), "field to sort by")
	order := fs.String("order", string(ranking.Desc), "asc or desc")
	asJSON := fs.Bool("json", false, "print JSON")

	// flags may come before or after the file
	var files []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return fmt.Errorf("rank: %w", err)
		}
		if fs.NArg() == 0 {
			break
		}
		files = append(files, fs.Arg(0))
		rest = fs.Args()[1:]
	}
	if len(files) != 1 {
		return fmt.Errorf("rank: expected exactly one FILE, got %d", len(files))
	}

	routes, err := readRoutes(files[0], stdin)
	if err != nil {
		return err
	}

	field, dir := ranking.ParseField(*sortBy), ranking.ParseDirection(*order)
	if _, ok := ranking.DefaultRegistry.Get(field); !ok {
		log.Warn().Str("sort", string(field)).Strs("fields", fieldNames()).Msg("unknown sort field, keeping input order")
	}
	ranked := ranking.Rank(routes, field, dir)

	out := make([]rankedRoute, len(ranked))
	for i := range ranked {
		out[i] = rankedRoute{RouteSummary: ranked[i], Statistics: ranking.CalculateStatistics(&ranked[i])}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tUPVOTES\tVIEWS\tSITES\tDURATION\tCOST")
	for i, r := range out {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			i+1, r.ID, r.Name, r.Upvotes, r.Views, r.Statistics.Sites, r.Statistics.Duration, r.Statistics.Cost)
	}
	return tw.Flush()
}

func fieldNames() []string {
	fields := ranking.DefaultRegistry.List()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return names
}

func readRoutes(path string, stdin io.Reader) ([]ranking.RouteSummary, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open routes: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("close routes file")
			}
		}()
		r = f
	}

	var routes []ranking.RouteSummary
	if err := json.NewDecoder(r).Decode(&routes); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}
	return routes, nil
}

func runCache(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tourguide cache stats|clear")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend, closeCache, err := cache.OpenBackend(cfg.Cache.Backend, cfg.Cache.Dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Warn().Err(err).Msg("close cache")
		}
	}()
	store := cache.NewStore(backend)
	store.Initialize(cache.Config{DefaultTTL: cfg.Cache.DefaultTTL, MaxSize: cfg.Cache.MaxSize})

	switch args[0] {
	case "stats":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(store.Stats())
	case "clear":
		if !store.ClearCache() {
			return fmt.Errorf("cache clear failed")
		}
		fmt.Fprintln(stdout, "cache cleared")
		return nil
	default:
		return fmt.Errorf("unknown cache command: %s", args[0])
	}
}
