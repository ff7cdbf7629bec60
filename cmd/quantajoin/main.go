package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dshills/QuantaJoin/internal/config"
	"github.com/dshills/QuantaJoin/internal/executor"
	"github.com/dshills/QuantaJoin/internal/join"
	"github.com/dshills/QuantaJoin/internal/log"
	"github.com/dshills/QuantaJoin/internal/types"
)

var (
	version = "0.1.0"
	commit  = "unknown"
)

// stringList collects repeatable flag values.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		leftPath    = flag.String("left", "", "Left input CSV file (header row required)")
		rightPath   = flag.String("right", "", "Right input CSV file (header row required)")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		tempDir     = flag.String("temp-dir", "", "Directory for sort spill files")
		memoryLimit = flag.Int64("memory-limit", -1, "Sort memory budget in bytes")
	)

	var predicates stringList
	flag.Var(&predicates, "on", "Join predicate \"leftCol OP rightCol\" (repeatable, OP one of < <= > >=)")

	var orderBy stringList
	flag.Var(&orderBy, "order-by", "Output ordering \"column [asc|desc]\" (repeatable)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("QuantaJoin v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Load configuration
	var cfg *config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config file: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Override config with command-line flags
	cfg.LoadFromFlags(*logLevel, *tempDir, *memoryLimit)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log.Configure(log.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger := log.Default()

	if *leftPath == "" || *rightPath == "" {
		fmt.Fprintln(os.Stderr, "Both -left and -right input files are required")
		flag.Usage()
		os.Exit(1)
	}

	joinPredicates, err := parsePredicates(predicates)
	if err != nil {
		logger.Error("Invalid join predicate", "error", err)
		os.Exit(1)
	}
	if len(joinPredicates) == 0 {
		fmt.Fprintln(os.Stderr, "At least one -on predicate is required")
		os.Exit(1)
	}

	sortKeys, err := parseSortKeys(orderBy)
	if err != nil {
		logger.Error("Invalid order-by key", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting join",
		"version", version,
		"left", *leftPath,
		"right", *rightPath,
		"predicates", predicates.String())

	start := time.Now()

	left, err := executor.NewCSVScanOperator(*leftPath)
	if err != nil {
		logger.Error("Failed to load left input", "error", err)
		os.Exit(1)
	}
	right, err := executor.NewCSVScanOperator(*rightPath)
	if err != nil {
		logger.Error("Failed to load right input", "error", err)
		os.Exit(1)
	}

	root := executor.NewJoinOperator(left, right, joinPredicates)
	if len(sortKeys) > 0 {
		root = executor.NewSortOperator(root, sortKeys)
	}

	stats := &executor.ExecStats{}
	ctx := &executor.ExecContext{
		Logger:      logger,
		MemoryLimit: cfg.Executor.MemoryLimit,
		TempDir:     cfg.GetTempDir(),
		Stats:       stats,
	}

	rowCount, err := runJoin(root, ctx, os.Stdout)
	if err != nil {
		logger.Error("Join failed", "error", err)
		os.Exit(1)
	}

	log.Latency(start, "inequality join")

	if cfg.Executor.EnableStatistics {
		logger.Info("Join statistics",
			"rows_read", stats.RowsRead,
			"rows_returned", stats.RowsReturned,
			"spilled_runs", stats.SpilledRuns,
			"spilled_bytes", stats.SpilledBytes)
	}

	logger.Info("Join complete", "rows", rowCount)
}

// runJoin drains the operator tree into CSV on w, header first.
func runJoin(root executor.Operator, ctx *executor.ExecContext, w io.Writer) (int64, error) {
	if err := root.Open(ctx); err != nil {
		return 0, err
	}
	defer root.Close()

	out := csv.NewWriter(w)
	defer out.Flush()

	schema := root.Schema()
	header := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		header[i] = col.Name
	}
	if err := out.Write(header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	var count int64
	record := make([]string, len(schema.Columns))
	for {
		row, err := root.Next()
		if err != nil {
			return count, err
		}
		if row == nil {
			break
		}

		for i, v := range row.Values {
			record[i] = csvField(v)
		}
		if err := out.Write(record); err != nil {
			return count, fmt.Errorf("failed to write row: %w", err)
		}
		count++
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return count, fmt.Errorf("failed to flush output: %w", err)
	}

	return count, nil
}

// csvField renders a value for CSV output. NULL becomes the empty
// field, mirroring how the scanner reads it.
func csvField(v types.Value) string {
	if v.Null {
		return ""
	}
	return v.String()
}

// parsePredicates parses repeated -on flags of the form
// "leftCol OP rightCol".
func parsePredicates(specs []string) ([]executor.JoinPredicate, error) {
	predicates := make([]executor.JoinPredicate, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Fields(spec)
		if len(parts) != 3 {
			return nil, fmt.Errorf("predicate %q must be \"leftCol OP rightCol\"", spec)
		}
		op, err := join.ParseCmpOp(parts[1])
		if err != nil {
			return nil, fmt.Errorf("predicate %q: %w", spec, err)
		}
		predicates = append(predicates, executor.JoinPredicate{
			LeftColumn:  parts[0],
			RightColumn: parts[2],
			Op:          op,
		})
	}
	return predicates, nil
}

// parseSortKeys parses repeated -order-by flags of the form
// "column [asc|desc]".
func parseSortKeys(specs []string) ([]executor.SortKey, error) {
	keys := make([]executor.SortKey, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Fields(spec)
		key := executor.SortKey{Order: join.Ascending}
		switch len(parts) {
		case 1:
			key.Column = parts[0]
		case 2:
			key.Column = parts[0]
			switch strings.ToLower(parts[1]) {
			case "asc":
				key.Order = join.Ascending
			case "desc":
				key.Order = join.Descending
			default:
				return nil, fmt.Errorf("sort key %q: direction must be asc or desc", spec)
			}
		default:
			return nil, fmt.Errorf("sort key %q must be \"column [asc|desc]\"", spec)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
