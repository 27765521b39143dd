package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // zone database for hosts without /usr/share/zoneinfo

	"github.com/Sivendra-Kumar/drec-origin/internal/aggregate"
	"github.com/Sivendra-Kumar/drec-origin/internal/db"
	"github.com/Sivendra-Kumar/drec-origin/internal/logging"
	"github.com/Sivendra-Kumar/drec-origin/internal/metrics"
	"github.com/Sivendra-Kumar/drec-origin/internal/reconcile"
	"github.com/Sivendra-Kumar/drec-origin/internal/refdata"
	"github.com/Sivendra-Kumar/drec-origin/internal/report"
	"github.com/Sivendra-Kumar/drec-origin/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type options struct {
	dbURL      string
	groupID    int64
	buyerID    int64
	deviceID   string
	from       string
	to         string
	agg        string
	outPath    string
	tablesPath string
}

func parseFlags() (*options, error) {
	opts := &options{}
	flag.StringVar(&opts.dbURL, "db", os.Getenv("DATABASE_URL"), "database URL (defaults to DATABASE_URL)")
	flag.Int64Var(&opts.groupID, "group", 0, "reconcile certificates for this device group")
	flag.Int64Var(&opts.buyerID, "buyer", 0, "build the redemption report for this buyer")
	flag.StringVar(&opts.deviceID, "device", "", "inspect stored reads for this device external id")
	flag.StringVar(&opts.from, "from", "", "aggregation window start (RFC3339); omit with -to to print the latest read")
	flag.StringVar(&opts.to, "to", "", "aggregation window end (RFC3339)")
	flag.StringVar(&opts.agg, "agg", "sum", "aggregate to apply per window: mean or sum")
	flag.StringVar(&opts.outPath, "out", "", "write the redemption report workbook here (.xlsx)")
	flag.StringVar(&opts.tablesPath, "tables", os.Getenv("REFDATA_TABLES_PATH"), "reference tables override file")
	flag.Parse()

	if opts.dbURL == "" {
		return nil, fmt.Errorf("database URL is required: pass -db or set DATABASE_URL")
	}
	if opts.groupID == 0 && opts.buyerID == 0 && opts.deviceID == "" {
		return nil, fmt.Errorf("nothing to do: pass -group, -buyer or -device")
	}
	if opts.deviceID != "" && (opts.from == "") != (opts.to == "") {
		return nil, fmt.Errorf("-from and -to go together")
	}
	return opts, nil
}

func main() {
	_ = godotenv.Load()

	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	logger, err := logging.NewLogger("drec-reconcile")
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, opts.dbURL)
	if err != nil {
		logger.Fatal("failed to create database pool", zap.Error(err))
	}
	defer pool.Close()

	repo := repository.NewRepository(pool)

	if opts.groupID != 0 {
		if err := reconcileGroup(ctx, repo, logger, opts.groupID); err != nil {
			logger.Fatal("reconciliation failed", zap.Int64("group_id", opts.groupID), zap.Error(err))
		}
	}

	if opts.buyerID != 0 {
		if err := buildRedemptionReport(ctx, repo, logger, opts); err != nil {
			logger.Fatal("redemption report failed", zap.Int64("buyer_id", opts.buyerID), zap.Error(err))
		}
	}

	if opts.deviceID != "" {
		if err := aggregateReads(ctx, repo, logger, opts); err != nil {
			logger.Fatal("aggregation failed", zap.String("device", opts.deviceID), zap.Error(err))
		}
	}
}

func aggregateReads(ctx context.Context, repo *repository.Repository, logger *zap.Logger, opts *options) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if opts.from == "" {
		latest, err := repo.LatestRead(ctx, opts.deviceID)
		if err != nil {
			return fmt.Errorf("failed to query latest read: %w", err)
		}
		if latest == nil {
			logger.Info("device has no stored reads", zap.String("device", opts.deviceID))
			return nil
		}
		return enc.Encode(latest)
	}

	from, err := time.Parse(time.RFC3339, opts.from)
	if err != nil {
		return fmt.Errorf("invalid -from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, opts.to)
	if err != nil {
		return fmt.Errorf("invalid -to: %w", err)
	}

	reads, err := repo.QueryReads(ctx, opts.deviceID, from, to)
	if err != nil {
		return fmt.Errorf("failed to query reads: %w", err)
	}

	windows := make([]aggregate.AggregatedRead, 0, len(reads))
	for _, read := range reads {
		start := read.EndTimestamp
		if read.StartTimestamp != nil {
			start = *read.StartTimestamp
		}
		windows = append(windows, aggregate.AggregatedRead{
			Start: start,
			Stop:  read.EndTimestamp,
			Value: read.ValueWattHour,
		})
	}

	collapsed, err := aggregate.Collapse(windows, aggregate.Aggregate(opts.agg))
	if err != nil {
		return err
	}

	logger.Info("reads aggregated",
		zap.String("device", opts.deviceID),
		zap.Int("reads", len(reads)),
		zap.Int("windows", len(collapsed)),
	)

	return enc.Encode(collapsed)
}

func reconcileGroup(ctx context.Context, repo *repository.Repository, logger *zap.Logger, groupID int64) error {
	engine := reconcile.NewEngine(repo, repo, repo, metrics.New(), logger)

	entries, err := engine.ReconcileGroup(ctx, groupID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return err
	}

	logger.Info("group reconciled",
		zap.Int64("group_id", groupID),
		zap.Int("certificates", len(entries)),
	)
	return nil
}

func buildRedemptionReport(ctx context.Context, repo *repository.Repository, logger *zap.Logger, opts *options) error {
	tables, err := refdata.Load(opts.tablesPath)
	if err != nil {
		return fmt.Errorf("failed to load reference tables: %w", err)
	}

	groups, err := repo.BuyerDeviceGroups(ctx, opts.buyerID)
	if err != nil {
		return fmt.Errorf("failed to load buyer groups: %w", err)
	}

	claimedByGroup := make(map[int64][]db.Certificate, len(groups))
	for _, group := range groups {
		warnUnknownProvenance(tables, group, logger)

		claimed, err := repo.ClaimedCertificatesByGroup(ctx, group.ID)
		if err != nil {
			return fmt.Errorf("failed to load claimed certificates for group %d: %w", group.ID, err)
		}
		claimedByGroup[group.ID] = claimed
	}

	rows := aggregate.BuildRedemptionReport(groups, claimedByGroup)
	logger.Info("redemption report built",
		zap.Int64("buyer_id", opts.buyerID),
		zap.Int("groups", len(groups)),
		zap.Int("rows", len(rows)),
	)

	if opts.outPath == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	workbook, err := report.BuildRedemptionXLSX(rows)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	if err := os.WriteFile(opts.outPath, workbook, 0o644); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	logger.Info("workbook written", zap.String("path", opts.outPath))
	return nil
}

// warnUnknownProvenance flags group attributes that are absent from the
// reference tables. The report is still produced; stale provenance only
// degrades filtering downstream.
func warnUnknownProvenance(tables *refdata.Tables, group db.DeviceGroup, logger *zap.Logger) {
	if group.CountryCode != "" && !tables.HasCountry(group.CountryCode) {
		logger.Warn("group references unknown country code",
			zap.Int64("group_id", group.ID), zap.String("country_code", group.CountryCode))
	}
	if group.CapacityRange != "" && !tables.HasCapacityRange(group.CapacityRange) {
		logger.Warn("group references unknown capacity range",
			zap.Int64("group_id", group.ID), zap.String("capacity_range", group.CapacityRange))
	}
	if group.StandardCompliance != "" && !tables.HasStandardCompliance(group.StandardCompliance) {
		logger.Warn("group references unknown standard compliance",
			zap.Int64("group_id", group.ID), zap.String("standard_compliance", group.StandardCompliance))
	}
	for _, offTaker := range group.OffTakers {
		if !tables.HasOffTaker(offTaker) {
			logger.Warn("group references unknown off taker",
				zap.Int64("group_id", group.ID), zap.String("off_taker", offTaker))
		}
	}
}
