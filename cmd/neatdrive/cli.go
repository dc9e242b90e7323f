package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/neatdrive/simulator/internal/config"
	"github.com/neatdrive/simulator/internal/database"
	"github.com/neatdrive/simulator/internal/dispatcher"
	"github.com/neatdrive/simulator/internal/fitness"
	"github.com/neatdrive/simulator/internal/generation"
	"github.com/neatdrive/simulator/internal/influx"
	"github.com/neatdrive/simulator/internal/logging"
	"github.com/neatdrive/simulator/internal/monitor"
	"github.com/neatdrive/simulator/internal/pathfind"
	"github.com/neatdrive/simulator/internal/policy"
	"github.com/neatdrive/simulator/internal/report"
	"github.com/neatdrive/simulator/internal/track"
	"github.com/neatdrive/simulator/internal/vehicle"
	"github.com/neatdrive/simulator/pkg/core"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
)

var (
	errNoTrackSource = errors.New("neither track.image nor track.roadGrid is configured")
	errNoRoute       = errors.New("no road route between spawn and finish")
)

func runTraining(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("run takes no arguments, got %v", args)
	}

	simCfg := config.GetSimConfig()
	trackCfg := config.GetTrackConfig()
	storageCfg := config.GetStorageConfig()
	opts := report.OptionsFromConfig(config.GetReportConfig())
	if simCfg.PopulationSize <= 0 {
		return fmt.Errorf("sim.populationSize must be positive, got %d", simCfg.PopulationSize)
	}

	mask, coreTrack, err := loadTrack(trackCfg)
	if err != nil {
		return err
	}
	scorer, err := fitness.New(coreTrack.Metrics)
	if err != nil {
		return fmt.Errorf("track %s: %w", coreTrack.Name, err)
	}
	Logger.Info("Track loaded",
		"name", coreTrack.Name,
		"width", coreTrack.Width,
		"height", coreTrack.Height,
		"length", coreTrack.Metrics.Length)

	if err := os.MkdirAll(storageCfg.Memory.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	backend, err := createStorageBackend(storageCfg, opts)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer closeBackend(backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := viper.GetString("logLevel")
	influxManager := influx.NewManager(
		logging.NewZerolog(LogFile, level, "influx"),
		config.GetInfluxConfig(),
		filepath.Join(viper.GetString("logsDir"),
			fmt.Sprintf("%s_influx_%s.lp.gz", AppName, SessionStartTime.Format("20060102_150405"))),
	)
	// a nil *influx.Manager must not become a non-nil interface
	var metrics report.MetricsWriter
	switch err := influxManager.Connect(ctx); {
	case err == nil:
		metrics = influxManager
		defer func() {
			if err := influxManager.Close(); err != nil {
				Logger.Warn("Failed to close influx", "error", err)
			}
		}()
	case errors.Is(err, influx.ErrDisabled):
		Logger.Debug("InfluxDB metrics disabled")
	default:
		Logger.Warn("InfluxDB unavailable, metrics disabled", "error", err)
	}

	d, err := dispatcher.New(Logger.With("component", "dispatcher"))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer d.Close()
	recorder := report.NewRecorder(d, backend, metrics, RunContext, opts, Logger.With("component", "recorder"))

	coreRun := &core.Run{
		Name:             fmt.Sprintf("%s-%s", coreTrack.Name, SessionStartTime.Format("20060102_150405")),
		StartTime:        SessionStartTime,
		PopulationSize:   simCfg.PopulationSize,
		TimeLimit:        simCfg.TimeLimit,
		Seed:             simCfg.Seed,
		ExtensionVersion: CurrentVersion,
	}
	if err := recorder.StartRun(coreRun, &coreTrack); err != nil {
		Logger.Error("Failed to record run start", "error", err)
	}
	Logger.Info("Run started",
		"population", simCfg.PopulationSize,
		"generations", simCfg.Generations,
		"timeLimit", simCfg.TimeLimit,
		"storage", storageCfg.Type)

	monitorDeps := monitor.Dependencies{
		LogManager: SlogManager,
		RunContext: RunContext,
		History:    recorder.History(),
		StatusPath: filepath.Join(viper.GetString("logsDir"), "status.json"),
	}
	if p, ok := backend.(interface{ Pending() int }); ok {
		monitorDeps.Pending = p.Pending
	}
	monitorService := monitor.NewService(monitorDeps)
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Failed to start status monitor", "error", err)
	}
	defer monitorService.Stop()

	var meter metric.Meter
	if OTelProvider != nil {
		meter = OTelProvider.Meter(generation.InstrumentationName)
	}
	source := policy.NewSource(simCfg.PopulationSize, simCfg.Seed)
	var prev []float64
	for n := 0; n < simCfg.Generations && ctx.Err() == nil; n++ {
		RunContext.SetGeneration(n)
		gen, err := generation.New(generation.Config{
			RunID:       coreRun.ID,
			Index:       n,
			TimeLimit:   simCfg.TimeLimit,
			MaxTicks:    simCfg.MaxTicks,
			Parallel:    simCfg.Parallel,
			SensorRange: float64(coreTrack.Width),
			Meter:       meter,
		}, source.Next(prev), coreTrack.Spawn, scorer)
		if err != nil {
			return fmt.Errorf("failed to create generation %d: %w", n, err)
		}

		res := simulate(ctx, gen, mask, coreTrack.Metrics.Finish)
		prev = gen.Fitnesses()
		Logger.Info("Generation finished",
			"best", res.BestFitness,
			"avg", res.AvgFitness,
			"crashes", res.Crashes,
			"finishes", res.Finishes,
			"ticks", res.Ticks,
			"reason", res.StopReason)

		if err := recorder.RecordGeneration(&res); err != nil {
			Logger.Error("Failed to queue generation", "generation", n, "error", err)
		}
	}

	if err := recorder.EndRun(); err != nil {
		Logger.Error("Failed to record run end", "error", err)
	}
	// drain queued writes before the final status is written
	d.Close()
	if best, bestFitness := source.Best(); best != nil {
		Logger.Info("Run finished", "bestFitness", bestFitness, "generations", recorder.History().Len())
	}
	return nil
}

// simulate ticks gen until it stops. Interrupting ctx aborts the generation.
func simulate(ctx context.Context, gen *generation.Generation, surface vehicle.Surface, finish core.FinishMarker) core.GenerationResult {
	for {
		if ctx.Err() != nil {
			gen.Stop()
		}
		if reason, done := gen.ShouldStop(time.Now()); done {
			gen.Finish(reason)
			return gen.Result()
		}
		gen.Tick()
		gen.StepAll(surface, finish)
		gen.Evaluate()
	}
}

// loadTrack builds the drivable mask and track metadata from an image, or
// from a road grid routed between spawn and finish.
func loadTrack(cfg config.TrackConfig) (*track.Mask, core.Track, error) {
	spawn := core.Pose{
		Position: core.Position2D{X: cfg.Spawn.X, Y: cfg.Spawn.Y},
		Heading:  cfg.Spawn.Heading,
		Size:     cfg.Spawn.Size,
	}
	finish := core.FinishMarker{
		Position: core.Position2D{X: cfg.Finish.X, Y: cfg.Finish.Y},
		Size:     cfg.Finish.Size,
	}

	var (
		mask   *track.Mask
		length float64
	)
	switch {
	case cfg.Image != "":
		loaded, err := track.Load(cfg.Image, cfg.CanvasWidth, cfg.CanvasHeight)
		if err != nil {
			return nil, core.Track{}, err
		}
		mask, length = loaded.Mask, loaded.Length
	case cfg.RoadGrid != "":
		grid, err := pathfind.LoadGrid(cfg.RoadGrid)
		if err != nil {
			return nil, core.Track{}, err
		}
		m, res, ok := pathfind.Build(grid, spawn.Position, finish.Position, cfg.TileSize)
		if !ok {
			return nil, core.Track{}, errNoRoute
		}
		mask, length = m, float64(res.Length)
	default:
		return nil, core.Track{}, errNoTrackSource
	}

	return mask, core.Track{
		Name:   cfg.Name,
		Width:  mask.Width(),
		Height: mask.Height(),
		Metrics: core.TrackMetrics{
			Length: length,
			Finish: finish,
		},
		Spawn: spawn,
	}, nil
}

type pathArgs struct {
	grid     string
	start    core.Position2D
	goal     core.Position2D
	tileSize int
	out      string
}

func parsePathArgs(args []string, defaultTileSize int) (pathArgs, error) {
	if len(args) < 5 || len(args) > 7 {
		return pathArgs{}, errors.New("usage: path <grid.csv> <sx> <sy> <gx> <gy> [tileSize] [out.png]")
	}

	var coords [4]float64
	for i := range coords {
		v, err := strconv.ParseFloat(args[i+1], 64)
		if err != nil {
			return pathArgs{}, fmt.Errorf("invalid coordinate %q: %w", args[i+1], err)
		}
		coords[i] = v
	}

	p := pathArgs{
		grid:     args[0],
		start:    core.Position2D{X: coords[0], Y: coords[1]},
		goal:     core.Position2D{X: coords[2], Y: coords[3]},
		tileSize: defaultTileSize,
	}
	if len(args) > 5 {
		size, err := strconv.Atoi(args[5])
		if err != nil || size <= 0 {
			return pathArgs{}, fmt.Errorf("invalid tile size %q", args[5])
		}
		p.tileSize = size
	}
	if len(args) > 6 {
		p.out = args[6]
	}
	return p, nil
}

func findPath(args []string) error {
	p, err := parsePathArgs(args, config.GetTrackConfig().TileSize)
	if err != nil {
		return err
	}

	grid, err := pathfind.LoadGrid(p.grid)
	if err != nil {
		return err
	}

	mask, res, ok := pathfind.Build(grid, p.start, p.goal, p.tileSize)
	if !ok {
		Logger.Info("No route found", "grid", p.grid, "start", p.start, "goal", p.goal)
		fmt.Println("no route found")
		return nil
	}

	fmt.Println(formatRoute(res))
	Logger.Info("Route found", "tiles", len(res.Path), "cost", res.Cost, "length", res.Length)

	if p.out != "" {
		if err := imgio.Save(p.out, mask.Image(), imgio.PNGEncoder()); err != nil {
			return fmt.Errorf("failed to write mask %s: %w", p.out, err)
		}
		fmt.Println("mask written to", p.out)
	}
	return nil
}

func formatRoute(res pathfind.Result) string {
	var sb strings.Builder
	for i, t := range res.Path {
		if i > 0 {
			sb.WriteString(" -> ")
		}
		fmt.Fprintf(&sb, "(%d,%d)", t.X, t.Y)
	}
	fmt.Fprintf(&sb, "\ntiles: %d cost: %.1f length: %d px", len(res.Path), res.Cost, res.Length)
	return sb.String()
}

// exportRun prints the SimulationData document of a stored run. Without a
// run ID the latest run is exported.
func exportRun(args []string) error {
	if len(args) > 2 {
		return errors.New("usage: export [run-id] [db-file]")
	}

	var runID uint64
	if len(args) > 0 {
		var err error
		runID, err = strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}
	}
	dbPath := ""
	if len(args) > 1 {
		dbPath = args[1]
	}

	db, err := openReportDB(config.GetStorageConfig(), dbPath)
	if err != nil {
		return err
	}

	if runID == 0 {
		latest, err := database.LatestRunID(db)
		if err != nil {
			return err
		}
		runID = uint64(latest)
	}

	coreRun, coreTrack, gens, err := database.LoadRun(db, uint(runID))
	if err != nil {
		return err
	}
	Logger.Info("Exporting run",
		"run", coreRun.ID,
		"name", coreRun.Name,
		"track", coreTrack.Name,
		"generations", len(gens))

	opts := report.OptionsFromConfig(config.GetReportConfig())
	// keep every stored generation in the document
	opts.MaxHistory = len(gens)
	data := report.Replay(gens, opts).SimulationData()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// openReportDB opens the SQL database runs were stored in: Postgres when it
// is the configured backend, otherwise the given SQLite file or the newest
// dump in the output directory.
func openReportDB(storageCfg config.StorageConfig, path string) (*gorm.DB, error) {
	if path == "" && storageCfg.Type == "postgres" {
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db, nil
	}

	if path == "" {
		paths, err := database.GetBackupDBPaths(storageCfg.Memory.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to list sqlite dumps: %w", err)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no sqlite dumps in %s", storageCfg.Memory.OutputDir)
		}
		// names carry the session timestamp
		sort.Strings(paths)
		path = paths[len(paths)-1]
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("sqlite file %s: %w", path, err)
	}
	db, err := database.GetSqliteDBStandalone(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite file %s: %w", path, err)
	}
	return db, nil
}
