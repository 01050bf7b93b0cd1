package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.fiblab.net/sim/dualtraffic/router"
	"git.fiblab.net/sim/dualtraffic/sim"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

const (
	// 方格路网左下角
	GRID_ORIGIN_LON = 116.30
	GRID_ORIGIN_LAT = 39.90
)

var (
	// 配置信息
	mongoURI       = flag.String("mongo_uri", "", "mongo db uri")
	networkPathStr = flag.String("network", "", "road network osm file or database and collection [format: {fspath}.osm|.pbf or {db}.{col}]")
	grid           = flag.String("grid", "", "use a synthetic grid network instead of -network [format: {rows}x{cols}]")
	gridSpacing    = flag.Float64("grid.spacing", 0.001, "grid intersection spacing in degrees")
	configFile     = flag.String("config", "", "simulation config file (yaml, json or toml), empty means defaults")
	outputPathStr  = flag.String("output", "", "result json file or database and collection [format: {fspath}.json or {db}.{col}]")
	progress       = flag.Bool("progress", false, "show a tick progress bar")
	logLevel       = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// 性能测试
	benchmark = flag.Bool("benchmark", false, "routing benchmark mode")
	pprofAddr = flag.String("pprof", "", "pprof listening address, empty means disabled")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}

	cfg, err := sim.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	networkPath, err := NewPath(*networkPathStr)
	if err != nil {
		log.Fatalf("invalid network path: %v", err)
	}
	outputPath, err := NewOutputPath(*outputPathStr)
	if err != nil {
		log.Fatalf("invalid output path: %v", err)
	}

	// 优雅退出：ctrl+c kill时停止仿真，已有结果照常写出
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	client := &lazyClient{uri: *mongoURI}
	defer client.Close(context.Background())

	net, err := loadNetwork(ctx, client, networkPath, *grid, *gridSpacing)
	if err != nil {
		log.Fatalf("failed to load road network: %v", err)
	}
	dual, err := router.NewBuilder(
		router.WithWeightScale(cfg.WeightScale),
		router.WithMinWeight(cfg.MinWeight),
	).Build(net)
	if err != nil {
		log.Fatalf("failed to build dual graph: %v", err)
	}
	r := router.New(dual, router.WithHeuristicWeight(cfg.HeuristicWeight))
	defer r.Close()

	if *pprofAddr != "" {
		// 启动pprof
		startHTTPDebugger(*pprofAddr)
	}

	if *benchmark {
		// 性能测试
		runBenchmark(r)
		return
	}

	s, err := sim.New(dual, r, cfg)
	if err != nil {
		log.Fatalf("failed to initialize simulation: %v", err)
	}
	var onTick func(int)
	if *progress {
		bar := progressbar.NewOptions(cfg.MaxTicks,
			progressbar.OptionSetDescription("simulating"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { os.Stderr.WriteString("\n") }),
		)
		onTick = func(int) { _ = bar.Add(1) }
	}
	res, err := s.Run(ctx, onTick)
	if err != nil {
		log.Errorf("simulation aborted: %v", err)
	}
	stats := res.Stats
	log.Infof("ticks=%d cars=%d trips=%d (%.3f per car) replans=%d",
		stats.Ticks, stats.Cars, stats.CompletedTrips, stats.MeanTrips, stats.Replans)
	// 写出时不受已取消的ctx影响
	if err := writeResult(context.Background(), client, outputPath, res); err != nil {
		log.Fatalf("failed to write result: %v", err)
	}
}
