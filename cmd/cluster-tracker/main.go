// Command cluster-tracker assigns stable identities to object centroids
// received over UDP or replayed from a PCAP capture.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/cluster-tracker/internal/config"
	"github.com/banshee-data/cluster-tracker/internal/ingest"
	"github.com/banshee-data/cluster-tracker/internal/markers"
	"github.com/banshee-data/cluster-tracker/internal/network"
	"github.com/banshee-data/cluster-tracker/internal/storage/sqlite"
	"github.com/banshee-data/cluster-tracker/internal/tracking"
	"github.com/banshee-data/cluster-tracker/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to a tuning JSON file (default: built-in defaults)")
	udpAddress  = flag.String("udp-addr", ":7400", "UDP bind address for centroid datagrams")
	rcvBuf      = flag.Int("rcvbuf", 1<<20, "UDP receive buffer size in bytes")
	pcapFile    = flag.String("pcap", "", "Replay centroid datagrams from this pcap/pcapng file instead of listening")
	pcapPort    = flag.Int("pcap-port", 7400, "UDP port to select from the capture (0 = all)")
	pcapSpeed   = flag.Float64("pcap-speed", 0, "Replay speed relative to capture time (0 = as fast as the tracker keeps up)")
	dbFile      = flag.String("db", "", "Record tracks to this SQLite database")
	forwardAddr = flag.String("forward", "", "Publish track identities to this host:port")
	markersOut  = flag.String("markers", "", "Write per-frame markers as JSON lines to this file (\"-\" for stdout)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options is the parsed command line.
type options struct {
	ConfigFile  string
	UDPAddress  string
	RcvBuf      int
	PCAPFile    string
	PCAPPort    int
	PCAPSpeed   float64
	DBFile      string
	ForwardAddr string
	MarkersOut  string
}

func optionsFromFlags() options {
	return options{
		ConfigFile:  *configFile,
		UDPAddress:  *udpAddress,
		RcvBuf:      *rcvBuf,
		PCAPFile:    *pcapFile,
		PCAPPort:    *pcapPort,
		PCAPSpeed:   *pcapSpeed,
		DBFile:      *dbFile,
		ForwardAddr: *forwardAddr,
		MarkersOut:  *markersOut,
	}
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, optionsFromFlags()); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("cluster-tracker: %v", err)
	}
}

func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return err
	}
	transforms, err := config.TransformsFromTuning(cfg)
	if err != nil {
		return err
	}

	tracker := tracking.NewTracker(config.TrackerConfigFromTuning(cfg))
	queue := ingest.NewFrameQueue(cfg.GetQueueSize())
	stats := network.NewPacketStats(nil)

	var sinks []ingest.FrameSink

	if opts.DBFile != "" {
		db, err := sqlite.Open(opts.DBFile)
		if err != nil {
			return err
		}
		defer db.Close()

		rec := sqlite.NewRecorder(db, nil)
		raw, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode run config: %w", err)
		}
		source := "udp:" + opts.UDPAddress
		if opts.PCAPFile != "" {
			source = "pcap:" + opts.PCAPFile
		}
		runID, err := rec.StartRun(source, string(raw))
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.FinishRun(); err != nil {
				log.Printf("finish run %s: %v", runID, err)
			}
		}()
		log.Printf("recording run %s to %s", runID, opts.DBFile)
		sinks = append(sinks, rec)
	}

	if opts.ForwardAddr != "" {
		fwd, err := network.NewIdentityForwarder(opts.ForwardAddr, 0, stats, cfg.GetStatsInterval())
		if err != nil {
			return err
		}
		defer fwd.Close()
		fwd.Start(ctx)
		sinks = append(sinks, fwd)
	}

	if cfg.GetVisualize() && opts.MarkersOut != "" {
		var w io.Writer = os.Stdout
		if opts.MarkersOut != "-" {
			f, err := os.Create(opts.MarkersOut)
			if err != nil {
				return fmt.Errorf("create markers output: %w", err)
			}
			defer f.Close()
			w = f
		}
		sinks = append(sinks, markers.NewPublisher(w, markers.Options{
			Transformer: transforms,
			ScanFrame:   cfg.GetScanFrame(),
			TargetFrame: cfg.GetTargetFrame(),
			Scale:       cfg.GetMarkerScale(),
		}))
	}

	runner := ingest.NewRunner(ingest.RunnerConfig{
		Queue:         queue,
		Tracker:       tracker,
		Sinks:         sinks,
		StatsInterval: cfg.GetStatsInterval(),
	})

	log.Printf("cluster-tracker %s: queue=%d prune=%s/%d frames=%s->%s",
		version.String(), queue.Cap(), cfg.GetPruneMode(), cfg.GetPruneInterval(),
		cfg.GetScanFrame(), cfg.GetTargetFrame())

	var wg sync.WaitGroup
	runErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr <- runner.Run(ctx)
	}()

	var srcErr error
	if opts.PCAPFile != "" {
		start := time.Now()
		summary, err := network.ReadPCAPFile(ctx, opts.PCAPFile, queue, network.PCAPReplayConfig{
			UDPPort:         opts.PCAPPort,
			SpeedMultiplier: opts.PCAPSpeed,
			Stats:           stats,
		})
		srcErr = err
		log.Printf("replayed %d frames (%d points, %v of capture) in %v",
			summary.Frames, summary.Points, summary.Duration, time.Since(start))
	} else {
		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address:     opts.UDPAddress,
			RcvBuf:      opts.RcvBuf,
			LogInterval: cfg.GetStatsInterval(),
			Queue:       queue,
			Stats:       stats,
		})
		srcErr = listener.Start(ctx)
	}

	queue.Close()
	wg.Wait()
	if err := <-runErr; err != nil {
		return err
	}
	log.Printf("tracked %d frames, %d tracks active", runner.Stats().Frames, tracker.Len())
	return srcErr
}
