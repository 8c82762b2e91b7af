package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"

	"main/internal/bus"
	"main/internal/codec"
	"main/internal/exchange"
	"main/internal/ledger"
	"main/internal/marketmodel"
	"main/internal/mdg"
	"main/internal/obs"
	"main/internal/og"
	"main/internal/ops"
	"main/internal/quote"
	"main/internal/recorder"
	"main/internal/risk"
	"main/internal/schema"
	"main/internal/state"
	"main/internal/strategy"
	"main/pkg/conn"
)

const (
	sourceFeed     uint16 = 1
	sourceGateway  uint16 = 2
	sourceStrategy uint16 = 3
)

type runtimeConfig struct {
	v atomic.Value
}

func newRuntimeConfig(loaded ops.Loaded) *runtimeConfig {
	var rc runtimeConfig
	rc.v.Store(loaded)
	return &rc
}

func (r *runtimeConfig) Load() ops.Loaded {
	return r.v.Load().(ops.Loaded)
}

func (r *runtimeConfig) Update(loaded ops.Loaded) {
	r.v.Store(loaded)
}

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	paper := flag.Bool("paper", false, "Trade against the in-process simulator")
	journalDir := flag.String("journal-dir", "", "Event journal directory (overrides config; empty uses config)")
	recoverEnabled := flag.Bool("recover", false, "Recover position from snapshot + journal before quoting")
	snapshotPath := flag.String("snapshot-path", "", "Position snapshot path (default: <journal-dir>/position.json)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty disables profiling)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "etf-trader",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	runtime := newRuntimeConfig(loaded)
	if *configPath != "" && *configReload > 0 {
		go watchConfig(ctx, *configPath, *configReload, runtime.Update)
	}

	if *journalDir != "" {
		loaded.Journal.Dir = *journalDir
	}

	if err := run(ctx, runtime, loaded, *paper, *recoverEnabled, *snapshotPath); err != nil {
		log.Fatalf("trader failed: %v", err)
	}
}

func run(ctx context.Context, runtime *runtimeConfig, loaded ops.Loaded, paper, recoverEnabled bool, snapshotPath string) error {
	basket := loaded.Basket
	model := marketmodel.New(basket, loaded.Market)
	engine := risk.NewEngine(loaded.Risk)
	quotes := quote.NewEngine(loaded.Quote, basket.TickSize())
	metrics := obs.NewMetrics()
	traceGen := obs.NewTraceGenerator(0)

	var seq uint64
	snapshotOut := resolveSnapshotPath(loaded.Journal.Dir, snapshotPath)
	if recoverEnabled && loaded.Journal.Dir != "" {
		recovered, err := state.Recover(ctx, state.RecoverConfig{
			JournalDir:   loaded.Journal.Dir,
			SnapshotPath: existingSnapshot(snapshotOut),
			FilePrefix:   loaded.Journal.FilePrefix,
		})
		if err != nil {
			return err
		}
		engine.Restore(recovered.Tracker.Position(), recovered.Tracker.Vwap(), recovered.Tracker.Realized())
		seq = recovered.LastSeq
		log.Printf("recovered position=%d vwap=%d realized=%d last_seq=%d",
			recovered.Tracker.Position(), recovered.Tracker.Vwap(), recovered.Tracker.Realized(), seq)
	}

	var (
		feed exchange.Feed
		gw   exchange.Gateway
	)
	if paper {
		sim, err := exchange.NewSim(basket, loaded.Sim)
		if err != nil {
			return err
		}
		feed, gw = sim, sim
	} else {
		feed = exchange.NewWsFeed(ctx, loaded.Feed.URL, basket)
		gw = exchange.NewWsGateway(ctx, loaded.Gateway.URL, loaded.Gateway.Token, basket)
	}
	defer feed.Close()
	defer gw.Close()

	var journal *recorder.Writer
	if loaded.Journal.Dir != "" {
		w, err := recorder.NewWriter(loaded.Journal)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		journal = w
	}

	var fills *ledger.Ledger
	if loaded.Ledger.Enabled {
		client, err := conn.New(conn.Option{
			Host:       loaded.Ledger.Host,
			Port:       loaded.Ledger.Port,
			User:       loaded.Ledger.User,
			Password:   loaded.Ledger.Password,
			Database:   loaded.Ledger.Database,
			SSLMode:    loaded.Ledger.SSLMode,
			ConnString: loaded.Ledger.ConnString,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		fills, err = ledger.New(client, 0)
		if err != nil {
			return err
		}
		fills.Start(ctx)
		defer fills.Close()
	}

	observer := &sessionObserver{
		journal:  journal,
		fills:    fills,
		seq:      &seq,
		traceGen: traceGen,
	}
	reconciler := og.NewReconciler(loaded.Orders, engine, gw)
	strat := strategy.New(loaded.Strategy, model, engine, quotes, reconciler, metrics, observer)

	queue := bus.NewQueue(1 << 12)
	var wg sync.WaitGroup
	wg.Add(1)
	appliedVersion := loaded.Version
	go func() {
		defer wg.Done()
		queue.Run(ctx, func(e bus.Event) {
			if current := runtime.Load(); current.Version != appliedVersion {
				engine.UpdateLimits(current.Risk)
				appliedVersion = current.Version
				log.Printf("risk limits updated to config version %d", appliedVersion)
			}
			if journal != nil {
				if err := journal.RecordEvent(e); err != nil && err != recorder.ErrQueueFull {
					log.Printf("journal append failed: %v", err)
				}
			}
			strat.HandleEvent(e)
		})
	}()

	publish := func(eventType schema.EventType, source uint16, tsEvent int64, payload []byte) {
		h := schema.NewHeader(eventType, source, atomic.AddUint64(&seq, 1), tsEvent, time.Now().UTC().UnixNano())
		h.TraceID = traceGen.Next()
		if err := queue.TryPublish(bus.Event{Header: h, Payload: payload}); err != nil {
			metrics.IncQueueDrop()
		}
	}
	unsubSnaps := feed.ObserveSnapshots(ctx, func(snap schema.MarketSnapshot) {
		publish(schema.EventMarketData, sourceFeed, snap.TsEvent, codec.EncodeMarketSnapshot(nil, snap))
	})
	defer unsubSnaps()
	unsubAcks := gw.ObserveAcks(ctx, func(ack schema.OrderAck) {
		publish(schema.EventOrderAck, sourceGateway, time.Now().UTC().UnixNano(), codec.EncodeOrderAck(nil, ack))
	})
	defer unsubAcks()
	unsubFills := gw.ObserveFills(ctx, func(fill schema.Fill) {
		publish(schema.EventFill, sourceGateway, time.Now().UTC().UnixNano(), codec.EncodeFill(nil, fill))
	})
	defer unsubFills()

	if err := feed.Start(ctx); err != nil {
		return err
	}
	if err := gw.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	reconciler.CancelAll(time.Now().UTC().UnixNano())
	queue.Close()
	wg.Wait()

	if journal != nil {
		if err := journal.Close(); err != nil {
			log.Printf("journal close failed: %v", err)
		}
	}
	if snapshotOut != "" {
		snap := state.Snapshot{
			Timestamp:   time.Now().UTC().UnixNano(),
			LastSeq:     atomic.LoadUint64(&seq),
			LastEventTs: time.Now().UTC().UnixNano(),
			Position:    engine.Position(),
			Vwap:        engine.Vwap(),
			Realized:    engine.Realized(),
		}
		if err := state.WriteSnapshot(snapshotOut, snap); err != nil {
			log.Printf("snapshot write failed: %v", err)
		}
	}

	ms := metrics.Snapshot()
	log.Printf("session done: events=%v actions=%v risk=%v stale=%d pulled=%d drops=%d position=%d realized=%d unrealized=%d",
		ms.EventCounts, ms.ActionCounts, ms.RiskReasonCounts, ms.StaleTicks, ms.PulledEntries, ms.QueueDrops,
		engine.Position(), engine.Realized(), engine.Unrealized())
	return nil
}

// sessionObserver journals outbound decisions and actions and feeds the
// trade ledger. It runs on the event goroutine.
type sessionObserver struct {
	journal  *recorder.Writer
	fills    *ledger.Ledger
	seq      *uint64
	traceGen *obs.TraceGenerator
}

func (o *sessionObserver) OnAction(now int64, action og.Action) {
	if o.journal == nil {
		return
	}
	h := schema.NewHeader(schema.EventOrderIntent, sourceStrategy, atomic.AddUint64(o.seq, 1), now, now)
	h.TraceID = o.traceGen.Next()
	if err := o.journal.Append(h, codec.EncodeOrderIntent(nil, action.Intent)); err != nil && err != recorder.ErrQueueFull {
		log.Printf("journal intent failed: %v", err)
	}
}

func (o *sessionObserver) OnDecision(now int64, decision schema.RiskDecision) {
	if o.journal == nil {
		return
	}
	h := schema.NewHeader(schema.EventRiskDecision, sourceStrategy, atomic.AddUint64(o.seq, 1), now, now)
	h.TraceID = o.traceGen.Next()
	if err := o.journal.Append(h, codec.EncodeRiskDecision(nil, decision)); err != nil && err != recorder.ErrQueueFull {
		log.Printf("journal decision failed: %v", err)
	}
}

func (o *sessionObserver) OnFillApplied(now int64, fill schema.Fill, position schema.Quantity, realized schema.Notional) {
	if o.fills == nil {
		return
	}
	o.fills.TryRecord(fill, position, realized, time.Unix(0, now))
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return defaultLoaded()
	}
	return ops.Load(path)
}

func defaultLoaded() (ops.Loaded, error) {
	basket, err := schema.NewBasket("ETF", 5, schema.ScaleSpec{PriceScale: 2})
	if err != nil {
		return ops.Loaded{}, err
	}
	for _, c := range []struct {
		name      string
		weightBps int64
	}{
		{"XYZ", 5000},
		{"ABC", 3000},
		{"DEF", 2000},
	} {
		if _, err := basket.AddComponent(c.name, c.weightBps); err != nil {
			return ops.Loaded{}, err
		}
	}
	if err := basket.Validate(); err != nil {
		return ops.Loaded{}, err
	}
	return ops.Loaded{
		Basket: basket,
		Market: marketmodel.Config{WindowSize: 32},
		Risk: risk.Config{
			LongCap:            50,
			ShortCap:           50,
			SkewSensitivityBps: 50,
			RateQuota:          95,
			RateWindow:         time.Second,
			DrawdownSoftBps:    100,
			DrawdownHardBps:    300,
		},
		Quote: quote.Config{
			Levels:         3,
			BaseSpread:     10,
			LevelIncrement: 5,
			BaseSize:       10,
			MaxPerLevel:    25,
			MaxAggregate:   60,
		},
		Orders: og.Config{
			PriceTolerance: 5,
			SizeTolerance:  5,
		},
		Strategy: strategy.Config{
			ReskewThreshold:    10,
			PulledAfterDenials: 5,
			PulledRecovery:     time.Second,
		},
		Sim: exchange.SimConfig{
			Generator: mdg.Config{
				BasePrice: 10_000,
				StepBps:   3,
				Spread:    5,
				BaseSize:  100,
			},
		},
	}, nil
}

func resolveSnapshotPath(dir, path string) string {
	if path != "" {
		return path
	}
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "position.json")
}

// existingSnapshot returns the path only if a snapshot file is already
// there, so first runs recover from journal alone.
func existingSnapshot(path string) string {
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func watchConfig(ctx context.Context, path string, interval time.Duration, update func(ops.Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				log.Printf("config stat failed: %v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := ops.Load(path)
			if err != nil {
				log.Printf("config reload failed: %v", err)
				continue
			}
			update(loaded)
			lastMod = info.ModTime()
			log.Printf("config reloaded: %s version=%d", path, loaded.Version)
		}
	}
}
