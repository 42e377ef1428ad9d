package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ChristopherRabotin/cosmos"
	"github.com/ChristopherRabotin/cosmos/convert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

// Reads a scenario, builds the simulator and propagates it.

const defaultScenario = "~~unset~~"

var (
	scenario string
	confDir  string
	verbose  bool
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "simulation scenario TOML file")
	flag.StringVar(&confDir, "config", os.Getenv(cosmos.ConfigEnv), "directory of conf.toml")
	flag.BoolVar(&verbose, "verbose", false, "log every step")
}

func main() {
	flag.Parse()
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	v := viper.New()
	v.SetConfigFile(scenario)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("%s: %s", scenario, err)
	}
	base := filepath.Dir(scenario)

	conf, err := cosmos.LoadConfig(confDir)
	if err != nil {
		log.Printf("[WARNING] %s, using defaults", err)
	}
	logger := cosmos.NewLogger(strings.TrimSuffix(filepath.Base(scenario), ".toml"))

	start := confReadMJDorTime(v, "simulation.start")
	step := conf.Step
	if v.IsSet("simulation.step") {
		step = v.GetFloat64("simulation.step")
	}
	steps := v.GetInt("simulation.steps")

	sim, err := cosmos.NewSimulator(start, step, conf.Options(logger)...)
	if err != nil {
		log.Fatalf("simulator: %s", err)
	}

	f := mustOpen(base, v.GetString("simulation.orbit_file"))
	orbits, err := cosmos.ParseOrbitFile(f)
	f.Close()
	if err != nil || len(orbits) == 0 {
		log.Fatalf("orbit file: %v", err)
	}
	f = mustOpen(base, v.GetString("simulation.sat_file"))
	sats, err := cosmos.ParseSatFile(f)
	f.Close()
	if err != nil {
		log.Fatalf("satellite file: %s", err)
	}
	if err := sim.AddSatellites(orbits[0], sats, conf.Physics(sim.DT())); err != nil {
		if len(sim.Nodes()) == 0 {
			log.Fatalf("satellites: %s", err)
		}
		log.Printf("[WARNING] %s", err)
	}
	if name := v.GetString("simulation.target_file"); name != "" {
		f = mustOpen(base, name)
		targets, err := cosmos.ParseTargetFile(f)
		f.Close()
		if err != nil {
			log.Printf("[WARNING] %s", err)
		}
		if _, err := sim.AddTargets(targets); err != nil {
			log.Printf("[WARNING] %s", err)
		}
	}

	if addr := v.GetString("metrics.listen"); addr != "" {
		reg := prometheus.NewRegistry()
		if err := cosmos.RegisterMetrics(reg); err != nil {
			log.Fatalf("metrics: %s", err)
		}
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Println(http.ListenAndServe(addr, nil))
		}()
	}

	rec := cosmos.NewRecorder(cosmos.ExportConfig{
		Filename:  v.GetString("export.filename"),
		Dir:       conf.OutputDir,
		CZML:      v.GetBool("export.czml"),
		AsCSV:     v.GetBool("export.csv"),
		Timestamp: v.GetBool("export.timestamp"),
	}, logger)

	sim.Run()
	sim.Target()
	rec.Record(sim)
	if failed := sim.Advance(steps, rec, verbose); failed > 0 {
		logger.Log("level", "warning", "subsys", "prop", "failed_steps", failed, "steps", steps)
	}
	sim.Pause()
	if err := rec.Close(); err != nil {
		log.Printf("[WARNING] export: %s", err)
	}
	sim.End()
	logger.Log("level", "notice", "subsys", "astro", "status", "finished", "steps", steps, "end", convert.MJD2Time(sim.CurrentUTC()).Format(time.RFC3339))
}

func mustOpen(base, name string) *os.File {
	if name == "" {
		log.Fatal("missing file in scenario")
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(base, name)
	}
	f, err := os.Open(name)
	if err != nil {
		log.Fatalf("%s", err)
	}
	return f
}

// confReadMJDorTime reads a date as an MJD or as an RFC3339 time.
func confReadMJDorTime(v *viper.Viper, key string) float64 {
	if mjd := v.GetFloat64(key); mjd != 0 {
		return mjd
	}
	t := v.GetTime(key)
	if t.IsZero() {
		log.Fatalf("%s: not an MJD nor a time", key)
	}
	return convert.Time2MJD(t)
}
