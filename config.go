package cosmos

import (
	"os"
	"sync"

	"github.com/ChristopherRabotin/cosmos/dem"
	"github.com/ChristopherRabotin/cosmos/physics"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ConfigEnv names the environment variable holding the directory of conf.toml.
const ConfigEnv = "COSMOS_CONFIG"

var (
	cfgOnce sync.Once
	config  Config
)

// Config is the installation wide configuration.
type Config struct {
	OutputDir string

	GravityDir    string
	GravityModel  physics.GravityModel
	GravityDegree int

	DEMDir    string
	DEMBudget int64

	Order int
	Step  float64

	F107Avg, F107, Ap float64
}

// DefaultConfig is used when no configuration file is found.
func DefaultConfig() Config {
	return Config{
		OutputDir:     ".",
		GravityModel:  physics.EGM2008Norm,
		GravityDegree: 4,
		DEMBudget:     dem.DefaultBudget,
		Order:         physics.DefaultOrder,
		Step:          10,
		F107Avg:       150,
		F107:          150,
		Ap:            15,
	}
}

// cosmosConfig returns the configuration of COSMOS_CONFIG, loaded once.
// Errors fall back to the defaults.
func cosmosConfig() Config {
	cfgOnce.Do(func() {
		dir := os.Getenv(ConfigEnv)
		c, err := LoadConfig(dir)
		if err != nil {
			kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr)).Log("level", "warning", "subsys", "config", "dir", dir, "err", err)
		}
		config = c
	})
	return config
}

// LoadConfig reads dir/conf.toml. An empty dir returns the defaults. On
// error the defaults are returned with the error.
func LoadConfig(dir string) (Config, error) {
	c := DefaultConfig()
	if dir == "" {
		return c, nil
	}
	v := viper.New()
	v.SetConfigName("conf")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		return c, errors.Wrapf(err, "%s/conf.toml", dir)
	}
	v.SetDefault("general.output_path", c.OutputDir)
	v.SetDefault("gravity.model", c.GravityModel.String())
	v.SetDefault("dem.budget_mb", 0)
	v.SetDefault("integrator.order", c.Order)
	v.SetDefault("integrator.step", c.Step)
	v.SetDefault("atmosphere.f107avg", c.F107Avg)
	v.SetDefault("atmosphere.f107", c.F107)
	v.SetDefault("atmosphere.ap", c.Ap)

	model, err := physics.ParseGravityModel(v.GetString("gravity.model"))
	if err != nil {
		return DefaultConfig(), errors.Wrap(err, "gravity.model")
	}
	c.OutputDir = v.GetString("general.output_path")
	c.GravityDir = v.GetString("gravity.directory")
	c.GravityModel = model
	if c.GravityDir != "" {
		c.GravityDegree = 12
	}
	if v.IsSet("gravity.degree") {
		c.GravityDegree = v.GetInt("gravity.degree")
	}
	c.DEMDir = v.GetString("dem.directory")
	if mb := v.GetInt64("dem.budget_mb"); mb > 0 {
		c.DEMBudget = mb * 1000000
	}
	c.Order = v.GetInt("integrator.order")
	c.Step = v.GetFloat64("integrator.step")
	c.F107Avg = v.GetFloat64("atmosphere.f107avg")
	c.F107 = v.GetFloat64("atmosphere.f107")
	c.Ap = v.GetFloat64("atmosphere.ap")

	switch {
	case c.GravityDegree < 0:
		return DefaultConfig(), errors.Errorf("gravity.degree %d", c.GravityDegree)
	case c.Order < 2:
		return DefaultConfig(), errors.Errorf("integrator.order %d", c.Order)
	case c.Step == 0:
		return DefaultConfig(), errors.New("integrator.step is zero")
	}
	return c, nil
}

// Physics returns the default physics of a node under this configuration.
func (c Config) Physics(dt float64) *physics.Physics {
	p := physics.NewPhysics(dt)
	p.Gravity = c.GravityModel
	p.Degree = c.GravityDegree
	p.F107Avg, p.F107, p.Ap = c.F107Avg, c.F107, c.Ap
	return p
}

// Options returns the simulator options selected by this configuration. The
// DEM cache is only built when a directory is configured.
func (c Config) Options(logger kitlog.Logger) []Option {
	opts := []Option{
		WithGravity(physics.NewCoefficientCache(c.GravityDir)),
		WithOrder(c.Order),
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	if c.DEMDir != "" {
		opts = append(opts, WithDEM(dem.NewCache(c.DEMDir, c.DEMBudget, logger), "earth"))
	}
	return opts
}
