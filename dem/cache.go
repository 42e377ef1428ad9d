package dem

import (
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/ChristopherRabotin/cosmos/mathlib"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// DefaultBudget is the tile memory of a cache created without one.
const DefaultBudget = 300000000

// Cache keeps DEM tiles of several bodies in memory up to a byte budget.
// When a tile does not fit, the tiles whose last access is the oldest in
// simulation time are dropped first. Bodies are opened on first use.
type Cache struct {
	sync.Mutex
	dir    string
	budget int64
	used   int64
	bodies map[string]*Body
	failed map[string]error
	order  []string
	logger kitlog.Logger

	Evictions, Shrinks int
}

// NewCache returns a cache reading bodies from dir/<body>. A budget of zero
// or less uses DefaultBudget.
func NewCache(dir string, budget int64, logger kitlog.Logger) *Cache {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Cache{dir: dir, budget: budget, logger: kitlog.With(logger, "subsys", "dem")}
}

// Budget returns the current byte budget, which shrinks on failed loads.
func (c *Cache) Budget() int64 {
	c.Lock()
	defer c.Unlock()
	return c.budget
}

// Used returns the bytes held by loaded tiles.
func (c *Cache) Used() int64 {
	c.Lock()
	defer c.Unlock()
	return c.used
}

// Body returns the tile set of name, opening it if needed.
func (c *Cache) Body(name string) (*Body, error) {
	c.Lock()
	defer c.Unlock()
	return c.body(name)
}

func (c *Cache) body(name string) (*Body, error) {
	if b, ok := c.bodies[name]; ok {
		return b, nil
	}
	if err, ok := c.failed[name]; ok {
		return nil, err
	}
	if c.bodies == nil {
		c.bodies = make(map[string]*Body)
		c.failed = make(map[string]error)
	}
	b, err := OpenBody(c.dir, name)
	if err != nil {
		c.failed[name] = err
		c.logger.Log("level", "warning", "body", name, "message", "no elevation model", "err", err)
		return nil, err
	}
	c.bodies[name] = b
	c.order = append(c.order, name)
	c.logger.Log("level", "info", "body", name, "tiles", len(b.Tiles))
	return b, nil
}

// SetScale sets the vertical and horizontal exaggeration of a body.
func (c *Cache) SetScale(name string, vscale, hscale float64) error {
	if vscale <= 0 || hscale <= 0 {
		return errors.Errorf("invalid DEM scale %f %f", vscale, hscale)
	}
	c.Lock()
	defer c.Unlock()
	b, err := c.body(name)
	if err != nil {
		return err
	}
	b.Highest = b.Radius + vscale/b.VScale*(b.Highest-b.Radius)
	b.VScale, b.HScale = vscale, hscale
	return nil
}

// Pixel returns the sample under lon and lat (radians) and marks its tile as
// used at utc. Points without data, and loads that cannot be served, return
// a zero Pixel.
func (c *Cache) Pixel(body string, lon, lat, utc float64) Pixel {
	if math.IsNaN(lon) || math.IsNaN(lat) || lat < -math.Pi/2 || lat > math.Pi/2 || lon < -math.Pi || lon > math.Pi {
		return Pixel{}
	}
	c.Lock()
	defer c.Unlock()
	b, err := c.body(body)
	if err != nil {
		return Pixel{}
	}
	t := b.Find(lon, lat)
	if t == nil {
		return Pixel{}
	}
	if !t.Loaded() && !c.load(b, t) {
		return Pixel{}
	}
	t.utc = utc
	p := t.at(lon, lat)
	p.Alt = float32(float64(p.Alt) * b.VScale)
	p.Normal[2] = float32(float64(p.Normal[2]) * b.HScale / b.VScale)
	return p
}

// Altitude returns the surface altitude in meters under lon and lat.
func (c *Cache) Altitude(body string, lon, lat, utc float64) float64 {
	return float64(c.Pixel(body, lon, lat, utc).Alt)
}

// load makes room for t and reads it. When evicting every other tile still
// leaves too little room the budget shrinks by a tenth.
func (c *Cache) load(b *Body, t *Tile) bool {
	size := t.Bytes()
	for c.used+size > c.budget {
		if !c.evictOldest() {
			c.budget = int64(.9 * float64(c.budget))
			c.Shrinks++
			budgetShrinks.Inc()
			c.logger.Log("level", "warning", "body", b.Name, "tile", t.Name, "bytes", size, "budget", c.budget, "message", "tile does not fit")
			return false
		}
	}
	f, err := os.Open(filepath.Join(b.Dir, t.Name))
	if err != nil {
		c.logger.Log("level", "warning", "body", b.Name, "tile", t.Name, "err", err)
		return false
	}
	defer f.Close()
	pixels, complete, err := readPixels(f, t)
	if err != nil {
		c.logger.Log("level", "warning", "body", b.Name, "tile", t.Name, "err", err)
		return false
	}
	if !complete {
		c.logger.Log("level", "notice", "body", b.Name, "tile", t.Name, "message", "short tile file")
	}
	t.pixels = pixels
	c.used += size
	tileLoads.Inc()
	return true
}

// evictOldest drops the loaded tile with the oldest access time.
func (c *Cache) evictOldest() bool {
	var oldest *Tile
	for _, name := range c.order {
		for _, t := range c.bodies[name].Tiles {
			if t.Loaded() && (oldest == nil || t.utc < oldest.utc) {
				oldest = t
			}
		}
	}
	if oldest == nil {
		return false
	}
	oldest.pixels = nil
	oldest.utc = 0
	c.used -= oldest.Bytes()
	c.Evictions++
	tileEvictions.Inc()
	return true
}

// Loaded returns the names of the tiles in memory for body.
func (c *Cache) Loaded(body string) []string {
	c.Lock()
	defer c.Unlock()
	var names []string
	if b, ok := c.bodies[body]; ok {
		for _, t := range b.Tiles {
			if t.Loaded() {
				names = append(names, t.Name)
			}
		}
	}
	return names
}

// Shutdown drops every body and tile. The cache reopens bodies on the next
// lookup.
func (c *Cache) Shutdown() {
	c.Lock()
	c.bodies, c.failed, c.order = nil, nil, nil
	c.used = 0
	c.Unlock()
}

// Surface returns the terrain of one body as seen by attitude strategies.
func (c *Cache) Surface(body string) *Surface {
	return &Surface{Cache: c, Body: body}
}

// Surface reads terrain normals of a single body.
type Surface struct {
	Cache *Cache
	Body  string
}

// Normal returns the east, north, up terrain normal, or a zero vector where
// the model has no data.
func (s *Surface) Normal(lat, lon, utc float64) mathlib.Vector {
	p := s.Cache.Pixel(s.Body, lon, lat, utc)
	return mathlib.NewVector(float64(p.Normal[0]), float64(p.Normal[1]), float64(p.Normal[2]))
}
