// Package dem serves digital elevation model tiles for the surface of a body.
package dem

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// IndexFile is the tile index read from each body (and multi tile) directory.
const IndexFile = "dems5.dat"

// BodyFile optionally holds "orbit radius highest" for a body.
const BodyFile = "body.dat"

// PixelSize is the size in bytes of one pixel record.
const PixelSize = 16

const (
	// TileSingle is an index entry naming a pixel file.
	TileSingle = 1
	// TileMulti is an index entry naming a directory with its own index.
	TileMulti = 2
)

var (
	// ErrIndex is returned for malformed index lines.
	ErrIndex = errors.New("malformed DEM index")
	// ErrNoBody is returned when a body has no index.
	ErrNoBody = errors.New("no DEM for body")
)

// Pixel is one DEM sample: the altitude in meters and the surface normal in
// the local east, north, up frame.
type Pixel struct {
	Alt    float32
	Normal [3]float32
}

// Tile is one rectangular DEM. Corners are pixel edges in radians.
type Tile struct {
	Name                       string
	LonUL, LatUL, LonLR, LatLR float64
	Step                       float64
	XCount, YCount             int

	utc    float64
	pixels []Pixel
}

// Bytes is the memory a loaded tile takes.
func (t *Tile) Bytes() int64 {
	return int64(t.XCount) * int64(t.YCount) * PixelSize
}

// Loaded reports whether the pixels are in memory.
func (t *Tile) Loaded() bool {
	return t.pixels != nil
}

// Contains reports whether the point falls on the tile.
func (t *Tile) Contains(lon, lat float64) bool {
	const slack = 1e-13
	return lon >= t.LonUL-slack && lon <= t.LonLR+slack && lat >= t.LatLR-slack && lat <= t.LatUL+slack
}

// at returns the pixel under the point, clamped to the tile.
func (t *Tile) at(lon, lat float64) Pixel {
	row := clamp(int(math.Floor((t.LatUL-lat)/t.Step)), t.YCount)
	col := clamp(int(math.Floor((lon-t.LonUL)/t.Step)), t.XCount)
	return t.pixels[row*t.XCount+col]
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// ReadIndex parses "name lonUL latUL xcount ycount pixelsize type" lines.
// Coordinates and pixel sizes are in degrees with lonUL and latUL at the
// center of the upper left pixel. Entries of TileMulti type are returned
// as they are for the caller to expand.
func ReadIndex(r io.Reader) ([]Tile, []int, error) {
	var tiles []Tile
	var types []int
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 7 {
			return nil, nil, errors.Wrapf(ErrIndex, "line %d: %d fields", line, len(fields))
		}
		var nums [6]float64
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(ErrIndex, "line %d: %s", line, err)
			}
			nums[i] = v
		}
		xc, yc, typ := int(nums[2]), int(nums[3]), int(nums[5])
		if typ != TileSingle && typ != TileMulti {
			return nil, nil, errors.Wrapf(ErrIndex, "line %d: type %d", line, typ)
		}
		if typ == TileSingle && (xc <= 0 || yc <= 0 || nums[4] <= 0) {
			return nil, nil, errors.Wrapf(ErrIndex, "line %d: bad geometry", line)
		}
		step := nums[4] * math.Pi / 180
		t := Tile{Name: fields[0], Step: step, XCount: xc, YCount: yc}
		t.LonUL = nums[0]*math.Pi/180 - step/2
		t.LonLR = t.LonUL + float64(xc)*step
		t.LatUL = nums[1]*math.Pi/180 + step/2
		t.LatLR = t.LatUL - float64(yc)*step
		tiles = append(tiles, t)
		types = append(types, typ)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return tiles, types, nil
}

// Index cells span 0.9° in latitude and longitude.
const (
	gridRows = 200
	gridCols = 400
)

// Body is the tile set of one body with a coarse lookup grid.
type Body struct {
	Name    string
	Dir     string
	Orbit   float64
	Radius  float64
	Highest float64
	VScale  float64
	HScale  float64
	Tiles   []*Tile

	grid map[int][]int
}

// OpenBody reads the index of the body stored under dir/name.
func OpenBody(dir, name string) (*Body, error) {
	b := &Body{Name: name, Dir: filepath.Join(dir, name), VScale: 1, HScale: 1}
	if f, err := os.Open(filepath.Join(b.Dir, BodyFile)); err == nil {
		_, err = fscan(f, &b.Orbit, &b.Radius, &b.Highest)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", name, BodyFile)
		}
	}
	f, err := os.Open(filepath.Join(b.Dir, IndexFile))
	if err != nil {
		return nil, errors.Wrap(ErrNoBody, err.Error())
	}
	defer f.Close()
	tiles, types, err := ReadIndex(f)
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	for i := range tiles {
		if types[i] == TileSingle {
			t := tiles[i]
			b.Tiles = append(b.Tiles, &t)
			continue
		}
		sub, err := os.Open(filepath.Join(b.Dir, tiles[i].Name, IndexFile))
		if err != nil {
			return nil, errors.Wrapf(err, "%s multi tile %s", name, tiles[i].Name)
		}
		subs, _, err := ReadIndex(sub)
		sub.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "%s multi tile %s", name, tiles[i].Name)
		}
		for j := range subs {
			t := subs[j]
			t.Name = tiles[i].Name + "/" + t.Name
			b.Tiles = append(b.Tiles, &t)
		}
	}
	b.buildGrid()
	return b, nil
}

func fscan(r io.Reader, v ...*float64) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	n := 0
	for n < len(v) && sc.Scan() {
		f, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return n, err
		}
		*v[n] = f
		n++
	}
	return n, sc.Err()
}

func cell(lon, lat float64) (row, col int) {
	row = clamp(int(gridRows*(lat+math.Pi/2)/math.Pi), gridRows)
	col = clamp(int(gridCols*(lon+math.Pi)/(2*math.Pi)), gridCols)
	return
}

func (b *Body) buildGrid() {
	b.grid = make(map[int][]int)
	for i, t := range b.Tiles {
		rmin, cmin := cell(t.LonUL, t.LatLR)
		rmax, cmax := cell(t.LonLR, t.LatUL)
		for r := rmin; r <= rmax; r++ {
			for c := cmin; c <= cmax; c++ {
				b.grid[r*gridCols+c] = append(b.grid[r*gridCols+c], i)
			}
		}
	}
}

// Find returns the finest tile holding the point, or nil.
func (b *Body) Find(lon, lat float64) *Tile {
	r, c := cell(lon, lat)
	var best *Tile
	for _, i := range b.grid[r*gridCols+c] {
		t := b.Tiles[i]
		if t.Contains(lon, lat) && (best == nil || t.Step < best.Step) {
			best = t
		}
	}
	return best
}

// readPixels reads a tile file of little endian pixel records row by row. A
// short file leaves the missing rows zeroed.
func readPixels(r io.Reader, t *Tile) (pixels []Pixel, complete bool, err error) {
	pixels = make([]Pixel, t.XCount*t.YCount)
	for row := 0; row < t.YCount; row++ {
		err = binary.Read(r, binary.LittleEndian, pixels[row*t.XCount:(row+1)*t.XCount])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return pixels, false, nil
		}
		if err != nil {
			return nil, false, err
		}
	}
	return pixels, true, nil
}
