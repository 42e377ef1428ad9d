package cosmos

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ChristopherRabotin/cosmos/convert"
	kitlog "github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// ExportConfig configures the exporting of the simulation.
type ExportConfig struct {
	Filename string
	// Dir defaults to general.output_path.
	Dir       string
	CZML      bool
	AsCSV     bool
	Timestamp bool
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.CZML && !c.AsCSV
}

func (c ExportConfig) path(prefix, ext string) string {
	dir := c.Dir
	if dir == "" {
		dir = cosmosConfig().OutputDir
	}
	name := fmt.Sprintf("%s-%s", prefix, c.Filename)
	if c.Timestamp {
		t := time.Now()
		name += fmt.Sprintf("-%d-%02d-%02dT%02d.%02d.%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return filepath.Join(dir, name+"."+ext)
}

// CZMLDocument is a time-tagged trajectory document. Time tags are seconds
// after Epoch (MJD), positions are ECI meters and orientations ICRF to body
// quaternions, each sample flattened into its array.
type CZMLDocument struct {
	Name   string      `json:"name"`
	Epoch  float64     `json:"epoch"`
	Start  string      `json:"start"`
	End    string      `json:"end"`
	Frame  string      `json:"referenceFrame"`
	Nodes  []*CZMLNode `json:"nodes"`
	Labels []string    `json:"targets,omitempty"`
}

// CZMLNode is the trajectory of one node.
type CZMLNode struct {
	Name        string    `json:"name"`
	Position    []float64 `json:"position"`
	Orientation []float64 `json:"orientation"`
}

var (
	stateHeader    = []string{"mjd", "node", "x", "y", "z", "vx", "vy", "vz", "qx", "qy", "qz", "qw"}
	coverageHeader = []string{"mjd", "node", "target", "range", "rangerate", "azimuth", "elevation", "offnadir", "resolution", "coverage", "visible"}
)

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func createCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "export")
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, nil, errors.Wrap(err, "export")
	}
	return f, w, nil
}

// StreamStates writes the snapshots of the channel until it is closed. The
// CZML document is written at the end, the CSV rows as they arrive. Angles
// of the coverage file are in degrees.
func StreamStates(conf ExportConfig, ch <-chan Snapshot, logger kitlog.Logger) (err error) {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	logger = kitlog.With(logger, "subsys", "export")
	var (
		fStates, fCov *os.File
		wStates, wCov *csv.Writer
		doc           *CZMLDocument
		byName        = make(map[string]*CZMLNode)
		first, last   float64
		count         int
	)
	keep := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}
	if conf.AsCSV {
		if fStates, wStates, err = createCSV(conf.path("states", "csv"), stateHeader); err != nil {
			logger.Log("level", "critical", "err", err)
			drain(ch)
			return err
		}
		defer fStates.Close()
		if fCov, wCov, err = createCSV(conf.path("coverage", "csv"), coverageHeader); err != nil {
			logger.Log("level", "critical", "err", err)
			drain(ch)
			return err
		}
		defer fCov.Close()
	}
	if conf.CZML {
		doc = &CZMLDocument{Name: conf.Filename, Frame: "ICRF"}
	}

	for snap := range ch {
		if count == 0 {
			first = snap.UTC
		}
		last = snap.UTC
		count++
		if wStates != nil {
			for _, n := range snap.Nodes {
				s, v, q := n.ECI.S, n.ECI.V, n.Att.S
				keep(wStates.Write([]string{
					fmtFloat(snap.UTC), n.Name,
					fmtFloat(s.X), fmtFloat(s.Y), fmtFloat(s.Z),
					fmtFloat(v.X), fmtFloat(v.Y), fmtFloat(v.Z),
					fmtFloat(q.D.X), fmtFloat(q.D.Y), fmtFloat(q.D.Z), fmtFloat(q.W),
				}))
			}
			for _, m := range snap.Coverage {
				keep(wCov.Write([]string{
					fmtFloat(m.UTC), m.Node, m.Target,
					fmtFloat(m.Range), fmtFloat(m.RangeRate),
					fmtFloat(m.Azimuth * r2d), fmtFloat(m.Elevation * r2d), fmtFloat(m.OffNadir * r2d),
					fmtFloat(m.Resolution), fmtFloat(m.Coverage), strconv.FormatBool(m.Visible),
				}))
			}
		}
		if doc != nil {
			t := convert.Seconds(snap.UTC - first)
			for _, n := range snap.Nodes {
				cn, ok := byName[n.Name]
				if !ok {
					cn = &CZMLNode{Name: n.Name}
					byName[n.Name] = cn
					doc.Nodes = append(doc.Nodes, cn)
				}
				s, q := n.ECI.S, n.Att.S
				cn.Position = append(cn.Position, t, s.X, s.Y, s.Z)
				cn.Orientation = append(cn.Orientation, t, q.D.X, q.D.Y, q.D.Z, q.W)
			}
			for _, m := range snap.Coverage {
				if !contains(doc.Labels, m.Target) {
					doc.Labels = append(doc.Labels, m.Target)
				}
			}
		}
	}

	if wStates != nil {
		wStates.Flush()
		wCov.Flush()
		keep(errors.Wrap(wStates.Error(), "export states"))
		keep(errors.Wrap(wCov.Error(), "export coverage"))
		logger.Log("level", "info", "file", fStates.Name(), "snapshots", count)
	}
	if doc != nil {
		doc.Epoch = first
		doc.Start = convert.MJD2Time(first).Format(time.RFC3339)
		doc.End = convert.MJD2Time(last).Format(time.RFC3339)
		keep(writeJSON(conf.path("czml", "json"), doc))
		logger.Log("level", "info", "file", conf.path("czml", "json"), "nodes", len(doc.Nodes))
	}
	if err != nil {
		logger.Log("level", "critical", "err", err)
	}
	return err
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "export")
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(v); err != nil {
		return errors.Wrap(err, "export")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}

// drain consumes ch so that a failed export never blocks the simulation.
func drain(ch <-chan Snapshot) {
	for range ch {
	}
}

// Recorder feeds snapshots to StreamStates on its own goroutine.
type Recorder struct {
	ch  chan Snapshot
	wg  sync.WaitGroup
	err error
}

// NewRecorder starts the export of conf. It returns nil when conf exports
// nothing; a nil Recorder accepts and discards snapshots.
func NewRecorder(conf ExportConfig, logger kitlog.Logger) *Recorder {
	if conf.IsUseless() {
		return nil
	}
	r := &Recorder{ch: make(chan Snapshot, 1000)}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.err = StreamStates(conf, r.ch, logger)
	}()
	return r
}

// Record queues the current snapshot of sim.
func (r *Recorder) Record(sim *Simulator) {
	if r != nil {
		r.ch <- sim.Snapshot()
	}
}

// Close waits until every queued snapshot is written.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	close(r.ch)
	r.wg.Wait()
	return r.err
}
