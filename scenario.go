package cosmos

import (
	"github.com/ChristopherRabotin/cosmos/physics"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// AddSatellites adds the spacecraft of sats. Those without offset fly orbit
// at priority 0, the others fly in the LVLH frame of the first spacecraft at
// priority 1. An error on the first spacecraft is returned at once; later
// spacecraft which cannot be added are skipped and their errors joined.
func (s *Simulator) AddSatellites(orbit OrbitRecord, sats []SatRecord, base *physics.Physics) error {
	if len(sats) == 0 {
		return ErrNoSatellite
	}
	if base == nil {
		base = physics.NewPhysics(s.dt)
	}
	var errs error
	primary := ""
	for i, sat := range sats {
		opts := []NodeOption{WithPhysics(sat.Physics(base)), WithKind(sat.Kind), WithMaxThrust(sat.MaxThrust)}
		if sat.Detector != nil {
			s.AddDetector(sat.Detector)
			opts = append(opts, WithDetector(sat.Detector.Name))
		}
		att := sat.Attitude
		if att == 0 {
			att = physics.AttLVLH
		}
		var err error
		switch {
		case sat.Offset != nil && primary != "":
			opts = append(opts, WithOrigin(primary))
			_, err = s.AddNode(sat.Name, physics.PosLvlh, att, 1, physics.InitialCondition{LVLH: sat.Offset}, opts...)
		case sat.Offset != nil:
			err = errors.Wrapf(ErrNoSatellite, "%s: offset without a primary spacecraft", sat.Name)
		default:
			_, err = s.AddNode(sat.Name, orbit.Model, att, 0, orbit.IC, opts...)
			if err == nil && primary == "" {
				primary = sat.Name
			}
		}
		if err != nil {
			if i == 0 {
				return errors.Wrapf(err, "primary spacecraft %s", sat.Name)
			}
			s.logger.Log("level", "warning", "subsys", "config", "node", sat.Name, "err", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// AddTargets adds every record and returns the number of targets.
func (s *Simulator) AddTargets(recs []TargetRecord) (int, error) {
	var errs error
	for _, r := range recs {
		if _, err := s.AddTarget(r.Name, r.Lat, r.Lon, r.Alt, r.Area, r.Type); err != nil {
			s.logger.Log("level", "warning", "subsys", "config", "target", r.Name, "err", err)
			errs = multierr.Append(errs, err)
		}
	}
	return len(s.targets), errs
}
