package dispatch

import (
	"sort"

	"github.com/clinicware/clinic-ops/internal/geo"
)

// candidate is a unit under consideration with its computed distance to
// the patient, nil when the unit reports no coordinates.
type candidate struct {
	unit       Unit
	distanceKm *float64
}

// capabilityRank orders equipment tiers for urgent dispatches; lower is
// better.
func capabilityRank(c Capability, urgent bool) int {
	if !urgent {
		return 0
	}
	switch c {
	case CapICU:
		return 0
	case CapAdvanced:
		return 1
	default:
		return 2
	}
}

// rankCandidates orders available units for an emergency. Units that
// report coordinates come first, sorted by capability match, then
// ascending distance, then longest idle. If no unit reports coordinates,
// the coordinate-less pool is ranked by capability match and longest
// idle. Ties fall back to the unit id so the order is deterministic.
func rankCandidates(units []Unit, target geo.Coordinate, priority Priority) []candidate {
	urgent := priority.Urgent()

	var located, blind []candidate
	for _, u := range units {
		if u.Location != nil {
			d := geo.DistanceKm(*u.Location, target)
			located = append(located, candidate{unit: u, distanceKm: &d})
		} else {
			blind = append(blind, candidate{unit: u})
		}
	}

	sort.Slice(located, func(i, j int) bool {
		a, b := located[i], located[j]
		if ra, rb := capabilityRank(a.unit.Capability, urgent), capabilityRank(b.unit.Capability, urgent); ra != rb {
			return ra < rb
		}
		if *a.distanceKm != *b.distanceKm {
			return *a.distanceKm < *b.distanceKm
		}
		if ia, ib := idleOrder(a.unit), idleOrder(b.unit); ia != ib {
			return ia < ib
		}
		return a.unit.ID.String() < b.unit.ID.String()
	})

	if len(located) > 0 {
		return located
	}

	sort.Slice(blind, func(i, j int) bool {
		a, b := blind[i], blind[j]
		if ra, rb := capabilityRank(a.unit.Capability, urgent), capabilityRank(b.unit.Capability, urgent); ra != rb {
			return ra < rb
		}
		if ia, ib := idleOrder(a.unit), idleOrder(b.unit); ia != ib {
			return ia < ib
		}
		return a.unit.ID.String() < b.unit.ID.String()
	})

	return blind
}

// idleOrder sorts longest-idle first; a unit with no idle timestamp sorts
// last.
func idleOrder(u Unit) int64 {
	if u.IdleSince == nil {
		return int64(^uint64(0) >> 1)
	}
	return u.IdleSince.UnixNano()
}
