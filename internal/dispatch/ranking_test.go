package dispatch

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/clinic-ops/internal/geo"
)

func unitAt(cap Capability, loc *geo.Coordinate, idle *time.Time) Unit {
	return Unit{
		ID:         uuid.New(),
		Status:     UnitAvailable,
		Capability: cap,
		Location:   loc,
		IdleSince:  idle,
	}
}

func TestRankNearestFirst(t *testing.T) {
	patient := geo.Coordinate{Lat: 10.76, Lon: 106.66}
	near := unitAt(CapStandard, &geo.Coordinate{Lat: 10.77, Lon: 106.66}, nil)
	far := unitAt(CapICU, &geo.Coordinate{Lat: 10.90, Lon: 106.66}, nil)

	ranked := rankCandidates([]Unit{far, near}, patient, PriorityMedium)
	require.Len(t, ranked, 2)
	require.Equal(t, near.ID, ranked[0].unit.ID)
	require.NotNil(t, ranked[0].distanceKm)
	require.Less(t, *ranked[0].distanceKm, *ranked[1].distanceKm)
}

func TestRankUrgentPrefersICU(t *testing.T) {
	patient := geo.Coordinate{Lat: 10.76, Lon: 106.66}
	loc := geo.Coordinate{Lat: 10.77, Lon: 106.66}
	standard := unitAt(CapStandard, &loc, nil)
	advanced := unitAt(CapAdvanced, &loc, nil)
	icu := unitAt(CapICU, &loc, nil)

	ranked := rankCandidates([]Unit{standard, advanced, icu}, patient, PriorityCritical)
	require.Equal(t, icu.ID, ranked[0].unit.ID)
	require.Equal(t, advanced.ID, ranked[1].unit.ID)
	require.Equal(t, standard.ID, ranked[2].unit.ID)

	// capability wins over distance for urgent dispatches
	farICU := unitAt(CapICU, &geo.Coordinate{Lat: 10.95, Lon: 106.66}, nil)
	ranked = rankCandidates([]Unit{standard, farICU}, patient, PriorityHigh)
	require.Equal(t, farICU.ID, ranked[0].unit.ID)

	// non-urgent ignores capability
	ranked = rankCandidates([]Unit{standard, farICU}, patient, PriorityLow)
	require.Equal(t, standard.ID, ranked[0].unit.ID)
}

func TestRankCoordinateLessFallback(t *testing.T) {
	patient := geo.Coordinate{Lat: 10.76, Lon: 106.66}
	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-10 * time.Minute)
	longIdle := unitAt(CapStandard, nil, &older)
	shortIdle := unitAt(CapStandard, nil, &newer)
	noIdle := unitAt(CapStandard, nil, nil)

	ranked := rankCandidates([]Unit{noIdle, shortIdle, longIdle}, patient, PriorityMedium)
	require.Len(t, ranked, 3)
	require.Equal(t, longIdle.ID, ranked[0].unit.ID)
	require.Equal(t, shortIdle.ID, ranked[1].unit.ID)
	require.Equal(t, noIdle.ID, ranked[2].unit.ID)
	require.Nil(t, ranked[0].distanceKm)

	// any located unit pushes the whole blind pool out
	located := unitAt(CapStandard, &geo.Coordinate{Lat: 10.99, Lon: 106.66}, nil)
	ranked = rankCandidates([]Unit{longIdle, located}, patient, PriorityMedium)
	require.Len(t, ranked, 1)
	require.Equal(t, located.ID, ranked[0].unit.ID)
}

func TestRankDeterministic(t *testing.T) {
	patient := geo.Coordinate{Lat: 10.76, Lon: 106.66}
	loc := geo.Coordinate{Lat: 10.77, Lon: 106.66}
	idle := time.Now().Add(-time.Hour)
	a := unitAt(CapStandard, &loc, &idle)
	b := unitAt(CapStandard, &loc, &idle)

	first := rankCandidates([]Unit{a, b}, patient, PriorityMedium)
	second := rankCandidates([]Unit{b, a}, patient, PriorityMedium)
	require.Equal(t, first[0].unit.ID, second[0].unit.ID)
	require.Equal(t, first[1].unit.ID, second[1].unit.ID)
}
