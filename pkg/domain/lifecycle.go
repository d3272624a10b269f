package domain

import "time"

// Growth timing defaults. Deployment wiring may override them per network;
// the invariants only assume WateringWindow <= GrowthCycle.
const (
	// DefaultGrowthCycle is the initial grace period after planting during
	// which no watering is required.
	DefaultGrowthCycle = 3 * time.Hour
	// DefaultWateringWindow is the length of each recurring window in which
	// the plant must be watered exactly once to survive into the next.
	DefaultWateringWindow = time.Hour
)

// GrowthSchedule holds the two durations that drive the derived liveness
// predicate. The zero value uses the defaults.
type GrowthSchedule struct {
	GrowthCycle    time.Duration `json:"growth_cycle"`
	WateringWindow time.Duration `json:"watering_window"`
}

func (s GrowthSchedule) withDefaults() GrowthSchedule {
	if s.GrowthCycle <= 0 {
		s.GrowthCycle = DefaultGrowthCycle
	}
	if s.WateringWindow <= 0 {
		s.WateringWindow = DefaultWateringWindow
	}
	return s
}

// StageAt computes the lifecycle stage of an orchid at the given instant.
// The result is derived, never stored: liveness is a pure function of
// {PlantedAt, WaterLevel, now} so stored and true state cannot diverge while
// no transaction runs.
//
// Time is partitioned into the grace period [0, cycle) followed by
// half-open watering windows [cycle+(k-1)*window, cycle+k*window) for
// k = 1, 2, 3, ... The plant survives into window k+1 only if it was watered
// during window k; at the exact closing instant of an unwatered window the
// plant is already dead. Death is terminal.
func (s GrowthSchedule) StageAt(o Orchid, now time.Time) GrowthStage {
	if !o.Germinated() {
		if o.PendingRequestID != "" {
			return StageSeed
		}
		return StageUnplanted
	}
	s = s.withDefaults()
	elapsed := now.Sub(o.PlantedAt)
	if elapsed < s.GrowthCycle {
		return StageFlowering
	}
	// Number of windows fully closed at this instant; each one must have
	// been watered.
	closed := uint64((elapsed - s.GrowthCycle) / s.WateringWindow)
	if uint64(o.WaterLevel) >= closed {
		return StageFlowering
	}
	return StageDead
}

// Alive reports whether the orchid is germinated and not dead at the given
// instant.
func (s GrowthSchedule) Alive(o Orchid, now time.Time) bool {
	return s.StageAt(o, now) == StageFlowering
}

// CurrentWindow returns the 1-based index of the watering window open at the
// given instant, or 0 during the grace period or before planting. Watering
// is accepted at most once per open window: a plant may water only while
// WaterLevel is below the current window index.
func (s GrowthSchedule) CurrentWindow(o Orchid, now time.Time) uint64 {
	if !o.Germinated() {
		return 0
	}
	s = s.withDefaults()
	elapsed := now.Sub(o.PlantedAt)
	if elapsed < s.GrowthCycle {
		return 0
	}
	return uint64((elapsed-s.GrowthCycle)/s.WateringWindow) + 1
}
