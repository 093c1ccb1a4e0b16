package cycle

import (
	"fmt"
	"slices"
)

// Part is the code of a maintainable component or fluid category.
type Part string

// Consumable is the code of a filter-type item serviced alongside parts.
type Consumable string

const (
	EngineOil        Part = "engine_oil"
	MainHoistGearOil Part = "main_hoist_gear_oil"
	LionHeadGearOil  Part = "lion_head_gear_oil"
	AuxHoistGearOil  Part = "aux_hoist_gear_oil"
	LuffingGearOil   Part = "luffing_gear_oil"
	SlewingGearOil   Part = "slewing_gear_oil"
	CirculationOil   Part = "circulation_oil"
	Belts            Part = "belts"
	Sprocket         Part = "sprocket"
	SprocketOiling   Part = "sprocket_oiling"
)

const (
	EngineOilFilter         Consumable = "engine_oil_filter"
	FuelOilFilter           Consumable = "fuel_oil_filter"
	BrakeDrainFilter        Consumable = "brake_drain_filter"
	CirculationDrainFilter  Consumable = "circulation_drain_filter"
	CirculationInletFilter  Consumable = "circulation_inlet_filter"
	CirculationReturnFilter Consumable = "circulation_return_filter"
)

// Parts lists every part code in canonical order.
var Parts = []Part{
	EngineOil,
	MainHoistGearOil,
	LionHeadGearOil,
	AuxHoistGearOil,
	LuffingGearOil,
	SlewingGearOil,
	CirculationOil,
	Belts,
	Sprocket,
	SprocketOiling,
}

// Consumables lists every consumable code in canonical order.
var Consumables = []Consumable{
	EngineOilFilter,
	FuelOilFilter,
	BrakeDrainFilter,
	CirculationDrainFilter,
	CirculationInletFilter,
	CirculationReturnFilter,
}

// dueRule reports whether a part is due in the given cycle index.
type dueRule func(index int) bool

func everyNth(n int) dueRule {
	return func(index int) bool { return index%n == 0 }
}

var dueRules = map[Part]dueRule{
	EngineOil:        everyNth(1),
	MainHoistGearOil: everyNth(2),
	LionHeadGearOil:  everyNth(2),
	AuxHoistGearOil:  everyNth(3),
	LuffingGearOil:   everyNth(3),
	SlewingGearOil:   everyNth(3),
	CirculationOil:   everyNth(4),
	Belts:            everyNth(CyclesPerRound),
	Sprocket:         everyNth(CyclesPerRound),
	SprocketOiling:   everyNth(CyclesPerRound),
}

// IntervalHours is the service interval of each part.
var IntervalHours = map[Part]int{
	EngineOil:        CycleHours,
	MainHoistGearOil: 2 * CycleHours,
	LionHeadGearOil:  2 * CycleHours,
	AuxHoistGearOil:  3 * CycleHours,
	LuffingGearOil:   3 * CycleHours,
	SlewingGearOil:   3 * CycleHours,
	CirculationOil:   4 * CycleHours,
	Belts:            RoundHours,
	Sprocket:         RoundHours,
	SprocketOiling:   RoundHours,
}

var implied = map[Part][]Consumable{
	EngineOil: {
		EngineOilFilter,
		FuelOilFilter,
	},
	CirculationOil: {
		BrakeDrainFilter,
		CirculationDrainFilter,
		CirculationInletFilter,
		CirculationReturnFilter,
	},
}

// DueParts returns the parts due in a cycle, in canonical order.
func DueParts(index int) ([]Part, error) {
	if index < 1 || index > CyclesPerRound {
		return nil, fmt.Errorf("%w: cycle index %d outside 1..%d", ErrInvalidInput, index, CyclesPerRound)
	}
	due := make([]Part, 0, len(Parts))
	for _, p := range Parts {
		if dueRules[p](index) {
			due = append(due, p)
		}
	}
	return due, nil
}

// ImpliedConsumables returns a copy of the consumables changed together with a part.
func ImpliedConsumables(p Part) []Consumable {
	return slices.Clone(implied[p])
}

// ConsumablesHint returns the consumables implied by parts, deduplicated and in canonical order.
func ConsumablesHint(parts []Part) []Consumable {
	want := make(map[Consumable]bool)
	for _, p := range parts {
		for _, c := range implied[p] {
			want[c] = true
		}
	}
	hint := make([]Consumable, 0, len(want))
	for _, c := range Consumables {
		if want[c] {
			hint = append(hint, c)
		}
	}
	return hint
}

// IsPart reports whether s is a known part code.
func IsPart(s string) bool {
	_, ok := dueRules[Part(s)]
	return ok
}

// IsConsumable reports whether s is a known consumable code.
func IsConsumable(s string) bool {
	for _, c := range Consumables {
		if string(c) == s {
			return true
		}
	}
	return false
}

// SortParts returns the members of set in canonical order.
func SortParts(set map[Part]bool) []Part {
	out := make([]Part, 0, len(set))
	for _, p := range Parts {
		if set[p] {
			out = append(out, p)
		}
	}
	return out
}

// SortConsumables returns the members of set in canonical order.
func SortConsumables(set map[Consumable]bool) []Consumable {
	out := make([]Consumable, 0, len(set))
	for _, c := range Consumables {
		if set[c] {
			out = append(out, c)
		}
	}
	return out
}
