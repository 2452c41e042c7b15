// internal/nilm/classify.go
package nilm

import "math"

// DeviceType identifies the appliance category inferred from a power step.
type DeviceType int

const (
	DeviceUnknown DeviceType = iota
	DeviceLight
	DeviceMicrowave
	DeviceWashingMachine
	DeviceDishwasher
	DeviceRefrigerator
	DeviceAirConditioner
	DeviceWaterHeater
	DeviceTV
	DeviceComputer
	DeviceOther
)

// String returns the human-readable device label.
func (t DeviceType) String() string {
	switch t {
	case DeviceLight:
		return "Light"
	case DeviceMicrowave:
		return "Microwave"
	case DeviceWashingMachine:
		return "Washing Machine"
	case DeviceDishwasher:
		return "Dishwasher"
	case DeviceRefrigerator:
		return "Refrigerator"
	case DeviceAirConditioner:
		return "Air Conditioner"
	case DeviceWaterHeater:
		return "Water Heater"
	case DeviceTV:
		return "Television"
	case DeviceComputer:
		return "Computer"
	case DeviceOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// DeviceRange maps an inclusive power band in watts to a device category.
type DeviceRange struct {
	Type     DeviceType
	Name     string
	MinPower float64
	MaxPower float64
}

// otherFloorWatts divides the two fallback categories: an unmatched
// magnitude above this is "some real load we don't know" (Other), below
// it is likely noise (Unknown).
const otherFloorWatts = 50.0

// DefaultDeviceTable returns the built-in classification table. Ranges may
// overlap; declaration order is the tie-break rule, so the order here must
// be preserved exactly for reproducible classification.
func DefaultDeviceTable() []DeviceRange {
	return []DeviceRange{
		{DeviceLight, "Light", 5, 100},
		{DeviceTV, "Television", 50, 200},
		{DeviceComputer, "Computer", 100, 400},
		{DeviceMicrowave, "Microwave", 800, 1500},
		{DeviceDishwasher, "Dishwasher", 1200, 2000},
		{DeviceWashingMachine, "Washing Machine", 500, 2500},
		{DeviceAirConditioner, "Air Conditioner", 1000, 3000},
		{DeviceWaterHeater, "Water Heater", 1500, 4000},
		{DeviceRefrigerator, "Refrigerator", 100, 300},
	}
}

// Classifier maps a power step magnitude to a device category by linear
// scan of an ordered range table. It holds no mutable state.
type Classifier struct {
	table []DeviceRange
}

// NewClassifier creates a classifier over the given ordered table. A nil
// table selects the built-in default.
func NewClassifier(table []DeviceRange) *Classifier {
	if table == nil {
		table = DefaultDeviceTable()
	}
	return &Classifier{table: table}
}

// Classify returns the category and label for a power delta. The sign of
// the delta is ignored. The first table entry whose inclusive [min,max]
// band contains the magnitude wins; with no match, magnitudes above the
// Other floor classify as Other and the rest as Unknown. Classification
// is total: every input maps to a valid category.
func (c *Classifier) Classify(deltaPower float64) (DeviceType, string) {
	mag := math.Abs(deltaPower)

	for _, r := range c.table {
		if mag >= r.MinPower && mag <= r.MaxPower {
			return r.Type, r.Name
		}
	}

	if mag > otherFloorWatts {
		return DeviceOther, DeviceOther.String()
	}
	return DeviceUnknown, DeviceUnknown.String()
}
