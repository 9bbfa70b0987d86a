package entities

// ProcessParameters are the plant conditions around the boiler feed pump.
// Heights in metres, pressures in kg/cm².
type ProcessParameters struct {
	TankHeight    float64 `json:"h1"` // DA tank
	DrumHeight    float64 `json:"h2"` // boiler drum
	TankPressure  float64 `json:"p1"`
	DrumPressure  float64 `json:"p2"`
	FeedWaterTemp float64 `json:"feed_water_temp"` // °C
	SG            float64 `json:"sg"`
}

// NamePlateReading is the nominal rating stamped on the pump.
type NamePlateReading struct {
	Qnp        float64 `json:"qnp"` // m³/h
	Hnp        float64 `json:"hnp"` // m
	BKWnp      float64 `json:"bkwnp"`
	Efficiency float64 `json:"efficiency"`
	N1         float64 `json:"n1"` // rpm
}

// ActualOperatingPoint is what the pump is measured doing on site.
type ActualOperatingPoint struct {
	Qact  float64 `json:"qact"`
	Hact  float64 `json:"hact"`
	N2    float64 `json:"n2"`
	Power float64 `json:"power"`
}
