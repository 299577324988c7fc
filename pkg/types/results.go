package types

import "time"

// Cost component names used in bill breakdowns.
const (
	CostEnergy     = "energy"
	CostTiered     = "tiered_energy"
	CostDemand     = "demand"
	CostNEMCredit  = "nem_credit"
	CostShed       = "lost_load"
	CostCustomer   = "customer"
	CostInvestment = "investment"
)

// DispatchRow is one timestep of the per-timestep result table.
type DispatchRow struct {
	Timestamp time.Time `json:"timestamp"`

	DemandKW     float64 `json:"demandKW"`
	NetDemandKW  float64 `json:"netDemandKW"`
	NetExportsKW float64 `json:"netExportsKW"`

	SolarBTMKW    float64 `json:"solarBTMKW,omitempty"`
	SolarExportKW float64 `json:"solarExportKW,omitempty"`

	BatteryChargeKW    float64 `json:"batteryChargeKW,omitempty"`
	BatteryDischargeKW float64 `json:"batteryDischargeKW,omitempty"`
	BatteryExportKW    float64 `json:"batteryExportKW,omitempty"`
	BatterySOCKWH      float64 `json:"batterySOCKWH,omitempty"`

	ShiftDeviationKW float64 `json:"shiftDeviationKW,omitempty"`
	ShedKW           float64 `json:"shedKW,omitempty"`

	EnergyDollarsPerKWH float64 `json:"energyDollarsPerKWH"`
	SellDollarsPerKWH   float64 `json:"sellDollarsPerKWH,omitempty"`
}

// WindowResult is the outcome of one optimization window.
type WindowResult struct {
	Start     time.Time          `json:"start"`
	End       time.Time          `json:"end"`
	Objective float64            `json:"objective"`
	Costs     map[string]float64 `json:"costs"`
}

// CapacityResult reports optimized asset sizes in expansion mode.
type CapacityResult struct {
	SolarKW           float64 `json:"solarKW,omitempty"`
	StorageEnergyKWH  float64 `json:"storageEnergyKWH,omitempty"`
	StoragePowerKW    float64 `json:"storagePowerKW,omitempty"`
	AnnualizedDollars float64 `json:"annualizedDollars,omitempty"`
}

// RunResult accumulates the results of a full multi-window run. When a window
// fails to solve, Completed is false, Failure describes the window, and the
// partial results up to that window are preserved.
type RunResult struct {
	Scenario  string    `json:"scenario"`
	StartedAt time.Time `json:"startedAt"`

	Rows     []DispatchRow      `json:"rows"`
	Windows  []WindowResult     `json:"windows"`
	Costs    map[string]float64 `json:"costs"`
	Total    float64            `json:"total"`
	Capacity CapacityResult     `json:"capacity"`

	Completed bool   `json:"completed"`
	Failure   string `json:"failure,omitempty"`
}
