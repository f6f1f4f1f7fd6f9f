// Package seed builds a deterministic manufacturing fixture and loads it into
// a warehouse so the dashboard can run without a Snowflake account.
package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type Config struct {
	Seed        int64
	Lines       int
	LogsPerLine int
	Incidents   int
	Start       time.Time
}

func DefaultConfig() Config {
	return Config{
		Seed:        42,
		Lines:       10,
		LogsPerLine: 12,
		Incidents:   40,
		Start:       time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC),
	}
}

type Product struct {
	ProductID   int64
	ProductName string
	Category    string
	UnitCost    float64
}

type ProductionLine struct {
	LineID   int64
	LineName string
	Location string
	Capacity int64
	Status   string
}

type MachineLog struct {
	LogID         int64
	LineID        int64
	ProductID     int64
	MachineID     string
	LogTime       time.Time
	Status        string
	Temperature   float64
	UnitsProduced int64
}

type FailureIncident struct {
	IncidentID      int64
	LineID          int64
	ProductID       int64
	IncidentTime    time.Time
	Description     string
	Resolved        bool
	DowntimeMinutes int64
}

type Fixture struct {
	Products  []Product
	Lines     []ProductionLine
	Logs      []MachineLog
	Incidents []FailureIncident
}

var catalog = []Product{
	{ProductID: 1, ProductName: "Gear Housing", Category: "Drivetrain", UnitCost: 42.5},
	{ProductID: 2, ProductName: "Brake Caliper", Category: "Braking", UnitCost: 61.25},
	{ProductID: 3, ProductName: "Fuel Injector", Category: "Engine", UnitCost: 38.9},
	{ProductID: 4, ProductName: "Steering Rack", Category: "Steering", UnitCost: 120},
	{ProductID: 5, ProductName: "Alternator", Category: "Electrical", UnitCost: 88.75},
	{ProductID: 6, ProductName: "Piston Ring Set", Category: "Engine", UnitCost: 17.4},
	{ProductID: 7, ProductName: "Shock Absorber", Category: "Suspension", UnitCost: 54},
	{ProductID: 8, ProductName: "Wiring Harness", Category: "Electrical", UnitCost: 23.15},
}

var (
	locations       = []string{"Plant A", "Plant B", "Plant C"}
	lineStatuses    = []string{"Running", "Running", "Running", "Maintenance", "Idle"}
	machineStatuses = []string{"RUNNING", "RUNNING", "RUNNING", "IDLE", "WARNING", "STOPPED"}
	descriptions    = []string{
		"Coolant leak detected at spindle",
		"Hydraulic pressure drop on press",
		"Conveyor belt misalignment",
		"Sensor calibration drift",
		"Motor overheating under load",
		"Tool wear exceeded threshold",
		"Unexpected emergency stop",
		"Lubrication system LEAK",
		"Power supply fluctuation",
		"Feeder jammed with scrap",
	}
)

type Generator struct {
	rnd *rand.Rand
	cfg Config
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(cfg.Seed)), cfg: cfg}
}

// Generate returns the same fixture for the same Config.
func Generate(cfg Config) Fixture {
	return NewGenerator(cfg).Fixture()
}

func (g *Generator) Fixture() Fixture {
	fixture := Fixture{Products: make([]Product, len(catalog))}
	copy(fixture.Products, catalog)

	for i := 1; i <= g.cfg.Lines; i++ {
		fixture.Lines = append(fixture.Lines, ProductionLine{
			LineID:   int64(i),
			LineName: fmt.Sprintf("Line %02d", i),
			Location: locations[(i-1)%len(locations)],
			Capacity: int64(200 + 50*g.rnd.Intn(7)),
			Status:   pickOne(g.rnd, lineStatuses),
		})
	}

	logID := int64(0)
	for _, line := range fixture.Lines {
		at := g.cfg.Start
		for i := 0; i < g.cfg.LogsPerLine; i++ {
			logID++
			status := pickOne(g.rnd, machineStatuses)
			fixture.Logs = append(fixture.Logs, MachineLog{
				LogID:         logID,
				LineID:        line.LineID,
				ProductID:     g.pickProductID(),
				MachineID:     fmt.Sprintf("M-%02d-%d", line.LineID, g.rnd.Intn(4)+1),
				LogTime:       at,
				Status:        status,
				Temperature:   g.pickTemperature(status),
				UnitsProduced: g.pickUnits(status),
			})
			at = at.Add(time.Duration(20+g.rnd.Intn(40)) * time.Minute)
		}
	}

	for i := 1; i <= g.cfg.Incidents && g.cfg.Lines > 0; i++ {
		fixture.Incidents = append(fixture.Incidents, FailureIncident{
			IncidentID:      int64(i),
			LineID:          int64(g.rnd.Intn(g.cfg.Lines) + 1),
			ProductID:       g.pickProductID(),
			IncidentTime:    g.cfg.Start.Add(time.Duration(g.rnd.Intn(7*24*60)) * time.Minute),
			Description:     pickOne(g.rnd, descriptions),
			Resolved:        g.rnd.Intn(100) < 60,
			DowntimeMinutes: int64(5 + g.rnd.Intn(235)),
		})
	}
	return fixture
}

func (g *Generator) pickProductID() int64 {
	return catalog[g.rnd.Intn(len(catalog))].ProductID
}

func (g *Generator) pickTemperature(status string) float64 {
	switch status {
	case "WARNING":
		return round2(85 + g.rnd.Float64()*15)
	case "STOPPED", "IDLE":
		return round2(22 + g.rnd.Float64()*10)
	default:
		return round2(55 + g.rnd.Float64()*25)
	}
}

func (g *Generator) pickUnits(status string) int64 {
	switch status {
	case "RUNNING":
		return int64(40 + g.rnd.Intn(80))
	case "WARNING":
		return int64(10 + g.rnd.Intn(40))
	default:
		return 0
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
