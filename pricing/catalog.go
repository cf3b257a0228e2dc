// Package pricing implements the quote pricing core: per-unit cost
// decomposition, lead-time planning, lead-option markup, and expiration
// banner derivation. Everything in this package is pure and safe for
// concurrent use; rate tables are read-only configuration loaded at startup.
package pricing

import "strings"

// MaterialSpec describes one machinable material
type MaterialSpec struct {
	Code                string
	Name                string
	DensityGCm3         float64
	CostPerKg           float64 // fallback when live pricing is unavailable
	MachinabilityFactor float64 // 1 = baseline, higher = harder to machine
}

// ProcessConfig describes one manufacturing process
type ProcessConfig struct {
	Type                string
	SetupCost           float64 // fixed cost per job
	HourlyRate          float64 // per machine hour
	MaterialWasteFactor float64 // 1.2 = 20% waste
}

// FinishOption describes one surface finish
type FinishOption struct {
	Code        string
	Name        string
	BaseCost    float64
	PerAreaCost float64 // per cm2
}

// Process identifiers
const (
	ProcessCNCMilling       = "cnc-milling"
	ProcessCNCTurning       = "cnc-turning"
	ProcessSheetMetal       = "sheet-metal"
	ProcessInjectionMolding = "injection-molding"
)

// Tolerance classes
const (
	ToleranceStandard  = "standard"
	TolerancePrecision = "precision"
	ToleranceTight     = "tight"
)

// FinishAsMachined is the zero-cost default finish
const FinishAsMachined = "as-machined"

// Complexity classes reported by the CAD analysis collaborator
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

// Materials is the static material rate table
var Materials = map[string]MaterialSpec{
	"aluminum-6061":  {Code: "AL-6061", Name: "Aluminum 6061-T6", DensityGCm3: 2.7, CostPerKg: 8.5, MachinabilityFactor: 1},
	"aluminum-7075":  {Code: "AL-7075", Name: "Aluminum 7075-T6", DensityGCm3: 2.81, CostPerKg: 15, MachinabilityFactor: 1.2},
	"stainless-304":  {Code: "SS-304", Name: "Stainless Steel 304", DensityGCm3: 8, CostPerKg: 12, MachinabilityFactor: 1.8},
	"stainless-316":  {Code: "SS-316", Name: "Stainless Steel 316", DensityGCm3: 8, CostPerKg: 18, MachinabilityFactor: 2},
	"steel-1018":     {Code: "ST-1018", Name: "Steel 1018", DensityGCm3: 7.87, CostPerKg: 4.2, MachinabilityFactor: 1.2},
	"steel-4140":     {Code: "ST-4140", Name: "Steel 4140", DensityGCm3: 7.85, CostPerKg: 5.9, MachinabilityFactor: 1.45},
	"titanium-6al4v": {Code: "TI-6AL4V", Name: "Titanium Ti-6Al-4V", DensityGCm3: 4.43, CostPerKg: 85, MachinabilityFactor: 4},
	"copper":         {Code: "CU-C110", Name: "Copper C110", DensityGCm3: 8.96, CostPerKg: 14, MachinabilityFactor: 1.1},
	"brass-360":      {Code: "BRASS-360", Name: "Brass 360", DensityGCm3: 8.5, CostPerKg: 10, MachinabilityFactor: 0.8},
	"plastic-abs":    {Code: "ABS", Name: "ABS Plastic", DensityGCm3: 1.05, CostPerKg: 6, MachinabilityFactor: 0.4},
	"plastic-delrin": {Code: "DELRIN", Name: "Delrin (Acetal)", DensityGCm3: 1.41, CostPerKg: 8.5, MachinabilityFactor: 0.5},
	"inconel-718":    {Code: "INCONEL-718", Name: "Inconel 718", DensityGCm3: 8.19, CostPerKg: 55, MachinabilityFactor: 3},
}

// Processes is the static process rate table
var Processes = map[string]ProcessConfig{
	ProcessCNCMilling:       {Type: ProcessCNCMilling, SetupCost: 50, HourlyRate: 65, MaterialWasteFactor: 1.25},
	ProcessCNCTurning:       {Type: ProcessCNCTurning, SetupCost: 35, HourlyRate: 55, MaterialWasteFactor: 1.15},
	ProcessSheetMetal:       {Type: ProcessSheetMetal, SetupCost: 75, HourlyRate: 50, MaterialWasteFactor: 1.1},
	ProcessInjectionMolding: {Type: ProcessInjectionMolding, SetupCost: 2000, HourlyRate: 95, MaterialWasteFactor: 1.05},
}

// Finishes is the static finish rate table
var Finishes = map[string]FinishOption{
	"as-machined":     {Code: "AS-MACH", Name: "As Machined", BaseCost: 0, PerAreaCost: 0},
	"bead-blasted":    {Code: "BEAD-BLAST", Name: "Bead Blasted", BaseCost: 12, PerAreaCost: 0.03},
	"anodized-clear":  {Code: "ANOD-CLEAR", Name: "Anodized Type II (Clear)", BaseCost: 18, PerAreaCost: 0.05},
	"anodized-color":  {Code: "ANOD-COLOR", Name: "Anodized Type II (Color)", BaseCost: 25, PerAreaCost: 0.07},
	"powder-coated":   {Code: "POWDER", Name: "Powder Coated", BaseCost: 22, PerAreaCost: 0.05},
	"electropolished": {Code: "EPOL", Name: "Electropolished", BaseCost: 35, PerAreaCost: 0.09},
}

// GetMaterial resolves a material by key, code, or name fragment, falling
// back to aluminum 6061 like the upstream catalog does for unknown inputs.
func GetMaterial(nameOrCode string) MaterialSpec {
	normalized := normalizeKey(nameOrCode)
	for key, mat := range Materials {
		if normalizeKey(key) == normalized || normalizeKey(mat.Code) == normalized {
			return mat
		}
		if normalized != "" && strings.Contains(normalizeKey(mat.Name), normalized) {
			return mat
		}
	}
	return Materials["aluminum-6061"]
}

// GetProcess resolves a process config; ok is false for unknown types
func GetProcess(processType string) (ProcessConfig, bool) {
	p, ok := Processes[processType]
	return p, ok
}

// GetFinish resolves a finish by key or code, defaulting to as-machined
func GetFinish(nameOrCode string) FinishOption {
	normalized := normalizeKey(nameOrCode)
	for key, fin := range Finishes {
		if normalizeKey(key) == normalized || normalizeKey(fin.Code) == normalized {
			return fin
		}
	}
	return Finishes["as-machined"]
}

func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
