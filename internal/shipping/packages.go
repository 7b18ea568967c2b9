package shipping

import "github.com/jatango/liveshop/internal/orders"

// PackagePreset is a fixed catalog entry of standard carrier packaging.
type PackagePreset struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

var Presets = []PackagePreset{
	{ID: "small_box", Name: "Small Box", Length: 8.69, Width: 5.44, Height: 1.75},
	{ID: "medium_box", Name: "Medium Box", Length: 11.25, Width: 8.75, Height: 6},
	{ID: "large_box", Name: "Large Box", Length: 12.25, Width: 12.25, Height: 8.5},
	{ID: "poly_mailer", Name: "Poly Mailer", Length: 12, Width: 9, Height: 0.5},
}

func PresetByID(id string) (PackagePreset, bool) {
	for _, p := range Presets {
		if p.ID == id {
			return p, true
		}
	}
	return PackagePreset{}, false
}

// Carrier weights are quoted in pounds; catalog weights arrive in whatever
// unit the seller entered.
const (
	gramsPerPound = 453.592
	poundsPerKilo = 2.20462
)

func PoundsFor(weight float64, unit string) float64 {
	switch unit {
	case "oz":
		return weight / 16
	case "g":
		return weight / gramsPerPound
	case "kg":
		return weight * poundsPerKilo
	default: // lb or unspecified
		return weight
	}
}

// DefaultWeight sums the per-item catalog weights normalized to pounds.
// When nothing usable is on file it falls back to 1 lb so a rate request
// never goes out weightless.
func DefaultWeight(items []orders.OrderItem) float64 {
	var total float64
	for _, it := range items {
		total += PoundsFor(it.Weight, it.WeightUnit) * float64(it.Qty)
	}
	if total <= 0 {
		return 1
	}
	return total
}
