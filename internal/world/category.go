package world

import "fmt"

// Category is the closed set of entity kinds the core budgets for. Every
// per-category setting lives in a Profiles array indexed by Category.
type Category uint8

const (
	CategoryVehicle Category = iota
	CategoryStructure
	CategoryPedestrian
	CategoryVegetation
	CategoryOther

	NumCategories = int(CategoryOther) + 1
)

var categoryNames = [NumCategories]string{
	CategoryVehicle:    "vehicle",
	CategoryStructure:  "structure",
	CategoryPedestrian: "pedestrian",
	CategoryVegetation: "vegetation",
	CategoryOther:      "other",
}

func (c Category) String() string {
	if c.Valid() {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

func (c Category) Valid() bool { return int(c) < NumCategories }

// ParseCategory maps the config/script spelling of a category.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Categories lists every category in table order.
func Categories() [NumCategories]Category {
	var out [NumCategories]Category
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// PhysicsProfile is the activation band for one category. Entities activate
// inside ActivationRadius and deactivate only beyond
// ActivationRadius+DeactivationMargin.
type PhysicsProfile struct {
	Eligible           bool
	ActivationRadius   float32
	DeactivationMargin float32
}

// CategoryProfile bundles every per-category setting.
type CategoryProfile struct {
	Limit   int // 0 = unlimited
	LOD     TierTable
	Physics PhysicsProfile
}

type Profiles [NumCategories]CategoryProfile
