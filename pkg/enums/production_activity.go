package enums

import "fmt"

type ProductionActivity string

const (
	ActivityPlanting    ProductionActivity = "planting"
	ActivityFertilizing ProductionActivity = "fertilizing"
	ActivitySpraying    ProductionActivity = "spraying"
	ActivityIrrigation  ProductionActivity = "irrigation"
	ActivityHarvest     ProductionActivity = "harvest"
	ActivityOther       ProductionActivity = "other"
)

var validProductionActivities = []ProductionActivity{
	ActivityPlanting,
	ActivityFertilizing,
	ActivitySpraying,
	ActivityIrrigation,
	ActivityHarvest,
	ActivityOther,
}

func (a ProductionActivity) IsValid() bool {
	for _, candidate := range validProductionActivities {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseProductionActivity(value string) (ProductionActivity, error) {
	for _, candidate := range validProductionActivities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid production activity %q", value)
}
