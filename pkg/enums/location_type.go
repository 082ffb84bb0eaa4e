package enums

import "fmt"

// LocationType classifies a storage location.
type LocationType string

const (
	LocationWarehouse   LocationType = "warehouse"
	LocationColdStorage LocationType = "cold_storage"
	LocationField       LocationType = "field"
	LocationRetail      LocationType = "retail"
)

var validLocationTypes = []LocationType{
	LocationWarehouse,
	LocationColdStorage,
	LocationField,
	LocationRetail,
}

func (l LocationType) IsValid() bool {
	for _, candidate := range validLocationTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

func ParseLocationType(value string) (LocationType, error) {
	for _, candidate := range validLocationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid location type %q", value)
}
