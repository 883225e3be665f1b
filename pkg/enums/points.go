package enums

// PointsOwnerType identifies who a points account belongs to.
type PointsOwnerType string

const (
	PointsOwnerRestaurant PointsOwnerType = "restaurant"
	PointsOwnerCourier    PointsOwnerType = "courier"
)

var pointsOwnerTypes = []PointsOwnerType{PointsOwnerRestaurant, PointsOwnerCourier}

func (p PointsOwnerType) IsValid() bool {
	return known(p, pointsOwnerTypes)
}

// ParsePointsOwnerType converts raw input into a PointsOwnerType.
func ParsePointsOwnerType(value string) (PointsOwnerType, error) {
	return parse("points owner type", value, pointsOwnerTypes)
}

// PointsStanding summarises an account's penalty state.
type PointsStanding string

const (
	PointsStandingActive    PointsStanding = "active"
	PointsStandingWarned    PointsStanding = "warned"
	PointsStandingSuspended PointsStanding = "suspended"
)

func (p PointsStanding) String() string {
	return string(p)
}
