package enums

// MovementType classifies a stock movement. SALE is written only by
// payment confirmation; staff adjustments use IN or ADJUST.
type MovementType string

const (
	MovementTypeIn     MovementType = "IN"
	MovementTypeSale   MovementType = "SALE"
	MovementTypeAdjust MovementType = "ADJUST"
)

var movementTypes = newSet("movement type", MovementTypeIn, MovementTypeSale, MovementTypeAdjust)

func (m MovementType) String() string { return string(m) }
func (m MovementType) IsValid() bool  { return movementTypes.has(m) }

func ParseMovementType(value string) (MovementType, error) {
	return movementTypes.parse(value)
}

// StaffRole is carried in bearer tokens issued to back-office callers.
type StaffRole string

const (
	StaffRoleAdmin    StaffRole = "admin"
	StaffRolePayments StaffRole = "payments"
)

var staffRoles = newSet("staff role", StaffRoleAdmin, StaffRolePayments)

func (s StaffRole) String() string { return string(s) }
func (s StaffRole) IsValid() bool  { return staffRoles.has(s) }

func ParseStaffRole(value string) (StaffRole, error) {
	return staffRoles.parse(value)
}
