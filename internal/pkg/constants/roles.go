package constants

const (
	Producer  = "PRODUCER"
	Validator = "VALIDATOR"
	Investor  = "INVESTOR"
	Admin     = "ADMIN"
)

// RegistrableRoles are the roles a user may pick at registration. ADMIN is provisioned out of band.
var RegistrableRoles = []string{Producer, Validator, Investor}

// IsValidRole returns true if role is one of the known user roles.
func IsValidRole(role string) bool {
	switch role {
	case Producer, Validator, Investor, Admin:
		return true
	}
	return false
}
