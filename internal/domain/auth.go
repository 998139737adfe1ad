package domain

// OperatorRole enumerates roles allowed on the operator API.
type OperatorRole string

const (
	OperatorRoleAdmin    OperatorRole = "FACILITY_ADMIN"
	OperatorRoleOperator OperatorRole = "FACILITY_OPERATOR"
	OperatorRoleViewer   OperatorRole = "VIEWER"
)

// Operator is the authenticated caller of the operator API, taken from bearer token claims.
type Operator struct {
	ID    string
	Name  string
	Email string
	Role  OperatorRole
}

// Actor converts the operator into the identity stamped on tickets.
func (o *Operator) Actor() Actor {
	return Actor{ID: o.ID, Name: o.Name, Email: o.Email}
}
