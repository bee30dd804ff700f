package model

// Viewer is the entitlement of the caller, resolved once at the request
// boundary. The core never re-derives authorization from raw role strings;
// it only branches on this value.
type Viewer struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// Wholesaler reports whether the viewer sees self-owned data scopes.
func (v Viewer) Wholesaler() bool {
	return v.Role == RoleWholesaler
}
