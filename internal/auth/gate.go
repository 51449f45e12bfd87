package auth

// Allowed reports whether the principal's role is a member of the required
// capability set. An absent principal is always denied for a non-empty set.
func Allowed(p *Principal, required []Role) bool {
	if p == nil {
		return false
	}
	for _, role := range required {
		if p.Role == role {
			return true
		}
	}
	return false
}

// CanModify reports whether the principal may mutate a resource owned by
// ownerID: the creator always may, everyone else needs a role from the
// operation-specific elevated set. Callers must resolve the resource first;
// a missing resource is a not-found outcome, never a permission decision.
func CanModify(p *Principal, ownerID int64, elevated ...Role) bool {
	if p == nil {
		return false
	}
	if p.ID == ownerID {
		return true
	}
	return Allowed(p, elevated)
}
