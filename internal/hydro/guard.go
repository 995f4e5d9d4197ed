package hydro

// Authorize fails with ErrForbidden unless p owns the resource.
// This is the only owner comparison in the codebase; callers pass the
// owner ID of the resolved entity, never a value taken from a payload.
func Authorize(p Principal, ownerID string) error {
	if p.UserID == "" || p.UserID != ownerID {
		return ErrForbidden
	}
	return nil
}
