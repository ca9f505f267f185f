package domain

// Grant is the fixed set of other seats' information a role is entitled to
// see from role assignment onward. Grants are computed once, as a pure
// function of the full role assignment, and never change mid-match.
type Grant struct {
	// Seats lists the other seats the observer knows something about.
	Seats []int
	// RolesVisible reveals the specific role of each granted seat. Merlin
	// sees evil seats as a team only; evil seats see each other's roles.
	RolesVisible bool
}

// Includes reports whether the grant covers a seat.
func (g Grant) Includes(seat int) bool {
	for _, s := range g.Seats {
		if s == seat {
			return true
		}
	}
	return false
}

// KnowledgeGrants computes the per-seat knowledge grants for a full role
// assignment. Visibility rules live here, in one table-driven function,
// rather than spread across per-role types.
func KnowledgeGrants(players []Player) map[int]Grant {
	var evil []int
	for _, p := range players {
		if p.Role.IsEvil() {
			evil = append(evil, p.Seat)
		}
	}

	grants := make(map[int]Grant, len(players))
	for _, p := range players {
		switch {
		case p.Role.SeesEvil():
			grants[p.Seat] = Grant{Seats: append([]int(nil), evil...)}
		case p.Role.KnowsTeammates():
			var teammates []int
			for _, seat := range evil {
				if seat != p.Seat {
					teammates = append(teammates, seat)
				}
			}
			grants[p.Seat] = Grant{Seats: teammates, RolesVisible: true}
		default:
			grants[p.Seat] = Grant{}
		}
	}
	return grants
}
