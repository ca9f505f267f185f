package domain

// Team is one of the two hidden alignments.
type Team string

const (
	// TeamGood wins by completing three quests and surviving the assassination.
	TeamGood Team = "good"
	// TeamEvil wins by failing three quests, exhausting five team votes in a
	// round, or assassinating Merlin.
	TeamEvil Team = "evil"
)

// Role is a member of the closed role set. Rule variants may extend the set;
// every role maps to exactly one team.
type Role string

const (
	// RoleMerlin knows the evil seats but must stay hidden.
	RoleMerlin Role = "merlin"
	// RoleLoyalServant has no special knowledge.
	RoleLoyalServant Role = "loyal_servant"
	// RoleAssassin picks a seat at game end; hitting Merlin flips the outcome.
	RoleAssassin Role = "assassin"
	// RoleMinion knows the other evil seats.
	RoleMinion Role = "minion"
)

// Team returns the alignment for the role.
func (r Role) Team() Team {
	switch r {
	case RoleAssassin, RoleMinion:
		return TeamEvil
	default:
		return TeamGood
	}
}

// IsEvil reports whether the role is on the evil team.
func (r Role) IsEvil() bool {
	return r.Team() == TeamEvil
}

// SeesEvil reports whether the role learns the evil seats at night.
func (r Role) SeesEvil() bool {
	return r == RoleMerlin
}

// KnowsTeammates reports whether the role learns the other evil seats and
// their specific roles at night.
func (r Role) KnowsTeammates() bool {
	return r.IsEvil()
}
