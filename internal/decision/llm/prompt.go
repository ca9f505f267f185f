package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/avalon.arena/internal/decision"
	"github.com/louisbranch/avalon.arena/internal/match/projection"
)

// BuildPrompt renders a decision request as a model prompt. The prompt is
// assembled exclusively from the request's filtered view, so the seat's
// information boundary holds no matter what the model is asked.
func BuildPrompt(req decision.Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are playing a hidden-role deduction game as seat %d.\n", req.Seat)
	writeIdentity(&b, req.View)
	writeSituation(&b, req.View)
	writeHistory(&b, req.View)
	writeTask(&b, req)

	b.WriteString("\nAnswer with a single JSON object and nothing else.\n")
	return b.String()
}

func writeIdentity(b *strings.Builder, view projection.View) {
	var self projection.SeatView
	for _, p := range view.Players {
		if p.Self {
			self = p
			break
		}
	}
	if self.Role != "" {
		fmt.Fprintf(b, "Your role is %s.\n", self.Role)
	}

	var evilKnown, rolesKnown []string
	for _, p := range view.Players {
		if p.Self {
			continue
		}
		if p.KnownEvil {
			evilKnown = append(evilKnown, fmt.Sprintf("seat %d (%s)", p.Seat, p.Name))
		}
		if p.Role != "" {
			rolesKnown = append(rolesKnown, fmt.Sprintf("seat %d (%s) is %s", p.Seat, p.Name, p.Role))
		}
	}
	if len(evilKnown) > 0 {
		fmt.Fprintf(b, "You know these seats are evil: %s.\n", strings.Join(evilKnown, ", "))
	}
	if len(rolesKnown) > 0 {
		fmt.Fprintf(b, "You know: %s.\n", strings.Join(rolesKnown, "; "))
	}
}

func writeSituation(b *strings.Builder, view projection.View) {
	fmt.Fprintf(b, "\nPlayers (%d):\n", view.PlayerCount)
	for _, p := range view.Players {
		fmt.Fprintf(b, "  seat %d: %s\n", p.Seat, p.Name)
	}
	fmt.Fprintf(b, "Round %d, proposal attempt %d, leader is seat %d.\n", view.Round, view.Attempt, view.Leader)
	if len(view.ProposedTeam) > 0 {
		fmt.Fprintf(b, "Proposed team: %s.\n", seatList(view.ProposedTeam))
	}
}

func writeHistory(b *strings.Builder, view projection.View) {
	if len(view.Quests) > 0 {
		b.WriteString("\nQuest history:\n")
		for _, q := range view.Quests {
			result := "unresolved"
			if q.Succeeded != nil {
				if *q.Succeeded {
					result = "succeeded"
				} else {
					result = fmt.Sprintf("failed (%d fail votes)", q.FailVotes)
				}
			}
			fmt.Fprintf(b, "  round %d: team %s %s\n", q.Round, seatList(q.Team), result)
		}
	}
	if len(view.Votes) > 0 {
		b.WriteString("\nVote history:\n")
		for _, v := range view.Votes {
			outcome := "rejected"
			if v.Approved {
				outcome = "approved"
			}
			fmt.Fprintf(b, "  round %d attempt %d: leader %d proposed %s, %s (%s)\n",
				v.Round, v.Attempt, v.Leader, seatList(v.Team), outcome, ballotList(v.Ballots))
		}
	}
	if len(view.Discussion) > 0 {
		b.WriteString("\nDiscussion:\n")
		for _, entry := range view.Discussion {
			fmt.Fprintf(b, "  seat %d (%s): %s\n", entry.Seat, entry.Name, entry.Content)
		}
	}
	if len(view.AssassinationDiscussion) > 0 {
		b.WriteString("\nPrivate evil-team discussion:\n")
		for _, entry := range view.AssassinationDiscussion {
			fmt.Fprintf(b, "  seat %d (%s): %s\n", entry.Seat, entry.Name, entry.Content)
		}
	}
}

func writeTask(b *strings.Builder, req decision.Request) {
	b.WriteString("\n")
	switch req.Kind {
	case decision.KindProposeTeam:
		fmt.Fprintf(b, "You are the leader. Propose a quest team of exactly %d seats.\n", req.TeamSize)
		b.WriteString(`Respond as {"team": [<seat numbers>], "statement": "<optional public remark>"}.`)
	case decision.KindStatement:
		b.WriteString("Make a public statement about the proposed team, or pass.\n")
		b.WriteString(`Respond as {"statement": "<your statement, or empty to pass>"}.`)
	case decision.KindTeamVote:
		b.WriteString("Vote on the proposed team.\n")
		b.WriteString(`Respond as {"approve": true} or {"approve": false}.`)
	case decision.KindQuestVote:
		b.WriteString("You are on the quest. Choose your quest card. Good-aligned roles must play success.\n")
		b.WriteString(`Respond as {"success": true} or {"success": false}.`)
	case decision.KindEvilStatement:
		b.WriteString("Confer privately with your team about who might be Merlin, or pass.\n")
		b.WriteString(`Respond as {"statement": "<your statement, or empty to pass>"}.`)
	case decision.KindAssassinate:
		b.WriteString("Three quests succeeded. Pick the seat you believe is Merlin.\n")
		b.WriteString(`Respond as {"target": <seat number>}.`)
	}
	b.WriteString("\n")
}

func seatList(seats []int) string {
	sorted := append([]int(nil), seats...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, seat := range sorted {
		parts[i] = fmt.Sprintf("%d", seat)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func ballotList(ballots map[int]bool) string {
	seats := make([]int, 0, len(ballots))
	for seat := range ballots {
		seats = append(seats, seat)
	}
	sort.Ints(seats)
	parts := make([]string, 0, len(seats))
	for _, seat := range seats {
		vote := "reject"
		if ballots[seat] {
			vote = "approve"
		}
		parts = append(parts, fmt.Sprintf("%d:%s", seat, vote))
	}
	return strings.Join(parts, " ")
}
