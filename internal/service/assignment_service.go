package service

import (
	"context"
	"strings"

	"github.com/helpline-hq/support-desk/internal/repository"
)

// Default team names targeted by keyword routing.
const (
	TeamBilling        = "Billing"
	TeamTechnical      = "Technical"
	TeamGeneralSupport = "General Support"
)

var teamBuckets = []struct {
	team     string
	keywords []string
}{
	{team: TeamBilling, keywords: []string{"bill", "invoc", "payment"}},
	{team: TeamTechnical, keywords: []string{"error", "bug", "fail"}},
}

// RoutingDecision is the router output. Both fields may be nil.
type RoutingDecision struct {
	AssignedTeamID *string
	AssignedUserID *string
}

// AssignmentRouter picks an assignee or team for a new ticket.
type AssignmentRouter struct {
	rules repository.AssignmentRuleRepository
	teams repository.TeamRepository
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	RuleRepo repository.AssignmentRuleRepository
	TeamRepo repository.TeamRepository
}

// NewAssignmentRouter creates the router.
func NewAssignmentRouter(deps AssignmentDependencies) *AssignmentRouter {
	return &AssignmentRouter{
		rules: deps.RuleRepo,
		teams: deps.TeamRepo,
	}
}

// Route applies tenant keyword rules first; the first matching rule assigns a user and
// suppresses team routing. Otherwise the ticket goes to a default team by keyword bucket.
func (r *AssignmentRouter) Route(ctx context.Context, tenantID, subject, description string) (RoutingDecision, error) {
	text := strings.ToLower(subject + " " + description)

	rules, err := r.rules.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return RoutingDecision{}, err
	}
	for _, rule := range rules {
		keyword := strings.ToLower(rule.Keyword)
		if keyword == "" {
			continue
		}
		if strings.Contains(text, keyword) {
			userID := rule.AssignedUserID
			return RoutingDecision{AssignedUserID: &userID}, nil
		}
	}

	teams, err := r.teams.ListByTenant(ctx, tenantID)
	if err != nil {
		return RoutingDecision{}, err
	}
	target := teamForText(text)
	for _, team := range teams {
		if team.Name == target {
			teamID := team.ID
			return RoutingDecision{AssignedTeamID: &teamID}, nil
		}
	}
	return RoutingDecision{}, nil
}

func teamForText(text string) string {
	for _, bucket := range teamBuckets {
		for _, keyword := range bucket.keywords {
			if strings.Contains(text, keyword) {
				return bucket.team
			}
		}
	}
	return TeamGeneralSupport
}

