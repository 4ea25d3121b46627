package service

import (
	"context"
	"time"

	"github.com/helpline-hq/support-desk/internal/domain"
	"github.com/helpline-hq/support-desk/internal/repository"
)

// SLADeadlines are the due dates stamped on a new ticket.
type SLADeadlines struct {
	FirstResponseDueAt time.Time
	ResolutionDueAt    time.Time
}

type slaMinutes struct {
	response   int
	resolution int
}

var defaultSLAMinutes = map[domain.TicketPriority]slaMinutes{
	domain.TicketPriorityUrgent: {response: 60, resolution: 240},
	domain.TicketPriorityHigh:   {response: 240, resolution: 1440},
	domain.TicketPriorityLow:    {response: 2880, resolution: 4320},
}

// medium and anything unrecognised
var fallbackSLAMinutes = slaMinutes{response: 1440, resolution: 2880}

// SLAResolver computes deadlines from the tenant policy or the built-in table.
type SLAResolver struct {
	policies repository.SLAPolicyRepository
}

// NewSLAResolver builds the resolver.
func NewSLAResolver(policies repository.SLAPolicyRepository) *SLAResolver {
	return &SLAResolver{policies: policies}
}

// Resolve returns now plus the response and resolution windows for priority.
func (r *SLAResolver) Resolve(ctx context.Context, tenantID string, priority domain.TicketPriority, now time.Time) (SLADeadlines, error) {
	minutes, err := r.windows(ctx, tenantID, priority)
	if err != nil {
		return SLADeadlines{}, err
	}
	return SLADeadlines{
		FirstResponseDueAt: now.Add(time.Duration(minutes.response) * time.Minute),
		ResolutionDueAt:    now.Add(time.Duration(minutes.resolution) * time.Minute),
	}, nil
}

func (r *SLAResolver) windows(ctx context.Context, tenantID string, priority domain.TicketPriority) (slaMinutes, error) {
	if r.policies != nil {
		policy, err := r.policies.Get(ctx, tenantID, priority)
		if err != nil {
			return slaMinutes{}, err
		}
		if policy != nil {
			return slaMinutes{response: policy.ResponseTimeMinutes, resolution: policy.ResolutionTimeMinutes}, nil
		}
	}
	if minutes, ok := defaultSLAMinutes[priority]; ok {
		return minutes, nil
	}
	return fallbackSLAMinutes, nil
}
