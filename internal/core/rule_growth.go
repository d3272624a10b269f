package core

import (
	"context"
	"fmt"
	"strconv"

	"orchidcore/pkg/domain"
)

// GrowthIntegrityRule blocks transactions that rewrite history: species and
// planting time are set exactly once, water levels only grow, a selected
// winner never changes, and a paid winner never reverts to unpaid.
type GrowthIntegrityRule struct{}

// Name identifies the rule in violations.
func (GrowthIntegrityRule) Name() string { return "growth_integrity" }

// Evaluate inspects update changes for forbidden transitions.
func (GrowthIntegrityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Action != domain.ActionUpdate {
			continue
		}
		switch change.Entity {
		case domain.EntityOrchid:
			before, okB := change.Before.(domain.Orchid)
			after, okA := change.After.(domain.Orchid)
			if !okB || !okA {
				continue
			}
			id := strconv.FormatUint(uint64(after.TokenID), 10)
			if !before.Species.IsZero() && before.Species != after.Species {
				result.Violations = append(result.Violations, blockOrchid(id, fmt.Sprintf("species changed from %s to %s", before.Species, after.Species)))
			}
			if before.Germinated() && !before.PlantedAt.Equal(after.PlantedAt) {
				result.Violations = append(result.Violations, blockOrchid(id, "planting time changed after germination"))
			}
			if after.WaterLevel < before.WaterLevel {
				result.Violations = append(result.Violations, blockOrchid(id, fmt.Sprintf("water level dropped from %d to %d", before.WaterLevel, after.WaterLevel)))
			}
		case domain.EntityCycle:
			before, okB := change.Before.(domain.PromotionCycle)
			after, okA := change.After.(domain.PromotionCycle)
			if !okB || !okA {
				continue
			}
			id := strconv.FormatUint(after.ID, 10)
			if before.Winner != "" && before.Winner != after.Winner {
				result.Violations = append(result.Violations, blockCycle(id, "winner changed after selection"))
			}
			if before.WinnerPaid && !after.WinnerPaid {
				result.Violations = append(result.Violations, blockCycle(id, "winner payout reverted"))
			}
		}
	}
	return result, nil
}

func blockOrchid(id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "growth_integrity",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityOrchid,
		EntityID: id,
	}
}

func blockCycle(id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "growth_integrity",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityCycle,
		EntityID: id,
	}
}
