package schedule

import (
	"sort"
	"strings"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// VehicleAttributes are the vehicle fields a rule can be scoped on.
type VehicleAttributes struct {
	Make      string
	Model     string
	Year      int
	Engine    string
	DriveType string
}

// AttributesOf extracts the matchable attributes of a vehicle.
func AttributesOf(v models.Vehicle) VehicleAttributes {
	return VehicleAttributes{
		Make:      v.Make,
		Model:     v.Model,
		Year:      v.Year,
		Engine:    v.Engine,
		DriveType: v.DriveType,
	}
}

// MatchRules returns the single best rule per service definition for a
// vehicle. Rules whose definition is not in definitions are ignored.
// Candidates are ranked by priority, highest first, with ties broken by
// rule id so the outcome does not depend on query order.
func MatchRules(v VehicleAttributes, definitions []models.ServiceDefinition, rules []models.ScheduleRule) []models.ScheduleRule {
	known := make(map[string]struct{}, len(definitions))
	for _, d := range definitions {
		known[d.ID.Hex()] = struct{}{}
	}

	candidates := make([]models.ScheduleRule, 0, len(rules))
	for _, r := range rules {
		if _, ok := known[r.ServiceDefinitionID]; !ok {
			continue
		}
		if !ruleApplies(r, v) {
			continue
		}
		candidates = append(candidates, r)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID.Hex() < candidates[j].ID.Hex()
	})

	seen := make(map[string]struct{}, len(candidates))
	matched := make([]models.ScheduleRule, 0, len(candidates))
	for _, r := range candidates {
		if _, dup := seen[r.ServiceDefinitionID]; dup {
			continue
		}
		seen[r.ServiceDefinitionID] = struct{}{}
		matched = append(matched, r)
	}
	return matched
}

func ruleApplies(r models.ScheduleRule, v VehicleAttributes) bool {
	if !fieldMatches(r.Make, v.Make) ||
		!fieldMatches(r.Model, v.Model) ||
		!fieldMatches(r.Engine, v.Engine) ||
		!fieldMatches(r.DriveType, v.DriveType) {
		return false
	}
	if r.YearMin != nil && v.Year < *r.YearMin {
		return false
	}
	if r.YearMax != nil && v.Year > *r.YearMax {
		return false
	}
	return true
}

// fieldMatches treats an empty rule field as a wildcard.
func fieldMatches(ruleValue, vehicleValue string) bool {
	ruleValue = strings.TrimSpace(ruleValue)
	if ruleValue == "" {
		return true
	}
	return strings.EqualFold(ruleValue, strings.TrimSpace(vehicleValue))
}
