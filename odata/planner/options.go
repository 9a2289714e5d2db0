package planner

// PlannerOptions configures the plan compiler and the cache it feeds
type PlannerOptions struct {
	Cache *PlanCache // Shared plan cache (optional)

	MaxExpandDepth      int  // Maximum $expand nesting (0 = unlimited)
	AllowOpenProperties bool // Permit dynamic property access on open entity types
}

// DefaultPlannerOptions returns the options used when none are given
func DefaultPlannerOptions() PlannerOptions {
	return PlannerOptions{
		MaxExpandDepth:      8,
		AllowOpenProperties: true,
	}
}
