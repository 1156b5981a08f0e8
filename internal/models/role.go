package models

// Role is an open position listed on the careers page.
type Role struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Team        string `json:"team"`
	Location    string `json:"location"`
	Type        string `json:"type"`
	Level       string `json:"level"`
	Salary      string `json:"salary"`
	Description string `json:"description"`
}

var openRoles = []Role{
	{
		ID:          "senior-ai-engineer",
		Title:       "Senior AI Engineer",
		Team:        "Engineering",
		Location:    "Remote (US / EU)",
		Type:        "Full-time",
		Level:       "Senior",
		Salary:      "$160K - $220K + equity",
		Description: "Work on the core AI generation pipeline. You'll improve prompt understanding, code quality, and generation speed.",
	},
	{
		ID:          "fullstack-engineer",
		Title:       "Full-stack Engineer",
		Team:        "Engineering",
		Location:    "Remote (US / EU)",
		Type:        "Full-time",
		Level:       "Mid / Senior",
		Salary:      "$130K - $180K + equity",
		Description: "Own features end-to-end, from database schema to UI. We use React, Tailwind, Supabase, and TypeScript.",
	},
	{
		ID:          "product-designer",
		Title:       "Product Designer",
		Team:        "Design",
		Location:    "Remote",
		Type:        "Full-time",
		Level:       "Senior",
		Salary:      "$130K - $170K + equity",
		Description: "Define and own the product design language. You think in systems, sweat the details, and prototype quickly in Figma and code.",
	},
	{
		ID:          "developer-advocate",
		Title:       "Developer Advocate",
		Team:        "Growth",
		Location:    "Remote",
		Type:        "Full-time",
		Level:       "Mid / Senior",
		Salary:      "$110K - $150K + equity",
		Description: "Build relationships with the developer community. Create tutorials, demos, and content that helps builders get the most out of our platform.",
	},
	{
		ID:          "growth-engineer",
		Title:       "Growth Engineer",
		Team:        "Growth",
		Location:    "Remote (US)",
		Type:        "Full-time",
		Level:       "Mid / Senior",
		Salary:      "$120K - $160K + equity",
		Description: "Own growth experiments, referral programs, and onboarding flows. You sit at the intersection of engineering and marketing.",
	},
}

// OpenRoles returns a copy of the listed positions.
func OpenRoles() []Role {
	out := make([]Role, len(openRoles))
	copy(out, openRoles)
	return out
}

// FindRole looks up an open role by id.
func FindRole(id string) (Role, error) {
	for _, r := range openRoles {
		if r.ID == id {
			return r, nil
		}
	}
	return Role{}, ErrUnknownRole
}
