package models

type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Categories is the predefined list offered to campaign creators. Any other
// label is still accepted and indexed.
var Categories = []Category{
	{ID: "general", Label: "General"},
	{ID: "technology", Label: "Technology"},
	{ID: "healthcare", Label: "Healthcare"},
	{ID: "education", Label: "Education"},
	{ID: "environment", Label: "Environment"},
	{ID: "community", Label: "Community"},
	{ID: "creative", Label: "Creative"},
	{ID: "business", Label: "Business"},
	{ID: "charity", Label: "Charity"},
	{ID: "other", Label: "Other"},
}
