package model

// Category is a static reference set of item categories.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AllCategories is the category filter value that matches every item.
const AllCategories = "All Categories"
