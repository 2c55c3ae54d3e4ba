package entity

// QuickResponse 快捷回复（预设话术）
type QuickResponse struct {
	ID        uint   `json:"id"`
	Category  string `json:"category"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	SortOrder int    `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
}
