package domain

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// Chat intents the assistant model may answer with.
const (
	IntentProductSearch   = "product_search"
	IntentCategorySearch  = "category_search"
	IntentRecommendations = "recommendations"
	IntentFlashSale       = "flash_sale"
	IntentOrderTracking   = "order_tracking"
	IntentText            = "text"
)

// ChatIntents lists every intent in the response schema.
var ChatIntents = []string{
	IntentProductSearch,
	IntentCategorySearch,
	IntentRecommendations,
	IntentFlashSale,
	IntentOrderTracking,
	IntentText,
}

// ChatIntent is the JSON shape the model is constrained to.
type ChatIntent struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Query       string `json:"query,omitempty"`
	Category    string `json:"category,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}
