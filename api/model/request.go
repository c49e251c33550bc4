package model

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	Provider string `json:"provider"` // backend ID, empty for all
	Compare  bool   `json:"compare"`  // key answers by display name
}

// ListDocumentsRequest holds the query parameters of GET /api/documents.
type ListDocumentsRequest struct {
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
	Status   string `form:"status"`
	Vigencia string `form:"vigencia"`
	Title    string `form:"title"`
}
