package model

// Pagination represents common pagination parameters
type Pagination struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

// NotificationFilter narrows notification listing. Zero values mean
// no filtering on that field.
type NotificationFilter struct {
	Status   NotificationStatus   `json:"status,omitempty" form:"status"`
	Category NotificationCategory `json:"category,omitempty" form:"category"`
	Pagination
}
