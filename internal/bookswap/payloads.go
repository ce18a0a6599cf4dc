package bookswap

// UserPayload creates or replaces a user profile.
type UserPayload struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}

// BookPayload offers a book for swapping. Description is optional.
type BookPayload struct {
	UserID      uint64 `json:"user_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// SwapRequestPayload asks for a book.
type SwapRequestPayload struct {
	BookID        uint64 `json:"book_id"`
	RequestedByID uint64 `json:"requested_by_id"`
}

// FeedbackPayload rates a swap request.
type FeedbackPayload struct {
	UserID        uint64 `json:"user_id"`
	SwapRequestID uint64 `json:"swap_request_id"`
	Rating        uint8  `json:"rating"`
	Comment       string `json:"comment"`
}
