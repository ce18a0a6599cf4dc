// Package domain defines the persistent records, status machines, typed
// errors and rule evaluation primitives shared by the marketplace and
// book-swap applications.
package domain

import (
	"fmt"
	"time"
)

// EntityType identifies the type of record stored in a collection.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityArtist identifies a marketplace artist profile.
	EntityArtist EntityType = "artist"
	// EntityArtwork identifies an artwork minted by an artist.
	EntityArtwork EntityType = "artwork"
	// EntityNFT identifies a tokenised artwork offered for sale.
	EntityNFT EntityType = "nft"
	// EntityTransaction identifies a completed NFT purchase.
	EntityTransaction EntityType = "transaction"
	// EntityUser identifies a book-swap user profile.
	EntityUser EntityType = "user"
	// EntityBook identifies a book offered for swapping.
	EntityBook EntityType = "book"
	// EntitySwapRequest identifies a request to swap a book.
	EntitySwapRequest EntityType = "swap_request"
	// EntityFeedback identifies feedback left on a swap request.
	EntityFeedback EntityType = "feedback"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        uint64    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordID returns the allocator-issued identifier of the record.
func (b Base) RecordID() uint64 { return b.ID }

// Artist is a marketplace participant that mints artworks and owns NFTs.
type Artist struct {
	Base
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address"`
	Email         string `json:"email"`
}

// Artwork is a piece of art registered by an artist.
type Artwork struct {
	Base
	ArtistID    uint64 `json:"artist_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// NFT tokenises an artwork. Multiple owners model fractional ownership.
type NFT struct {
	Base
	ArtworkID uint64    `json:"artwork_id"`
	OwnerIDs  []uint64  `json:"owner_ids"`
	Price     uint64    `json:"price"`
	Status    NFTStatus `json:"status"`
}

// HasOwner reports whether id is one of the NFT owners.
func (n NFT) HasOwner(id uint64) bool {
	for _, owner := range n.OwnerIDs {
		if owner == id {
			return true
		}
	}
	return false
}

// Transaction records an NFT purchase. Transactions are append-only.
type Transaction struct {
	Base
	NFTID    uint64 `json:"nft_id"`
	BuyerID  uint64 `json:"buyer_id"`
	SellerID uint64 `json:"seller_id"`
	Price    uint64 `json:"price"`
}

// User is a book-swap participant.
type User struct {
	Base
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}

// Book is offered by a user for swapping.
type Book struct {
	Base
	UserID      uint64 `json:"user_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// SwapRequest records a user's request for a book.
type SwapRequest struct {
	Base
	BookID        uint64     `json:"book_id"`
	RequestedByID uint64     `json:"requested_by_id"`
	Status        SwapStatus `json:"status"`
}

// Feedback rates a swap request. Feedback is append-only.
type Feedback struct {
	Base
	UserID        uint64 `json:"user_id"`
	SwapRequestID uint64 `json:"swap_request_id"`
	Rating        uint8  `json:"rating"`
	Comment       string `json:"comment"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions captured in the unit-of-work audit trail. Records are never deleted.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID uint64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return fmt.Sprintf("transaction blocked by rules: %s", v.Message)
		}
	}
	return "transaction blocked by rules"
}
