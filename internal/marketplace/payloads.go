package marketplace

// ArtistPayload creates an artist profile.
type ArtistPayload struct {
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address"`
	Email         string `json:"email"`
}

// ArtworkPayload registers an artwork. Description is optional.
type ArtworkPayload struct {
	ArtistID    uint64 `json:"artist_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// NFTPayload mints an NFT for an artwork.
type NFTPayload struct {
	ArtworkID uint64   `json:"artwork_id"`
	OwnerIDs  []uint64 `json:"owner_ids"`
	Price     uint64   `json:"price"`
}

// PurchasePayload buys an NFT.
type PurchasePayload struct {
	NFTID    uint64 `json:"nft_id"`
	BuyerID  uint64 `json:"buyer_id"`
	SellerID uint64 `json:"seller_id"`
	Price    uint64 `json:"price"`
}
