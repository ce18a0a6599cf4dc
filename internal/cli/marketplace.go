package cli

import (
	"github.com/spf13/cobra"

	"recordstore/internal/marketplace"
)

// NewMarketplaceCommand groups the NFT marketplace operations.
func NewMarketplaceCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marketplace",
		Short: "Artists, artworks, NFTs and purchases",
	}
	open := marketplace.Open

	cmd.AddCommand(
		payloadCommand(opts, "create-artist", "Create an artist profile",
			`  recordstore marketplace create-artist --json '{"name":"Ada","wallet_address":"0xabc","email":"ada@example.com"}'`,
			open, (*marketplace.Service).CreateArtistProfile),
		payloadCommand(opts, "mint-artwork", "Register an artwork for an artist",
			`  recordstore marketplace mint-artwork --json '{"artist_id":1,"title":"Dawn","image_url":"https://img/1"}'`,
			open, (*marketplace.Service).MintArtwork),
		payloadCommand(opts, "mint-nft", "Mint an NFT for an artwork",
			`  recordstore marketplace mint-nft --json '{"artwork_id":2,"owner_ids":[1],"price":100}'`,
			open, (*marketplace.Service).MintNFT),
		payloadCommand(opts, "buy-nft", "Buy a pending NFT",
			`  recordstore marketplace buy-nft --json '{"nft_id":3,"buyer_id":4,"seller_id":1,"price":100}'`,
			open, (*marketplace.Service).BuyNFT),
		idCommand(opts, "get-artist", "Show an artist", open, (*marketplace.Service).GetArtist),
		idCommand(opts, "get-artwork", "Show an artwork", open, (*marketplace.Service).GetArtwork),
		idCommand(opts, "get-nft", "Show an NFT", open, (*marketplace.Service).GetNFT),
		idCommand(opts, "get-transaction", "Show a transaction", open, (*marketplace.Service).GetTransaction),
		listCommand(opts, "list-artists", "List every artist", open, (*marketplace.Service).GetAllArtists),
		listCommand(opts, "list-artworks", "List every artwork", open, (*marketplace.Service).GetAllArtworks),
		listCommand(opts, "list-nfts", "List every NFT", open, (*marketplace.Service).GetAllNFTs),
		listCommand(opts, "list-transactions", "List every transaction", open, (*marketplace.Service).GetAllTransactions),
	)
	return cmd
}
