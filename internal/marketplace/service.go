// Package marketplace implements the NFT marketplace: artists mint artworks,
// artworks are tokenised as NFTs, and artists buy NFTs from each other.
package marketplace

import (
	"context"
	"slices"

	"recordstore/internal/core"
	"recordstore/internal/store"
	"recordstore/internal/validation"
	"recordstore/pkg/domain"
)

// Namespace prefixes every marketplace bucket and names its id counter.
const Namespace = "marketplace"

// Messages reported by marketplace operations.
const (
	MsgArtistNotFound      = "Artist does not exist"
	MsgArtworkNotFound     = "Artwork does not exist"
	MsgNFTNotFound         = "NFT does not exist"
	MsgTransactionNotFound = "Transaction does not exist"
	MsgOwnersNotFound      = "One or more owner ids do not exist"
	MsgDuplicateOwners     = "Owner ids must be unique"
	MsgBuyerNotFound       = "Buyer does not exist"
	MsgSellerNotFound      = "Seller does not exist"
	MsgSelfPurchase        = "Buyer and seller cannot be the same"
	MsgPriceMismatch       = "Price does not match the NFT price"
	MsgNotForSale          = "NFT is not available for sale"
	MsgNoArtists           = "No artists found"
	MsgNoArtworks          = "No artworks found"
	MsgNoNFTs              = "No NFTs found"
	MsgNoTransactions      = "No transactions found"
)

// Service exposes the marketplace operations over one store engine.
type Service struct {
	engine       *store.Engine
	artists      *store.Collection[domain.Artist]
	artworks     *store.Collection[domain.Artwork]
	nfts         *store.Collection[domain.NFT]
	transactions *store.Collection[domain.Transaction]
	validator    validation.Validator
	obs          *core.Observer
}

// Open builds the marketplace collections over backend and hydrates them.
func Open(ctx context.Context, backend store.Backend, opts ...core.ServiceOption) (*Service, error) {
	o := core.ResolveServiceOptions(opts...)
	engine := store.New(Namespace, backend, store.WithClock(o.Clock), store.WithRules(o.Rules))
	s := &Service{
		engine:       engine,
		artists:      store.NewCollection[domain.Artist](engine, domain.EntityArtist, "artists", nil),
		artworks:     store.NewCollection[domain.Artwork](engine, domain.EntityArtwork, "artworks", nil),
		nfts:         store.NewCollection(engine, domain.EntityNFT, "nfts", cloneNFT),
		transactions: store.NewCollection[domain.Transaction](engine, domain.EntityTransaction, "transactions", nil),
		validator:    o.Validator,
		obs:          core.NewObserver(Namespace, o.Logger, o.Metrics),
	}
	if err := engine.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func cloneNFT(n domain.NFT) domain.NFT {
	n.OwnerIDs = slices.Clone(n.OwnerIDs)
	return n
}

// Engine returns the underlying store engine.
func (s *Service) Engine() *store.Engine { return s.engine }

// Close releases the backend.
func (s *Service) Close() error { return s.engine.Close() }

// CreateArtistProfile registers an artist with a unique email address.
func (s *Service) CreateArtistProfile(ctx context.Context, p ArtistPayload) (artist domain.Artist, err error) {
	done := s.obs.Start(ctx, "CreateArtistProfile")
	defer func() { done(err, core.RecordFields(domain.EntityArtist, artist.ID)) }()

	_, err = s.engine.Update(ctx, func(tx *store.Tx) error {
		if err := validation.RequireNonEmpty(p.Name, p.WalletAddress, p.Email); err != nil {
			return err
		}
		if err := validation.CheckEmail(s.validator, p.Email); err != nil {
			return err
		}
		if err := validation.RequireUniqueEmail(s.artists.All(tx), artistEmail, p.Email, 0); err != nil {
			return err
		}
		id, err := tx.NextID()
		if err != nil {
			return err
		}
		artist = domain.Artist{
			Base:          domain.Base{ID: id, CreatedAt: tx.Now()},
			Name:          p.Name,
			WalletAddress: p.WalletAddress,
			Email:         p.Email,
		}
		return s.artists.Insert(tx, artist)
	})
	if err != nil {
		return domain.Artist{}, err
	}
	return artist, nil
}

func artistEmail(a domain.Artist) string { return a.Email }

// MintArtwork registers an artwork for an existing artist.
func (s *Service) MintArtwork(ctx context.Context, p ArtworkPayload) (artwork domain.Artwork, err error) {
	done := s.obs.Start(ctx, "MintArtwork")
	defer func() { done(err, core.RecordFields(domain.EntityArtwork, artwork.ID)) }()

	_, err = s.engine.Update(ctx, func(tx *store.Tx) error {
		if err := validation.RequireNonEmpty(p.Title, p.ImageURL); err != nil {
			return err
		}
		if err := validation.RequireExists(s.artists.Contains(tx, p.ArtistID), MsgArtistNotFound); err != nil {
			return err
		}
		id, err := tx.NextID()
		if err != nil {
			return err
		}
		artwork = domain.Artwork{
			Base:        domain.Base{ID: id, CreatedAt: tx.Now()},
			ArtistID:    p.ArtistID,
			Title:       p.Title,
			Description: p.Description,
			ImageURL:    p.ImageURL,
		}
		return s.artworks.Insert(tx, artwork)
	})
	if err != nil {
		return domain.Artwork{}, err
	}
	return artwork, nil
}

// MintNFT tokenises an artwork. Owners must be distinct existing artists and
// the NFT starts out Pending.
func (s *Service) MintNFT(ctx context.Context, p NFTPayload) (nft domain.NFT, err error) {
	done := s.obs.Start(ctx, "MintNFT")
	defer func() { done(err, core.RecordFields(domain.EntityNFT, nft.ID)) }()

	_, err = s.engine.Update(ctx, func(tx *store.Tx) error {
		if len(p.OwnerIDs) == 0 {
			return domain.InvalidInput(validation.MsgFieldsRequired)
		}
		if err := validation.RequireNonZero(p.Price); err != nil {
			return err
		}
		if err := validation.RequireExists(s.artworks.Contains(tx, p.ArtworkID), MsgArtworkNotFound); err != nil {
			return err
		}
		for _, owner := range p.OwnerIDs {
			if !s.artists.Contains(tx, owner) {
				return domain.NotFound(MsgOwnersNotFound)
			}
		}
		if !distinct(p.OwnerIDs) {
			return domain.InvalidInput(MsgDuplicateOwners)
		}
		id, err := tx.NextID()
		if err != nil {
			return err
		}
		nft = domain.NFT{
			Base:      domain.Base{ID: id, CreatedAt: tx.Now()},
			ArtworkID: p.ArtworkID,
			OwnerIDs:  slices.Clone(p.OwnerIDs),
			Price:     p.Price,
			Status:    domain.NFTStatusPending,
		}
		return s.nfts.Insert(tx, nft)
	})
	if err != nil {
		return domain.NFT{}, err
	}
	return nft, nil
}

// BuyNFT records a purchase and, in the same unit of work, adds the buyer to
// the NFT owners (unless already one) and marks the sale Completed.
func (s *Service) BuyNFT(ctx context.Context, p PurchasePayload) (txn domain.Transaction, err error) {
	done := s.obs.Start(ctx, "BuyNFT")
	defer func() { done(err, core.RecordFields(domain.EntityTransaction, txn.ID)) }()

	_, err = s.engine.Update(ctx, func(tx *store.Tx) error {
		nft, ok := s.nfts.Get(tx, p.NFTID)
		if !ok {
			return domain.NotFound(MsgNFTNotFound)
		}
		if !s.artists.Contains(tx, p.BuyerID) {
			return domain.NotFound(MsgBuyerNotFound)
		}
		if !s.artists.Contains(tx, p.SellerID) {
			return domain.NotFound(MsgSellerNotFound)
		}
		if p.BuyerID == p.SellerID {
			return domain.InvalidInput(MsgSelfPurchase)
		}
		if nft.Price != p.Price {
			return domain.InvalidInput(MsgPriceMismatch)
		}
		if !nft.Status.Purchasable() {
			return domain.InvalidInput(MsgNotForSale)
		}
		id, err := tx.NextID()
		if err != nil {
			return err
		}
		txn = domain.Transaction{
			Base:     domain.Base{ID: id, CreatedAt: tx.Now()},
			NFTID:    p.NFTID,
			BuyerID:  p.BuyerID,
			SellerID: p.SellerID,
			Price:    p.Price,
		}
		if err := s.transactions.Insert(tx, txn); err != nil {
			return err
		}
		_, err = s.nfts.Update(tx, p.NFTID, func(n *domain.NFT) error {
			if !n.HasOwner(p.BuyerID) {
				n.OwnerIDs = append(n.OwnerIDs, p.BuyerID)
			}
			n.Status = domain.NFTStatusCompleted
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	return txn, nil
}

// GetArtist looks up an artist by id.
func (s *Service) GetArtist(ctx context.Context, id uint64) (domain.Artist, error) {
	return get(ctx, s, "GetArtist", s.artists, id, MsgArtistNotFound)
}

// GetArtwork looks up an artwork by id.
func (s *Service) GetArtwork(ctx context.Context, id uint64) (domain.Artwork, error) {
	return get(ctx, s, "GetArtwork", s.artworks, id, MsgArtworkNotFound)
}

// GetNFT looks up an NFT by id.
func (s *Service) GetNFT(ctx context.Context, id uint64) (domain.NFT, error) {
	return get(ctx, s, "GetNFT", s.nfts, id, MsgNFTNotFound)
}

// GetTransaction looks up a transaction by id.
func (s *Service) GetTransaction(ctx context.Context, id uint64) (domain.Transaction, error) {
	return get(ctx, s, "GetTransaction", s.transactions, id, MsgTransactionNotFound)
}

// GetAllArtists lists every artist in id order. An empty store is NotFound.
func (s *Service) GetAllArtists(ctx context.Context) ([]domain.Artist, error) {
	return list(ctx, s, "GetAllArtists", s.artists, MsgNoArtists)
}

// GetAllArtworks lists every artwork in id order. An empty store is NotFound.
func (s *Service) GetAllArtworks(ctx context.Context) ([]domain.Artwork, error) {
	return list(ctx, s, "GetAllArtworks", s.artworks, MsgNoArtworks)
}

// GetAllNFTs lists every NFT in id order. An empty store is NotFound.
func (s *Service) GetAllNFTs(ctx context.Context) ([]domain.NFT, error) {
	return list(ctx, s, "GetAllNFTs", s.nfts, MsgNoNFTs)
}

// GetAllTransactions lists every transaction in id order. An empty store is NotFound.
func (s *Service) GetAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return list(ctx, s, "GetAllTransactions", s.transactions, MsgNoTransactions)
}

func get[T domain.Record](ctx context.Context, s *Service, op string, c *store.Collection[T], id uint64, missing string) (rec T, err error) {
	done := s.obs.Start(ctx, op)
	defer func() { done(err, core.RecordFields(c.Entity(), id)) }()

	err = s.engine.View(ctx, func(v *store.View) error {
		var ok bool
		rec, ok = c.Get(v, id)
		return validation.RequireExists(ok, missing)
	})
	return rec, err
}

func list[T domain.Record](ctx context.Context, s *Service, op string, c *store.Collection[T], empty string) (out []T, err error) {
	done := s.obs.Start(ctx, op)
	defer func() { done(err, core.RecordFields(c.Entity(), 0)) }()

	err = s.engine.View(ctx, func(v *store.View) error {
		out, err = validation.RequireResults(c.Filter(v, nil), empty)
		return err
	})
	return out, err
}

func distinct(ids []uint64) bool {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}
