package core

import (
	"context"
	"fmt"

	"recordstore/pkg/domain"
)

// NFTOwnershipRule guards NFT owner lists. Owners must be distinct existing
// artists and the list is never empty. Purchases only append to it; a
// completed sale freezes it.
func NFTOwnershipRule() domain.Rule {
	return nftOwnershipRule{}
}

type nftOwnershipRule struct{}

func (nftOwnershipRule) Name() string { return "nft_ownership" }

func (r nftOwnershipRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityNFT {
			continue
		}
		after, ok := change.After.(domain.NFT)
		if !ok {
			continue
		}
		if len(after.OwnerIDs) == 0 {
			res.Violations = append(res.Violations, r.block(after.ID, fmt.Sprintf("nft %d has no owners", after.ID)))
			continue
		}
		seen := make(map[uint64]bool, len(after.OwnerIDs))
		for _, owner := range after.OwnerIDs {
			if seen[owner] {
				res.Violations = append(res.Violations, r.block(after.ID,
					fmt.Sprintf("nft %d lists owner %d more than once", after.ID, owner)))
				continue
			}
			seen[owner] = true
			if !view.Exists(domain.EntityArtist, owner) {
				res.Violations = append(res.Violations, r.block(after.ID,
					fmt.Sprintf("nft %d owner %d is not an artist", after.ID, owner)))
			}
		}

		before, ok := change.Before.(domain.NFT)
		if !ok {
			continue
		}
		if before.Status == domain.NFTStatusCompleted && !sameOwners(before.OwnerIDs, after.OwnerIDs) {
			res.Violations = append(res.Violations, r.block(after.ID,
				fmt.Sprintf("nft %d owners are frozen once the sale completed", after.ID)))
			continue
		}
		if !appendsOwners(before.OwnerIDs, after.OwnerIDs) {
			res.Violations = append(res.Violations, r.block(after.ID,
				fmt.Sprintf("nft %d owners may only be appended", after.ID)))
		}
	}
	return res, nil
}

func (nftOwnershipRule) block(id uint64, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "nft_ownership",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntityNFT,
		EntityID: id,
	}
}

func sameOwners(a, b []uint64) bool {
	return len(a) == len(b) && appendsOwners(a, b)
}

// appendsOwners reports whether after keeps before as its prefix.
func appendsOwners(before, after []uint64) bool {
	if len(after) < len(before) {
		return false
	}
	for i, id := range before {
		if after[i] != id {
			return false
		}
	}
	return true
}
