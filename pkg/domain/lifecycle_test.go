package domain

import "testing"

func TestNFTLifecycleTransitions(t *testing.T) {
	m := NFTLifecycle
	if m.Initial != string(NFTStatusPending) {
		t.Fatalf("nft must start pending, got %s", m.Initial)
	}
	if !m.CanTransition(string(NFTStatusPending), string(NFTStatusCompleted)) {
		t.Fatalf("pending -> completed must be legal")
	}
	if m.CanTransition(string(NFTStatusCompleted), string(NFTStatusPending)) {
		t.Fatalf("completed -> pending must be illegal")
	}
	if m.CanTransition(string(NFTStatusPending), string(NFTStatusCancelled)) {
		t.Fatalf("no operation reaches cancelled")
	}
	if !m.Terminal(string(NFTStatusCompleted)) || m.Terminal(string(NFTStatusPending)) {
		t.Fatalf("unexpected terminal classification")
	}
	if m.Valid("Sold") {
		t.Fatalf("undeclared status must be invalid")
	}
	if !m.CanTransition(string(NFTStatusCompleted), string(NFTStatusCompleted)) {
		t.Fatalf("unchanged status must be allowed")
	}
}

func TestSwapLifecycleHasNoTransitions(t *testing.T) {
	m := SwapLifecycle
	for _, to := range []SwapStatus{SwapStatusAccepted, SwapStatusRejected} {
		if m.CanTransition(string(SwapStatusPending), string(to)) {
			t.Fatalf("pending -> %s must not be exposed", to)
		}
		if !m.Valid(string(to)) {
			t.Fatalf("%s must remain a declared status", to)
		}
	}
}

func TestNFTHelpers(t *testing.T) {
	nft := NFT{OwnerIDs: []uint64{1, 4}, Status: NFTStatusPending}
	if !nft.HasOwner(4) || nft.HasOwner(2) {
		t.Fatalf("unexpected owner lookup")
	}
	if !nft.Status.Purchasable() || NFTStatusCompleted.Purchasable() {
		t.Fatalf("only pending NFTs are purchasable")
	}
	if nft.RecordID() != 0 {
		t.Fatalf("zero value id expected")
	}
}
