package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"
)

// Persisted payloads are keyed by these names; renaming a field orphans
// existing records.
func TestEntityJSONFieldNames(t *testing.T) {
	base := Base{ID: 7, CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	cases := []struct {
		name   string
		record any
		keys   string
	}{
		{"Artist", Artist{Base: base}, "created_at,email,id,name,wallet_address"},
		{"Artwork", Artwork{Base: base}, "artist_id,created_at,description,id,image_url,title"},
		{"NFT", NFT{Base: base, OwnerIDs: []uint64{1}}, "artwork_id,created_at,id,owner_ids,price,status"},
		{"Transaction", Transaction{Base: base}, "buyer_id,created_at,id,nft_id,price,seller_id"},
		{"User", User{Base: base}, "address,created_at,email,id,name,phone_number"},
		{"Book", Book{Base: base}, "author,created_at,description,id,title,user_id"},
		{"SwapRequest", SwapRequest{Base: base}, "book_id,created_at,id,requested_by_id,status"},
		{"Feedback", Feedback{Base: base}, "comment,created_at,id,rating,swap_request_id,user_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.record)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if got := strings.Join(keys, ","); got != tc.keys {
				t.Fatalf("unexpected keys %s, want %s", got, tc.keys)
			}
			if string(fields["created_at"]) != `"2024-01-02T03:04:05Z"` {
				t.Fatalf("unexpected created_at encoding %s", fields["created_at"])
			}
		})
	}
}

func TestNFTHasOwner(t *testing.T) {
	nft := NFT{OwnerIDs: []uint64{1, 4}}
	if !nft.HasOwner(4) || nft.HasOwner(2) {
		t.Fatalf("HasOwner disagrees with owner list %v", nft.OwnerIDs)
	}
	if !NFTStatusPending.Purchasable() || NFTStatusCompleted.Purchasable() || NFTStatusCancelled.Purchasable() {
		t.Fatalf("only pending NFTs are purchasable")
	}
}
