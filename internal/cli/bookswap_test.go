package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordstore/internal/store"
	"recordstore/pkg/domain"
)

func TestBookswapFlow(t *testing.T) {
	h := newHarness()
	steps := [][]string{
		{"create-user", "--json", `{"name":"Owner","phone_number":"0123456789","email":"o@x.com","address":"1 Main St"}`},
		{"create-user", "--json", `{"name":"Reader","phone_number":"0123456789","email":"r@x.com","address":"2 Main St"}`},
		{"create-book", "--json", `{"user_id":1,"title":"Dune","author":"Herbert"}`},
		{"create-swap-request", "--json", `{"book_id":3,"requested_by_id":2}`},
		{"create-feedback", "--json", `{"user_id":2,"swap_request_id":4,"rating":5,"comment":"Great"}`},
		{"update-user", "1", "--json", `{"name":"Owner B","phone_number":"9876543210","email":"o@x.com","address":"3 Main St"}`},
	}
	for _, step := range steps {
		_, err := h.run(append([]string{"--format", "json", "bookswap"}, step...)...)
		require.NoError(t, err, "step %v", step)
	}

	out, err := h.run("--format", "json", "bookswap", "books-by-user-name", "--name", "Owner B")
	require.NoError(t, err)
	books := decodeData[[]domain.Book](t, out)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)

	out, err = h.run("--format", "json", "bookswap", "books-by-title", "--title", "Dune")
	require.NoError(t, err)
	assert.Len(t, decodeData[[]domain.Book](t, out), 1)

	out, err = h.run("--format", "json", "bookswap", "feedbacks-by-user-id", "2")
	require.NoError(t, err)
	fbs := decodeData[[]domain.Feedback](t, out)
	require.Len(t, fbs, 1)
	assert.Equal(t, uint8(5), fbs[0].Rating)

	out, err = h.run("--format", "json", "bookswap", "swap-requests-by-user-id", "2")
	require.NoError(t, err)
	reqs := decodeData[[]domain.SwapRequest](t, out)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.SwapStatusPending, reqs[0].Status)

	out, err = h.run("--format", "json", "bookswap", "get-user", "1")
	require.NoError(t, err)
	assert.Equal(t, "Owner B", decodeData[domain.User](t, out).Name)

	_, err = h.run("bookswap", "books-by-user-id", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestExportCombinesNamespaces(t *testing.T) {
	h := newHarness()
	_, err := h.run("marketplace", "create-artist", "--json", `{"name":"A","wallet_address":"w","email":"a@x.com"}`)
	require.NoError(t, err)
	_, err = h.run("bookswap", "create-user", "--json", `{"name":"U","phone_number":"0123456789","email":"u@x.com","address":"a"}`)
	require.NoError(t, err)

	out, err := h.run("--format", "json", "export")
	require.NoError(t, err)
	snapshot := decodeData[store.Snapshot](t, out)
	assert.Equal(t, uint64(1), snapshot.Counters["marketplace"])
	assert.Equal(t, uint64(1), snapshot.Counters["bookswap"])
	assert.Contains(t, snapshot.Records["marketplace.artists"], uint64(1))
	assert.Contains(t, snapshot.Records["bookswap.users"], uint64(1))
}
