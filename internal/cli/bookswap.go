package cli

import (
	"context"

	"github.com/spf13/cobra"

	"recordstore/internal/bookswap"
	"recordstore/pkg/domain"
)

// NewBookswapCommand groups the book-swap operations.
func NewBookswapCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookswap",
		Short: "Users, books, swap requests and feedback",
	}
	open := bookswap.Open

	cmd.AddCommand(
		payloadCommand(opts, "create-user", "Create a user profile",
			`  recordstore bookswap create-user --json '{"name":"Una","phone_number":"0123456789","email":"una@example.com","address":"1 Main St"}'`,
			open, (*bookswap.Service).CreateUserProfile),
		newUpdateUserCommand(opts),
		payloadCommand(opts, "create-book", "Offer a book",
			`  recordstore bookswap create-book --json '{"user_id":1,"title":"Dune","author":"Herbert"}'`,
			open, (*bookswap.Service).CreateBook),
		payloadCommand(opts, "create-swap-request", "Request a book",
			`  recordstore bookswap create-swap-request --json '{"book_id":2,"requested_by_id":3}'`,
			open, (*bookswap.Service).CreateSwapRequest),
		payloadCommand(opts, "create-feedback", "Rate a swap request",
			`  recordstore bookswap create-feedback --json '{"user_id":3,"swap_request_id":4,"rating":5,"comment":"Great"}'`,
			open, (*bookswap.Service).CreateFeedback),
		idCommand(opts, "get-user", "Show a user profile", open, (*bookswap.Service).GetUserProfile),
		listCommand(opts, "list-users", "List every user", open, (*bookswap.Service).GetAllUsers),
		idCommand(opts, "get-book", "Show a book", open, (*bookswap.Service).GetBook),
		idCommand(opts, "books-by-user-id", "List the books offered by a user", open, (*bookswap.Service).GetBooksByUserID),
		textFlagCommand(opts, "books-by-user-name", "List the books offered by users with a name", "name", open, (*bookswap.Service).GetBooksByUserName),
		textFlagCommand(opts, "books-by-title", "List the books with a title", "title", open, (*bookswap.Service).GetBooksByTitle),
		listCommand(opts, "list-books", "List every book", open, (*bookswap.Service).GetAllBooks),
		listCommand(opts, "list-swap-requests", "List every swap request", open, (*bookswap.Service).GetSwapRequests),
		idCommand(opts, "swap-requests-by-user-id", "List the swap requests made by a user", open, (*bookswap.Service).GetSwapRequestsByUserID),
		idCommand(opts, "feedbacks-by-user-id", "List the feedback left by a user", open, (*bookswap.Service).GetFeedbacksByUserID),
	)
	return cmd
}

func newUpdateUserCommand(opts *RootOptions) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:           "update-user <id>",
		Short:         "Replace a user profile",
		Example:       `  recordstore bookswap update-user 1 --json '{"name":"Una B","phone_number":"0123456789","email":"una@example.com","address":"2 High St"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := decodePayload[bookswap.UserPayload](raw)
			if err != nil {
				return err
			}
			return withService(opts, cmd, bookswap.Open, func(ctx context.Context, svc *bookswap.Service) (domain.User, error) {
				return svc.UpdateUserProfile(ctx, id, p)
			})
		},
	}
	cmd.Flags().StringVar(&raw, "json", "", "replacement profile as JSON")
	_ = cmd.MarkFlagRequired("json")
	return cmd
}
