// Package bookswap implements the book-swap service: users offer books,
// request each other's books and leave feedback on swap requests.
package bookswap

import (
	"context"

	"github.com/sirupsen/logrus"

	"recordstore/internal/core"
	"recordstore/internal/store"
	"recordstore/internal/validation"
	"recordstore/pkg/domain"
)

// Namespace prefixes every book-swap bucket and names its id counter.
const Namespace = "bookswap"

// Accepted feedback ratings.
const (
	MinRating uint8 = 1
	MaxRating uint8 = 5
)

// Messages reported by book-swap operations.
const (
	MsgUserNotFound        = "User does not exist"
	MsgBookNotFound        = "Book does not exist"
	MsgSwapRequestNotFound = "Swap request does not exist"
	MsgInvalidRating       = "Rating must be between 1 and 5"
	MsgNoUsers             = "No users found"
	MsgNoBooks             = "No books found"
	MsgNoSwapRequests      = "No swap requests found"
	MsgNoFeedbacks         = "No feedbacks found"
)

// Service exposes the book-swap operations over one store engine.
type Service struct {
	engine    *store.Engine
	users     *store.Collection[domain.User]
	books     *store.Collection[domain.Book]
	requests  *store.Collection[domain.SwapRequest]
	feedbacks *store.Collection[domain.Feedback]
	validator validation.Validator
	obs       *core.Observer
}

// Open builds the book-swap collections over backend and hydrates them.
func Open(ctx context.Context, backend store.Backend, opts ...core.ServiceOption) (*Service, error) {
	o := core.ResolveServiceOptions(opts...)
	engine := store.New(Namespace, backend, store.WithClock(o.Clock), store.WithRules(o.Rules))
	s := &Service{
		engine:    engine,
		users:     store.NewCollection[domain.User](engine, domain.EntityUser, "users", nil),
		books:     store.NewCollection[domain.Book](engine, domain.EntityBook, "books", nil),
		requests:  store.NewCollection[domain.SwapRequest](engine, domain.EntitySwapRequest, "swap_requests", nil),
		feedbacks: store.NewCollection[domain.Feedback](engine, domain.EntityFeedback, "feedbacks", nil),
		validator: o.Validator,
		obs:       core.NewObserver(Namespace, o.Logger, o.Metrics),
	}
	if err := engine.Open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Engine returns the underlying store engine.
func (s *Service) Engine() *store.Engine { return s.engine }

// Close releases the backend.
func (s *Service) Close() error { return s.engine.Close() }

func userEmail(u domain.User) string { return u.Email }

func (s *Service) checkUser(p UserPayload) error {
	if err := validation.RequireNonEmpty(p.Name, p.PhoneNumber, p.Email, p.Address); err != nil {
		return err
	}
	if err := validation.CheckEmail(s.validator, p.Email); err != nil {
		return err
	}
	return validation.CheckPhone(s.validator, p.PhoneNumber)
}

// CreateUserProfile registers a user with a unique email address and a ten
// digit phone number.
func (s *Service) CreateUserProfile(ctx context.Context, p UserPayload) (user domain.User, err error) {
	done := s.obs.Start(ctx, "CreateUserProfile")
	defer func() { done(err, core.RecordFields(domain.EntityUser, user.ID)) }()

	_, err = s.engine.Update(ctx, func(tx *store.Tx) error {
		if err := s.checkUser(p); err != nil {
			return err
		}
		if err := validation.RequireUniqueEmail(s.users.All(tx), userEmail, p.Email, 0); err != nil {
			return err
		}
		id, err := tx.NextID()
		if err != nil {
			return err
		}
		user = domain.User{
			Base:        domain.Base{ID: id, CreatedAt: tx.Now()},
			Name:        p.Name,
			PhoneNumber: p.PhoneNumber,
			Email:       p.Email,
			Address:     p.Address,
		}
		return s.users.Insert(tx, user)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// UpdateUserProfile replaces every profile field of user id, keeping its id
// and creation time. The email must stay unique among the other users.
func (s *Service) UpdateUserProfile(ctx context.Context, id uint64, p UserPayload) (user domain.User, err error) {
	done := s.obs.Start(ctx, "UpdateUserProfile")
	defer func() { done(err, core.RecordFields(domain.EntityUser, id)) }()

	_, err = s.engine.Update(ctx, func(tx *store.Tx) error {
		if err := s.checkUser(p); err != nil {
			return err
		}
		if err := validation.RequireExists(s.users.Contains(tx, id), MsgUserNotFound); err != nil {
			return err
		}
		if err := validation.RequireUniqueEmail(s.users.All(tx), userEmail, p.Email, id); err != nil {
			return err
		}
		var err error
		user, err = s.users.Update(tx, id, func(u *domain.User) error {
			u.Name = p.Name
			u.PhoneNumber = p.PhoneNumber
			u.Email = p.Email
			u.Address = p.Address
			return nil
		})
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// CreateBook offers a book owned by an existing user.
func (s *Service) CreateBook(ctx context.Context, p BookPayload) (book domain.Book, err error) {
	done := s.obs.Start(ctx, "CreateBook")
	defer func() { done(err, core.RecordFields(domain.EntityBook, book.ID)) }()

	_, err = s.engine.Update(ctx, func(tx *store.Tx) error {
		if err := validation.RequireNonEmpty(p.Title, p.Author); err != nil {
			return err
		}
		if err := validation.RequireExists(s.users.Contains(tx, p.UserID), MsgUserNotFound); err != nil {
			return err
		}
		id, err := tx.NextID()
		if err != nil {
			return err
		}
		book = domain.Book{
			Base:        domain.Base{ID: id, CreatedAt: tx.Now()},
			UserID:      p.UserID,
			Title:       p.Title,
			Author:      p.Author,
			Description: p.Description,
		}
		return s.books.Insert(tx, book)
	})
	if err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// CreateSwapRequest records a Pending request for an existing book by an
// existing user.
func (s *Service) CreateSwapRequest(ctx context.Context, p SwapRequestPayload) (req domain.SwapRequest, err error) {
	done := s.obs.Start(ctx, "CreateSwapRequest")
	defer func() { done(err, core.RecordFields(domain.EntitySwapRequest, req.ID)) }()

	_, err = s.engine.Update(ctx, func(tx *store.Tx) error {
		if err := validation.RequireExists(s.books.Contains(tx, p.BookID), MsgBookNotFound); err != nil {
			return err
		}
		if err := validation.RequireExists(s.users.Contains(tx, p.RequestedByID), MsgUserNotFound); err != nil {
			return err
		}
		id, err := tx.NextID()
		if err != nil {
			return err
		}
		req = domain.SwapRequest{
			Base:          domain.Base{ID: id, CreatedAt: tx.Now()},
			BookID:        p.BookID,
			RequestedByID: p.RequestedByID,
			Status:        domain.SwapStatusPending,
		}
		return s.requests.Insert(tx, req)
	})
	if err != nil {
		return domain.SwapRequest{}, err
	}
	return req, nil
}

// CreateFeedback rates a swap request between MinRating and MaxRating.
func (s *Service) CreateFeedback(ctx context.Context, p FeedbackPayload) (fb domain.Feedback, err error) {
	done := s.obs.Start(ctx, "CreateFeedback")
	defer func() { done(err, core.RecordFields(domain.EntityFeedback, fb.ID)) }()

	_, err = s.engine.Update(ctx, func(tx *store.Tx) error {
		if err := validation.RequireNonEmpty(p.Comment); err != nil {
			return err
		}
		if p.Rating < MinRating || p.Rating > MaxRating {
			return domain.InvalidInput(MsgInvalidRating)
		}
		if err := validation.RequireExists(s.users.Contains(tx, p.UserID), MsgUserNotFound); err != nil {
			return err
		}
		if err := validation.RequireExists(s.requests.Contains(tx, p.SwapRequestID), MsgSwapRequestNotFound); err != nil {
			return err
		}
		id, err := tx.NextID()
		if err != nil {
			return err
		}
		fb = domain.Feedback{
			Base:          domain.Base{ID: id, CreatedAt: tx.Now()},
			UserID:        p.UserID,
			SwapRequestID: p.SwapRequestID,
			Rating:        p.Rating,
			Comment:       p.Comment,
		}
		return s.feedbacks.Insert(tx, fb)
	})
	if err != nil {
		return domain.Feedback{}, err
	}
	return fb, nil
}

// GetUserProfile looks up a user by id.
func (s *Service) GetUserProfile(ctx context.Context, id uint64) (user domain.User, err error) {
	err = s.view(ctx, "GetUserProfile", core.RecordFields(domain.EntityUser, id), func(v *store.View) error {
		var ok bool
		user, ok = s.users.Get(v, id)
		return validation.RequireExists(ok, MsgUserNotFound)
	})
	return user, err
}

// GetAllUsers lists every user in id order. An empty store is NotFound.
func (s *Service) GetAllUsers(ctx context.Context) (users []domain.User, err error) {
	err = s.view(ctx, "GetAllUsers", core.RecordFields(domain.EntityUser, 0), func(v *store.View) error {
		users, err = validation.RequireResults(s.users.Filter(v, nil), MsgNoUsers)
		return err
	})
	return users, err
}

// GetBook looks up a book by id.
func (s *Service) GetBook(ctx context.Context, id uint64) (book domain.Book, err error) {
	err = s.view(ctx, "GetBook", core.RecordFields(domain.EntityBook, id), func(v *store.View) error {
		var ok bool
		book, ok = s.books.Get(v, id)
		return validation.RequireExists(ok, MsgBookNotFound)
	})
	return book, err
}

// GetAllBooks lists every book in id order. An empty store is NotFound.
func (s *Service) GetAllBooks(ctx context.Context) ([]domain.Book, error) {
	return s.findBooks(ctx, "GetAllBooks", nil)
}

// GetBooksByUserID lists the books offered by user id.
func (s *Service) GetBooksByUserID(ctx context.Context, userID uint64) ([]domain.Book, error) {
	return s.findBooks(ctx, "GetBooksByUserID", func(_ *store.View, b domain.Book) bool {
		return b.UserID == userID
	})
}

// GetBooksByUserName lists the books whose owner's name equals name. Owners
// are resolved per book.
func (s *Service) GetBooksByUserName(ctx context.Context, name string) ([]domain.Book, error) {
	return s.findBooks(ctx, "GetBooksByUserName", func(v *store.View, b domain.Book) bool {
		owner, ok := s.users.Get(v, b.UserID)
		return ok && owner.Name == name
	})
}

// GetBooksByTitle lists the books whose title equals title.
func (s *Service) GetBooksByTitle(ctx context.Context, title string) ([]domain.Book, error) {
	return s.findBooks(ctx, "GetBooksByTitle", func(_ *store.View, b domain.Book) bool {
		return b.Title == title
	})
}

func (s *Service) findBooks(ctx context.Context, op string, keep func(*store.View, domain.Book) bool) (books []domain.Book, err error) {
	err = s.view(ctx, op, core.RecordFields(domain.EntityBook, 0), func(v *store.View) error {
		books, err = validation.RequireResults(s.books.Filter(v, func(b domain.Book) bool {
			return keep == nil || keep(v, b)
		}), MsgNoBooks)
		return err
	})
	return books, err
}

// GetSwapRequests lists every swap request in id order.
func (s *Service) GetSwapRequests(ctx context.Context) (reqs []domain.SwapRequest, err error) {
	err = s.view(ctx, "GetSwapRequests", core.RecordFields(domain.EntitySwapRequest, 0), func(v *store.View) error {
		reqs, err = validation.RequireResults(s.requests.Filter(v, nil), MsgNoSwapRequests)
		return err
	})
	return reqs, err
}

// GetSwapRequestsByUserID lists the swap requests made by user id.
func (s *Service) GetSwapRequestsByUserID(ctx context.Context, userID uint64) (reqs []domain.SwapRequest, err error) {
	err = s.view(ctx, "GetSwapRequestsByUserID", core.RecordFields(domain.EntitySwapRequest, 0), func(v *store.View) error {
		reqs, err = validation.RequireResults(s.requests.Filter(v, func(r domain.SwapRequest) bool {
			return r.RequestedByID == userID
		}), MsgNoSwapRequests)
		return err
	})
	return reqs, err
}

// GetFeedbacksByUserID lists the feedback left by user id.
func (s *Service) GetFeedbacksByUserID(ctx context.Context, userID uint64) (fbs []domain.Feedback, err error) {
	err = s.view(ctx, "GetFeedbacksByUserID", core.RecordFields(domain.EntityFeedback, 0), func(v *store.View) error {
		fbs, err = validation.RequireResults(s.feedbacks.Filter(v, func(f domain.Feedback) bool {
			return f.UserID == userID
		}), MsgNoFeedbacks)
		return err
	})
	return fbs, err
}

func (s *Service) view(ctx context.Context, op string, fields logrus.Fields, fn func(v *store.View) error) (err error) {
	done := s.obs.Start(ctx, op)
	defer func() { done(err, fields) }()
	return s.engine.View(ctx, fn)
}
