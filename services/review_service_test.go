package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/kendall-kelly/fabmarket-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *orderFixture) reviews() *ReviewService {
	return NewReviewService(f.db, f.events, logger.Nop())
}

func (f *orderFixture) averageRating(t *testing.T) string {
	t.Helper()
	var profile models.ManufacturerProfile
	require.NoError(t, f.db.Where("user_id = ?", f.maker.ID).First(&profile).Error)
	if profile.AverageRating == nil {
		return ""
	}
	return profile.AverageRating.StringFixed(1)
}

func TestCreateReviewRecomputesAverage(t *testing.T) {
	f := newOrderFixture(t)
	svc := f.reviews()
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusCompleted)

	review, err := svc.CreateReview(ctx, f.customer, f.maker.ID, CreateReviewInput{
		OrderID: &order.ID,
		Rating:  5,
		Comment: "  Clean edges, fast turnaround.  ",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, review.Rating)
	require.NotNil(t, review.Comment)
	assert.Equal(t, "Clean edges, fast turnaround.", *review.Comment)
	assert.Equal(t, f.customer.Email, review.CustomerDisplayName)
	assert.Equal(t, "5.0", f.averageRating(t))

	_, err = svc.CreateReview(ctx, f.customer, f.maker.ID, CreateReviewInput{Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, "4.5", f.averageRating(t))

	other := testutil.CreateUser(t, f.db, "auth0|other", models.RoleCustomer)
	_, err = svc.CreateReview(ctx, other, f.maker.ID, CreateReviewInput{Rating: 2})
	require.NoError(t, err)
	// 11 / 3 rounds to one place
	assert.Equal(t, "3.7", f.averageRating(t))

	events := f.events.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventManufacturerReviewed, events[2].Type)
	assert.Equal(t, "3.7", events[2].Status)
}

func TestCreateReviewRejections(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusCompleted)
	stranger := testutil.CreateUser(t, f.db, "auth0|stranger", models.RoleCustomer)
	rival := createManufacturer(t, f.db, "auth0|rival", aluminumCapabilities, "1.1")
	missing := uuid.New()

	tests := []struct {
		name      string
		caller    *models.User
		target    uint
		in        CreateReviewInput
		wantField string
		wantMsg   string
		wantErr   error
		forbidden bool
	}{
		{
			name:      "manufacturer cannot review",
			caller:    rival,
			target:    f.maker.ID,
			in:        CreateReviewInput{Rating: 5},
			wantMsg:   "Only customers can submit reviews.",
			forbidden: true,
		},
		{
			name:    "target is not a manufacturer",
			caller:  f.customer,
			target:  stranger.ID,
			in:      CreateReviewInput{Rating: 5},
			wantErr: ErrManufacturerNotFound,
		},
		{
			name:    "unknown manufacturer",
			caller:  f.customer,
			target:  99999,
			in:      CreateReviewInput{Rating: 5},
			wantErr: ErrManufacturerNotFound,
		},
		{
			name:      "rating too high",
			caller:    f.customer,
			target:    f.maker.ID,
			in:        CreateReviewInput{Rating: 6},
			wantField: "rating",
			wantMsg:   "Rating must be between 1 and 5.",
		},
		{
			name:      "rating missing",
			caller:    f.customer,
			target:    f.maker.ID,
			in:        CreateReviewInput{},
			wantField: "rating",
			wantMsg:   "Rating must be between 1 and 5.",
		},
		{
			name:      "unknown order",
			caller:    f.customer,
			target:    f.maker.ID,
			in:        CreateReviewInput{OrderID: &missing, Rating: 4},
			wantField: "order_id",
			wantMsg:   "The specified order does not exist.",
		},
		{
			name:      "someone else's order",
			caller:    stranger,
			target:    f.maker.ID,
			in:        CreateReviewInput{OrderID: &order.ID, Rating: 4},
			wantField: "order_id",
			wantMsg:   "This order does not belong to the current user.",
		},
		{
			name:      "order with another manufacturer",
			caller:    f.customer,
			target:    rival.ID,
			in:        CreateReviewInput{OrderID: &order.ID, Rating: 4},
			wantField: "manufacturer",
			wantMsg:   "The manufacturer being reviewed does not match the manufacturer on the order.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.reviews().CreateReview(ctx, tt.caller, tt.target, tt.in)
			require.Error(t, err)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.forbidden:
				var permErr *PermissionError
				require.True(t, errors.As(err, &permErr))
				assert.Equal(t, tt.wantMsg, permErr.Message)
			default:
				var validErr *ValidationError
				require.True(t, errors.As(err, &validErr))
				assert.Equal(t, tt.wantField, validErr.Field)
				assert.Equal(t, tt.wantMsg, validErr.Message)
			}
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Review{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, "", f.averageRating(t))
}

func TestCreateReviewDuplicates(t *testing.T) {
	f := newOrderFixture(t)
	svc := f.reviews()
	ctx := context.Background()
	order := f.createOrder(t, models.OrderStatusCompleted)

	_, err := svc.CreateReview(ctx, f.customer, f.maker.ID, CreateReviewInput{OrderID: &order.ID, Rating: 4})
	require.NoError(t, err)
	_, err = svc.CreateReview(ctx, f.customer, f.maker.ID, CreateReviewInput{OrderID: &order.ID, Rating: 1})
	var validErr *ValidationError
	require.True(t, errors.As(err, &validErr))
	assert.Equal(t, "A review for this manufacturer and order already exists.", validErr.Message)

	// an order-less review is tracked separately from order reviews
	_, err = svc.CreateReview(ctx, f.customer, f.maker.ID, CreateReviewInput{Rating: 3})
	require.NoError(t, err)
	_, err = svc.CreateReview(ctx, f.customer, f.maker.ID, CreateReviewInput{Rating: 3})
	require.True(t, errors.As(err, &validErr))
	assert.Equal(t, "You have already submitted a review for this manufacturer (without a specific order reference).", validErr.Message)

	second := f.createOrder(t, models.OrderStatusCompleted)
	_, err = svc.CreateReview(ctx, f.customer, f.maker.ID, CreateReviewInput{OrderID: &second.ID, Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, "4.0", f.averageRating(t))
}

func TestListReviewsNewestFirst(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	company := "Prototype Labs"
	require.NoError(t, f.db.Model(f.customer).Update("company_name", company).Error)
	other := testutil.CreateUser(t, f.db, "auth0|other", models.RoleCustomer)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, r := range []models.Review{
		{CustomerID: f.customer.ID, ManufacturerID: f.maker.ID, Rating: 3, CreatedAt: base},
		{CustomerID: other.ID, ManufacturerID: f.maker.ID, Rating: 5, CreatedAt: base.Add(time.Hour)},
	} {
		review := r
		require.NoError(t, f.db.Create(&review).Error, i)
	}

	reviews, err := f.reviews().ListReviews(ctx, f.maker.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, 5, reviews[0].Rating)
	assert.Equal(t, other.Email, reviews[0].CustomerDisplayName)
	assert.Equal(t, company, reviews[1].CustomerDisplayName)

	_, err = f.reviews().ListReviews(ctx, f.customer.ID)
	assert.ErrorIs(t, err, ErrManufacturerNotFound)
}
