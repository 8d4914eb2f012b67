package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/kendall-kelly/fabmarket-api/config"
	"github.com/kendall-kelly/fabmarket-api/logger"
	"github.com/kendall-kelly/fabmarket-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReviewService records customer reviews and keeps each manufacturer's
// average rating in step with them
type ReviewService struct {
	db     *gorm.DB
	events EventBus
	log    *logger.Logger
}

func NewReviewService(db *gorm.DB, events EventBus, baseLog *logger.Logger) *ReviewService {
	if events == nil {
		events = NoopEventBus{}
	}
	return &ReviewService{
		db:     db,
		events: events,
		log:    baseLog.With("service", "ReviewService"),
	}
}

// CreateReviewInput is a customer's rating. OrderID is optional.
type CreateReviewInput struct {
	OrderID *uuid.UUID
	Rating  int
	Comment string
}

// ListReviews returns a manufacturer's reviews, newest first
func (s *ReviewService) ListReviews(ctx context.Context, manufacturerID uint) ([]models.Review, error) {
	if _, err := s.loadManufacturer(ctx, manufacturerID); err != nil {
		return nil, err
	}

	var reviews []models.Review
	err := s.db.WithContext(ctx).Preload("Customer").
		Where("manufacturer_id = ?", manufacturerID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	for i := range reviews {
		reviews[i].CustomerDisplayName = reviews[i].Customer.DisplayName()
	}
	return reviews, nil
}

// CreateReview stores caller's review of a manufacturer and recomputes the
// manufacturer's average rating in the same transaction. One review is
// allowed per customer, manufacturer and order (or per pair without an order).
func (s *ReviewService) CreateReview(ctx context.Context, caller *models.User, manufacturerID uint, in CreateReviewInput) (*models.Review, error) {
	if !caller.IsCustomer() {
		return nil, forbidden("Only customers can submit reviews.")
	}
	manufacturer, err := s.loadManufacturer(ctx, manufacturerID)
	if err != nil {
		return nil, err
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, invalid("rating", "Rating must be between 1 and 5.")
	}
	if in.OrderID != nil {
		if err := s.checkOrder(ctx, caller, manufacturer, *in.OrderID); err != nil {
			return nil, err
		}
	}

	review := &models.Review{
		CustomerID:     caller.ID,
		ManufacturerID: manufacturer.ID,
		OrderID:        in.OrderID,
		Rating:         in.Rating,
	}
	if comment := strings.TrimSpace(in.Comment); comment != "" {
		review.Comment = &comment
	}

	var average *decimal.Decimal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the profile row serializes concurrent reviews of one manufacturer
		var profile models.ManufacturerProfile
		profileErr := config.ForUpdate(tx).Where("user_id = ?", manufacturer.ID).First(&profile).Error
		if profileErr != nil && !errors.Is(profileErr, gorm.ErrRecordNotFound) {
			return profileErr
		}

		if err := duplicateReview(tx, review); err != nil {
			return err
		}
		if err := tx.Create(review).Error; err != nil {
			return fmt.Errorf("failed to create review: %w", err)
		}

		avg, err := averageRating(tx, manufacturer.ID)
		if err != nil {
			return err
		}
		average = &avg
		if profileErr != nil {
			return nil
		}
		return tx.Model(&profile).Update("average_rating", avg).Error
	})
	if err != nil {
		return nil, err
	}

	review.Customer = *caller
	review.CustomerDisplayName = caller.DisplayName()
	s.log.Info("Review created", "review_id", review.ID, "manufacturer_id", manufacturer.ID, "rating", review.Rating)
	if err := s.events.Publish(ctx, NewEvent(EventManufacturerReviewed, strconv.FormatUint(uint64(manufacturer.ID), 10), average.StringFixed(1))); err != nil {
		s.log.Warn("Failed to publish event", "event", EventManufacturerReviewed, "error", err)
	}
	return review, nil
}

func (s *ReviewService) loadManufacturer(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ? AND role = ?", id, models.RoleManufacturer).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrManufacturerNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *ReviewService) checkOrder(ctx context.Context, caller, manufacturer *models.User, orderID uuid.UUID) error {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid("order_id", "The specified order does not exist.")
		}
		return err
	}
	if order.CustomerID != caller.ID {
		return invalid("order_id", "This order does not belong to the current user.")
	}
	if order.ManufacturerID != manufacturer.ID {
		return invalid("manufacturer", "The manufacturer being reviewed does not match the manufacturer on the order.")
	}
	return nil
}

func duplicateReview(tx *gorm.DB, review *models.Review) error {
	q := tx.Model(&models.Review{}).Where("customer_id = ? AND manufacturer_id = ?", review.CustomerID, review.ManufacturerID)
	msg := "You have already submitted a review for this manufacturer (without a specific order reference)."
	if review.OrderID != nil {
		q = q.Where("order_id = ?", *review.OrderID)
		msg = "A review for this manufacturer and order already exists."
	} else {
		q = q.Where("order_id IS NULL")
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return invalid("", msg)
	}
	return nil
}

// averageRating is the exact mean of a manufacturer's ratings to one place
func averageRating(tx *gorm.DB, manufacturerID uint) (decimal.Decimal, error) {
	var agg struct {
		Count int64
		Total int64
	}
	err := tx.Model(&models.Review{}).
		Select("COUNT(*) AS count, COALESCE(SUM(rating), 0) AS total").
		Where("manufacturer_id = ?", manufacturerID).
		Scan(&agg).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	if agg.Count == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromInt(agg.Total).Div(decimal.NewFromInt(agg.Count)).Round(1), nil
}
