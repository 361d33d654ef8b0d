package storage

import (
	"context"
	"fmt"

	"github.com/crescendoapp/crescendo/internal/model"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	return ctx.Err()
}

func validateString(s string, paramName string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", paramName)
	}
	return nil
}

func validateSubject(tenantID, userID string) error {
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}
	return validateString(userID, "userID")
}

func validateActivityRecord(rec *model.ActivityRecord) error {
	if rec == nil {
		return fmt.Errorf("activity record cannot be nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("activity record ID cannot be empty")
	}
	if rec.TenantID == "" {
		return fmt.Errorf("activity record tenant ID cannot be empty")
	}
	if rec.CreatedAt.IsZero() {
		return fmt.Errorf("activity record timestamp cannot be zero")
	}
	return nil
}

func validateDistributionRecord(rec *model.RewardDistributionRecord) error {
	if rec == nil {
		return fmt.Errorf("distribution record cannot be nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("distribution record ID cannot be empty")
	}
	if err := validateSubject(rec.TenantID, rec.UserID); err != nil {
		return err
	}
	if rec.RankLevel <= 0 {
		return fmt.Errorf("distribution record rank level must be positive")
	}
	return nil
}
