package usecase

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const maxDailyQuota = 500

func ValidateCreateClientInput(input CreateClientInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.Name) == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	} else if len(input.Name) > 200 {
		errors = append(errors, ValidationError{"name", "must not exceed 200 characters"})
	}

	if strings.TrimSpace(input.Email) == "" {
		errors = append(errors, ValidationError{"email", "is required"})
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		errors = append(errors, ValidationError{"email", "is invalid"})
	}

	if input.PlanCost <= 0 {
		errors = append(errors, ValidationError{"plan_cost", "must be positive"})
	}
	if input.Balance < 0 {
		errors = append(errors, ValidationError{"balance", "must not be negative"})
	}

	if strings.TrimSpace(input.FirstPayment) != "" && !isValidDate(input.FirstPayment) {
		errors = append(errors, ValidationError{"first_payment", "must be a valid date (YYYY-MM-DD)"})
	}

	return errors
}

func ValidateCreateCampaignInput(input CreateCampaignInput) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(input.ClientID) == "" {
		errors = append(errors, ValidationError{"client_id", "is required"})
	}

	if strings.TrimSpace(input.Name) == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	} else if len(input.Name) > 200 {
		errors = append(errors, ValidationError{"name", "must not exceed 200 characters"})
	}

	if strings.TrimSpace(input.ProductDescription) == "" {
		errors = append(errors, ValidationError{"product_description", "is required"})
	} else if len(input.ProductDescription) < 10 {
		errors = append(errors, ValidationError{"product_description", "must have at least 10 characters"})
	}

	if strings.TrimSpace(input.TargetAudience) == "" {
		errors = append(errors, ValidationError{"target_audience", "is required"})
	}

	if input.DailyQuota <= 0 {
		errors = append(errors, ValidationError{"daily_prospects_quota", "must be positive"})
	} else if input.DailyQuota > maxDailyQuota {
		errors = append(errors, ValidationError{"daily_prospects_quota", fmt.Sprintf("must not exceed %d", maxDailyQuota)})
	}

	if input.TicketPrice < 0 {
		errors = append(errors, ValidationError{"ticket_price", "must not be negative"})
	}

	for i, c := range input.Competitors {
		if strings.TrimSpace(c) == "" {
			errors = append(errors, ValidationError{fmt.Sprintf("competitors[%d]", i), "must not be empty"})
		}
	}

	return errors
}

func isValidDate(dateStr string) bool {
	if _, err := time.Parse("2006-01-02", dateStr); err == nil {
		return true
	}
	if _, err := time.Parse(time.RFC3339, dateStr); err == nil {
		return true
	}
	return false
}

func parseDate(dateStr string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", dateStr); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, dateStr)
	return t.UTC(), err
}
