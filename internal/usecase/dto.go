package usecase

type CreateClientInput struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Balance      float64 `json:"balance"`
	PlanCost     float64 `json:"plan_cost"`
	FirstPayment string  `json:"first_payment"`
}

type CreateClientOutput struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	NextPaymentAt string `json:"next_payment_at"`
}

type CreateCampaignInput struct {
	ClientID           string   `json:"client_id"`
	Name               string   `json:"name"`
	ProductDescription string   `json:"product_description"`
	TargetAudience     string   `json:"target_audience"`
	Geo                string   `json:"geo"`
	RedFlags           string   `json:"red_flags"`
	Tone               string   `json:"tone"`
	TicketPrice        float64  `json:"ticket_price"`
	Competitors        []string `json:"competitors"`
	DailyQuota         int      `json:"daily_prospects_quota"`
}

type CreateCampaignOutput struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// LandingOutput é o que a página do prospect mostra.
type LandingOutput struct {
	BusinessName string `json:"business_name"`
	Headline     string `json:"headline"`
	Body         string `json:"body"`
}

type ChatInput struct {
	Message string `json:"message"`
}

type ChatOutput struct {
	Reply string `json:"reply"`
}
