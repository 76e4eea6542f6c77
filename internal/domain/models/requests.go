package models

// Requests for the read API. Path params bind through `param`, query through `query`.

type IntelligenceRequest struct {
	Asset string `param:"asset" json:"asset" validate:"required,max=32"`
}

type QuoteRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=32"`
}

type SentimentRequest struct {
	Asset       string `param:"asset" json:"asset" validate:"required,max=32"`
	WindowHours int    `query:"windowHours" json:"windowHours" default:"24" validate:"gte=1,lte=720"`
}

type StreamRequest struct {
	Assets string `query:"assets" json:"assets" validate:"required"`
}

type RefreshHistoryRequest struct {
	Cache string `query:"cache" json:"cache" default:"intelligence" validate:"oneof=intelligence quotes"`
	Key   string `query:"key" json:"key" validate:"omitempty,max=32"`
	Limit int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}
