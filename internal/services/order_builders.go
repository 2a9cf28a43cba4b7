package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jobhub/backend/internal/config"
	"github.com/jobhub/backend/internal/models"
)

const (
	defaultB2BLocation = "Nach Absprache"
	defaultB2BTime     = "09:00"
)

// OrderPolicy holds the pricing and clearing rules the builders apply.
type OrderPolicy struct {
	StandardClearing   time.Duration
	B2BClearing        time.Duration
	B2BFeeRate         decimal.Decimal
	DefaultHoursPerDay float64
	Currency           string
}

func NewOrderPolicy(cfg *config.Config) OrderPolicy {
	return OrderPolicy{
		StandardClearing:   cfg.ClearingPeriod(),
		B2BClearing:        cfg.B2BClearingPeriod(),
		B2BFeeRate:         decimal.NewFromFloat(cfg.B2BPlatformFeeRate),
		DefaultHoursPerDay: cfg.DefaultHoursPerDay,
		Currency:           cfg.Currency,
	}
}

// feeAtRate applies rate to gross and rounds half up to whole minor units.
func feeAtRate(gross int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(gross).Mul(rate).Round(0).IntPart()
}

func (p OrderPolicy) currency(ev *models.PaymentEvent) string {
	if ev.Currency != "" {
		return strings.ToLower(ev.Currency)
	}
	return p.Currency
}

// newOrder fills the fields every variant shares.
func (p OrderPolicy) newOrder(id string, variant models.OrderVariant, ev *models.PaymentEvent, gross, fee int64, now time.Time) *models.Order {
	fee, net := models.SplitAmount(gross, fee)
	return &models.Order{
		ID:                       id,
		Variant:                  variant,
		TotalAmountPaidByBuyer:   gross,
		TotalPlatformFeeInCents:  fee,
		NetProviderAmountInCents: net,
		Currency:                 p.currency(ev),
		Status:                   models.OrderStatusClearing,
		PaymentReference:         ev.Reference(),
		ChargeReference:          ev.ChargeReference,
		PayerHandle:              ev.PayerHandle,
		TimeTracking: models.TimeTracking{
			TimeEntries: []models.TimeEntry{},
			Status:      models.TimeTrackingActive,
		},
		Metadata: models.Metadata{
			"paymentEventId": ev.EventID,
			"paymentType":    string(variant),
		},
		Version:   1,
		PaidAt:    now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func clearingEnd(now time.Time, period time.Duration) *time.Time {
	end := now.Add(period)
	return &end
}

// BuildStandardOrder maps a draft onto an order. Fees come from metadata when
// present, else from the gateway's application fee.
func (p OrderPolicy) BuildStandardOrder(id string, d *models.Draft, v StandardBooking, ev *models.PaymentEvent, now time.Time) *models.Order {
	gross := ev.Amount
	if gross == 0 {
		gross = d.TotalPriceInCents
	}
	fee := v.PlatformFeeInCents
	if fee <= 0 {
		fee = ev.ApplicationFeeAmount
	}

	o := p.newOrder(id, models.VariantStandard, ev, gross, fee, now)
	o.SourceDraftID = d.ID
	o.CustomerID = d.CustomerID
	if o.CustomerID == "" {
		o.CustomerID = v.CustomerID
	}
	o.ProviderID = d.ProviderID
	o.CustomerName = d.CustomerName
	o.ProviderName = d.ProviderName
	o.Category = d.Category
	o.Subcategory = d.Subcategory
	o.Description = d.Description
	o.DateFrom = d.DateFrom
	o.DateTo = d.DateTo
	o.Time = d.Time
	o.Location = d.Location
	o.JobDurationString = d.JobDurationString
	o.JobTotalCalculatedHours = models.CorrectedTotalHours(d.DateFrom, d.DateTo, d.JobDurationString, d.JobTotalCalculatedHours, p.DefaultHoursPerDay)
	o.ClearingPeriodEndsAt = clearingEnd(now, p.StandardClearing)
	o.Metadata["tempJobDraftId"] = d.ID
	return o
}

// BuildB2BOrder synthesizes an order for a business booking at the fixed B2B fee rate.
func (p OrderPolicy) BuildB2BOrder(id string, v B2BBooking, ev *models.PaymentEvent, now time.Time) *models.Order {
	gross := ev.Amount
	o := p.newOrder(id, models.VariantB2B, ev, gross, feeAtRate(gross, p.B2BFeeRate), now)
	o.CustomerID = v.CustomerID
	o.ProviderID = v.ProviderID
	o.CustomerName = v.CustomerName
	o.ProviderName = v.ProviderName
	o.Category = v.Category
	o.Subcategory = v.Subcategory
	o.Description = v.ProjectTitle
	o.DateFrom = v.DateFrom
	o.DateTo = v.DateTo
	if o.DateTo == "" {
		o.DateTo = o.DateFrom
	}
	o.Time = v.Time
	if o.Time == "" {
		o.Time = defaultB2BTime
	}
	o.Location = v.Location
	if o.Location == "" {
		o.Location = defaultB2BLocation
	}
	o.JobDurationString = v.JobDurationString
	o.JobTotalCalculatedHours = models.CorrectedTotalHours(o.DateFrom, o.DateTo, v.JobDurationString, v.TotalHours, p.DefaultHoursPerDay)
	o.ClearingPeriodEndsAt = clearingEnd(now, p.B2BClearing)
	o.Metadata["paymentType"] = string(v.Kind)
	o.Metadata["platformFeeRate"] = p.B2BFeeRate.String()
	if v.ProjectID != "" {
		o.Metadata["projectId"] = v.ProjectID
	}
	return o
}

// BuildQuoteOrder prices the order from the accepted proposal. Work starts
// immediately, so there is no clearing wait.
func (p OrderPolicy) BuildQuoteOrder(id string, q *models.Quote, prop *models.Proposal, v QuoteBooking, ev *models.PaymentEvent, now time.Time) *models.Order {
	gross := prop.TotalAmountInCents
	if gross == 0 {
		gross = ev.Amount
	}
	fee := prop.PlatformFeeInCents
	if fee == 0 {
		fee = ev.ApplicationFeeAmount
	}

	o := p.newOrder(id, models.VariantQuote, ev, gross, fee, now)
	o.Status = models.OrderStatusActive
	o.QuoteID = q.ID
	o.CustomerID = q.CustomerID
	if o.CustomerID == "" {
		o.CustomerID = v.CustomerID
	}
	o.CustomerName = q.CustomerName
	o.ProviderID = prop.ProviderID
	o.ProviderName = prop.ProviderName
	o.Category = q.Category
	o.Subcategory = q.Subcategory
	o.Description = q.Description
	o.Location = q.Location
	o.DateFrom = q.DateFrom
	o.DateTo = q.DateTo
	o.JobTotalCalculatedHours = prop.EstimatedHours
	o.Metadata["quoteId"] = q.ID
	o.Metadata["proposalId"] = prop.ID
	return o
}

// BuildMobileOrder builds from the flat mobile schema and echoes the raw
// metadata for debugging.
func (p OrderPolicy) BuildMobileOrder(id string, v MobileBooking, ev *models.PaymentEvent, now time.Time) *models.Order {
	fee := v.PlatformFeeInCents
	if fee <= 0 {
		fee = ev.ApplicationFeeAmount
	}

	o := p.newOrder(id, models.VariantMobile, ev, ev.Amount, fee, now)
	o.CustomerID = v.CustomerID
	o.ProviderID = v.ProviderID
	o.CustomerName = v.CustomerName
	o.ProviderName = v.ProviderName
	o.Category = v.Category
	o.Subcategory = v.Subcategory
	o.Description = v.Description
	o.DateFrom = v.DateFrom
	o.DateTo = v.DateTo
	if o.DateTo == "" {
		o.DateTo = o.DateFrom
	}
	o.Time = v.Time
	o.Location = v.Location
	o.JobDurationString = v.JobDurationString
	o.JobTotalCalculatedHours = models.CorrectedTotalHours(o.DateFrom, o.DateTo, v.JobDurationString, v.TotalHours, p.DefaultHoursPerDay)
	o.ClearingPeriodEndsAt = clearingEnd(now, p.StandardClearing)
	o.Metadata["originalMobileData"] = v.Raw
	return o
}
