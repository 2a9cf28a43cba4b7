package services

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"

	"github.com/jobhub/backend/internal/models"
)

// VariantTag is the payment flow discriminator carried in event metadata.
type VariantTag string

const (
	TagStandard            VariantTag = "standard"
	TagB2BPayment          VariantTag = "b2b_payment"
	TagB2BProject          VariantTag = "b2b_project"
	TagQuotePayment        VariantTag = "quote_payment"
	TagMobileB2C           VariantTag = "mobile_b2c_payment"
	TagAdditionalHours     VariantTag = "additional_hours_payment"
	TagStorageSubscription VariantTag = "storage_subscription"
)

// PaymentVariant is one member of the tagged union decoded from metadata.
type PaymentVariant interface {
	Tag() VariantTag
}

// StandardBooking converts a pending draft into an order.
type StandardBooking struct {
	DraftID            string `meta:"tempJobDraftId" validate:"required"`
	CustomerID         string `meta:"firebaseUserId"`
	PlatformFeeInCents int64  `meta:"platformFeeInCents"`
}

// B2BBooking synthesizes an order for a business customer without a draft.
type B2BBooking struct {
	Kind              VariantTag `meta:"-"`
	CustomerID        string     `meta:"customerId" validate:"required"`
	ProviderID        string     `meta:"providerId" validate:"required"`
	CustomerName      string     `meta:"customerName"`
	ProviderName      string     `meta:"providerName"`
	ProjectID         string     `meta:"projectId"`
	ProjectTitle      string     `meta:"projectTitle"`
	Category          string     `meta:"category"`
	Subcategory       string     `meta:"subcategory"`
	DateFrom          string     `meta:"dateFrom"`
	DateTo            string     `meta:"dateTo"`
	Time              string     `meta:"time"`
	Location          string     `meta:"location"`
	JobDurationString string     `meta:"jobDuration"`
	TotalHours        float64    `meta:"totalHours"`
}

// QuoteBooking accepts one provider proposal on a quote.
type QuoteBooking struct {
	QuoteID    string `meta:"quoteId" validate:"required"`
	ProposalID string `meta:"proposalId"`
	CustomerID string `meta:"customerId"`
}

// MobileBooking is a direct booking from the mobile app with a flat schema.
type MobileBooking struct {
	CustomerID         string            `meta:"customerId" validate:"required"`
	ProviderID         string            `meta:"providerId" validate:"required"`
	CustomerName       string            `meta:"customerName"`
	ProviderName       string            `meta:"providerName"`
	Category           string            `meta:"category" validate:"required"`
	Subcategory        string            `meta:"subcategory"`
	Description        string            `meta:"description"`
	DateFrom           string            `meta:"dateFrom" validate:"required"`
	DateTo             string            `meta:"dateTo"`
	Time               string            `meta:"time"`
	Location           string            `meta:"location"`
	JobDurationString  string            `meta:"jobDuration"`
	TotalHours         float64           `meta:"totalHours"`
	PlatformFeeInCents int64             `meta:"platformFeeInCents"`
	Raw                map[string]string `meta:"-"`
}

// AdditionalHoursPayment settles approved additional hours on an order.
type AdditionalHoursPayment struct {
	Kind               VariantTag `meta:"-"`
	OrderID            string     `meta:"orderId" validate:"required"`
	EntryIDs           []string   `meta:"timeEntryIds" validate:"required_without=BatchID"`
	BatchID            string     `meta:"billingBatchId" validate:"required_without=EntryIDs"`
	PlatformFeeInCents int64      `meta:"platformFeeInCents"`
}

// StorageSubscription updates a company's storage plan fields.
type StorageSubscription struct {
	CompanyID      string `meta:"companyId" validate:"required"`
	PlanID         string `meta:"planId"`
	SubscriptionID string `meta:"-"`
	Status         string `meta:"-"`
}

func (StandardBooking) Tag() VariantTag          { return TagStandard }
func (v B2BBooking) Tag() VariantTag             { return v.Kind }
func (QuoteBooking) Tag() VariantTag             { return TagQuotePayment }
func (MobileBooking) Tag() VariantTag            { return TagMobileB2C }
func (v AdditionalHoursPayment) Tag() VariantTag { return v.Kind }
func (StorageSubscription) Tag() VariantTag      { return TagStorageSubscription }

// VariantTagOf reads the discriminator, preferring "type" over the older "paymentType".
func VariantTagOf(meta map[string]string) VariantTag {
	if t := strings.TrimSpace(meta["type"]); t != "" {
		return VariantTag(t)
	}
	return VariantTag(strings.TrimSpace(meta["paymentType"]))
}

// VariantParser turns loosely typed metadata into a validated variant.
type VariantParser struct {
	validator *validator.Validate
}

func NewVariantParser() *VariantParser {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("meta"); name != "" && name != "-" {
			return name
		}
		return fld.Name
	})
	return &VariantParser{validator: v}
}

// Parse picks the variant for ev and validates its required fields.
func (p *VariantParser) Parse(ev *models.PaymentEvent) (PaymentVariant, error) {
	switch ev.Type {
	case models.EventSubscriptionUpdated, models.EventSubscriptionDeleted:
		v := StorageSubscription{SubscriptionID: ev.ObjectID, Status: ev.ObjectStatus}
		if ev.Type == models.EventSubscriptionDeleted {
			v.Status = "canceled"
		}
		return p.decode(ev.Metadata, TagStorageSubscription, &v)
	}

	tag := VariantTagOf(ev.Metadata)
	switch {
	case strings.HasPrefix(string(tag), "additional_hours"):
		v := AdditionalHoursPayment{Kind: tag}
		return p.decode(ev.Metadata, tag, &v)
	case tag == TagB2BPayment || tag == TagB2BProject:
		v := B2BBooking{Kind: tag}
		return p.decode(ev.Metadata, tag, &v)
	case tag == TagQuotePayment:
		return p.decode(ev.Metadata, tag, &QuoteBooking{})
	case tag == TagMobileB2C:
		v := MobileBooking{Raw: copyMetadata(ev.Metadata)}
		return p.decode(ev.Metadata, tag, &v)
	case tag == TagStorageSubscription:
		v := StorageSubscription{SubscriptionID: ev.Metadata["subscriptionId"], Status: "active"}
		if v.SubscriptionID == "" {
			v.SubscriptionID = ev.ObjectID
		}
		return p.decode(ev.Metadata, tag, &v)
	default:
		return p.decode(ev.Metadata, TagStandard, &StandardBooking{})
	}
}

// decode fills dst (a pointer to a variant struct) and returns the variant value.
func (p *VariantParser) decode(meta map[string]string, tag VariantTag, dst any) (PaymentVariant, error) {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       metadataDecodeHook,
		TagName:          "meta",
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(meta); err != nil {
		return nil, &MetadataIncompleteError{Variant: tag, Missing: []string{err.Error()}}
	}

	if err := p.validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		missing := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			missing = append(missing, fe.Field())
		}
		return nil, &MetadataIncompleteError{Variant: tag, Missing: missing}
	}

	return reflect.ValueOf(dst).Elem().Interface().(PaymentVariant), nil
}

// metadataDecodeHook converts gateway strings without ever failing: bad
// numbers become zero, lists are comma separated.
func metadataDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s, _ := data.(string)
	switch to.Kind() {
	case reflect.Int64:
		return ParseCents(s), nil
	case reflect.Float64:
		return parseFloat(s), nil
	case reflect.Slice:
		return splitList(s), nil
	}
	return data, nil
}

// ParseCents parses a monetary metadata string into minor currency units.
// Missing, malformed or negative input yields 0.
func ParseCents(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0
	}
	return d.Round(0).IntPart()
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func copyMetadata(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
