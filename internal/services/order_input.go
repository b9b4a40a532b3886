package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"cookiebarrel/internal/models"
	"cookiebarrel/internal/textutil"
)

const (
	defaultCountry         = "Nepal"
	maxOrderTextLength     = 500
	maxIdempotencyKeyBytes = 128
)

type OrderLineInput struct {
	ProductID           string `json:"productId" validate:"required"`
	Quantity            int    `json:"quantity" validate:"min=1,max=1000"`
	SpecialInstructions string `json:"specialInstructions" validate:"max=200"`
}

type AddressInput struct {
	Street      string              `json:"street" validate:"required"`
	City        string              `json:"city" validate:"required"`
	State       string              `json:"state" validate:"required"`
	ZipCode     string              `json:"zipCode" validate:"required"`
	Country     string              `json:"country"`
	Coordinates *models.Coordinates `json:"coordinates"`
}

type ContactInput struct {
	Phone string `json:"phone" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// CreateOrderInput is the customer supplied part of an order.
type CreateOrderInput struct {
	Items               []OrderLineInput `json:"items" validate:"required,min=1,max=100,dive"`
	DeliveryAddress     *AddressInput    `json:"deliveryAddress" validate:"required"`
	ContactInfo         *ContactInput    `json:"contactInfo" validate:"required"`
	PaymentMethod       string           `json:"paymentMethod" validate:"required"`
	SpecialInstructions string           `json:"specialInstructions" validate:"max=500"`
}

// orderDraft is a validated CreateOrderInput.
type orderDraft struct {
	lines               []models.OrderLine
	stock               []StockLine
	address             models.DeliveryAddress
	contact             models.ContactInfo
	paymentMethod       models.PaymentMethod
	specialInstructions string
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// prepareCreateInput cleans free text, validates the request and resolves
// enums and product ids.
func prepareCreateInput(v *validator.Validate, in CreateOrderInput) (orderDraft, error) {
	in.SpecialInstructions = textutil.PlainText(in.SpecialInstructions)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	items := make([]OrderLineInput, len(in.Items))
	for i, item := range in.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.SpecialInstructions = textutil.PlainText(item.SpecialInstructions)
		items[i] = item
	}
	in.Items = items
	if len(in.Items) == 0 {
		in.Items = nil
	}
	if in.DeliveryAddress != nil {
		addr := *in.DeliveryAddress
		addr.Street = strings.TrimSpace(addr.Street)
		addr.City = strings.TrimSpace(addr.City)
		addr.State = strings.TrimSpace(addr.State)
		addr.ZipCode = strings.TrimSpace(addr.ZipCode)
		addr.Country = strings.TrimSpace(addr.Country)
		in.DeliveryAddress = &addr
	}
	if in.ContactInfo != nil {
		contact := *in.ContactInfo
		contact.Phone = strings.TrimSpace(contact.Phone)
		contact.Email = strings.TrimSpace(contact.Email)
		in.ContactInfo = &contact
	}

	if err := v.Struct(in); err != nil {
		return orderDraft{}, translateValidation(err)
	}

	method, err := models.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return orderDraft{}, validationError(CodeInvalidInput, err.Error(), "paymentMethod")
	}

	draft := orderDraft{
		lines:               make([]models.OrderLine, 0, len(in.Items)),
		stock:               make([]StockLine, 0, len(in.Items)),
		paymentMethod:       method,
		specialInstructions: in.SpecialInstructions,
		contact:             models.ContactInfo{Phone: in.ContactInfo.Phone, Email: in.ContactInfo.Email},
		address: models.DeliveryAddress{
			Street:      in.DeliveryAddress.Street,
			City:        in.DeliveryAddress.City,
			State:       in.DeliveryAddress.State,
			ZipCode:     in.DeliveryAddress.ZipCode,
			Country:     in.DeliveryAddress.Country,
			Coordinates: in.DeliveryAddress.Coordinates,
		},
	}
	if draft.address.Country == "" {
		draft.address.Country = defaultCountry
	}

	for i, item := range in.Items {
		id, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			field := fmt.Sprintf("items[%d].productId", i)
			return orderDraft{}, validationError(CodeInvalidInput, "invalid productId", field)
		}
		draft.lines = append(draft.lines, models.OrderLine{
			ProductID:           id,
			Quantity:            item.Quantity,
			SpecialInstructions: item.SpecialInstructions,
		})
		draft.stock = append(draft.stock, StockLine{ProductID: id, Quantity: item.Quantity})
	}
	return draft, nil
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalidInput("invalid request")
	}

	var missing, invalid []string
	for _, fe := range verrs {
		field := fieldPath(fe)
		if fe.Tag() == "required" {
			missing = append(missing, field)
			continue
		}
		invalid = append(invalid, field)
	}
	if len(missing) > 0 {
		return validationError(CodeMissingFields, "missing required fields: "+strings.Join(missing, ", "), missing...)
	}

	first := verrs[0]
	msg := fmt.Sprintf("%s is invalid", fieldPath(first))
	switch first.Tag() {
	case "max":
		msg = fmt.Sprintf("%s must be at most %s", fieldPath(first), first.Param())
	case "min":
		msg = fmt.Sprintf("%s must be at least %s", fieldPath(first), first.Param())
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", fieldPath(first))
	}
	return validationError(CodeInvalidInput, msg, invalid...)
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func prepareNotes(raw string) (string, error) {
	notes := textutil.PlainText(raw)
	if utf8.RuneCountInString(notes) > maxOrderTextLength {
		return "", validationError(CodeInvalidInput, fmt.Sprintf("notes must be at most %d characters", maxOrderTextLength), "notes")
	}
	return notes, nil
}

func prepareIdempotencyKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if len(key) > maxIdempotencyKeyBytes {
		return "", validationError(CodeInvalidInput, "Idempotency-Key is too long", "Idempotency-Key")
	}
	return key, nil
}
