package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderLine is a product entry with the unit price captured at order time.
type OrderLine struct {
	ProductID           primitive.ObjectID `bson:"productId" json:"productId"`
	Name                string             `bson:"name" json:"name"`
	Quantity            int                `bson:"quantity" json:"quantity"`
	UnitPrice           Money              `bson:"unitPrice" json:"unitPrice"`
	SpecialInstructions string             `bson:"specialInstructions,omitempty" json:"specialInstructions,omitempty"`
}

func (l OrderLine) Total() Money {
	return l.UnitPrice.Mul(l.Quantity)
}

type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

type DeliveryAddress struct {
	Street      string       `bson:"street" json:"street"`
	City        string       `bson:"city" json:"city"`
	State       string       `bson:"state" json:"state"`
	ZipCode     string       `bson:"zipCode" json:"zipCode"`
	Country     string       `bson:"country" json:"country"`
	Coordinates *Coordinates `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

type ContactInfo struct {
	Phone string `bson:"phone" json:"phone"`
	Email string `bson:"email" json:"email"`
}

// StockState tracks whether an order still holds the stock it reserved.
// Orders written before the field existed carry the empty value.
type StockState string

const (
	StockReserved StockState = "reserved"
	StockReleased StockState = "released"
)

// Order defines the persisted order document.
type Order struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber           string             `bson:"orderNumber" json:"orderNumber"`
	CustomerID            string             `bson:"customerId" json:"customerId"`
	Items                 []OrderLine        `bson:"items" json:"items"`
	Subtotal              Money              `bson:"subtotal" json:"subtotal"`
	DeliveryFee           Money              `bson:"deliveryFee" json:"deliveryFee"`
	Tax                   Money              `bson:"tax" json:"tax"`
	FinalAmount           Money              `bson:"finalAmount" json:"finalAmount"`
	Status                OrderStatus        `bson:"status" json:"status"`
	PaymentMethod         PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus         PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	DeliveryAddress       DeliveryAddress    `bson:"deliveryAddress" json:"deliveryAddress"`
	ContactInfo           ContactInfo        `bson:"contactInfo" json:"contactInfo"`
	SpecialInstructions   string             `bson:"specialInstructions,omitempty" json:"specialInstructions,omitempty"`
	Notes                 string             `bson:"notes,omitempty" json:"notes,omitempty"`
	EstimatedDeliveryTime time.Time          `bson:"estimatedDeliveryTime" json:"estimatedDeliveryTime"`
	ActualDeliveryTime    *time.Time         `bson:"actualDeliveryTime,omitempty" json:"actualDeliveryTime,omitempty"`
	IdempotencyKey        string             `bson:"idempotencyKey,omitempty" json:"-"`
	StockState            StockState         `bson:"stockState,omitempty" json:"-"`
	CreatedAt             time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Clone returns a copy that shares no mutable state with o.
func (o Order) Clone() Order {
	out := o
	out.Items = append([]OrderLine(nil), o.Items...)
	if o.ActualDeliveryTime != nil {
		t := *o.ActualDeliveryTime
		out.ActualDeliveryTime = &t
	}
	if o.DeliveryAddress.Coordinates != nil {
		c := *o.DeliveryAddress.Coordinates
		out.DeliveryAddress.Coordinates = &c
	}
	return out
}
