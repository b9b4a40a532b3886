package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is the catalog entry as the order engine sees it.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Price       Money              `bson:"price" json:"price"`
	SaleEnabled bool               `bson:"saleEnabled" json:"saleEnabled"`
	SalePrice   Money              `bson:"salePrice" json:"salePrice"`
	IsAvailable bool               `bson:"isAvailable" json:"isAvailable"`
	Stock       int                `bson:"stock" json:"stock"`
	IsDeleted   bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
}

// OnSale reports whether an enabled sale price undercuts the list price.
func (p Product) OnSale() bool {
	return p.SaleEnabled && p.SalePrice.IsPositive() && p.SalePrice.LessThan(p.Price)
}

// EffectivePrice is the unit price a new order line snapshots.
func (p Product) EffectivePrice() Money {
	if p.OnSale() {
		return p.SalePrice
	}
	return p.Price
}

func (p Product) Orderable() bool {
	return p.IsAvailable && !p.IsDeleted
}
