package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Money is a decimal amount in the store currency. It is kept exact in memory
// and only rounded to cents when a caller asks for it or when it is rendered.
type Money struct {
	amount decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{amount: d}
}

func MoneyFromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -2)}
}

// ParseMoney reads a plain decimal string such as "4.95".
func ParseMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return Money{amount: d}, nil
}

// MustMoney is ParseMoney for constants and tests.
func MustMoney(raw string) Money {
	m, err := ParseMoney(raw)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.amount }

// Rounded returns the amount rounded half-up to two decimal places.
func (m Money) Rounded() Money {
	return Money{amount: m.amount.Round(2)}
}

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

func (m Money) Mul(qty int) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(qty)))}
}

func (m Money) Equal(other Money) bool { return m.amount.Equal(other.amount) }

func (m Money) IsNegative() bool { return m.amount.IsNegative() }

func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) LessThan(other Money) bool { return m.amount.LessThan(other.amount) }

func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.amount.GreaterThanOrEqual(other.amount)
}

// String renders the amount with exactly two decimals.
func (m Money) String() string { return m.amount.StringFixed(2) }

// MarshalJSON emits a JSON number with two decimals, e.g. 9.90.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.amount.StringFixed(2)), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	m.amount = d
	return nil
}

// MarshalBSONValue stores amounts as Decimal128 so the database never sees a
// binary float.
func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(m.amount.String())
	if err != nil {
		return 0, nil, fmt.Errorf("encode money %s: %w", m.amount.String(), err)
	}
	return bson.MarshalValue(d128)
}

// UnmarshalBSONValue accepts Decimal128 as well as the numeric and string
// shapes older documents were written with.
func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		m.amount = decimal.Zero
		return nil
	case bsontype.Decimal128:
		var value primitive.Decimal128
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		d, err := decimal.NewFromString(value.String())
		if err != nil {
			return err
		}
		m.amount = d
		return nil
	case bsontype.Double:
		var value float64
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		m.amount = decimal.NewFromFloat(value)
		return nil
	case bsontype.Int32:
		var value int32
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		m.amount = decimal.NewFromInt32(value)
		return nil
	case bsontype.Int64:
		var value int64
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		m.amount = decimal.NewFromInt(value)
		return nil
	case bsontype.String:
		var value string
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		parsed, err := ParseMoney(value)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	default:
		return fmt.Errorf("cannot decode %s into Money", t)
	}
}
