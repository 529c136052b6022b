package cart

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/cartflow/internal/ir"
)

var validate = validator.New()

// ItemInput describes a line to add. Either ProductID or Price must be
// given; a Price overrides the catalog price.
type ItemInput struct {
	ItemID    string `yaml:"item_id" validate:"omitempty,max=64"`
	ProductID int64  `yaml:"product_id" validate:"required_without=Price,gte=0"`
	Price     *int64 `yaml:"price" validate:"omitempty,gte=0"`
	Qty       int64  `yaml:"qty" validate:"gte=1"`
}

func (in ItemInput) row(id string) ir.IRObject {
	row := ir.IRObject{
		ItemID: ir.IRString(id),
		Qty:    ir.IRInt(in.Qty),
	}
	if in.ProductID > 0 {
		row[ProductID] = ir.IRInt(in.ProductID)
	}
	if in.Price != nil {
		row[ProductPrice] = ir.IRInt(*in.Price)
	}
	return row
}

// Line item failure messages.
const (
	MsgProductMissing = "Product does not exist"
	MsgQtyInvalid     = "Qty is invalid"
	MsgPriceInvalid   = "Price is invalid"
	MsgItemIDInvalid  = "Item id is invalid"
)

// inputMessage maps the first validation failure of an ItemInput onto a
// shopper-facing message.
func inputMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	switch verrs[0].Field() {
	case "Qty":
		return MsgQtyInvalid
	case "Price":
		return MsgPriceInvalid
	case "ItemID":
		return MsgItemIDInvalid
	default:
		return MsgProductMissing
	}
}
