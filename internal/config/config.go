// Package config loads store settings from CUE.
//
// A document is unified with the embedded #Config schema, which supplies
// defaults and rejects unknown keys, then decoded into Config and checked
// with validator struct tags.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
)

//go:embed schema.cue
var schemaCUE string

//go:embed default.cue
var defaultCUE string

var validate = validator.New()

// Config holds every setting the cart and committer consult.
type Config struct {
	General  General  `json:"general"`
	Order    Order    `json:"order"`
	Tax      Tax      `json:"tax"`
	Shipping Shipping `json:"shipping"`
	Payment  Payment  `json:"payment"`
	Coupons  []Coupon `json:"coupons" validate:"dive"`

	value cue.Value
}

type General struct {
	Currency string `json:"currency" validate:"required,len=3,uppercase"`
}

type Order struct {
	NumberOffset int64 `json:"number_offset" validate:"gte=0"`
}

type Tax struct {
	Classes         map[string]int64 `json:"classes" validate:"dive,gte=0,lte=100"`
	DefaultClass    string           `json:"default_class" validate:"required"`
	ShippingPercent int64            `json:"shipping_percent" validate:"gte=0,lte=100"`
}

type Shipping struct {
	Methods []ShippingMethod `json:"methods" validate:"unique=Code,dive"`
}

type ShippingMethod struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Fee      int64  `json:"fee" validate:"gte=0"`
	PerKg    int64  `json:"per_kg" validate:"gte=0"`
	FreeOver int64  `json:"free_over" validate:"gte=0"`
}

type Payment struct {
	Methods []PaymentMethod `json:"methods" validate:"unique=Code,dive"`
}

type PaymentMethod struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	MinTotal int64  `json:"min_total" validate:"gte=0"`
	MaxTotal int64  `json:"max_total" validate:"gte=0"`
}

// Accepts reports whether total is within the method's bounds.
// A zero MaxTotal means no upper bound.
func (m PaymentMethod) Accepts(total int64) bool {
	if total < m.MinTotal {
		return false
	}
	return m.MaxTotal == 0 || total <= m.MaxTotal
}

type Coupon struct {
	Code        string `json:"code" validate:"required"`
	Percent     int64  `json:"percent" validate:"gte=0,lte=100"`
	Amount      int64  `json:"amount" validate:"gte=0"`
	MinSubTotal int64  `json:"min_sub_total" validate:"gte=0"`
}

// Load reads and parses a CUE config file.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := parse(src, path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses a CUE config document. An empty document yields the schema
// defaults: USD, no tax classes, no shipping or payment methods.
func Parse(src []byte) (*Config, error) {
	return parse(src, "config.cue")
}

var bundled = sync.OnceValues(func() (*Config, error) {
	return parse([]byte(defaultCUE), "default.cue")
})

// Default returns the bundled demo store settings. The returned Config is
// shared and must not be modified.
func Default() *Config {
	cfg, err := bundled()
	if err != nil {
		panic(fmt.Sprintf("config: bundled defaults are invalid: %v", err))
	}
	return cfg
}

func parse(src []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	doc := ctx.CompileBytes(src, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filename, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filename, err)
	}
	cfg.value = v
	return &cfg, nil
}

// ErrNotFound is returned by Require for keys that have no value.
var ErrNotFound = errors.New("config key not found")

// Lookup returns the value at a dotted path such as "general.currency",
// decoded into plain Go values, or fallback when the path does not exist.
func (c *Config) Lookup(key string, fallback any) any {
	v, err := c.Require(key)
	if err != nil {
		return fallback
	}
	return v
}

// Require is like Lookup but reports a missing key as ErrNotFound.
func (c *Config) Require(key string) (any, error) {
	if !c.value.Exists() {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	path := cue.ParsePath(key)
	if err := path.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	val := c.value.LookupPath(path)
	if !val.Exists() {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	var out any
	if err := val.Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return out, nil
}

// ShippingMethod returns the configured method with code.
func (c *Config) ShippingMethod(code string) (ShippingMethod, bool) {
	for _, m := range c.Shipping.Methods {
		if m.Code == code {
			return m, true
		}
	}
	return ShippingMethod{}, false
}

// PaymentMethod returns the configured method with code.
func (c *Config) PaymentMethod(code string) (PaymentMethod, bool) {
	for _, m := range c.Payment.Methods {
		if m.Code == code {
			return m, true
		}
	}
	return PaymentMethod{}, false
}

// Coupon returns the configured coupon with code.
func (c *Config) Coupon(code string) (Coupon, bool) {
	for _, cp := range c.Coupons {
		if cp.Code == code {
			return cp, true
		}
	}
	return Coupon{}, false
}

// TaxPercent returns the rate of a tax class. An empty class uses the
// default class; unknown classes are untaxed.
func (c *Config) TaxPercent(class string) int64 {
	if class == "" {
		class = c.Tax.DefaultClass
	}
	return c.Tax.Classes[class]
}
