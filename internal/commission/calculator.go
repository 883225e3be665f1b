package commission

import (
	"fmt"

	"github.com/angelmondragon/foodrun-backend/pkg/config"
	"github.com/angelmondragon/foodrun-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	"github.com/angelmondragon/foodrun-backend/pkg/money"
)

// RateTable holds the configured settlement rates in halalas.
type RateTable struct {
	PlatformFeePerDeliveryCents int64
	AdminCommissionPerItemCents int64
}

// RatesFromConfig converts the parsed config rates into a RateTable.
func RatesFromConfig(rates config.CommissionRates) RateTable {
	return RateTable{
		PlatformFeePerDeliveryCents: rates.PlatformFeePerDeliveryCents,
		AdminCommissionPerItemCents: rates.AdminCommissionPerItemCents,
	}
}

// Input describes the order being settled.
type Input struct {
	SubtotalCents    int64
	DeliveryFeeCents int64
	DeliveryType     enums.DeliveryType
	ItemCount        int
	Referral         bool
}

// Split is the allocation of an order total between the parties.
type Split struct {
	RestaurantEarnings int64 `json:"restaurant_earnings_cents"`
	CourierEarnings    int64 `json:"courier_earnings_cents"`
	PlatformFee        int64 `json:"platform_fee_cents"`
	AdminCommission    int64 `json:"admin_commission_cents"`
	AppEarnings        int64 `json:"app_earnings_cents"`
}

// Total is the amount the split distributes. It always equals subtotal plus
// delivery fee of the input it was calculated from.
func (s Split) Total() int64 {
	return s.RestaurantEarnings + s.CourierEarnings + s.PlatformFee + s.AdminCommission
}

// Calculator computes settlement splits from a fixed rate table.
type Calculator struct {
	rates RateTable
}

// NewCalculator validates the rate table and returns a calculator.
func NewCalculator(rates RateTable) (*Calculator, error) {
	if rates.PlatformFeePerDeliveryCents < 0 {
		return nil, fmt.Errorf("platform fee rate must not be negative")
	}
	if rates.AdminCommissionPerItemCents < 0 {
		return nil, fmt.Errorf("admin commission rate must not be negative")
	}
	return &Calculator{rates: rates}, nil
}

// Rates returns the table the calculator was built with.
func (c *Calculator) Rates() RateTable {
	return c.rates
}

// Calculate splits the order total. Invalid inputs are rejected, never clamped.
func (c *Calculator) Calculate(in Input) (Split, error) {
	if in.SubtotalCents < 0 {
		return Split{}, validation("subtotal must not be negative")
	}
	if in.DeliveryFeeCents < 0 {
		return Split{}, validation("delivery fee must not be negative")
	}
	if in.ItemCount < 0 {
		return Split{}, validation("item count must not be negative")
	}

	var split Split
	switch in.DeliveryType {
	case enums.DeliveryTypeDelivery:
		if in.DeliveryFeeCents < c.rates.PlatformFeePerDeliveryCents {
			return Split{}, validation(fmt.Sprintf(
				"delivery fee %s is below the platform fee %s",
				money.Format(in.DeliveryFeeCents), money.Format(c.rates.PlatformFeePerDeliveryCents),
			))
		}
		split.PlatformFee = c.rates.PlatformFeePerDeliveryCents
		split.CourierEarnings = in.DeliveryFeeCents - split.PlatformFee
	case enums.DeliveryTypePickup:
		if in.DeliveryFeeCents != 0 {
			return Split{}, validation("pickup orders cannot carry a delivery fee")
		}
	default:
		return Split{}, validation(fmt.Sprintf("unknown delivery type %q", in.DeliveryType))
	}

	if in.Referral {
		split.AdminCommission = c.rates.AdminCommissionPerItemCents * int64(in.ItemCount)
		if split.AdminCommission > in.SubtotalCents {
			return Split{}, validation(fmt.Sprintf(
				"admin commission %s exceeds subtotal %s",
				money.Format(split.AdminCommission), money.Format(in.SubtotalCents),
			))
		}
	}
	split.RestaurantEarnings = in.SubtotalCents - split.AdminCommission
	split.AppEarnings = split.PlatformFee

	if split.Total() != in.SubtotalCents+in.DeliveryFeeCents {
		return Split{}, pkgerrors.New(pkgerrors.CodeInternal, "commission split does not conserve the order total")
	}
	return split, nil
}

// ValidateDeliveryFee checks a fee before it is written to an order.
func (c *Calculator) ValidateDeliveryFee(deliveryType enums.DeliveryType, feeCents int64) error {
	_, err := c.Calculate(Input{DeliveryFeeCents: feeCents, DeliveryType: deliveryType})
	return err
}

func validation(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}
