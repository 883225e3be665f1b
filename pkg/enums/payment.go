package enums

// PaymentMethod is how the customer settles an order.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodOnline PaymentMethod = "online"
)

var paymentMethods = []PaymentMethod{PaymentMethodCash, PaymentMethodOnline}

func (p PaymentMethod) IsValid() bool { return known(p, paymentMethods) }

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	return parse("payment method", raw, paymentMethods)
}

// PaymentStatus follows the collaborator-side capture of an order. Cash
// orders and orders awaiting capture stay unpaid.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusCaptured PaymentStatus = "captured"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentStatuses = []PaymentStatus{PaymentStatusUnpaid, PaymentStatusCaptured, PaymentStatusRefunded}

func (p PaymentStatus) IsValid() bool { return known(p, paymentStatuses) }
