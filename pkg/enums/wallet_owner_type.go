package enums

// WalletOwnerType identifies which kind of party owns a wallet.
type WalletOwnerType string

const (
	WalletOwnerRestaurant WalletOwnerType = "restaurant"
	WalletOwnerCourier    WalletOwnerType = "courier"
	WalletOwnerAdmin      WalletOwnerType = "admin"
	WalletOwnerPlatform   WalletOwnerType = "platform"
	// WalletOwnerCustomer holds store credit issued by refunds.
	WalletOwnerCustomer WalletOwnerType = "customer"
)

var validWalletOwnerTypes = []WalletOwnerType{
	WalletOwnerRestaurant,
	WalletOwnerCourier,
	WalletOwnerAdmin,
	WalletOwnerPlatform,
	WalletOwnerCustomer,
}

func (w WalletOwnerType) String() string {
	return string(w)
}

func (w WalletOwnerType) IsValid() bool {
	return known(w, validWalletOwnerTypes)
}

// ParseWalletOwnerType converts raw input into a WalletOwnerType.
func ParseWalletOwnerType(value string) (WalletOwnerType, error) {
	return parse("wallet owner type", value, validWalletOwnerTypes)
}
