package model

// FeeQuote is the delivery cost estimate for one outbound message. Computed
// on demand, never persisted. Valid is false when the destination is
// unsupported or a requested dry-run validator check did not pass.
type FeeQuote struct {
	NativeFee         uint64 `json:"native_fee"`
	SecondaryTokenFee uint64 `json:"secondary_token_fee"`
	Valid             bool   `json:"valid"`
}

// DeliveryOptions tune one outbound delivery. GasLimit is the execution
// budget requested on the destination; PayInSecondaryToken selects the
// secondary-token fee lane in addition to the native fee.
type DeliveryOptions struct {
	GasLimit            uint64 `json:"gas_limit"`
	PayInSecondaryToken bool   `json:"pay_in_secondary_token"`
}

// CostModel prices deliveries toward one destination endpoint. All
// coefficients are unsigned, so quoted fees are monotonically non-decreasing
// in encoded message size.
type CostModel struct {
	BaseFee             uint64 `yaml:"base_fee" json:"base_fee"`
	PerByteFee          uint64 `yaml:"per_byte_fee" json:"per_byte_fee"`
	GasPriceNative      uint64 `yaml:"gas_price_native" json:"gas_price_native"`
	SecondaryFlatFee    uint64 `yaml:"secondary_flat_fee" json:"secondary_flat_fee"`
	SecondaryPerByteFee uint64 `yaml:"secondary_per_byte_fee" json:"secondary_per_byte_fee"`
}
