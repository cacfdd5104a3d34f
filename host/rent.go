package host

// AccountStorageOverhead is charged on top of the data length of every account
const AccountStorageOverhead = 128

// Rent decides how many lamports keep an account of a given size alive
type Rent struct {
	LamportsPerByteYear uint64 `mapstructure:"lamportsPerByteYear"`
	ExemptionThreshold  uint64 `mapstructure:"exemptionThreshold"`
}

// DefaultRent charges 3480 lamports per byte-year with a two year threshold
var DefaultRent = Rent{LamportsPerByteYear: 3480, ExemptionThreshold: 2}

// MinimumBalance returns the balance that exempts an account of n data bytes
func (r Rent) MinimumBalance(n int) uint64 {
	return (AccountStorageOverhead + uint64(n)) * r.LamportsPerByteYear * r.ExemptionThreshold
}

// IsExempt reports whether lamports cover the minimum balance for n bytes
func (r Rent) IsExempt(lamports uint64, n int) bool {
	return lamports >= r.MinimumBalance(n)
}
