package domain

// CoalesceStr returns the first non-empty string from vals.
func CoalesceStr(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Int64OrZero dereferences p, treating nil as zero.
func Int64OrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
