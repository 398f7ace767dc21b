package hexconv

// Halfbyte maps every hexadecimal digit onto its value. Any other character maps onto 0xFF.
var Halfbyte = func() (table [256]byte) {
	for i := range table {
		table[i] = 0xFF
	}
	for c := '0'; c <= '9'; c++ {
		table[c] = byte(c - '0')
	}
	for c := 'a'; c <= 'f'; c++ {
		table[c] = byte(c-'a') + 10
	}
	for c := 'A'; c <= 'F'; c++ {
		table[c] = byte(c-'A') + 10
	}

	return table
}()

// IsHex reports whether the character is a hexadecimal digit.
func IsHex(c byte) bool {
	return Halfbyte[c] != 0xFF
}
