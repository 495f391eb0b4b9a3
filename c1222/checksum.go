package c1222

// Checksum returns the C12.18 one's complement checksum of b:
// the two's complement of the byte sum, modulo 256.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return ^sum + 1
}
