package ir

import "github.com/cespare/xxhash/v2"

// Fingerprint hashes the printed form of a function. Two functions with equal
// fingerprints print identically.
func Fingerprint(fn *Function) uint64 {
	return xxhash.Sum64String(String(fn))
}

// ModuleFingerprint hashes the printed form of a module.
func ModuleFingerprint(m *Module) uint64 {
	d := xxhash.New()
	for _, mem := range m.Members {
		_, _ = d.WriteString(String(mem))
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}
