package sampling

import (
	"crypto/sha256"
	"encoding/binary"
)

// Domain prefixes for derived seeds.
// Version suffix enables future algorithm migration.
const (
	DomainDaySeed  = "datasetgen/day-seed/v1"
	DomainFileSeed = "datasetgen/file-seed/v1"
)

// Seed is the 128-bit state used to initialise a PCG source.
type Seed struct {
	Hi, Lo uint64
}

// deriveWithDomain computes SHA-256(domain + 0x00 + master + key) and folds
// the digest into a Seed. The null separator keeps domain and data apart.
func deriveWithDomain(domain string, master uint64, key uint64) Seed {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], master)
	binary.BigEndian.PutUint64(buf[8:], key)

	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(buf[:])
	sum := h.Sum(nil)

	return Seed{
		Hi: binary.BigEndian.Uint64(sum[0:8]) ^ binary.BigEndian.Uint64(sum[16:24]),
		Lo: binary.BigEndian.Uint64(sum[8:16]) ^ binary.BigEndian.Uint64(sum[24:32]),
	}
}

// DaySeed derives the seed of day dayIdx from the master seed.
// It is a pure function of (master, dayIdx).
func DaySeed(master uint64, dayIdx int) Seed {
	return deriveWithDomain(DomainDaySeed, master, uint64(dayIdx))
}

// DaySeeds derives the seeds of days 0..numDays-1.
func DaySeeds(master uint64, numDays int) []Seed {
	if numDays <= 0 {
		return nil
	}
	seeds := make([]Seed, numDays)
	for i := range seeds {
		seeds[i] = DaySeed(master, i)
	}
	return seeds
}

// FileSeed derives a seed bound to one file of the universe, used for file
// attributes that must not change from one day to the next.
func FileSeed(master uint64, file int64) Seed {
	return deriveWithDomain(DomainFileSeed, master, uint64(file))
}
