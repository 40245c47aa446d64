package domestic

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Rand yields a value in [0, n). Injectable so layout tests are
// deterministic; nil falls back to the operating system CSPRNG.
type Rand func(n int) int

func cryptoIntn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}

// LayoutConfig holds the strip emission knobs.
type LayoutConfig struct {
	StripValidityHours      int
	MaxIssuanceDays         int
	MaxRandomizedOverlapHrs int
}

// CredentialAmount is how many strips the signer must provision for one
// issuance window: enough strips of StripValidityHours, each overlapping its
// predecessor by at most MaxRandomizedOverlapHrs, to tile the whole window.
func (c LayoutConfig) CredentialAmount() int {
	step := c.StripValidityHours - c.MaxRandomizedOverlapHrs
	if step <= 0 {
		step = 1
	}
	total := c.MaxIssuanceDays * 24
	return (total + step - 1) / step
}

// Strip is one short-lived credential window. IsSpecimen is inherited from
// the first origin of the block the strip was cut from.
type Strip struct {
	ValidFrom     time.Time
	ValidForHours int
	IsSpecimen    bool
}

// Layout cuts strips out of each block. The cursor starts at the later of now
// (floored to the hour) and the block start; each iteration advances it by the
// strip length minus a random overlap in [0, MaxRandomizedOverlapHrs], clamps
// it to the block expiration, and emits a strip ending at the cursor. Emission
// stops at the issuance horizon or once a strip reaches the block expiration.
func Layout(blocks []Block, now time.Time, cfg LayoutConfig, rnd Rand) []Strip {
	if rnd == nil {
		rnd = cryptoIntn
	}
	nowHour := floorHour(now)
	horizon := nowHour.AddDate(0, 0, cfg.MaxIssuanceDays)
	stripLen := time.Duration(cfg.StripValidityHours) * time.Hour

	var strips []Strip
	for _, b := range blocks {
		specimen := b.Origins[0].IsSpecimen
		cursor := b.ValidFrom
		if cursor.Before(nowHour) {
			cursor = nowHour
		}
		for {
			overlap := 0
			if cfg.MaxRandomizedOverlapHrs > 0 {
				overlap = rnd(cfg.MaxRandomizedOverlapHrs + 1)
			}
			cursor = cursor.Add(stripLen - time.Duration(overlap)*time.Hour)
			if cursor.After(b.ExpirationTime) {
				cursor = b.ExpirationTime
			}
			if !cursor.Before(horizon) {
				break
			}
			strips = append(strips, Strip{
				ValidFrom:     cursor.Add(-stripLen),
				ValidForHours: cfg.StripValidityHours,
				IsSpecimen:    specimen,
			})
			if cursor.Equal(b.ExpirationTime) {
				break
			}
		}
	}
	return strips
}
