package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
	_ "time/tzdata" // the signature date must resolve even without system zoneinfo
)

// signatureZone is the zone the target system derives its daily signature
// in. The signature rolls at local midnight there, not UTC midnight.
var signatureZone = loadSignatureZone()

func loadSignatureZone() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		// tzdata is linked in, so this cannot happen; keep a sane
		// fallback anyway (standard offset, no DST; Brazil abolished
		// DST in 2019).
		return time.FixedZone("-03", -3*60*60)
	}
	return loc
}

// TargetSignature computes the date-rolling shared-secret signature the
// target API expects: sha256(tokenBase + DD/MM/YYYY of now in
// America/Sao_Paulo), hex encoded.
//
// This is not a session token. The target derives the same value
// independently, so it must be recomputed immediately before every send
// (never cached) or requests issued shortly after local midnight fail.
func TargetSignature(tokenBase string, now time.Time) string {
	stamp := now.In(signatureZone).Format("02/01/2006")
	sum := sha256.Sum256([]byte(tokenBase + stamp))
	return hex.EncodeToString(sum[:])
}
