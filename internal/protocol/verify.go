package protocol

import "crypto/ed25519"

// VerifySignature checks an advert's Ed25519 signature over
// public_key || timestamp || app_data. Verification only gates uploads —
// in-mesh ingestion records an advert even when this returns false.
func (a *Advert) VerifySignature() bool {
	if len(a.PublicKey) != ed25519.PublicKeySize || len(a.Signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(a.PublicKey, a.SignedBody, a.Signature)
}
