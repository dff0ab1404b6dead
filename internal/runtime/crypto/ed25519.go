package crypto

import (
	"crypto/ed25519"
)

// Ed25519Verify checks an ed25519 signature of message.
func Ed25519Verify(message, signature, pubkey []byte) (bool, error) {
	if len(signature) != ed25519.SignatureSize {
		return false, ErrInvalidSignatureFormat
	}
	if len(pubkey) != ed25519.PublicKeySize {
		return false, ErrInvalidPubkeyFormat
	}
	return ed25519.Verify(pubkey, message, signature), nil
}

// Ed25519BatchVerify verifies a batch of signatures. The three lists must
// have equal length, except that a single message may be signed by many
// keys and a single key may sign many messages. An empty batch is valid.
func Ed25519BatchVerify(messages, signatures, pubkeys [][]byte) (bool, error) {
	n := len(signatures)
	switch {
	case len(messages) == n && len(pubkeys) == n:
	case len(messages) == 1 && len(pubkeys) == n:
		messages = repeat(messages[0], n)
	case len(pubkeys) == 1 && len(messages) == n:
		pubkeys = repeat(pubkeys[0], n)
	default:
		return false, batchErr("Mismatched / erroneous number of messages / signatures / public keys")
	}

	for i := range signatures {
		ok, err := Ed25519Verify(messages[i], signatures[i], pubkeys[i])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func repeat(item []byte, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = item
	}
	return out
}
