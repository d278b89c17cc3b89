package services

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"ticket-ledger/internal/status"

	"golang.org/x/crypto/blake2b"
)

const maxTokenLen = 128

// dedupRecord remembers the result of the first successful call made with a
// caller-supplied token.
type dedupRecord struct {
	Op          string `json:"op"`
	Fingerprint string `json:"fingerprint"`
	Result      string `json:"result"`
	CreatedAt   int64  `json:"created_at"`
}

// fingerprint identifies an operation and its arguments.
func fingerprint(op string, args ...string) string {
	h := blake2b.Sum256([]byte(op + "\x00" + strings.Join(args, "\x00")))
	return hex.EncodeToString(h[:])
}

func validateToken(token string) error {
	if len(token) > maxTokenLen {
		return fmt.Errorf("%w: idempotency key longer than %d bytes", status.ErrInvalidInput, maxTokenLen)
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("%w: idempotency key must not contain whitespace", status.ErrInvalidInput)
	}
	return nil
}

// replay looks up a dedup record inside a mutation. hit is true when the
// same call already committed; its result is returned.
func replay(current map[string][]byte, key, fp string) (result string, hit bool, err error) {
	if key == "" {
		return "", false, nil
	}
	var rec dedupRecord
	found, err := decodeRecord(current, key, &rec)
	if err != nil || !found {
		return "", false, err
	}
	if rec.Fingerprint != fp {
		return "", false, fmt.Errorf("%w: key was first used for a different %s", status.ErrIdempotencyConflict, rec.Op)
	}
	return rec.Result, true, nil
}

func putDedup(writes map[string][]byte, key, op, fp, result string, now time.Time) error {
	if key == "" {
		return nil
	}
	return putRecord(writes, key, dedupRecord{
		Op:          op,
		Fingerprint: fp,
		Result:      result,
		CreatedAt:   now.Unix(),
	})
}
