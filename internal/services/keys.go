package services

import "strconv"

const (
	keyPrefix = "ledger:"

	// eventSeqKey holds the last allocated event id.
	eventSeqKey = keyPrefix + "event:seq"
)

func eventKey(id uint64) string {
	return keyPrefix + "event:" + strconv.FormatUint(id, 10)
}

func organizerKey(organizer string) string {
	return keyPrefix + "organizer:" + organizer
}

func ticketKey(id string) string {
	return keyPrefix + "ticket:" + id
}

func ownerKey(owner string) string {
	return keyPrefix + "owner:" + owner
}

func dedupKey(op, token string) string {
	if token == "" {
		return ""
	}
	return keyPrefix + "dedup:" + op + ":" + token
}

// sequence is the record under eventSeqKey.
type sequence struct {
	Last uint64 `json:"last"`
}
