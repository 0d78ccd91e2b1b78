package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// New generates a new ULID string. ULIDs are lexicographically sortable
// by creation time and safe for use as DynamoDB partition keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewObjectID returns a fresh 24-hex Mongo ObjectID.
func NewObjectID() string {
	return bson.NewObjectID().Hex()
}

// Valid reports whether s is a user identifier the directory can hold:
// a 24 character hexadecimal ObjectID.
func Valid(s string) bool {
	if len(s) != 24 {
		return false
	}
	_, err := bson.ObjectIDFromHex(s)
	return err == nil
}
