package mongostore

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// idValue builds a filter value for an id that the account service may have stored as an
// ObjectId while documents created here carry plain string ids.
func idValue(id string) interface{} {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return id
	}
	return bson.M{"$in": bson.A{oid, id}}
}

// versionValue matches readVersion; documents that predate the version field count as 0.
func versionValue(readVersion int64) interface{} {
	if readVersion == 0 {
		return bson.M{"$in": bson.A{0, nil}}
	}
	return readVersion
}
