package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Platform string

const (
	PlatformIos     Platform = "ios"
	PlatformAndroid Platform = "android"
)

func (p Platform) Valid() bool {
	return p == PlatformIos || p == PlatformAndroid
}

// DefaultBundleFile is the payload filename used when no other name is known.
const DefaultBundleFile = "bundle.zip"

type Bundle struct {
	Id                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Channel           string             `json:"channel" bson:"channel"`
	Platform          Platform           `json:"platform" bson:"platform"`
	TargetAppVersion  string             `json:"targetAppVersion" bson:"targetAppVersion"`
	Message           string             `json:"message" bson:"message"`
	Enabled           bool               `json:"enabled" bson:"enabled"`
	ShouldForceUpdate bool               `json:"shouldForceUpdate" bson:"shouldForceUpdate"`
}

// CreatedAt is derived from the id, it is never stored separately.
func (b Bundle) CreatedAt() time.Time {
	return b.Id.Timestamp()
}

// BundlePrefix is the object-store prefix under which every object that
// belongs to the bundle lives.
func BundlePrefix(bundleId string) string {
	return bundleId + "/"
}

// BundleObjectKey builds the object key for a bundle payload file.
func BundleObjectKey(bundleId, filename string) string {
	return bundleId + "/" + filename
}
