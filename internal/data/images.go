package data

import (
	"context"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// defaultPalette is the fixed set of avatar assets a newly created chat can
// draw its image from.
var defaultPalette = []string{
	"/assets/avatars/coral.svg",
	"/assets/avatars/ocean.svg",
	"/assets/avatars/forest.svg",
	"/assets/avatars/plum.svg",
	"/assets/avatars/amber.svg",
	"/assets/avatars/slate.svg",
}

// ImagesStore provides image metadata operations. The service stores asset
// references only; binary storage lives elsewhere.
type ImagesStore struct {
	coll *mongo.Collection
}

// NewImagesStore returns an ImagesStore using the given collection.
func NewImagesStore(coll *mongo.Collection) *ImagesStore {
	return &ImagesStore{coll: coll}
}

// InsertImage persists an image document and returns it with the generated id.
func (s *ImagesStore) InsertImage(ctx context.Context, img *Image) (*Image, error) {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now()
	}

	result, err := s.coll.InsertOne(ctx, img)
	if err != nil {
		return nil, err
	}
	img.ID = result.InsertedID.(bson.ObjectID)
	return img, nil
}

// CreateDefault materializes a fresh image document picked pseudo-randomly
// from the fixed palette. Every chat gets its own document so later image
// swaps can delete the old one without affecting other chats.
func (s *ImagesStore) CreateDefault(ctx context.Context) (*Image, error) {
	img := &Image{
		Source: defaultPalette[rand.Intn(len(defaultPalette))],
		Alt:    "default chat image",
	}
	return s.InsertImage(ctx, img)
}

// DeleteImage removes an image document, reporting whether one matched.
func (s *ImagesStore) DeleteImage(ctx context.Context, id bson.ObjectID) (bool, error) {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}
