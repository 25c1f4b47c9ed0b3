package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Product is read from the catalog collection; catalog CRUD lives elsewhere.
type Product struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Category string             `bson:"category" json:"category"`
	Price    int64              `bson:"price" json:"price"`
	ImageURL string             `bson:"imageUrl" json:"imageUrl"`
}
