package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const RoleAdmin = "admin"

// User model
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Whatsapp  string             `bson:"whatsapp" json:"whatsapp"`
	HPassword string             `bson:"password" json:"-"`
	Role      string             `bson:"role" json:"role"`
	Verified  bool               `bson:"isVerified" json:"isVerified"`
}
