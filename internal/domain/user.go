package domain

import "time"

type User struct {
	UserID    string    `json:"id" dynamodbav:"user_id" bson:"_id"`
	Name      string    `json:"name" dynamodbav:"name" bson:"name"`
	Email     string    `json:"email" dynamodbav:"email" bson:"email"`
	CreatedAt time.Time `json:"-" dynamodbav:"created_at" bson:"created_at"`
}

type SignupRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}
