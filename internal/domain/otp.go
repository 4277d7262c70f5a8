package domain

import "time"

// Otp is a one-time sign-in challenge. Rows are never removed by the service;
// an Otp stops being redeemable once Used is set or ExpiresAt has passed.
type Otp struct {
	OtpID     string    `json:"id" dynamodbav:"otp_id" bson:"_id"`
	Code      string    `json:"-" dynamodbav:"code" bson:"code"`
	UserID    string    `json:"user_id" dynamodbav:"user_id" bson:"user_id"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime" bson:"expires_at"`
	Used      bool      `json:"used" dynamodbav:"used" bson:"used"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at" bson:"created_at"`
}

type SigninRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type UseOTPRequest struct {
	ID   string `json:"id" validate:"required"`
	Code string `json:"code" validate:"required,len=6"`
}
