package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-otp/internal/domain"
)

// redeemCondition holds only for an unused, unexpired item whose code matches.
// A missing item fails it too, since #code cannot equal :code.
const redeemCondition = "#code = :code AND #used = :unused AND #exp >= :now"

// OtpRepo provides typed DynamoDB operations for the otps table.
type OtpRepo struct {
	client    API
	tableName string
}

func NewOtpRepo(client API, tableName string) *OtpRepo {
	return &OtpRepo{client: client, tableName: tableName}
}

func (r *OtpRepo) Put(ctx context.Context, o *domain.Otp) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal otp: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put otp: %w", err)
	}
	return nil
}

// MarkUsed flips used to true in a single conditional UpdateItem and returns
// the updated item. Any failed condition is reported as domain.ErrNotFound.
func (r *OtpRepo) MarkUsed(ctx context.Context, otpID, code string, now time.Time) (*domain.Otp, error) {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldUsed: true})
	if err != nil {
		return nil, err
	}
	ue.withCondition(
		map[string]string{"#code": fieldCode, "#used": fieldUsed, "#exp": fieldExpiresAt},
		map[string]types.AttributeValue{
			":code":   &types.AttributeValueMemberS{Value: code},
			":unused": &types.AttributeValueMemberBOOL{Value: false},
			":now":    &types.AttributeValueMemberN{Value: fmt.Sprint(ceilUnix(now))},
		},
	)

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldOtpID, otpID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String(redeemCondition),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil, fmt.Errorf("otp %s: %w", otpID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update otp: %w", err)
	}
	var o domain.Otp
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal otp: %w", err)
	}
	return &o, nil
}

// ceilUnix rounds now up to whole seconds. expires_at is stored truncated to
// the second, so comparing against a truncated now would accept a code for up
// to a second past its expiry.
func ceilUnix(t time.Time) int64 {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return sec
}
