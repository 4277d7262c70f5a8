package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-api-otp/internal/config"
	"github.com/go-api-otp/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

var (
	tables = config.DynamoTables{Users: "users", Otps: "otps"}
	now    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ana    = &domain.User{UserID: "u1", Name: "Ana", Email: "a@x.com", CreatedAt: now}
)

func item(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	m, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return m
}

func TestCreateUser_WritesWhenEmailFree(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == emailIndex
	})).Return(&dynamodb.QueryOutput{}, nil)
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return aws.ToString(in.TableName) == "users" &&
			aws.ToString(in.ConditionExpression) == "attribute_not_exists(#id)"
	})).Return(&dynamodb.PutItemOutput{}, nil)

	require.NoError(t, NewStore(api, tables).CreateUser(context.Background(), ana))
	api.AssertExpectations(t)
}

func TestCreateUser_ExistingEmailConflicts(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).
		Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item(t, ana)}}, nil)

	err := NewStore(api, tables).CreateUser(context.Background(), &domain.User{UserID: "u2", Email: "a@x.com"})
	assert.True(t, errors.Is(err, domain.ErrConflict))
	api.AssertNotCalled(t, "PutItem", mock.Anything, mock.Anything)
}

func TestCreateUser_QueryFailureIsNotConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := NewStore(api, tables).CreateUser(context.Background(), ana)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrConflict))
}

func TestGetUser(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: item(t, ana)}, nil).Once()
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil).Once()

	s := NewStore(api, tables)
	got, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, ana, got)

	_, err = s.GetUser(context.Background(), "gone")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := NewStore(api, tables).GetUserByEmail(context.Background(), "nobody@x.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCreateOtp_StoresExpiryAsEpochSeconds(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.Anything).Return(&dynamodb.PutItemOutput{}, nil)

	o := &domain.Otp{OtpID: "o1", Code: "012345", UserID: "u1", ExpiresAt: now.Add(30 * time.Minute), CreatedAt: now}
	require.NoError(t, NewStore(api, tables).CreateOtp(context.Background(), o))

	in := api.Calls[0].Arguments.Get(1).(*dynamodb.PutItemInput)
	assert.Equal(t, "otps", aws.ToString(in.TableName))
	exp, ok := in.Item[fieldExpiresAt].(*types.AttributeValueMemberN)
	require.True(t, ok, "expires_at must be numeric")
	assert.Equal(t, "1772368200", exp.Value)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "012345"}, in.Item[fieldCode])
}

func TestRedeemOtp_ConditionalUpdate(t *testing.T) {
	api := &mockAPI{}
	used := &domain.Otp{OtpID: "o1", Code: "123456", UserID: "u1", ExpiresAt: now.Add(time.Minute), Used: true, CreatedAt: now}
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(&dynamodb.UpdateItemOutput{Attributes: item(t, used)}, nil)
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: item(t, ana)}, nil)

	u, err := NewStore(api, tables).RedeemOtp(context.Background(), "o1", "123456", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)

	in := api.Calls[0].Arguments.Get(1).(*dynamodb.UpdateItemInput)
	assert.Equal(t, "otps", aws.ToString(in.TableName))
	assert.Equal(t, strKey(fieldOtpID, "o1"), in.Key)
	assert.Equal(t, "SET #f0 = :v0", aws.ToString(in.UpdateExpression))
	assert.Equal(t, redeemCondition, aws.ToString(in.ConditionExpression))
	assert.Equal(t, map[string]string{"#f0": "used", "#code": "code", "#used": "used", "#exp": "expires_at"}, in.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "123456"}, in.ExpressionAttributeValues[":code"])
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: false}, in.ExpressionAttributeValues[":unused"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1772366400"}, in.ExpressionAttributeValues[":now"])
	assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
}

func TestRedeemOtp_FailedConditionIsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")})

	_, err := NewStore(api, tables).RedeemOtp(context.Background(), "o1", "123456", now)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	api.AssertNotCalled(t, "GetItem", mock.Anything, mock.Anything)
}

func TestRedeemOtp_ServiceErrorIsNotNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, errors.New("ProvisionedThroughputExceeded"))

	_, err := NewStore(api, tables).RedeemOtp(context.Background(), "o1", "123456", now)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestRedeemOtp_SubSecondNowRoundsUp(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")})

	// A code expiring at now must not be accepted 900ms later.
	_, err := NewStore(api, tables).RedeemOtp(context.Background(), "o1", "123456", now.Add(900*time.Millisecond))
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	in := api.Calls[0].Arguments.Get(1).(*dynamodb.UpdateItemInput)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1772366401"}, in.ExpressionAttributeValues[":now"])
}

func TestCeilUnix(t *testing.T) {
	assert.Equal(t, int64(1772366400), ceilUnix(now))
	assert.Equal(t, int64(1772366401), ceilUnix(now.Add(time.Nanosecond)))
	assert.Equal(t, int64(1772366401), ceilUnix(now.Add(999*time.Millisecond)))
}

func TestRedeemOtp_OwnerLookupFailureSpendsCode(t *testing.T) {
	api := &mockAPI{}
	used := &domain.Otp{OtpID: "o1", Code: "123456", UserID: "u1", ExpiresAt: now.Add(time.Minute), Used: true, CreatedAt: now}
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(&dynamodb.UpdateItemOutput{Attributes: item(t, used)}, nil).Once()
	api.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("RequestTimeout")).Once()

	_, err := NewStore(api, tables).RedeemOtp(context.Background(), "o1", "123456", now)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	api.AssertNumberOfCalls(t, "UpdateItem", 1)
	api.AssertExpectations(t)
}
