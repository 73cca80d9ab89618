package accountstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type mockDynamoDB struct {
	getOutput  *dynamodb.GetItemOutput
	getErr     error
	updateErr  error
	getInputs  []*dynamodb.GetItemInput
	updateInputs []*dynamodb.UpdateItemInput
}

func (m *mockDynamoDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.getInputs = append(m.getInputs, params)
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getOutput, nil
}

func (m *mockDynamoDB) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, params)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func TestGet_ReturnsAccount(t *testing.T) {
	ddb := &mockDynamoDB{
		getOutput: &dynamodb.GetItemOutput{
			Item: map[string]types.AttributeValue{
				"awsAccountId": &types.AttributeValueMemberS{Value: "417845783913"},
				"status":       &types.AttributeValueMemberS{Value: "CleanUp"},
				"email":        &types.AttributeValueMemberS{Value: "sandbox-1@example.com"},
			},
		},
	}
	store := New(ddb, "isb-accounts")

	account, err := store.Get(context.Background(), "417845783913")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account == nil {
		t.Fatal("expected account")
	}
	if account.AwsAccountID != "417845783913" || account.Status != StatusCleanUp {
		t.Errorf("unexpected account %+v", account)
	}

	input := ddb.getInputs[0]
	if aws.ToString(input.TableName) != "isb-accounts" {
		t.Errorf("unexpected table %q", aws.ToString(input.TableName))
	}
	if !aws.ToBool(input.ConsistentRead) {
		t.Error("expected a consistent read")
	}
}

func TestGet_UntrackedAccountIsNilNotError(t *testing.T) {
	ddb := &mockDynamoDB{getOutput: &dynamodb.GetItemOutput{}}
	store := New(ddb, "isb-accounts")

	account, err := store.Get(context.Background(), "417845783913")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if account != nil {
		t.Errorf("expected nil account, got %+v", account)
	}
}

func TestGet_Error(t *testing.T) {
	ddb := &mockDynamoDB{getErr: errors.New("throttled")}
	store := New(ddb, "isb-accounts")

	_, err := store.Get(context.Background(), "417845783913")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSetStatus_ConditionalUpdate(t *testing.T) {
	ddb := &mockDynamoDB{}
	store := New(ddb, "isb-accounts")

	err := store.SetStatus(context.Background(), "417845783913", StatusAvailable, StatusQuarantine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := ddb.updateInputs[0]
	if input.ConditionExpression == nil {
		t.Fatal("expected a condition expression guarding the prior status")
	}
	found := false
	for _, v := range input.ExpressionAttributeValues {
		if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == string(StatusAvailable) {
			found = true
		}
	}
	if !found {
		t.Error("condition must reference the expected prior status")
	}
}

func TestSetStatus_ConflictMapsToSentinel(t *testing.T) {
	ddb := &mockDynamoDB{updateErr: &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}}
	store := New(ddb, "isb-accounts")

	err := store.SetStatus(context.Background(), "417845783913", StatusAvailable, StatusQuarantine)
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
}

func TestSetStatus_OtherError(t *testing.T) {
	ddb := &mockDynamoDB{updateErr: errors.New("throttled")}
	store := New(ddb, "isb-accounts")

	err := store.SetStatus(context.Background(), "417845783913", StatusAvailable, StatusQuarantine)
	if err == nil || errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected a non-conflict error, got %v", err)
	}
}
