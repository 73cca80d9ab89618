// Package accountstore reads and updates sandbox account records in
// the DynamoDB account table. The quarantine and release controllers
// only read from it; status mutation happens through the transactional
// mover, which uses the conditional update here as its commit step.
package accountstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Status is the lifecycle state of a sandbox account. The values
// mirror the OU names the account sits under.
type Status string

const (
	StatusAvailable  Status = "Available"
	StatusActive     Status = "Active"
	StatusCleanUp    Status = "CleanUp"
	StatusQuarantine Status = "Quarantine"
	StatusFrozen     Status = "Frozen"
	StatusEntry      Status = "Entry"
	StatusExit       Status = "Exit"
)

// ErrStatusConflict indicates the conditional status update lost to a
// concurrent writer: the record's status was no longer the expected
// prior value.
var ErrStatusConflict = errors.New("account status changed concurrently")

// Account is a sandbox account record. Records are created and deleted
// by the account-management service, never here.
type Account struct {
	AwsAccountID string `dynamodbav:"awsAccountId"`
	Status       Status `dynamodbav:"status"`
	Email        string `dynamodbav:"email,omitempty"`
}

// DynamoDBClient defines the DynamoDB operations the store needs.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store wraps account-table access.
type Store struct {
	ddb       DynamoDBClient
	tableName string
}

// New creates a Store over the given client and table.
func New(client DynamoDBClient, tableName string) *Store {
	return &Store{ddb: client, tableName: tableName}
}

// Get fetches the account record for accountID. Returns (nil, nil)
// when the account is not tracked in the table.
func (s *Store) Get(ctx context.Context, accountID string) (*Account, error) {
	output, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"awsAccountId": &types.AttributeValueMemberS{Value: accountID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	if output.Item == nil {
		return nil, nil
	}

	var account Account
	if err := attributevalue.UnmarshalMap(output.Item, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account %s: %w", accountID, err)
	}
	return &account, nil
}

// SetStatus transitions the account's status from one expected value
// to another. The update is conditional on the record still holding
// the expected prior status; a lost race surfaces as ErrStatusConflict
// rather than silently overwriting a concurrent transition.
func (s *Store) SetStatus(ctx context.Context, accountID string, from, to Status) error {
	update := expression.Set(expression.Name("status"), expression.Value(string(to)))
	condition := expression.Name("status").Equal(expression.Value(string(from)))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = s.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       map[string]types.AttributeValue{"awsAccountId": &types.AttributeValueMemberS{Value: accountID}},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("account %s: %w", accountID, ErrStatusConflict)
		}
		return fmt.Errorf("failed to update status of account %s: %w", accountID, err)
	}
	return nil
}
