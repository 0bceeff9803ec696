package ddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"stakedeck/internal/types"
)

// ReferralStore implements ports.ReferralStore on a single PK/SK table.
// Accounts live under ACCOUNT#<subject>/PROFILE; each referral code also gets
// a CODE#<code>/OWNER item whose conditional create doubles as the code
// uniqueness check.
type ReferralStore struct {
	table string
	cli   *dynamodb.Client
}

func NewReferralStore(table string, cli *dynamodb.Client) *ReferralStore {
	createTableIfNotExists(cli, table)
	return &ReferralStore{table: table, cli: cli}
}

func (s *ReferralStore) Get(ctx context.Context, subject string) (types.ReferralAccount, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkAccount(subject)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skProfile()},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.ReferralAccount{}, err
	}
	if out.Item == nil {
		return types.ReferralAccount{}, types.ErrNotFound
	}
	var account types.ReferralAccount
	if err := attributevalue.UnmarshalMap(out.Item, &account); err != nil {
		return types.ReferralAccount{}, err
	}
	return account, nil
}

func (s *ReferralStore) GetByCode(ctx context.Context, code string) (types.ReferralAccount, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkCode(code)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skOwner()},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.ReferralAccount{}, err
	}
	if out.Item == nil {
		return types.ReferralAccount{}, types.ErrNotFound
	}
	var owner struct {
		Subject string `dynamodbav:"subject"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &owner); err != nil {
		return types.ReferralAccount{}, err
	}
	return s.Get(ctx, owner.Subject)
}

func (s *ReferralStore) Create(ctx context.Context, account types.ReferralAccount) error {
	item, err := attributevalue.MarshalMap(struct {
		PK string `dynamodbav:"PK"`
		SK string `dynamodbav:"SK"`
		types.ReferralAccount
	}{
		PK:              pkAccount(account.Subject),
		SK:              skProfile(),
		ReferralAccount: account,
	})
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.table,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return types.ErrConflict
		}
		return err
	}

	ownerItem := map[string]ddbTypes.AttributeValue{
		"PK":      &ddbTypes.AttributeValueMemberS{Value: pkCode(account.Code)},
		"SK":      &ddbTypes.AttributeValueMemberS{Value: skOwner()},
		"subject": &ddbTypes.AttributeValueMemberS{Value: account.Subject},
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.table,
		Item:                ownerItem,
		ConditionExpression: awsString("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var cc *ddbTypes.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return types.Err(types.ErrConflict, nil, "code %s already taken", account.Code)
		}
		return err
	}
	return nil
}

func (s *ReferralStore) SetWallet(ctx context.Context, subject, wallet string) error {
	return s.updateAttr(ctx, subject, "wallet", wallet)
}

func (s *ReferralStore) SetReferredBy(ctx context.Context, subject, code string) error {
	return s.updateAttr(ctx, subject, "referred_by", code)
}

func (s *ReferralStore) IncrementReferrals(ctx context.Context, subject string, points int) error {
	_, err := s.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkAccount(subject)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skProfile()},
		},
		UpdateExpression:    awsString("ADD referrals :one, points :points"),
		ConditionExpression: awsString("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":one":    &ddbTypes.AttributeValueMemberN{Value: "1"},
			":points": &ddbTypes.AttributeValueMemberN{Value: fmt.Sprintf("%d", points)},
		},
	})
	var cc *ddbTypes.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return types.ErrNotFound
	}
	return err
}

func (s *ReferralStore) updateAttr(ctx context.Context, subject, attr, value string) error {
	_, err := s.cli.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkAccount(subject)},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skProfile()},
		},
		UpdateExpression:         awsString("SET #a = :v"),
		ConditionExpression:      awsString("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":v": &ddbTypes.AttributeValueMemberS{Value: value},
		},
	})
	var cc *ddbTypes.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return types.ErrNotFound
	}
	return err
}
